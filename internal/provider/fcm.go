package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/notifyhub/dispatch/internal/domain"
)

// fcmEndpoint is the legacy FCM HTTP API.
const fcmEndpoint = "https://fcm.googleapis.com/fcm/send"

// FCMProvider delivers push payloads {token? | topic?, title?, body?, data?}
// through Firebase Cloud Messaging.
type FCMProvider struct {
	serverKey  string
	apiURL     string
	httpClient *http.Client
}

func NewFCMProvider(serverKey string, timeout time.Duration) *FCMProvider {
	return &FCMProvider{
		serverKey: serverKey,
		apiURL:    fcmEndpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *FCMProvider) Name() string { return "fcm" }

type fcmMessage struct {
	Notification fcmNotification `json:"notification"`
	Data         any             `json:"data,omitempty"`
	To           string          `json:"to"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (p *FCMProvider) Send(ctx context.Context, n *domain.Notification) (*Outcome, error) {
	payload, err := decodePayload(n)
	if err != nil {
		return failureOutcome(err.Error(), false), nil
	}

	token := payloadString(payload, "token")
	topic := payloadString(payload, "topic")
	if token == "" && topic == "" {
		return failureOutcome(`missing "token" or "topic" field in payload`, false), nil
	}

	title := payloadString(payload, "title")
	if title == "" {
		title = "Notification"
	}

	msg := fcmMessage{
		Notification: fcmNotification{Title: title, Body: payloadString(payload, "body")},
		Data:         payload["data"],
		To:           token,
	}
	if token == "" {
		msg.To = "/topics/" + topic
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal fcm message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create fcm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.serverKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fcm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return failureOutcome(fmt.Sprintf("FCM returned error status %d", resp.StatusCode), true), nil
	}

	var result struct {
		Success int `json:"success"`
		Failure int `json:"failure"`
		Results []struct {
			Error string `json:"error"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode fcm response: %w", err)
	}

	response := map[string]any{"success": result.Success, "failure": result.Failure}
	if result.Success > 0 {
		return successOutcome("push notification sent via FCM", response), nil
	}

	errMsg := "unknown error"
	if result.Failure > 0 && len(result.Results) > 0 && result.Results[0].Error != "" {
		errMsg = result.Results[0].Error
	}
	out := failureOutcome("FCM error: "+errMsg, true)
	out.Response = response
	return out, nil
}

var _ Provider = (*FCMProvider)(nil)
