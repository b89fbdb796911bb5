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

const textbeltEndpoint = "https://textbelt.com/text"

// TextbeltProvider delivers SMS payloads {to, body} through the
// Textbelt HTTP API. The free-tier key "textbelt" allows one SMS/day.
type TextbeltProvider struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

func NewTextbeltProvider(apiKey string, timeout time.Duration) *TextbeltProvider {
	if apiKey == "" {
		apiKey = "textbelt"
	}
	return &TextbeltProvider{
		apiKey: apiKey,
		apiURL: textbeltEndpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *TextbeltProvider) Name() string { return "textbelt" }

func (p *TextbeltProvider) Send(ctx context.Context, n *domain.Notification) (*Outcome, error) {
	payload, err := decodePayload(n)
	if err != nil {
		return failureOutcome(err.Error(), false), nil
	}

	to := payloadString(payload, "to")
	if to == "" {
		return failureOutcome(`missing "to" field in payload`, false), nil
	}
	body := payloadString(payload, "body")
	if body == "" {
		return failureOutcome(`missing "body" field in payload`, false), nil
	}

	reqBody, err := json.Marshal(map[string]string{
		"phone":   to,
		"message": body,
		"key":     p.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal textbelt request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create textbelt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("textbelt request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		TextID  any    `json:"textId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode textbelt response: %w", err)
	}

	response := map[string]any{"success": result.Success, "textId": result.TextID}
	if result.Success {
		return successOutcome(fmt.Sprintf("SMS sent via Textbelt to %s", to), response), nil
	}

	errMsg := result.Error
	if errMsg == "" {
		errMsg = "unknown error"
	}
	out := failureOutcome("Textbelt error: "+errMsg, true)
	out.Response = response
	return out, nil
}

var _ Provider = (*TextbeltProvider)(nil)
