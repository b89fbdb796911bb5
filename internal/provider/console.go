package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/notifyhub/dispatch/internal/domain"
)

const bannerWidth = 55

// ConsoleSMSProvider "delivers" SMS payloads {to, body} by printing a
// fixed-width banner to stdout. It is the default SMS provider in
// development environments.
type ConsoleSMSProvider struct {
	out io.Writer
}

func NewConsoleSMSProvider() *ConsoleSMSProvider {
	return &ConsoleSMSProvider{out: os.Stdout}
}

func (p *ConsoleSMSProvider) Name() string { return "console_sms" }

func (p *ConsoleSMSProvider) Send(_ context.Context, n *domain.Notification) (*Outcome, error) {
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

	rule := strings.Repeat("-", bannerWidth)
	fmt.Fprintf(p.out, "\n%s\n", rule)
	fmt.Fprintln(p.out, "SMS NOTIFICATION")
	fmt.Fprintln(p.out, rule)
	fmt.Fprintf(p.out, "To:      %s\n", to)
	fmt.Fprintf(p.out, "Message: %s\n", body)
	fmt.Fprintf(p.out, "Time:    %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(p.out, "%s\n\n", rule)

	return successOutcome(
		fmt.Sprintf("SMS logged to console for %s", to),
		map[string]any{"to": to, "body": body},
	), nil
}

// LocalProvider is the catch-all fallback adapter. It logs the full
// notification to stdout and always succeeds, so unconfigured
// channels remain usable in development.
type LocalProvider struct {
	out io.Writer
}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{out: os.Stdout}
}

func (p *LocalProvider) Name() string { return "local" }

func (p *LocalProvider) Send(_ context.Context, n *domain.Notification) (*Outcome, error) {
	payload, err := decodePayload(n)
	if err != nil {
		return failureOutcome(err.Error(), false), nil
	}

	rule := strings.Repeat("-", bannerWidth)
	fmt.Fprintf(p.out, "\n%s\n", rule)
	fmt.Fprintf(p.out, "LOCAL NOTIFICATION - %s\n", n.MessageType)
	fmt.Fprintln(p.out, rule)
	fmt.Fprintf(p.out, "Notification ID: %s\n", n.ID)
	fmt.Fprintf(p.out, "User ID:         %s\n", n.UserID)
	fmt.Fprintf(p.out, "Type:            %s\n", n.MessageType)
	fmt.Fprintf(p.out, "Provider:        %s\n", n.Provider)
	fmt.Fprintf(p.out, "Time:            %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(p.out, rule)

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprintf("%v", payload[k])
		if k == "body" && len(v) > 100 {
			v = v[:100] + "..."
		}
		fmt.Fprintf(p.out, "%s: %s\n", capitalize(k), v)
	}
	fmt.Fprintf(p.out, "%s\n\n", rule)

	return successOutcome(
		"notification logged locally",
		map[string]any{"notification_id": n.ID},
	), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var (
	_ Provider = (*ConsoleSMSProvider)(nil)
	_ Provider = (*LocalProvider)(nil)
)
