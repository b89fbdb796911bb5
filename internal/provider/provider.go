package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/notifyhub/dispatch/internal/domain"
)

// Outcome is the structured result of one adapter send.
// Success=false with Retryable=false short-circuits the retry budget
// and sends the notification straight to the DLQ.
type Outcome struct {
	Success   bool
	Message   string
	Response  map[string]any
	Retryable bool
}

// Provider abstracts delivery of one notification via one transport.
// Implementations must be stateless with respect to notifications
// (safe for concurrent Send calls) and enforce their own per-call
// timeouts on top of the ctx deadline the worker sets.
//
// A returned error means the transport itself failed (connection,
// marshal); the worker treats that as retryable. Provider-level
// rejections are reported through the Outcome instead.
type Provider interface {
	Name() string
	Send(ctx context.Context, n *domain.Notification) (*Outcome, error)
}

func successOutcome(msg string, response map[string]any) *Outcome {
	return &Outcome{Success: true, Message: msg, Response: response, Retryable: true}
}

func failureOutcome(msg string, retryable bool) *Outcome {
	return &Outcome{Success: false, Message: msg, Retryable: retryable}
}

// decodePayload parses the opaque payload blob into the fields a
// channel expects. A payload that does not parse is a caller mistake,
// not a transient fault, so adapters report it as non-retryable.
func decodePayload(n *domain.Notification) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return payload, nil
}

func payloadString(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}
