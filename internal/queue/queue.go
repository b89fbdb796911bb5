package queue

import (
	"context"
	"time"
)

// ActionSend is the only envelope action the workers understand.
const ActionSend = "send"

// Envelope is the minimal record placed on the delivery queue.
// Workers fetch the full Notification from the store using the ID,
// keeping the queue lightweight and the domain data authoritative.
type Envelope struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// Queue is a reliable FIFO transport of envelopes between producers
// (intake, scheduler) and the worker pool. Delivery is at-least-once;
// workers absorb duplicates via the terminal-status check.
type Queue interface {
	// Push enqueues an envelope without blocking.
	Push(ctx context.Context, env Envelope) error

	// PopBlocking waits up to timeout for one envelope.
	// ok is false when the timeout elapsed with nothing available.
	PopBlocking(ctx context.Context, timeout time.Duration) (env Envelope, ok bool, err error)

	// Depth returns the number of envelopes currently waiting.
	Depth(ctx context.Context) (int64, error)
}
