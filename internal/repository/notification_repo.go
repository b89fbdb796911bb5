package repository

import (
	"context"

	"github.com/notifyhub/dispatch/internal/domain"
)

// NotificationRepository defines all persistence operations on the
// notifications table. The pgx implementation is in
// pg_notification_repo.go; tests use a hand-written mock.
type NotificationRepository interface {
	// Create inserts a PENDING row. Returns domain.ErrDuplicate when
	// the idempotency_key unique constraint is violated.
	Create(ctx context.Context, n *domain.Notification) error

	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Notification, int, error)

	// Cancel transitions a PENDING notification to CANCELLED under a
	// row-level exclusive lock so it cannot race with worker pickup.
	Cancel(ctx context.Context, id string, now int64) error

	// RecordAttempt atomically increments attempt_count and stamps
	// last_attempted_at. Returns the post-increment attempt count.
	RecordAttempt(ctx context.Context, id string, now int64) (int, error)

	// MarkSent drives the notification to its SENT terminal state.
	MarkSent(ctx context.Context, id string, sentAt int64, providerResponse *string) error

	// ScheduleRetry re-arms a notification: status back to PENDING
	// with the next attempt time and the last provider error.
	ScheduleRetry(ctx context.Context, id string, sendAt int64, errMsg string, now int64) error

	// Reactivate resurrects a FAILED notification out of the DLQ:
	// attempt_count reset to 0, status PENDING, failure fields
	// cleared, send_at set to now.
	Reactivate(ctx context.Context, id string, now int64) error

	// FindDue returns PENDING notifications whose send_at has passed,
	// oldest first, bounded by limit.
	FindDue(ctx context.Context, now int64, limit int) ([]*domain.Notification, error)
}

// DLQRepository defines persistence operations on the DLQ table.
type DLQRepository interface {
	// Insert creates the DLQ entry and marks the notification FAILED
	// in a single transaction. Returns domain.ErrAlreadyInDLQ when an
	// entry for the notification already exists.
	Insert(ctx context.Context, entry *domain.DLQEntry, failedAt int64) error

	GetByID(ctx context.Context, id string) (*domain.DLQEntry, error)
	Resolve(ctx context.Context, id string, resolvedAt int64, resolvedBy *string) error
	List(ctx context.Context, resolved *bool, limit, offset int) ([]*domain.DLQEntry, error)
	DeleteResolvedBefore(ctx context.Context, cutoff int64) (int64, error)
	Stats(ctx context.Context) (*domain.DLQStats, error)
}
