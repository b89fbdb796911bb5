package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/domain"
	"github.com/notifyhub/dispatch/internal/queue"
	"github.com/notifyhub/dispatch/internal/repository"
)

// Manager owns the dead letter queue: parking exhausted
// notifications, operator-driven resolution and requeueing, and
// retention cleanup.
type Manager struct {
	dlqRepo   repository.DLQRepository
	notifRepo repository.NotificationRepository
	q         queue.Queue
	logger    *zap.Logger
}

func NewManager(dlqRepo repository.DLQRepository, notifRepo repository.NotificationRepository, q queue.Queue, logger *zap.Logger) *Manager {
	return &Manager{
		dlqRepo:   dlqRepo,
		notifRepo: notifRepo,
		q:         q,
		logger:    logger,
	}
}

// MoveToDLQ parks a notification: a DLQ entry with the serialized
// retry history is inserted and the notification is marked FAILED, in
// one transaction. A second move for the same notification is a no-op
// reported as domain.ErrAlreadyInDLQ by the repository.
func (m *Manager) MoveToDLQ(ctx context.Context, n *domain.Notification, reason, lastError string) error {
	history, err := json.Marshal(domain.RetryHistory{
		TotalAttempts: n.AttemptCount,
		LastError:     lastError,
		LastAttempted: n.LastAttemptedAt,
		FailureReason: reason,
	})
	if err != nil {
		return fmt.Errorf("marshal retry history: %w", err)
	}

	now := domain.NowMillis()
	entry := &domain.DLQEntry{
		ID:             uuid.New().String(),
		NotificationID: n.ID,
		FailureReason:  reason,
		RetryHistory:   string(history),
		MovedToDLQAt:   now,
	}

	if err := m.dlqRepo.Insert(ctx, entry, now); err != nil {
		return fmt.Errorf("insert DLQ entry for %s: %w", n.ID, err)
	}

	m.logger.Warn("notification moved to DLQ",
		zap.String("notification_id", n.ID),
		zap.String("reason", reason),
		zap.Int("attempts", n.AttemptCount))
	return nil
}

// RetryFromDLQ resurrects a dead-lettered notification: the
// notification goes back to PENDING with a zeroed attempt budget and
// is pushed onto the delivery queue. Resolved entries stay resolved
// and cannot be retried.
func (m *Manager) RetryFromDLQ(ctx context.Context, entryID string) (*domain.Notification, error) {
	entry, err := m.dlqRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Resolved {
		return nil, domain.ErrDLQResolved
	}

	now := domain.NowMillis()
	if err := m.notifRepo.Reactivate(ctx, entry.NotificationID, now); err != nil {
		return nil, fmt.Errorf("reactivate %s: %w", entry.NotificationID, err)
	}

	if err := m.q.Push(ctx, queue.Envelope{ID: entry.NotificationID, Action: queue.ActionSend}); err != nil {
		// Row is already PENDING with send_at set, so the scheduler
		// sweep will recover it even if the push fails here.
		m.logger.Error("enqueue after DLQ retry failed",
			zap.String("notification_id", entry.NotificationID), zap.Error(err))
	}

	m.logger.Info("notification requeued from DLQ",
		zap.String("dlq_id", entryID),
		zap.String("notification_id", entry.NotificationID))
	return m.notifRepo.GetByID(ctx, entry.NotificationID)
}

// Resolve marks a DLQ entry handled without requeueing it.
func (m *Manager) Resolve(ctx context.Context, entryID string, resolvedBy *string) error {
	if err := m.dlqRepo.Resolve(ctx, entryID, domain.NowMillis(), resolvedBy); err != nil {
		return err
	}
	m.logger.Info("DLQ entry resolved", zap.String("dlq_id", entryID))
	return nil
}

// List returns DLQ entries, optionally filtered by resolution state,
// newest first. Pagination is clamped the same way notification
// listing is.
func (m *Manager) List(ctx context.Context, resolved *bool, limit, offset int) ([]*domain.DLQEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return m.dlqRepo.List(ctx, resolved, limit, offset)
}

// CleanupOld deletes resolved entries older than the retention window.
func (m *Manager) CleanupOld(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).UnixMilli()
	deleted, err := m.dlqRepo.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup resolved DLQ entries: %w", err)
	}
	if deleted > 0 {
		m.logger.Info("resolved DLQ entries purged",
			zap.Int64("deleted", deleted),
			zap.Int("retention_days", retentionDays))
	}
	return deleted, nil
}

// Stats returns total, unresolved and resolved entry counts.
func (m *Manager) Stats(ctx context.Context) (*domain.DLQStats, error) {
	return m.dlqRepo.Stats(ctx)
}
