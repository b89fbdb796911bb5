package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/domain"
	"github.com/notifyhub/dispatch/internal/idempotency"
	"github.com/notifyhub/dispatch/internal/queue"
	"github.com/notifyhub/dispatch/internal/repository"
)

// NotificationService implements the intake side of the dispatcher:
// accepting notification intents, deduplicating them, persisting the
// PENDING row and enqueueing due work.
type NotificationService struct {
	repo   repository.NotificationRepository
	idem   idempotency.Store
	q      queue.Queue
	ttl    time.Duration
	logger *zap.Logger
}

func NewNotificationService(repo repository.NotificationRepository, idem idempotency.Store, q queue.Queue, idempotencyTTL time.Duration, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repo:   repo,
		idem:   idem,
		q:      q,
		ttl:    idempotencyTTL,
		logger: logger,
	}
}

// Create accepts one notification intent. The idempotency reservation
// happens before the insert; when the reservation is already held the
// request is a duplicate and nothing is persisted. A reservation probe
// that errors fails the request closed rather than risking a double
// send.
func (s *NotificationService) Create(ctx context.Context, req *domain.CreateNotificationRequest) (*domain.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}

	reserved, err := s.idem.Reserve(ctx, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("idempotency reservation: %w", err)
	}
	if !reserved {
		return nil, domain.ErrDuplicate
	}

	now := domain.NowMillis()
	sendAt := now
	if req.SendAt != nil && *req.SendAt > now {
		sendAt = *req.SendAt
	}

	maxRetries := domain.DefaultMaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}

	n := &domain.Notification{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		IdempotencyKey: key,
		MessageType:    req.MessageType,
		Provider:       req.Provider,
		Status:         domain.StatusPending,
		Payload:        req.Payload,
		MaxRetries:     maxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
		SendAt:         &sendAt,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if sendAt <= now {
		if err := s.q.Push(ctx, queue.Envelope{ID: n.ID, Action: queue.ActionSend}); err != nil {
			// The PENDING row with send_at set survives, so the
			// scheduler sweep picks it up on the next tick.
			s.logger.Error("enqueue after create failed",
				zap.String("notification_id", n.ID), zap.Error(err))
		}
	}

	s.logger.Info("notification accepted",
		zap.String("notification_id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("message_type", string(n.MessageType)))
	return n, nil
}

// BulkItemResult reports the outcome of one item in a bulk create.
type BulkItemResult struct {
	Index        int                  `json:"index"`
	Notification *domain.Notification `json:"notification,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// BulkCreate folds Create over the request items. Items succeed or
// fail independently; one bad item never rolls back its siblings.
func (s *NotificationService) BulkCreate(ctx context.Context, req *domain.BulkCreateRequest) ([]BulkItemResult, error) {
	if len(req.Notifications) == 0 {
		return nil, domain.ErrBulkEmpty
	}

	results := make([]BulkItemResult, 0, len(req.Notifications))
	for i := range req.Notifications {
		item := req.Notifications[i]
		n, err := s.Create(ctx, &item)
		if err != nil {
			results = append(results, BulkItemResult{Index: i, Error: err.Error()})
			continue
		}
		results = append(results, BulkItemResult{Index: i, Notification: n})
	}
	return results, nil
}

// Get returns a notification by id.
func (s *NotificationService) Get(ctx context.Context, id string) (*domain.Notification, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of notifications plus the total match count.
func (s *NotificationService) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Notification, int, error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// Cancel transitions a PENDING notification to CANCELLED. Notifications
// already picked up, delivered or failed cannot be cancelled.
func (s *NotificationService) Cancel(ctx context.Context, id string) (*domain.Notification, error) {
	if err := s.repo.Cancel(ctx, id, domain.NowMillis()); err != nil {
		return nil, err
	}
	s.logger.Info("notification cancelled", zap.String("notification_id", id))
	return s.repo.GetByID(ctx, id)
}
