package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/notifyhub/dispatch/internal/domain"
)

// MockNotificationRepository is a hand-written, in-memory implementation of
// NotificationRepository used in unit tests. No mock-generation library needed.
type MockNotificationRepository struct {
	mu            sync.RWMutex
	notifications map[string]*domain.Notification

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr        error
	GetByIDErr       error
	RecordAttemptErr error
	MarkSentErr      error
	ScheduleRetryErr error
	FindDueErr       error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{
		notifications: make(map[string]*domain.Notification),
	}
}

func (m *MockNotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.notifications {
		if existing.IdempotencyKey == n.IdempotencyKey {
			return domain.ErrDuplicate
		}
	}
	clone := *n
	m.notifications[n.ID] = &clone
	return nil
}

func (m *MockNotificationRepository) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	if m.GetByIDErr != nil {
		return nil, m.GetByIDErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (m *MockNotificationRepository) List(_ context.Context, f domain.ListFilter) ([]*domain.Notification, int, error) {
	f.Normalize()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.Notification
	for _, n := range m.notifications {
		if f.UserID != "" && n.UserID != f.UserID {
			continue
		}
		if f.Status != nil && n.Status != *f.Status {
			continue
		}
		clone := *n
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt > matched[j].CreatedAt
	})

	total := len(matched)
	if f.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (m *MockNotificationRepository) Cancel(_ context.Context, id string, now int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	if n.Status != domain.StatusPending {
		return domain.ErrNotCancellable
	}
	n.Status = domain.StatusCancelled
	n.FailedAt = &now
	n.UpdatedAt = now
	return nil
}

func (m *MockNotificationRepository) RecordAttempt(_ context.Context, id string, now int64) (int, error) {
	if m.RecordAttemptErr != nil {
		return 0, m.RecordAttemptErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	n.AttemptCount++
	n.LastAttemptedAt = &now
	n.UpdatedAt = now
	return n.AttemptCount, nil
}

func (m *MockNotificationRepository) MarkSent(_ context.Context, id string, sentAt int64, providerResponse *string) error {
	if m.MarkSentErr != nil {
		return m.MarkSentErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	n.Status = domain.StatusSent
	n.SentAt = &sentAt
	n.UpdatedAt = sentAt
	n.ProviderResponse = providerResponse
	n.ErrorMessage = nil
	return nil
}

func (m *MockNotificationRepository) ScheduleRetry(_ context.Context, id string, sendAt int64, errMsg string, now int64) error {
	if m.ScheduleRetryErr != nil {
		return m.ScheduleRetryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	n.Status = domain.StatusPending
	n.SendAt = &sendAt
	n.ErrorMessage = &errMsg
	n.UpdatedAt = now
	return nil
}

func (m *MockNotificationRepository) Reactivate(_ context.Context, id string, now int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	n.Status = domain.StatusPending
	n.AttemptCount = 0
	n.FailedAt = nil
	n.ErrorMessage = nil
	n.SendAt = &now
	n.UpdatedAt = now
	return nil
}

func (m *MockNotificationRepository) FindDue(_ context.Context, now int64, limit int) ([]*domain.Notification, error) {
	if m.FindDueErr != nil {
		return nil, m.FindDueErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []*domain.Notification
	for _, n := range m.notifications {
		if n.Status != domain.StatusPending || n.SendAt == nil || *n.SendAt > now {
			continue
		}
		clone := *n
		due = append(due, &clone)
	}
	sort.Slice(due, func(i, j int) bool {
		return *due[i].SendAt < *due[j].SendAt
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Put seeds a notification directly, bypassing idempotency checks.
func (m *MockNotificationRepository) Put(n *domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *n
	m.notifications[n.ID] = &clone
}

// setFailed is used by MockDLQRepository to mirror the transactional
// move-to-DLQ coupling of the pg implementation.
func (m *MockNotificationRepository) setFailed(id string, failedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return domain.ErrNotFound
	}
	n.Status = domain.StatusFailed
	n.FailedAt = &failedAt
	n.UpdatedAt = failedAt
	return nil
}

var _ NotificationRepository = (*MockNotificationRepository)(nil)
