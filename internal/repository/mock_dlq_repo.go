package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/notifyhub/dispatch/internal/domain"
)

// MockDLQRepository is the in-memory test double for DLQRepository.
// It holds a reference to the notification mock so Insert can mirror
// the single-transaction semantics of the pg implementation.
type MockDLQRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.DLQEntry
	byNotif map[string]string

	notifRepo *MockNotificationRepository

	InsertErr error
}

func NewMockDLQRepository(notifRepo *MockNotificationRepository) *MockDLQRepository {
	return &MockDLQRepository{
		entries:   make(map[string]*domain.DLQEntry),
		byNotif:   make(map[string]string),
		notifRepo: notifRepo,
	}
}

func (m *MockDLQRepository) Insert(_ context.Context, entry *domain.DLQEntry, failedAt int64) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	if _, exists := m.byNotif[entry.NotificationID]; exists {
		m.mu.Unlock()
		return domain.ErrAlreadyInDLQ
	}
	clone := *entry
	m.entries[entry.ID] = &clone
	m.byNotif[entry.NotificationID] = entry.ID
	m.mu.Unlock()

	return m.notifRepo.setFailed(entry.NotificationID, failedAt)
}

func (m *MockDLQRepository) GetByID(_ context.Context, id string) (*domain.DLQEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *MockDLQRepository) Resolve(_ context.Context, id string, resolvedAt int64, resolvedBy *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Resolved = true
	e.ResolvedAt = &resolvedAt
	e.ResolvedBy = resolvedBy
	return nil
}

func (m *MockDLQRepository) List(_ context.Context, resolved *bool, limit, offset int) ([]*domain.DLQEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.DLQEntry
	for _, e := range m.entries {
		if resolved != nil && e.Resolved != *resolved {
			continue
		}
		clone := *e
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].MovedToDLQAt > matched[j].MovedToDLQAt
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MockDLQRepository) DeleteResolvedBefore(_ context.Context, cutoff int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, e := range m.entries {
		if e.Resolved && e.ResolvedAt != nil && *e.ResolvedAt < cutoff {
			delete(m.byNotif, e.NotificationID)
			delete(m.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockDLQRepository) Stats(_ context.Context) (*domain.DLQStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &domain.DLQStats{Total: len(m.entries)}
	for _, e := range m.entries {
		if !e.Resolved {
			s.Unresolved++
		}
	}
	s.Resolved = s.Total - s.Unresolved
	return s, nil
}

var _ DLQRepository = (*MockDLQRepository)(nil)
