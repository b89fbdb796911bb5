package worker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/domain"
	"github.com/notifyhub/dispatch/internal/repository"
)

func seedDue(repo *repository.MockNotificationRepository, id string, sendAt int64, status domain.Status) {
	now := domain.NowMillis()
	repo.Put(&domain.Notification{
		ID:          id,
		UserID:      "user-1",
		MessageType: domain.MessageTypeEmail,
		Provider:    domain.ProviderLocal,
		Status:      status,
		Payload:     `{"to":"a@b.com","body":"hi"}`,
		MaxRetries:  5,
		CreatedAt:   now,
		UpdatedAt:   now,
		SendAt:      &sendAt,
	})
}

func TestSchedulerWorker_EnqueuesOnlyDuePending(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	q := &fakeQueue{}
	sw := NewSchedulerWorker(repo, q, time.Minute, 100, zap.NewNop())
	ctx := context.Background()

	now := domain.NowMillis()
	seedDue(repo, "due-1", now-5000, domain.StatusPending)
	seedDue(repo, "due-2", now-1000, domain.StatusPending)
	seedDue(repo, "future", now+60_000, domain.StatusPending)
	seedDue(repo, "sent", now-5000, domain.StatusSent)

	sw.poll(ctx)

	depth, _ := q.Depth(ctx)
	if depth != 2 {
		t.Fatalf("expected 2 enqueued, got %d", depth)
	}

	// Oldest send_at first.
	first, _, _ := q.PopBlocking(ctx, 0)
	second, _, _ := q.PopBlocking(ctx, 0)
	if first.ID != "due-1" || second.ID != "due-2" {
		t.Fatalf("unexpected order: %s, %s", first.ID, second.ID)
	}
}

func TestSchedulerWorker_RespectsBatchLimit(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	q := &fakeQueue{}
	sw := NewSchedulerWorker(repo, q, time.Minute, 3, zap.NewNop())
	ctx := context.Background()

	now := domain.NowMillis()
	for i := 0; i < 10; i++ {
		seedDue(repo, string(rune('a'+i)), now-int64(i)*100, domain.StatusPending)
	}

	sw.poll(ctx)

	depth, _ := q.Depth(ctx)
	if depth != 3 {
		t.Fatalf("expected batch of 3, got %d", depth)
	}
}

func TestSchedulerWorker_SurvivesRepositoryError(t *testing.T) {
	repo := repository.NewMockNotificationRepository()
	repo.FindDueErr = context.DeadlineExceeded
	q := &fakeQueue{}
	sw := NewSchedulerWorker(repo, q, time.Minute, 100, zap.NewNop())

	// Must not panic; the next tick simply tries again.
	sw.poll(context.Background())

	depth, _ := q.Depth(context.Background())
	if depth != 0 {
		t.Fatalf("expected empty queue, got %d", depth)
	}
}
