package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/domain"
	"github.com/notifyhub/dispatch/internal/queue"
	"github.com/notifyhub/dispatch/internal/repository"
)

// SchedulerWorker polls the database for PENDING notifications whose
// send_at has passed and enqueues them for delivery.
//
// This sweep serves three cases with one query: notifications created
// with a future send_at, retries whose backoff has elapsed, and
// notifications whose original enqueue was lost to a queue outage.
// Terminal-status checks at pickup time absorb any duplicate envelopes
// the sweep produces.
type SchedulerWorker struct {
	repo     repository.NotificationRepository
	q        queue.Queue
	interval time.Duration
	batch    int
	logger   *zap.Logger
}

func NewSchedulerWorker(
	repo repository.NotificationRepository,
	q queue.Queue,
	interval time.Duration,
	batch int,
	logger *zap.Logger,
) *SchedulerWorker {
	return &SchedulerWorker{repo: repo, q: q, interval: interval, batch: batch, logger: logger}
}

// Run ticks every interval and enqueues any notifications that are now due.
// Stops cleanly when ctx is cancelled.
func (sw *SchedulerWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("scheduler worker started", zap.Duration("interval", sw.interval))

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("scheduler worker stopping")
			return
		case <-ticker.C:
			sw.poll(ctx)
		}
	}
}

func (sw *SchedulerWorker) poll(ctx context.Context) {
	notifications, err := sw.repo.FindDue(ctx, domain.NowMillis(), sw.batch)
	if err != nil {
		sw.logger.Error("scheduler poll error", zap.Error(err))
		return
	}

	enqueued := 0
	for _, n := range notifications {
		if err := sw.q.Push(ctx, queue.Envelope{ID: n.ID, Action: queue.ActionSend}); err != nil {
			sw.logger.Warn("could not enqueue due notification",
				zap.String("id", n.ID), zap.Error(err))
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		sw.logger.Info("enqueued due notifications", zap.Int("count", enqueued))
	}
}
