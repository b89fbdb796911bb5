package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/dlq"
	"github.com/notifyhub/dispatch/internal/queue"
	"github.com/notifyhub/dispatch/internal/retry"
)

// MaintenanceWorker runs the periodic housekeeping jobs: the DLQ
// health alert, queue depth sampling, and the daily retention cleanup
// of resolved DLQ entries and retry markers.
type MaintenanceWorker struct {
	manager         *dlq.Manager
	engine          *retry.Engine
	q               queue.Queue
	alertInterval   time.Duration
	dlqRetention    int
	markerRetention time.Duration
	logger          *zap.Logger

	// Gauge setters injected by main; nil = no-op.
	setQueueDepth    func(int64)
	setDLQUnresolved func(int)
}

func NewMaintenanceWorker(
	manager *dlq.Manager,
	engine *retry.Engine,
	q queue.Queue,
	alertInterval time.Duration,
	dlqRetentionDays int,
	markerRetention time.Duration,
	logger *zap.Logger,
	setQueueDepth func(int64),
	setDLQUnresolved func(int),
) *MaintenanceWorker {
	if setQueueDepth == nil {
		setQueueDepth = func(int64) {}
	}
	if setDLQUnresolved == nil {
		setDLQUnresolved = func(int) {}
	}
	return &MaintenanceWorker{
		manager:          manager,
		engine:           engine,
		q:                q,
		alertInterval:    alertInterval,
		dlqRetention:     dlqRetentionDays,
		markerRetention:  markerRetention,
		logger:           logger,
		setQueueDepth:    setQueueDepth,
		setDLQUnresolved: setDLQUnresolved,
	}
}

// Run alternates between the alert ticker and the daily cleanup timer
// until ctx is cancelled.
func (mw *MaintenanceWorker) Run(ctx context.Context) {
	alert := time.NewTicker(mw.alertInterval)
	defer alert.Stop()

	cleanup := time.NewTimer(untilNextCleanup(time.Now().UTC()))
	defer cleanup.Stop()

	mw.logger.Info("maintenance worker started",
		zap.Duration("alert_interval", mw.alertInterval),
		zap.Int("dlq_retention_days", mw.dlqRetention))

	for {
		select {
		case <-ctx.Done():
			mw.logger.Info("maintenance worker stopping")
			return
		case <-alert.C:
			mw.checkHealth(ctx)
		case <-cleanup.C:
			mw.runCleanup(ctx)
			cleanup.Reset(untilNextCleanup(time.Now().UTC()))
		}
	}
}

func (mw *MaintenanceWorker) checkHealth(ctx context.Context) {
	if depth, err := mw.q.Depth(ctx); err != nil {
		mw.logger.Error("queue depth probe failed", zap.Error(err))
	} else {
		mw.setQueueDepth(depth)
	}

	stats, err := mw.manager.Stats(ctx)
	if err != nil {
		mw.logger.Error("DLQ stats probe failed", zap.Error(err))
		return
	}
	mw.setDLQUnresolved(stats.Unresolved)
	if stats.Unresolved > 0 {
		mw.logger.Warn("unresolved DLQ entries need attention",
			zap.Int("unresolved", stats.Unresolved),
			zap.Int("total", stats.Total))
	}
}

func (mw *MaintenanceWorker) runCleanup(ctx context.Context) {
	if deleted, err := mw.manager.CleanupOld(ctx, mw.dlqRetention); err != nil {
		mw.logger.Error("DLQ cleanup failed", zap.Error(err))
	} else {
		mw.logger.Info("DLQ cleanup completed", zap.Int64("deleted", deleted))
	}

	if removed, err := mw.engine.CleanupOldMarkers(ctx, mw.markerRetention); err != nil {
		mw.logger.Error("retry marker cleanup failed", zap.Error(err))
	} else {
		mw.logger.Info("retry marker cleanup completed", zap.Int64("removed", removed))
	}
}

// untilNextCleanup returns the duration until the next 02:00 UTC.
func untilNextCleanup(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
