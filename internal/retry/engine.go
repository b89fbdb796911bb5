package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/domain"
	"github.com/notifyhub/dispatch/internal/repository"
)

// MarkerKey is the sorted set holding one observability marker per
// scheduled retry, scored by the retry time in epoch seconds.
const MarkerKey = "notification:retries"

// FailureSink receives notifications that have exhausted their retry
// budget or failed in a way retrying cannot fix.
type FailureSink interface {
	MoveToDLQ(ctx context.Context, n *domain.Notification, reason, lastError string) error
}

// Engine decides, after a failed delivery attempt, whether a
// notification gets another try or is handed to the dead letter queue.
type Engine struct {
	repo    repository.NotificationRepository
	sink    FailureSink
	rdb     *redis.Client
	backoff Backoff
	logger  *zap.Logger
}

func NewEngine(repo repository.NotificationRepository, sink FailureSink, rdb *redis.Client, backoff Backoff, logger *zap.Logger) *Engine {
	return &Engine{
		repo:    repo,
		sink:    sink,
		rdb:     rdb,
		backoff: backoff,
		logger:  logger,
	}
}

// retryMarker is the JSON member stored in the retry sorted set.
type retryMarker struct {
	NotificationID string `json:"notification_id"`
	Attempt        int    `json:"attempt"`
	RetryAt        int64  `json:"retry_at"`
}

// HandleFailure processes one failed attempt. attempts is the
// post-increment attempt count; when it exceeds the notification's
// retry budget the notification moves to the DLQ, otherwise it is
// re-armed as PENDING with a backed-off send_at. The returned bool
// reports whether the notification was dead-lettered.
func (e *Engine) HandleFailure(ctx context.Context, n *domain.Notification, attempts int, errMsg string) (bool, error) {
	if attempts > n.MaxRetries {
		e.logger.Warn("retry budget exhausted, moving to DLQ",
			zap.String("notification_id", n.ID),
			zap.Int("attempts", attempts),
			zap.Int("max_retries", n.MaxRetries))
		return true, e.sink.MoveToDLQ(ctx, n, domain.ReasonMaxRetriesExceeded, errMsg)
	}

	delay := e.backoff.DelayMillis(attempts)
	now := domain.NowMillis()
	retryAt := now + delay

	if err := e.repo.ScheduleRetry(ctx, n.ID, retryAt, errMsg, now); err != nil {
		return false, fmt.Errorf("schedule retry for %s: %w", n.ID, err)
	}

	e.writeMarker(ctx, n.ID, attempts, retryAt)

	e.logger.Info("retry scheduled",
		zap.String("notification_id", n.ID),
		zap.Int("attempt", attempts),
		zap.Int64("delay_ms", delay))
	return false, nil
}

// writeMarker records the scheduled retry in Redis for operational
// visibility. Marker failures are logged and swallowed: the database
// row is the source of truth and the scheduler will still pick the
// notification up.
func (e *Engine) writeMarker(ctx context.Context, id string, attempt int, retryAt int64) {
	member, err := json.Marshal(retryMarker{
		NotificationID: id,
		Attempt:        attempt,
		RetryAt:        retryAt,
	})
	if err != nil {
		e.logger.Warn("marshal retry marker", zap.Error(err))
		return
	}
	score := float64(retryAt) / 1000
	if err := e.rdb.ZAdd(ctx, MarkerKey, redis.Z{Score: score, Member: member}).Err(); err != nil {
		e.logger.Warn("write retry marker",
			zap.String("notification_id", id), zap.Error(err))
	}
}

// CleanupOldMarkers drops retry markers whose retry time is older than
// the retention window. Returns the number of markers removed.
func (e *Engine) CleanupOldMarkers(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	removed, err := e.rdb.ZRemRangeByScore(ctx, MarkerKey, "-inf", strconv.FormatInt(cutoff, 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("cleanup retry markers: %w", err)
	}
	return removed, nil
}
