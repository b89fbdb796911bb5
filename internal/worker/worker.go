package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/domain"
	"github.com/notifyhub/dispatch/internal/provider"
	"github.com/notifyhub/dispatch/internal/queue"
	"github.com/notifyhub/dispatch/internal/ratelimiter"
	"github.com/notifyhub/dispatch/internal/repository"
	"github.com/notifyhub/dispatch/internal/retry"
)

// Worker is a single goroutine that continuously pops envelopes from
// the delivery queue, applies per-channel rate limiting, delivers via
// the matching provider adapter, and hands failures to the retry
// engine.
type Worker struct {
	id              int
	q               queue.Queue
	repo            repository.NotificationRepository
	registry        *provider.Registry
	limiter         *ratelimiter.ChannelLimiter
	engine          *retry.Engine
	sink            retry.FailureSink
	popTimeout      time.Duration
	providerTimeout time.Duration
	logger          *zap.Logger

	// Hooks for metrics — injected by the pool so the worker stays metrics-agnostic.
	onSent   func(mt domain.MessageType, latency time.Duration)
	onRetry  func(mt domain.MessageType)
	onFailed func(mt domain.MessageType)
}

// NewWorker constructs a worker. Metric hooks are optional (nil = no-op).
func NewWorker(
	id int,
	q queue.Queue,
	repo repository.NotificationRepository,
	registry *provider.Registry,
	limiter *ratelimiter.ChannelLimiter,
	engine *retry.Engine,
	sink retry.FailureSink,
	popTimeout, providerTimeout time.Duration,
	logger *zap.Logger,
	hooks Hooks,
) *Worker {
	if hooks.OnSent == nil {
		hooks.OnSent = func(domain.MessageType, time.Duration) {}
	}
	if hooks.OnRetry == nil {
		hooks.OnRetry = func(domain.MessageType) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(domain.MessageType) {}
	}
	return &Worker{
		id: id, q: q, repo: repo, registry: registry,
		limiter: limiter, engine: engine, sink: sink,
		popTimeout: popTimeout, providerTimeout: providerTimeout,
		logger:   logger,
		onSent:   hooks.OnSent,
		onRetry:  hooks.OnRetry,
		onFailed: hooks.OnFailed,
	}
}

// Run blocks until ctx is cancelled, processing one envelope per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		env, ok, err := w.q.PopBlocking(ctx, w.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopping", zap.Int("id", w.id))
				return
			}
			w.logger.Error("queue pop failed", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		w.process(ctx, env)
	}
}

func (w *Worker) process(ctx context.Context, env queue.Envelope) {
	start := time.Now()
	log := w.logger.With(zap.String("notification_id", env.ID))

	if env.Action != queue.ActionSend {
		log.Warn("unknown envelope action, dropping", zap.String("action", env.Action))
		return
	}

	n, err := w.repo.GetByID(ctx, env.ID)
	if err != nil {
		log.Error("failed to fetch notification", zap.Error(err))
		return
	}

	// A cancellation or concurrent delivery between enqueue and pickup
	// is valid; the envelope is simply stale.
	if n.Status.IsTerminal() {
		log.Debug("notification already terminal, dropping envelope",
			zap.String("status", string(n.Status)))
		return
	}

	attempts, err := w.repo.RecordAttempt(ctx, n.ID, domain.NowMillis())
	if err != nil {
		log.Error("failed to record attempt", zap.Error(err))
		return
	}
	n.AttemptCount = attempts
	now := domain.NowMillis()
	n.LastAttemptedAt = &now

	adapter, ok := w.registry.Lookup(n.Provider)
	if !ok {
		log.Warn("no adapter configured for provider",
			zap.String("provider", string(n.Provider)))
		if err := w.sink.MoveToDLQ(ctx, n, domain.ReasonProviderUnconfigured,
			"no adapter configured for provider "+string(n.Provider)); err != nil {
			log.Error("DLQ hand-off failed", zap.Error(err))
		}
		w.onFailed(n.MessageType)
		return
	}

	// Block here until the per-channel rate limiter grants a token.
	if err := w.limiter.Wait(ctx, n.MessageType); err != nil {
		// ctx cancelled while waiting — worker is shutting down. The
		// attempt was already counted; the scheduler sweep re-delivers.
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.providerTimeout)
	outcome, err := adapter.Send(sendCtx, n)
	cancel()
	elapsed := time.Since(start)

	if err != nil {
		// Transport-level failure: always worth retrying.
		log.Warn("provider send failed",
			zap.String("provider", adapter.Name()),
			zap.Int("attempt", attempts),
			zap.Error(err))
		w.handleFailure(ctx, log, n, attempts, err.Error())
		return
	}

	if outcome.Success {
		if err := w.repo.MarkSent(ctx, n.ID, domain.NowMillis(), encodeResponse(outcome)); err != nil {
			log.Error("failed to mark as sent", zap.Error(err))
			return
		}
		w.onSent(n.MessageType, elapsed)
		log.Info("notification sent",
			zap.String("provider", adapter.Name()),
			zap.Int("attempt", attempts),
			zap.Duration("latency", elapsed))
		return
	}

	if !outcome.Retryable {
		log.Warn("provider rejected notification permanently",
			zap.String("provider", adapter.Name()),
			zap.String("error", outcome.Message))
		if err := w.sink.MoveToDLQ(ctx, n, domain.ReasonNonRetryableProvider, outcome.Message); err != nil {
			log.Error("DLQ hand-off failed", zap.Error(err))
		}
		w.onFailed(n.MessageType)
		return
	}

	log.Warn("provider reported retryable failure",
		zap.String("provider", adapter.Name()),
		zap.Int("attempt", attempts),
		zap.String("error", outcome.Message))
	w.handleFailure(ctx, log, n, attempts, outcome.Message)
}

func (w *Worker) handleFailure(ctx context.Context, log *zap.Logger, n *domain.Notification, attempts int, errMsg string) {
	deadLettered, err := w.engine.HandleFailure(ctx, n, attempts, errMsg)
	if err != nil {
		log.Error("failure handling error", zap.Error(err))
		return
	}
	if deadLettered {
		w.onFailed(n.MessageType)
	} else {
		w.onRetry(n.MessageType)
	}
}

// encodeResponse serializes the provider response for persistence.
// Falls back to the human-readable message when there is no structured
// response or it does not marshal.
func encodeResponse(outcome *provider.Outcome) *string {
	if len(outcome.Response) > 0 {
		if b, err := json.Marshal(outcome.Response); err == nil {
			s := string(b)
			return &s
		}
	}
	if outcome.Message != "" {
		s := outcome.Message
		return &s
	}
	return nil
}
