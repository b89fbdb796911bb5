package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/config"
	"github.com/notifyhub/dispatch/internal/domain"
	"github.com/notifyhub/dispatch/internal/provider"
	"github.com/notifyhub/dispatch/internal/queue"
	"github.com/notifyhub/dispatch/internal/ratelimiter"
	"github.com/notifyhub/dispatch/internal/repository"
	"github.com/notifyhub/dispatch/internal/retry"
)

// Hooks carries the metric callback functions injected by main.
// Using a struct keeps the worker constructor signature clean.
type Hooks struct {
	OnSent   func(mt domain.MessageType, latency time.Duration)
	OnRetry  func(mt domain.MessageType)
	OnFailed func(mt domain.MessageType)
}

// Pool manages the lifecycle of all delivery workers.
// All workers share the same Redis-backed queue; BRPOP hands each
// envelope to exactly one of them.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

// NewPool creates cfg.WorkerCount identical workers. The channel
// distinction is handled by the rate limiter and the notification's
// MessageType field, not by dedicated worker types.
func NewPool(
	cfg *config.Config,
	q queue.Queue,
	repo repository.NotificationRepository,
	registry *provider.Registry,
	limiter *ratelimiter.ChannelLimiter,
	engine *retry.Engine,
	sink retry.FailureSink,
	logger *zap.Logger,
	hooks Hooks,
) *Pool {
	workers := make([]*Worker, cfg.WorkerCount)
	for i := range workers {
		workers[i] = NewWorker(
			i, q, repo, registry, limiter, engine, sink,
			cfg.PopTimeout, cfg.ProviderTimeout,
			logger.With(zap.Int("worker_id", i)),
			hooks,
		)
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines.
// The provided ctx is forwarded to every worker; cancelling it
// triggers a graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context to ensure in-flight messages finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
