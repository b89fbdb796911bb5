package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/api"
	"github.com/notifyhub/dispatch/internal/config"
	"github.com/notifyhub/dispatch/internal/db"
	"github.com/notifyhub/dispatch/internal/dlq"
	"github.com/notifyhub/dispatch/internal/idempotency"
	"github.com/notifyhub/dispatch/internal/metrics"
	"github.com/notifyhub/dispatch/internal/provider"
	"github.com/notifyhub/dispatch/internal/queue"
	"github.com/notifyhub/dispatch/internal/ratelimiter"
	"github.com/notifyhub/dispatch/internal/redisclient"
	"github.com/notifyhub/dispatch/internal/repository"
	"github.com/notifyhub/dispatch/internal/retry"
	"github.com/notifyhub/dispatch/internal/service"
	"github.com/notifyhub/dispatch/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- redis ----
	rdb, err := redisclient.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close() //nolint:errcheck

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := queue.NewRedisQueue(rdb, queue.DefaultKey)
	idem := idempotency.NewRedisStore(rdb)
	notifRepo := repository.NewPgNotificationRepository(pool)
	dlqRepo := repository.NewPgDLQRepository(pool)
	registry := provider.NewRegistry(cfg, logger)
	limiter := ratelimiter.New(cfg.RateLimit)

	manager := dlq.NewManager(dlqRepo, notifRepo, q, logger)
	backoff := retry.Backoff{
		BaseDelayMillis: cfg.BaseDelayMillis,
		ExponentialBase: cfg.ExponentialBase,
		MaxDelayMillis:  cfg.MaxDelayMillis,
	}
	engine := retry.NewEngine(notifRepo, manager, rdb, backoff, logger)
	svc := service.NewNotificationService(notifRepo, idem, q, cfg.IdempotencyTTL, logger)

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	onSent, onRetry, onFailed := m.WorkerHooks()
	workerPool := worker.NewPool(cfg, q, notifRepo, registry, limiter, engine, manager, logger, worker.Hooks{
		OnSent:   onSent,
		OnRetry:  onRetry,
		OnFailed: onFailed,
	})
	workerPool.Start(workerCtx)

	schedulerW := worker.NewSchedulerWorker(notifRepo, q, cfg.SchedulerInterval, cfg.SchedulerBatch, logger)
	go schedulerW.Run(workerCtx)

	maintenanceW := worker.NewMaintenanceWorker(
		manager, engine, q,
		cfg.DLQAlertInterval,
		cfg.DLQRetentionDays,
		time.Duration(cfg.MarkerRetentionDays)*24*time.Hour,
		logger,
		func(depth int64) { m.QueueDepth.Set(float64(depth)) },
		func(unresolved int) { m.DLQUnresolved.Set(float64(unresolved)) },
	)
	go maintenanceW.Run(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(svc, manager, q, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all background goroutines to stop pulling new work.
	cancelWorkers()

	// 3. Wait for in-flight deliveries to finish.
	workerPool.Wait()

	logger.Info("server stopped cleanly")
}
