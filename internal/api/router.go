package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/api/handler"
	apimw "github.com/notifyhub/dispatch/internal/api/middleware"
	"github.com/notifyhub/dispatch/internal/dlq"
	"github.com/notifyhub/dispatch/internal/queue"
	"github.com/notifyhub/dispatch/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.NotificationService,
	manager *dlq.Manager,
	q queue.Queue,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	nh := handler.NewNotificationHandler(svc, logger)
	dh := handler.NewDLQHandler(manager, logger)
	mh := handler.NewMetricsHandler(q, manager)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Notifications — note: /bulk must be registered before /{id}
		// so chi does not treat the literal string "bulk" as an ID.
		r.Post("/notifications/bulk", nh.CreateBulk)
		r.Post("/notifications", nh.Create)
		r.Get("/notifications", nh.List)
		r.Get("/notifications/{id}", nh.GetByID)
		r.Delete("/notifications/{id}", nh.Cancel)

		// Dead letter queue — /stats before /{id} for the same reason.
		r.Get("/dlq/stats", dh.Stats)
		r.Get("/dlq", dh.List)
		r.Post("/dlq/{id}/retry", dh.Retry)
		r.Post("/dlq/{id}/resolve", dh.Resolve)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
