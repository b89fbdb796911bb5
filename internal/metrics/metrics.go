package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/dispatch/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec
	NotificationLatency *prometheus.HistogramVec
	RetriesScheduled    *prometheus.CounterVec
	QueueDepth          prometheus.Gauge
	DLQUnresolved       prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of successfully delivered notifications.",
		}, []string{"message_type"}),

		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of permanently failed notifications (moved to DLQ).",
		}, []string{"message_type"}),

		NotificationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notification_processing_seconds",
			Help:    "Processing latency from dequeue to provider ack.",
			Buckets: prometheus.DefBuckets,
		}, []string{"message_type"}),

		RetriesScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_retries_total",
			Help: "Total number of retries scheduled after failed attempts.",
		}, []string{"message_type"}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_queue_depth",
			Help: "Current number of envelopes in the delivery queue.",
		}),

		DLQUnresolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dlq_unresolved_entries",
			Help: "Current number of unresolved dead letter queue entries.",
		}),
	}

	reg.MustRegister(
		m.NotificationsSent,
		m.NotificationsFailed,
		m.NotificationLatency,
		m.RetriesScheduled,
		m.QueueDepth,
		m.DLQUnresolved,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by worker.Hooks.
// Centralises the prometheus observation calls so worker.go stays import-free.
func (m *Metrics) WorkerHooks() (
	onSent func(domain.MessageType, time.Duration),
	onRetry func(domain.MessageType),
	onFailed func(domain.MessageType),
) {
	onSent = func(mt domain.MessageType, latency time.Duration) {
		m.NotificationsSent.WithLabelValues(string(mt)).Inc()
		m.NotificationLatency.WithLabelValues(string(mt)).Observe(latency.Seconds())
	}
	onRetry = func(mt domain.MessageType) {
		m.RetriesScheduled.WithLabelValues(string(mt)).Inc()
	}
	onFailed = func(mt domain.MessageType) {
		m.NotificationsFailed.WithLabelValues(string(mt)).Inc()
	}
	return onSent, onRetry, onFailed
}
