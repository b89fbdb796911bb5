package handler

import (
	"net/http"

	"github.com/notifyhub/dispatch/internal/dlq"
	"github.com/notifyhub/dispatch/internal/queue"
)

// MetricsHandler serves a human-readable JSON operational snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	q       queue.Queue
	manager *dlq.Manager
}

func NewMetricsHandler(q queue.Queue, manager *dlq.Manager) *MetricsHandler {
	return &MetricsHandler{q: q, manager: manager}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Real-time queue depth and DLQ snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	depth, err := h.q.Depth(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read queue depth")
		return
	}
	stats, err := h.manager.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read DLQ stats")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": depth,
		"dlq": map[string]int{
			"total":      stats.Total,
			"unresolved": stats.Unresolved,
			"resolved":   stats.Resolved,
		},
	})
}
