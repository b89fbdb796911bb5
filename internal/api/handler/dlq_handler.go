package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/dlq"
)

// DLQHandler exposes the operator endpoints for the dead letter queue.
type DLQHandler struct {
	manager *dlq.Manager
	logger  *zap.Logger
}

func NewDLQHandler(manager *dlq.Manager, logger *zap.Logger) *DLQHandler {
	return &DLQHandler{manager: manager, logger: logger}
}

// List handles GET /api/v1/dlq
//
// @Summary  List dead letter queue entries
// @Tags     dlq
// @Produce  json
// @Param    resolved  query     bool  false  "Filter by resolution state"
// @Param    limit     query     int   false  "Page size (default 20, max 100)"
// @Param    offset    query     int   false  "Page offset"
// @Success  200       {object}  map[string]any
// @Router   /api/v1/dlq [get]
func (h *DLQHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var resolved *bool
	if s := q.Get("resolved"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid resolved filter")
			return
		}
		resolved = &b
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	entries, err := h.manager.List(r.Context(), resolved, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list DLQ entries")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  entries,
		"count": len(entries),
	})
}

// Retry handles POST /api/v1/dlq/{id}/retry
//
// @Summary  Requeue a dead-lettered notification
// @Tags     dlq
// @Produce  json
// @Param    id   path      string  true  "DLQ entry UUID"
// @Success  200  {object}  domain.Notification
// @Failure  400  {object}  map[string]string
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/dlq/{id}/retry [post]
func (h *DLQHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.manager.RetryFromDLQ(r.Context(), id)
	if err != nil {
		h.logger.Warn("DLQ retry failed", zap.String("dlq_id", id), zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

// Resolve handles POST /api/v1/dlq/{id}/resolve
//
// @Summary  Mark a DLQ entry as handled without requeueing
// @Tags     dlq
// @Accept   json
// @Produce  json
// @Param    id    path      string             true   "DLQ entry UUID"
// @Param    body  body      map[string]string  false  "Optional resolver identity"
// @Success  200   {object}  map[string]string
// @Failure  404   {object}  map[string]string
// @Router   /api/v1/dlq/{id}/resolve [post]
func (h *DLQHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		ResolvedBy string `json:"resolved_by"`
	}
	// Body is optional; decode errors on an empty body are fine.
	_ = json.NewDecoder(r.Body).Decode(&body)

	var resolvedBy *string
	if body.ResolvedBy != "" {
		resolvedBy = &body.ResolvedBy
	}

	if err := h.manager.Resolve(r.Context(), id, resolvedBy); err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

// Stats handles GET /api/v1/dlq/stats
//
// @Summary  Dead letter queue counters
// @Tags     dlq
// @Produce  json
// @Success  200  {object}  domain.DLQStats
// @Router   /api/v1/dlq/stats [get]
func (h *DLQHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read DLQ stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
