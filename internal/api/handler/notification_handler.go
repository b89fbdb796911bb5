package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/notifyhub/dispatch/internal/api/middleware"
	"github.com/notifyhub/dispatch/internal/domain"
	"github.com/notifyhub/dispatch/internal/service"
)

// NotificationHandler handles the notification intake and query endpoints.
type NotificationHandler struct {
	svc    *service.NotificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/notifications
//
// @Summary     Create a notification
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Param       body  body      domain.CreateNotificationRequest  true  "Notification payload"
// @Success     201   {object}  domain.Notification
// @Failure     400   {object}  map[string]string
// @Router      /api/v1/notifications [post]
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	n, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		h.logger.Warn("create notification failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, n)
}

// CreateBulk handles POST /api/v1/notifications/bulk
//
// @Summary     Create many notifications in one request
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Param       body  body      domain.BulkCreateRequest  true  "Bulk payload"
// @Success     201   {object}  map[string]any
// @Failure     400   {object}  map[string]string
// @Router      /api/v1/notifications/bulk [post]
func (h *NotificationHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	results, err := h.svc.BulkCreate(r.Context(), &req)
	if err != nil {
		mapError(w, err)
		return
	}

	accepted := 0
	for _, res := range results {
		if res.Error == "" {
			accepted++
		}
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"results":  results,
		"accepted": accepted,
		"rejected": len(results) - accepted,
	})
}

// GetByID handles GET /api/v1/notifications/{id}
//
// @Summary  Get a notification by ID
// @Tags     notifications
// @Produce  json
// @Param    id   path      string  true  "Notification UUID"
// @Success  200  {object}  domain.Notification
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/notifications/{id} [get]
func (h *NotificationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.svc.Get(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

// List handles GET /api/v1/notifications
//
// @Summary  List notifications with filtering and pagination
// @Tags     notifications
// @Produce  json
// @Param    user_id  query     string  false  "Filter by user"
// @Param    status   query     string  false  "Filter by status"
// @Param    limit    query     int     false  "Page size (default 20, max 100)"
// @Param    offset   query     int     false  "Page offset"
// @Success  200      {object}  map[string]any
// @Router   /api/v1/notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		mapError(w, err)
		return
	}

	notifications, total, err := h.svc.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":   notifications,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// Cancel handles DELETE /api/v1/notifications/{id}
//
// @Summary  Cancel a pending notification
// @Tags     notifications
// @Produce  json
// @Param    id   path      string  true  "Notification UUID"
// @Success  200  {object}  domain.Notification
// @Failure  400  {object}  map[string]string
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/notifications/{id} [delete]
func (h *NotificationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

func parseListFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	filter := domain.ListFilter{}

	filter.UserID = q.Get("user_id")
	if s := q.Get("status"); s != "" {
		st := domain.Status(s)
		if !st.IsValid() {
			return filter, domain.ErrInvalidStatus
		}
		filter.Status = &st
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = l
	}
	if o, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = o
	}
	return filter, nil
}
