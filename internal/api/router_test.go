package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/dispatch/internal/api"
	"github.com/notifyhub/dispatch/internal/dlq"
	"github.com/notifyhub/dispatch/internal/domain"
	"github.com/notifyhub/dispatch/internal/queue"
	"github.com/notifyhub/dispatch/internal/repository"
	"github.com/notifyhub/dispatch/internal/service"
)

type fakeQueue struct {
	mu        sync.Mutex
	envelopes []queue.Envelope
}

func (f *fakeQueue) Push(_ context.Context, env queue.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.envelopes = append(f.envelopes, env)
	return nil
}

func (f *fakeQueue) PopBlocking(_ context.Context, _ time.Duration) (queue.Envelope, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.envelopes) == 0 {
		return queue.Envelope{}, false, nil
	}
	env := f.envelopes[0]
	f.envelopes = f.envelopes[1:]
	return env, true, nil
}

func (f *fakeQueue) Depth(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.envelopes)), nil
}

type fakeIdempotencyStore struct {
	mu       sync.Mutex
	reserved map[string]bool
}

func (f *fakeIdempotencyStore) Reserve(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserved[key] {
		return false, nil
	}
	f.reserved[key] = true
	return true, nil
}

type env struct {
	router    http.Handler
	repo      *repository.MockNotificationRepository
	dlqRepo   *repository.MockDLQRepository
	manager   *dlq.Manager
}

func newEnv() *env {
	logger := zap.NewNop()
	repo := repository.NewMockNotificationRepository()
	dlqRepo := repository.NewMockDLQRepository(repo)
	q := &fakeQueue{}
	idem := &fakeIdempotencyStore{reserved: make(map[string]bool)}

	svc := service.NewNotificationService(repo, idem, q, 24*time.Hour, logger)
	manager := dlq.NewManager(dlqRepo, repo, q, logger)
	router := api.NewRouter(svc, manager, q, prometheus.NewRegistry(), logger)
	return &env{router: router, repo: repo, dlqRepo: dlqRepo, manager: manager}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func createBody() map[string]any {
	return map[string]any{
		"user_id":      "user-1",
		"message_type": "EMAIL",
		"provider":     "GMAIL",
		"payload":      `{"to":"a@b.com","body":"hi"}`,
	}
}

func TestRouter_CreateNotification(t *testing.T) {
	e := newEnv()

	rec := e.do(t, http.MethodPost, "/api/v1/notifications", createBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var n domain.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if n.ID == "" || n.Status != domain.StatusPending {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Fatal("expected a correlation id header")
	}
}

func TestRouter_CreateValidationFailure(t *testing.T) {
	e := newEnv()

	body := createBody()
	body["message_type"] = "FAX"
	rec := e.do(t, http.MethodPost, "/api/v1/notifications", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRouter_CreateDuplicateKey(t *testing.T) {
	e := newEnv()

	body := createBody()
	body["idempotency_key"] = "order-42"
	if rec := e.do(t, http.MethodPost, "/api/v1/notifications", body); rec.Code != http.StatusCreated {
		t.Fatalf("first create: expected 201, got %d", rec.Code)
	}
	rec := e.do(t, http.MethodPost, "/api/v1/notifications", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate: expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_GetNotFound(t *testing.T) {
	e := newEnv()
	rec := e.do(t, http.MethodGet, "/api/v1/notifications/ffffffff-0000-0000-0000-000000000000", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRouter_CancelFlow(t *testing.T) {
	e := newEnv()

	rec := e.do(t, http.MethodPost, "/api/v1/notifications", createBody())
	var n domain.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = e.do(t, http.MethodDelete, "/api/v1/notifications/"+n.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cancelled domain.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &cancelled); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}

	// Cancelling a terminal notification is a client error.
	rec = e.do(t, http.MethodDelete, "/api/v1/notifications/"+n.ID, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second cancel: expected 400, got %d", rec.Code)
	}
}

func TestRouter_BulkCreate(t *testing.T) {
	e := newEnv()

	bad := createBody()
	bad["user_id"] = ""
	rec := e.do(t, http.MethodPost, "/api/v1/notifications/bulk", map[string]any{
		"notifications": []map[string]any{createBody(), bad},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Accepted int `json:"accepted"`
		Rejected int `json:"rejected"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Accepted != 1 || out.Rejected != 1 {
		t.Fatalf("unexpected fold result: %+v", out)
	}
}

func TestRouter_ListWithStatusFilter(t *testing.T) {
	e := newEnv()

	for i := 0; i < 3; i++ {
		if rec := e.do(t, http.MethodPost, "/api/v1/notifications", createBody()); rec.Code != http.StatusCreated {
			t.Fatalf("create %d failed: %d", i, rec.Code)
		}
	}

	rec := e.do(t, http.MethodGet, "/api/v1/notifications?status=PENDING", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 3 {
		t.Fatalf("expected 3 pending, got %d", out.Total)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/notifications?status=SHIPPED", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter: expected 400, got %d", rec.Code)
	}
}

func TestRouter_DLQEndpoints(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	rec := e.do(t, http.MethodPost, "/api/v1/notifications", createBody())
	var n domain.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode: %v", err)
	}
	full, _ := e.repo.GetByID(ctx, n.ID)
	if err := e.manager.MoveToDLQ(ctx, full, domain.ReasonMaxRetriesExceeded, "worn out"); err != nil {
		t.Fatalf("move: %v", err)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/dlq", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var list struct {
		Data []domain.DLQEntry `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Data) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list.Data))
	}
	entryID := list.Data[0].ID

	rec = e.do(t, http.MethodGet, "/api/v1/dlq/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", rec.Code)
	}
	var stats domain.DLQStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Unresolved != 1 {
		t.Fatalf("expected 1 unresolved, got %+v", stats)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/dlq/"+entryID+"/retry", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var requeued domain.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &requeued); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if requeued.Status != domain.StatusPending || requeued.AttemptCount != 0 {
		t.Fatalf("unexpected requeued notification: %+v", requeued)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/dlq/"+entryID+"/resolve", map[string]string{"resolved_by": "oncall"})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", rec.Code)
	}

	// A resolved entry cannot be retried again.
	rec = e.do(t, http.MethodPost, "/api/v1/dlq/"+entryID+"/retry", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("retry resolved: expected 400, got %d", rec.Code)
	}
}

func TestRouter_Health(t *testing.T) {
	e := newEnv()
	rec := e.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_MetricsSnapshot(t *testing.T) {
	e := newEnv()

	if rec := e.do(t, http.MethodPost, "/api/v1/notifications", createBody()); rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %d", rec.Code)
	}

	rec := e.do(t, http.MethodGet, "/api/v1/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out struct {
		QueueDepth int64 `json:"queue_depth"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.QueueDepth != 1 {
		t.Fatalf("expected queue depth 1, got %d", out.QueueDepth)
	}
}
