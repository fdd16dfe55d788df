package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/taskhive/taskhive/internal/errs"
	"github.com/taskhive/taskhive/internal/model"
	"github.com/taskhive/taskhive/internal/service"
	"github.com/taskhive/taskhive/internal/token"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

// memRepo is an in-memory TaskRepository with the same owner-scoping and
// patch semantics as the postgres implementation.
type memRepo struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]model.Task
	calls int
	err   error // when set, every operation fails with it
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[uuid.UUID]model.Task)}
}

func (m *memRepo) called() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memRepo) Create(_ context.Context, ownerID string, draft model.TaskDraft) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	now := time.Now().UTC()
	t := model.Task{
		ID:          uuid.Must(uuid.NewV7()),
		OwnerID:     ownerID,
		Title:       draft.Title,
		Description: draft.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.rows[t.ID] = t
	return &t, nil
}

func (m *memRepo) List(_ context.Context, ownerID string, filter model.StatusFilter) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]model.Task, 0)
	for _, t := range m.rows {
		if t.OwnerID != ownerID {
			continue
		}
		if filter == model.StatusPending && t.Completed {
			continue
		}
		if filter == model.StatusCompleted && !t.Completed {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID.Bytes(), out[j].ID.Bytes()) > 0
	})
	return out, nil
}

func (m *memRepo) Get(_ context.Context, ownerID string, id uuid.UUID) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.rows[id]
	if !ok || t.OwnerID != ownerID {
		return nil, errs.ErrNotFound
	}
	return &t, nil
}

func (m *memRepo) Update(_ context.Context, ownerID string, id uuid.UUID, patch model.TaskPatch) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.rows[id]
	if !ok || t.OwnerID != ownerID {
		return nil, errs.ErrNotFound
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		if *patch.Description == "" {
			t.Description = nil
		} else {
			d := *patch.Description
			t.Description = &d
		}
	}
	t.UpdatedAt = time.Now().UTC()
	m.rows[id] = t
	return &t, nil
}

func (m *memRepo) Delete(_ context.Context, ownerID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	t, ok := m.rows[id]
	if !ok || t.OwnerID != ownerID {
		return errs.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) ToggleComplete(_ context.Context, ownerID string, id uuid.UUID) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.rows[id]
	if !ok || t.OwnerID != ownerID {
		return nil, errs.ErrNotFound
	}
	t.Completed = !t.Completed
	t.UpdatedAt = time.Now().UTC()
	m.rows[id] = t
	return &t, nil
}

type pingFake struct{ err error }

func (p pingFake) Ping(context.Context) error { return p.err }

// newTestAPI builds a router over the real service and a fresh memRepo.
func newTestAPI(t *testing.T) (*gin.Engine, *memRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := newMemRepo()
	s := New(service.NewTaskService(repo), token.NewVerifier(testKey), pingFake{}, zap.NewNop(), []string{"http://localhost:3000"})
	return s.Router(), repo
}

func bearerFor(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()
	signed, _, err := token.Issue(testKey, sub, ttl)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, r http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doRaw(t *testing.T, r http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func Test_Auth_MissingToken(t *testing.T) {
	t.Parallel()
	r, repo := newTestAPI(t)

	w := doJSON(t, r, http.MethodGet, "/api/u1/tasks", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("want WWW-Authenticate: Bearer, got %q", got)
	}
	if body := decodeBody[errorResponse](t, w); body.Detail != "Not authenticated" {
		t.Fatalf("unexpected detail: %q", body.Detail)
	}
	if repo.called() != 0 {
		t.Fatalf("storage must not be reached without a token")
	}
}

func Test_Auth_ExpiredToken(t *testing.T) {
	t.Parallel()
	r, repo := newTestAPI(t)

	w := doJSON(t, r, http.MethodGet, "/api/u1/tasks", bearerFor(t, "u1", -2*time.Hour), nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("want WWW-Authenticate: Bearer, got %q", got)
	}
	if body := decodeBody[errorResponse](t, w); body.Detail != "Invalid or expired token" {
		t.Fatalf("unexpected detail: %q", body.Detail)
	}
	if repo.called() != 0 {
		t.Fatalf("storage must not be reached with an expired token")
	}
}

func Test_Auth_GarbageToken(t *testing.T) {
	t.Parallel()
	r, _ := newTestAPI(t)

	w := doJSON(t, r, http.MethodGet, "/api/u1/tasks", "not-a-jwt", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", w.Code)
	}
}

func Test_Owner_Mismatch(t *testing.T) {
	t.Parallel()
	r, repo := newTestAPI(t)

	// u2 holds a perfectly valid token but asks for u1's tasks.
	w := doJSON(t, r, http.MethodGet, "/api/u1/tasks", bearerFor(t, "u2", time.Hour), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("want 403, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody[errorResponse](t, w)
	if body.Detail != "Access denied: You can only access your own resources" {
		t.Fatalf("unexpected detail: %q", body.Detail)
	}
	if repo.called() != 0 {
		t.Fatalf("storage must not be reached on owner mismatch")
	}

	// Same mismatch on every other route, including mutations.
	for _, rt := range []struct{ method, path string }{
		{http.MethodPost, "/api/u1/tasks"},
		{http.MethodGet, "/api/u1/tasks/0198a000-0000-7000-8000-000000000000"},
		{http.MethodPut, "/api/u1/tasks/0198a000-0000-7000-8000-000000000000"},
		{http.MethodDelete, "/api/u1/tasks/0198a000-0000-7000-8000-000000000000"},
		{http.MethodPatch, "/api/u1/tasks/0198a000-0000-7000-8000-000000000000/complete"},
	} {
		w := doJSON(t, r, rt.method, rt.path, bearerFor(t, "u2", time.Hour), nil)
		if w.Code != http.StatusForbidden {
			t.Fatalf("%s %s: want 403, got %d", rt.method, rt.path, w.Code)
		}
	}
	if repo.called() != 0 {
		t.Fatalf("storage must stay untouched across mismatched routes")
	}
}

func Test_Internal_ErrorIsGeneric(t *testing.T) {
	t.Parallel()
	r, repo := newTestAPI(t)
	repo.err = errors.New("connection refused")

	w := doJSON(t, r, http.MethodGet, "/api/u1/tasks", bearerFor(t, "u1", time.Hour), nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", w.Code)
	}
	body := decodeBody[errorResponse](t, w)
	if body.Detail != "Internal server error" {
		t.Fatalf("internal detail leaked: %q", body.Detail)
	}
}

type panicService struct{ service.TaskService }

func (panicService) List(context.Context, string, model.StatusFilter) ([]model.Task, error) {
	panic("list blew up")
}

func Test_Recovery_PanicBecomes500(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)
	s := New(panicService{}, token.NewVerifier(testKey), pingFake{}, zap.NewNop(), nil)
	r := s.Router()

	w := doJSON(t, r, http.MethodGet, "/api/u1/tasks", bearerFor(t, "u1", time.Hour), nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", w.Code)
	}
	if body := decodeBody[errorResponse](t, w); body.Detail != "Internal server error" {
		t.Fatalf("unexpected detail: %q", body.Detail)
	}
}

func Test_Root_And_Health(t *testing.T) {
	t.Parallel()
	r, _ := newTestAPI(t)

	w := doJSON(t, r, http.MethodGet, "/", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("root: want 200, got %d", w.Code)
	}
	info := decodeBody[map[string]any](t, w)
	if info["name"] != "TaskHive API" || info["health"] != "/health" {
		t.Fatalf("unexpected root payload: %v", info)
	}

	w = doJSON(t, r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: want 200, got %d", w.Code)
	}
	h := decodeBody[healthResponse](t, w)
	if h.Status != "healthy" || h.Service != "taskhive" {
		t.Fatalf("unexpected health payload: %+v", h)
	}

	w = doJSON(t, r, http.MethodGet, "/health/db", "", nil)
	db := decodeBody[dbHealthResponse](t, w)
	if db.Status != "healthy" || db.Database != "connected" || db.Error != nil {
		t.Fatalf("unexpected db health payload: %+v", db)
	}
}

func Test_Health_DBDown(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)
	repo := newMemRepo()
	s := New(service.NewTaskService(repo), token.NewVerifier(testKey), pingFake{err: errors.New("dial tcp: refused")}, zap.NewNop(), nil)
	r := s.Router()

	w := doJSON(t, r, http.MethodGet, "/health/db", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("db health reports via payload, want 200, got %d", w.Code)
	}
	db := decodeBody[dbHealthResponse](t, w)
	if db.Status != "unhealthy" || db.Database != "disconnected" || db.Error == nil {
		t.Fatalf("unexpected db health payload: %+v", db)
	}
}

func Test_CORS_Preflight(t *testing.T) {
	t.Parallel()
	r, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/u1/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight: want 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin: %q", got)
	}
}
