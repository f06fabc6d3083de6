package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/flowstock/flowstock_backend/models"
	"github.com/gin-gonic/gin"
)

// fakeIdempotencyStore stands in for the database-backed key table so the
// middleware's replay behavior can be tested on its own.
type fakeIdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*models.IdempotencyKey
}

func (s *fakeIdempotencyStore) install(t *testing.T) {
	t.Helper()
	s.records = make(map[string]*models.IdempotencyKey)
	origLookup := lookupIdempotencyKey
	origStore := storeIdempotencyKey
	lookupIdempotencyKey = func(ctx context.Context, actor, endpoint, key string) (*models.IdempotencyKey, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.records[actor+"|"+endpoint+"|"+key], nil
	}
	storeIdempotencyKey = func(ctx context.Context, actor, endpoint, key string, status int, body string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.records[actor+"|"+endpoint+"|"+key] = &models.IdempotencyKey{
			Actor:          actor,
			Endpoint:       endpoint,
			Key:            key,
			ResponseStatus: status,
			ResponseBody:   body,
		}
	}
	t.Cleanup(func() {
		lookupIdempotencyKey = origLookup
		storeIdempotencyKey = origStore
	})
}

func (s *fakeIdempotencyStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func newIdempotencyTestRouter(handlerCalls *int, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/orders", IdempotencyMiddleware(), func(c *gin.Context) {
		*handlerCalls++
		c.JSON(status, gin.H{"call": *handlerCalls})
	})
	return r
}

func postOrders(r *gin.Engine, key string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	t.Setenv("IDEMPOTENCY_ENABLED", "true")
	store := &fakeIdempotencyStore{}
	store.install(t)

	calls := 0
	r := newIdempotencyTestRouter(&calls, http.StatusCreated)

	first := postOrders(r, "order-abc")
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d", first.Code)
	}
	if calls != 1 {
		t.Fatalf("handler calls after first request = %d", calls)
	}
	if first.Header().Get("Idempotency-Replayed") != "" {
		t.Fatal("first response must not be marked as a replay")
	}

	second := postOrders(r, "order-abc")
	if calls != 1 {
		t.Fatalf("repeated key re-ran the mutation: handler calls = %d", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("replay status = %d", second.Code)
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatal("replay missing Idempotency-Replayed header")
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body = %q, want original %q", second.Body.String(), first.Body.String())
	}

	// a different key is a different request
	postOrders(r, "order-def")
	if calls != 2 {
		t.Fatalf("handler calls after distinct key = %d", calls)
	}
}

func TestIdempotencyMiddlewareWithoutKeyPassesThrough(t *testing.T) {
	t.Setenv("IDEMPOTENCY_ENABLED", "true")
	store := &fakeIdempotencyStore{}
	store.install(t)

	calls := 0
	r := newIdempotencyTestRouter(&calls, http.StatusCreated)

	postOrders(r, "")
	postOrders(r, "")
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
	if store.count() != 0 {
		t.Fatalf("stored %d records for keyless requests", store.count())
	}
}

func TestIdempotencyMiddlewareDoesNotStoreServerErrors(t *testing.T) {
	t.Setenv("IDEMPOTENCY_ENABLED", "true")
	store := &fakeIdempotencyStore{}
	store.install(t)

	calls := 0
	r := newIdempotencyTestRouter(&calls, http.StatusInternalServerError)

	postOrders(r, "order-abc")
	if store.count() != 0 {
		t.Fatal("a 5xx response must leave the key unused")
	}

	// the retry runs the mutation again
	postOrders(r, "order-abc")
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
}

func TestIdempotencyMiddlewareRejectsOversizedKey(t *testing.T) {
	t.Setenv("IDEMPOTENCY_ENABLED", "true")
	store := &fakeIdempotencyStore{}
	store.install(t)

	calls := 0
	r := newIdempotencyTestRouter(&calls, http.StatusCreated)

	w := postOrders(r, strings.Repeat("k", 101))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if calls != 0 {
		t.Fatal("oversized key must not reach the handler")
	}
}

func TestIdempotencyMiddlewareDisabledByFlag(t *testing.T) {
	t.Setenv("IDEMPOTENCY_ENABLED", "false")
	store := &fakeIdempotencyStore{}
	store.install(t)

	calls := 0
	r := newIdempotencyTestRouter(&calls, http.StatusCreated)

	postOrders(r, "order-abc")
	postOrders(r, "order-abc")
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2 with idempotency disabled", calls)
	}
}
