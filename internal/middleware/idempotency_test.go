package middleware_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/middleware"
)

// memCache is an in-memory cache.Cache for testing.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func makeTestHandler(counter *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*counter++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d}`, *counter)
	})
}

func post(h http.Handler, key string, claims *access.Claims) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/energy/readings", http.NoBody)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if claims != nil {
		req = req.WithContext(middleware.WithClaims(req.Context(), *claims))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_NoHeader(t *testing.T) {
	counter := 0
	store := newMemCache()
	handler := middleware.Idempotency(store, time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	rec := post(handler, "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if store.len() != 0 {
		t.Fatal("nothing should be stored without a key")
	}
}

func TestIdempotency_SecondRequestReplays(t *testing.T) {
	counter := 0
	store := newMemCache()
	handler := middleware.Idempotency(store, time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	first := post(handler, "key-2", nil)
	second := post(handler, "key-2", nil)

	if counter != 1 {
		t.Fatalf("expected handler called once, got %d", counter)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("replayed body %q, want %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Error("expected replay marker header")
	}
}

func TestIdempotency_GETIgnored(t *testing.T) {
	counter := 0
	store := newMemCache()
	handler := middleware.Idempotency(store, time.Hour)(makeTestHandler(&counter, http.StatusOK))

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.Header.Set("Idempotency-Key", "key-get")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if counter != 2 {
		t.Fatalf("expected 2 calls, got %d", counter)
	}
}

func TestIdempotency_ScopedPerCaller(t *testing.T) {
	counter := 0
	store := newMemCache()
	handler := middleware.Idempotency(store, time.Hour)(makeTestHandler(&counter, http.StatusCreated))

	alice := access.Claims{TenantID: "t1", Subject: "alice"}
	bob := access.Claims{TenantID: "t1", Subject: "bob"}
	post(handler, "same", &alice)
	post(handler, "same", &bob)

	if counter != 2 {
		t.Fatalf("expected separate executions per caller, got %d", counter)
	}
}

func TestIdempotency_ServerErrorsNotRemembered(t *testing.T) {
	counter := 0
	store := newMemCache()
	handler := middleware.Idempotency(store, time.Hour)(makeTestHandler(&counter, http.StatusInternalServerError))

	post(handler, "retry-me", nil)
	post(handler, "retry-me", nil)

	if counter != 2 {
		t.Fatalf("expected retry after 5xx, got %d calls", counter)
	}
}
