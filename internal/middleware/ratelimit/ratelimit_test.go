package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func send(h http.Handler, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLimiter_BurstThenReject(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 60, BurstSize: 3})
	handler := l.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send(handler, "/api/v1/snapshots/", "192.0.2.1:1000").Code, "request %d", i+1)
	}

	rec := send(handler, "/api/v1/snapshots/", "192.0.2.1:1000")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"]["code"])
}

func TestLimiter_PerClient(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 1, BurstSize: 1})
	handler := l.Middleware(okHandler())

	assert.Equal(t, http.StatusOK, send(handler, "/", "192.0.2.1:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, send(handler, "/", "192.0.2.1:1001").Code)
	assert.Equal(t, http.StatusOK, send(handler, "/", "192.0.2.2:1000").Code)
	assert.Equal(t, 2, l.Clients())
}

func TestLimiter_RetryAfterReflectsRate(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 2, BurstSize: 1})
	handler := l.Middleware(okHandler())

	send(handler, "/", "192.0.2.1:1000")
	rec := send(handler, "/", "192.0.2.1:1000")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestLimiter_ExemptPaths(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 1, BurstSize: 1})
	handler := l.Middleware(okHandler())

	for _, path := range DefaultExempt {
		for i := 0; i < 5; i++ {
			assert.Equal(t, http.StatusOK, send(handler, path, "192.0.2.1:1000").Code, path)
		}
	}
	assert.Equal(t, 0, l.Clients())
}

func TestLimiter_Sweep(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 60, BurstSize: 5, CleanupMinutes: 1})
	now := time.Now()
	l.now = func() time.Time { return now }

	handler := l.Middleware(okHandler())
	send(handler, "/", "192.0.2.1:1000")
	send(handler, "/", "192.0.2.2:1000")
	require.Equal(t, 2, l.Clients())

	now = now.Add(30 * time.Second)
	send(handler, "/", "192.0.2.2:1000")

	now = now.Add(45 * time.Second)
	l.sweep()
	assert.Equal(t, 1, l.Clients())
}

func TestLimiter_Concurrent(t *testing.T) {
	l := New(Config{Enabled: true, RequestsPerMin: 6000, BurstSize: 50})
	handler := l.Middleware(okHandler())

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if send(handler, "/", "192.0.2.1:1000").Code == http.StatusOK {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, allowed, 50)
}

func TestMiddleware_Disabled(t *testing.T) {
	handler := Middleware(context.Background(), Config{Enabled: false, RequestsPerMin: 1, BurstSize: 1})(okHandler())
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, send(handler, "/", "192.0.2.1:1000").Code)
	}
}

func TestMiddleware_StopsSweeperWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := Middleware(ctx, Config{Enabled: true, RequestsPerMin: 60, BurstSize: 1})(okHandler())
	assert.Equal(t, http.StatusOK, send(handler, "/", "192.0.2.1:1000").Code)
	cancel()
}
