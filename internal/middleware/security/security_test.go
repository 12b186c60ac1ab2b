package security

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestFilterMiddleware_Blocks(t *testing.T) {
	handler := FilterMiddleware(true)(okHandler())

	blocked := []string{
		"/wp-admin/",
		"/wp-login.php",
		"/.git/config",
		"/.env",
		"/phpmyadmin/index",
		"/cgi-bin/test.cgi",
		"/admin/login",
		"/server-status",
		"/index.php",
		"/default.aspx",
		"/api/v1/snapshots/../../etc/passwd",
		"/api/v1/snapshots/..%2f..%2fetc",
		"/api/v1/snapshots/%252e%252e/secret",
		"/api/v1/snapshots/x%00",
		"/api/v1/snapshots/..%5cwindows",
	}

	for _, path := range blocked {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "BAD_REQUEST", body["error"]["code"])
			assert.Equal(t, "Invalid request", body["error"]["message"])
		})
	}
}

func TestFilterMiddleware_Allows(t *testing.T) {
	handler := FilterMiddleware(true)(okHandler())

	allowed := []string{
		"/health",
		"/healthz",
		"/readyz",
		"/metrics",
		"/api/v1/compilers",
		"/api/v1/plugins",
		"/api/v1/snapshots/",
		"/api/v1/snapshots/token-sale",
		"/api/v1/snapshots/token-sale/latest?format=toml",
		"/api/v1/snapshots/token-sale/7f1c2b4e-8a1d-4c53-9e0f-3a2b1c4d5e6f",
	}

	for _, path := range allowed {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestFilterMiddleware_Disabled(t *testing.T) {
	handler := FilterMiddleware(false)(okHandler())
	for _, path := range []string{"/wp-admin/", "/.env", "/../etc/passwd"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMaxBodySizeMiddleware(t *testing.T) {
	var readErr error
	handler := MaxBodySizeMiddleware(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
		if readErr != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("within limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 1024)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NoError(t, readErr)
	})

	t.Run("declared length over limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("a", 2<<20)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "PAYLOAD_TOO_LARGE")
	})

	t.Run("undeclared length over limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader(strings.Repeat("a", 2<<20))))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Error(t, readErr)
	})
}

func TestMiddleware_Chain(t *testing.T) {
	handler := Middleware(Config{FilterEnabled: true, MaxBodySizeMB: 1})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.env", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/snapshots/x", strings.NewReader(strings.Repeat("a", 2<<20))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plugins", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
