package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Middleware returns HTTP middleware for request metrics.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			path := normalizePath(r.URL.Path)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
			httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

// WriteHeader captures status code.
func (rw *responseWriter) WriteHeader(status int) {
	if !rw.wroteHeader {
		rw.status = status
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath replaces project names and snapshot IDs with placeholders so
// label cardinality stays bounded:
//
//	/api/v1/snapshots/token-sale/3f2b...-...  -> /api/v1/snapshots/{project}/{id}
//	/api/v1/snapshots/token-sale/latest       -> /api/v1/snapshots/{project}/latest
func normalizePath(path string) string {
	switch path {
	case "/health", "/healthz", "/readyz", "/metrics":
		return path
	}

	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return "other"
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	switch parts[0] {
	case "snapshots":
		normalized := []string{"/api/v1/snapshots"}
		if len(parts) > 1 {
			normalized = append(normalized, "{project}")
		}
		if len(parts) > 2 {
			if parts[2] == "latest" {
				normalized = append(normalized, "latest")
			} else {
				normalized = append(normalized, "{id}")
			}
		}
		if len(parts) > 3 {
			normalized = append(normalized, "{rest}")
		}
		return strings.Join(normalized, "/")
	case "compilers", "plugins", "validate":
		if len(parts) == 1 {
			return "/api/v1/" + parts[0]
		}
	}
	return "/api/v1/other"
}
