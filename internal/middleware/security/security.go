// Package security rejects scanner traffic and oversized bodies before they
// reach the API handlers.
package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Config holds the configuration for security middleware
type Config struct {
	FilterEnabled bool
	MaxBodySizeMB int
}

// probeExtensions mark requests for server-side scripts this API never serves.
var probeExtensions = []string{".php", ".asp", ".aspx", ".jsp", ".cgi", ".cfm"}

// probePrefixes are well-known admin and CMS paths.
var probePrefixes = []string{
	"/wp-", "/cgi-bin/", "/phpmyadmin", "/admin/", "/server-status", "/web-inf/",
}

// Suspicious reports whether a request path looks like scanner or traversal
// traffic. Both the escaped and unescaped forms are checked.
func Suspicious(u *url.URL) bool {
	raw := u.EscapedPath()
	candidates := []string{strings.ToLower(u.Path), strings.ToLower(raw)}
	if decoded, err := url.PathUnescape(raw); err == nil {
		candidates = append(candidates, strings.ToLower(decoded))
		if again, err := url.PathUnescape(decoded); err == nil {
			candidates = append(candidates, strings.ToLower(again))
		}
	}

	for _, p := range candidates {
		if strings.ContainsRune(p, 0) || strings.Contains(p, "%00") {
			return true
		}
		for _, segment := range strings.Split(p, "/") {
			if segment == ".." || (strings.HasPrefix(segment, ".") && segment != ".") {
				return true
			}
			if strings.Contains(segment, `..\`) {
				return true
			}
		}
		for _, prefix := range probePrefixes {
			if strings.HasPrefix(p, prefix) {
				return true
			}
		}
		if ext := path.Ext(p); ext != "" {
			for _, probe := range probeExtensions {
				if ext == probe {
					return true
				}
			}
		}
	}
	return false
}

// FilterMiddleware answers suspicious requests with a generic 400.
func FilterMiddleware(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Suspicious(r.URL) {
				writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySizeMiddleware caps request bodies at maxSizeMB megabytes. A
// declared Content-Length over the cap is refused before reading.
func MaxBodySizeMiddleware(maxSizeMB int) func(http.Handler) http.Handler {
	maxBytes := int64(maxSizeMB) << 20
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// Middleware chains the filter and the body size cap.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	filter := FilterMiddleware(cfg.FilterEnabled)
	limit := MaxBodySizeMiddleware(cfg.MaxBodySizeMB)
	return func(next http.Handler) http.Handler {
		return filter(limit(next))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
