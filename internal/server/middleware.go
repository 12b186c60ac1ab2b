package server

import (
	"net/http"
	"strings"
)

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}, ", ")
	corsHeaders = "Accept, Authorization, Content-Type, X-API-Key"
	// corsExpose lets browser clients read snapshot metadata on rendered documents.
	corsExpose = "Location, Retry-After, X-Snapshot-ID, X-Snapshot-Revision, X-Snapshot-Fingerprint"
)

// cors allows any origin to call the API. Preflight requests are answered
// here without reaching the router.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", corsMethods)
		h.Set("Access-Control-Allow-Headers", corsHeaders)
		h.Set("Access-Control-Expose-Headers", corsExpose)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
