package auth

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/pendergraft/buildcfg/internal/storage"
)

const (
	// KeyPrefix is the prefix for all API keys
	KeyPrefix = storage.APIKeyPrefix
	// keyHexLength is the length of the hex-encoded random part of the key
	keyHexLength = 48
)

// ValidKeyFormat reports whether key has the shape of a generated API key.
func ValidKeyFormat(key string) bool {
	rest, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok || len(rest) != keyHexLength {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil
}

// KeyFromRequest returns the API key sent in the X-API-Key header or as a
// bearer token, or "".
func KeyFromRequest(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
