package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// APIKeyPrefix starts every generated API key.
const APIKeyPrefix = "bc_key_"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

// computeHash computes SHA256 hash of content
func computeHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// generateAPIKey generates a new API key
func generateAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return APIKeyPrefix + hex.EncodeToString(b), nil
}

// hashAPIKey hashes an API key for storage
func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// pageLimit clamps a requested page size.
func pageLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// revisionCursor parses a snapshot list cursor; 0 means from the newest.
func revisionCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	rev, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || rev <= 0 {
		return 0, fmt.Errorf("%w %q", ErrInvalidCursor, cursor)
	}
	return rev, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func joinNetworks(networks []string) string {
	return strings.Join(networks, ",")
}

func splitNetworks(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
