// Package transport provides HTTP request/response types for the snapshots domain.
package transport

import (
	"encoding/json"
	"time"

	"github.com/pendergraft/buildcfg/internal/snapshots/domain"
)

// SnapshotResponse is the response for getting or publishing a snapshot.
type SnapshotResponse struct {
	ID          string          `json:"id"`
	Project     string          `json:"project"`
	Revision    int64           `json:"revision"`
	Fingerprint string          `json:"fingerprint"`
	Networks    []string        `json:"networks"`
	SizeBytes   int             `json:"sizeBytes"`
	CreatedAt   string          `json:"createdAt"`
	Document    json.RawMessage `json:"document,omitempty"`
}

// SnapshotListResponse is the response for listing a project's snapshots.
type SnapshotListResponse struct {
	Data       []SnapshotResponse `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

// ProjectItem is a project in a list.
type ProjectItem struct {
	Name           string `json:"name"`
	LatestRevision int64  `json:"latestRevision"`
	Snapshots      int    `json:"snapshots"`
	UpdatedAt      string `json:"updatedAt"`
}

// ProjectListResponse is the response for listing projects.
type ProjectListResponse struct {
	Data       []ProjectItem `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// Pagination provides pagination metadata.
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor"`
}

// ValidationResponse is the response for validating a document.
type ValidationResponse struct {
	Valid          bool     `json:"valid"`
	Fingerprint    string   `json:"fingerprint"`
	Networks       []string `json:"networks"`
	Compilers      []string `json:"compilers"`
	LiteralSecrets []string `json:"literalSecrets"`
	Verification   bool     `json:"verification"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toSnapshotResponse(s *domain.Snapshot, document []byte) SnapshotResponse {
	networks := s.Networks
	if networks == nil {
		networks = []string{}
	}
	return SnapshotResponse{
		ID:          s.ID,
		Project:     s.Project,
		Revision:    s.Revision,
		Fingerprint: s.Fingerprint,
		Networks:    networks,
		SizeBytes:   s.SizeBytes,
		CreatedAt:   formatTime(s.CreatedAt),
		Document:    document,
	}
}
