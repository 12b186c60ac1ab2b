// Package storage persists configuration snapshots and registry API keys.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pendergraft/buildcfg/internal/config"
)

// SnapshotStore handles snapshot operations
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snap *Snapshot) error
	GetSnapshot(ctx context.Context, project, id string) (*Snapshot, error)
	GetLatestSnapshot(ctx context.Context, project string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, project string, pagination PaginationParams) (*PaginatedResult[Snapshot], error)
	ListProjects(ctx context.Context, pagination PaginationParams) (*PaginatedResult[Project], error)
	DeleteSnapshot(ctx context.Context, project, id string) error
	GetProjectOwner(ctx context.Context, project string) (string, error)
}

// APIKeyStore handles API key operations
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, name string) (key string, err error)
	ValidateAPIKey(ctx context.Context, key string) (*APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	SnapshotStore
	APIKeyStore

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}

// Snapshot is one published revision of a project's configuration document.
// Document holds the canonical JSON form with credentials left as ${VAR}
// references.
type Snapshot struct {
	ID          string
	Project     string
	Revision    int64 // 1-based, per project
	Fingerprint string
	Document    []byte // nil in list results
	SizeBytes   int
	Networks    []string
	OwnerID     string // API key ID that published this snapshot; the first publisher owns the project
	CreatedAt   string
}

// Project summarizes the snapshots stored for one project.
type Project struct {
	Name           string
	LatestRevision int64
	Snapshots      int
	UpdatedAt      string
}

// APIKey represents an API key
type APIKey struct {
	ID         string
	Name       string
	KeyHash    string
	CreatedAt  string
	LastUsedAt string
	RevokedAt  string
}

// PaginationParams contains pagination options
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
