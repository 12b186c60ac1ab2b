// Package domain contains the business logic for configuration snapshots.
package domain

import (
	"time"

	"github.com/pendergraft/buildcfg/internal/project"
)

// Snapshot is a published revision of a project's configuration.
type Snapshot struct {
	ID          string
	Project     string
	Revision    int64
	Fingerprint string
	Document    *project.Document // nil in list results
	Networks    []string
	SizeBytes   int
	OwnerID     string
	CreatedAt   time.Time
}

// Project summarizes a project's snapshots.
type Project struct {
	Name           string
	LatestRevision int64
	Snapshots      int
	UpdatedAt      time.Time
}

// ValidationResult describes a document checked without storing it.
type ValidationResult struct {
	Fingerprint    string
	Networks       []string
	Compilers      []string
	LiteralSecrets []string
	Verification   bool
}

// PaginationParams contains pagination options.
type PaginationParams struct {
	Limit  int
	Cursor string
}

// ListResult contains a page of snapshots, newest first.
type ListResult struct {
	Snapshots  []Snapshot
	HasMore    bool
	NextCursor string
}

// ProjectList contains a page of projects.
type ProjectList struct {
	Projects   []Project
	HasMore    bool
	NextCursor string
}
