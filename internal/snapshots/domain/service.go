package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pendergraft/buildcfg/internal/project"
	"github.com/pendergraft/buildcfg/internal/storage"
	"github.com/pendergraft/buildcfg/internal/validation"
)

// Common errors returned by the snapshot service.
var (
	ErrNotFound      = errors.New("snapshot not found")
	ErrForbidden     = errors.New("not authorized to modify this project")
	ErrInvalidName   = errors.New("invalid project name")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrLiteralSecret = errors.New("configuration contains literal secrets")
	ErrUnchanged     = errors.New("configuration unchanged since latest snapshot")
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Latest is the snapshot ID alias for a project's newest revision.
const Latest = "latest"

// Service defines the snapshot service interface.
type Service interface {
	// Validate checks a document without storing it.
	Validate(ctx context.Context, data []byte, format project.Format) (*ValidationResult, error)

	// Publish validates a document and stores it as the project's next revision.
	Publish(ctx context.Context, projectName, ownerID string, data []byte, format project.Format) (*Snapshot, error)

	// Get retrieves a snapshot by ID, or the newest one for ID "latest".
	Get(ctx context.Context, projectName, id string) (*Snapshot, error)

	// List lists a project's snapshots, newest first.
	List(ctx context.Context, projectName string, pagination PaginationParams) (*ListResult, error)

	// Projects lists projects that have snapshots.
	Projects(ctx context.Context, pagination PaginationParams) (*ProjectList, error)

	// Delete removes a snapshot. Only the project owner may delete.
	Delete(ctx context.Context, projectName, id, ownerID string) error
}

// Store defines the storage operations needed by the snapshots domain.
type Store interface {
	CreateSnapshot(ctx context.Context, snap *storage.Snapshot) error
	GetSnapshot(ctx context.Context, project, id string) (*storage.Snapshot, error)
	GetLatestSnapshot(ctx context.Context, project string) (*storage.Snapshot, error)
	ListSnapshots(ctx context.Context, project string, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Snapshot], error)
	ListProjects(ctx context.Context, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Project], error)
	DeleteSnapshot(ctx context.Context, project, id string) error
	GetProjectOwner(ctx context.Context, project string) (string, error)
}

// service implements the Service interface.
type service struct {
	store Store
}

// NewService creates a new snapshot service.
func NewService(store Store) Service {
	return &service{store: store}
}

// parse decodes and validates a document with every ${VAR} reference unset.
// Snapshots never carry secrets, so this is the form they are checked in.
func parse(data []byte, format project.Format) (*project.Document, *project.Record, error) {
	doc, err := project.ParseDocument(data, format)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	record, err := doc.Resolve(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return doc, record, nil
}

// Validate checks a document without storing it. Literal secrets are
// reported in the result rather than rejected.
func (s *service) Validate(ctx context.Context, data []byte, format project.Format) (*ValidationResult, error) {
	doc, record, err := parse(data, format)
	if err != nil {
		return nil, err
	}

	compilers := make([]string, len(record.Compilers))
	for i, c := range record.Compilers {
		compilers[i] = c.Version
	}

	return &ValidationResult{
		Fingerprint:    doc.Fingerprint(),
		Networks:       record.NetworkNames(),
		Compilers:      compilers,
		LiteralSecrets: doc.LiteralSecrets(),
		Verification:   doc.Etherscan.APIKey != "",
	}, nil
}

// Publish validates a document and stores its canonical JSON form.
func (s *service) Publish(ctx context.Context, projectName, ownerID string, data []byte, format project.Format) (*Snapshot, error) {
	if err := validation.ValidateProjectName(projectName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	doc, record, err := parse(data, format)
	if err != nil {
		return nil, err
	}
	if secrets := doc.LiteralSecrets(); len(secrets) > 0 {
		return nil, fmt.Errorf("%w: %s (use ${VAR} references)", ErrLiteralSecret, strings.Join(secrets, ", "))
	}

	currentOwner, err := s.store.GetProjectOwner(ctx, projectName)
	if err != nil {
		return nil, fmt.Errorf("checking ownership: %w", err)
	}
	if currentOwner != "" && currentOwner != ownerID {
		return nil, ErrForbidden
	}

	fingerprint := doc.Fingerprint()
	latest, err := s.store.GetLatestSnapshot(ctx, projectName)
	switch {
	case err == nil && latest.Fingerprint == fingerprint:
		return nil, fmt.Errorf("%w: revision %d", ErrUnchanged, latest.Revision)
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("getting latest snapshot: %w", err)
	}

	canonical, err := project.EncodeDocument(doc, project.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	snap := &storage.Snapshot{
		Project:     projectName,
		Fingerprint: fingerprint,
		Document:    canonical,
		Networks:    record.NetworkNames(),
		OwnerID:     ownerID,
	}
	if err := s.store.CreateSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("creating snapshot: %w", err)
	}

	result := toSnapshot(snap)
	result.Document = doc
	return result, nil
}

// Get retrieves a snapshot with its document.
func (s *service) Get(ctx context.Context, projectName, id string) (*Snapshot, error) {
	var snap *storage.Snapshot
	var err error
	if id == Latest {
		snap, err = s.store.GetLatestSnapshot(ctx, projectName)
	} else {
		snap, err = s.store.GetSnapshot(ctx, projectName, id)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting snapshot: %w", err)
	}

	doc, err := project.ParseDocument(snap.Document, project.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding stored snapshot %s: %w", snap.ID, err)
	}

	result := toSnapshot(snap)
	result.Document = doc
	return result, nil
}

// List lists a project's snapshots. A project without snapshots is ErrNotFound.
func (s *service) List(ctx context.Context, projectName string, pagination PaginationParams) (*ListResult, error) {
	result, err := s.store.ListSnapshots(ctx, projectName, storage.PaginationParams{
		Limit:  pagination.Limit,
		Cursor: pagination.Cursor,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCursor) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCursor, pagination.Cursor)
		}
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	if len(result.Data) == 0 && pagination.Cursor == "" {
		return nil, ErrNotFound
	}

	snapshots := make([]Snapshot, len(result.Data))
	for i := range result.Data {
		snapshots[i] = *toSnapshot(&result.Data[i])
	}

	return &ListResult{
		Snapshots:  snapshots,
		HasMore:    result.HasMore,
		NextCursor: result.NextCursor,
	}, nil
}

// Projects lists projects that have snapshots.
func (s *service) Projects(ctx context.Context, pagination PaginationParams) (*ProjectList, error) {
	result, err := s.store.ListProjects(ctx, storage.PaginationParams{
		Limit:  pagination.Limit,
		Cursor: pagination.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	projects := make([]Project, len(result.Data))
	for i, p := range result.Data {
		projects[i] = toProject(p)
	}

	return &ProjectList{
		Projects:   projects,
		HasMore:    result.HasMore,
		NextCursor: result.NextCursor,
	}, nil
}

// Delete removes a snapshot.
func (s *service) Delete(ctx context.Context, projectName, id, ownerID string) error {
	currentOwner, err := s.store.GetProjectOwner(ctx, projectName)
	if err != nil {
		return fmt.Errorf("checking ownership: %w", err)
	}
	if currentOwner != "" && currentOwner != ownerID {
		return ErrForbidden
	}

	if err := s.store.DeleteSnapshot(ctx, projectName, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}

func toSnapshot(s *storage.Snapshot) *Snapshot {
	return &Snapshot{
		ID:          s.ID,
		Project:     s.Project,
		Revision:    s.Revision,
		Fingerprint: s.Fingerprint,
		Networks:    s.Networks,
		SizeBytes:   s.SizeBytes,
		OwnerID:     s.OwnerID,
		CreatedAt:   parseStoredTime(s.CreatedAt),
	}
}
