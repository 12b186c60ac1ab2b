package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pgTimeFormat = "2006-01-02 15:04:05"

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	types  *pgtype.Map
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, types: pgtype.NewMap(), logger: logger}, nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Projects: ownership and the revision counter
	CREATE TABLE IF NOT EXISTS projects (
		name TEXT PRIMARY KEY,
		owner_key_id TEXT,
		last_revision BIGINT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);

	-- Snapshots
	CREATE TABLE IF NOT EXISTS snapshots (
		id UUID PRIMARY KEY,
		project TEXT NOT NULL REFERENCES projects(name),
		revision BIGINT NOT NULL,
		fingerprint TEXT NOT NULL,
		document JSONB NOT NULL,
		document_raw BYTEA NOT NULL,
		size_bytes INTEGER NOT NULL,
		networks TEXT[] NOT NULL DEFAULT '{}',
		owner_key_id TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE(project, revision)
	);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		last_used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_snapshots_project_revision ON snapshots(project, revision DESC);
	CREATE INDEX IF NOT EXISTS idx_snapshots_fingerprint ON snapshots(fingerprint);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// CreateSnapshot stores snap as the project's next revision. The document is
// kept both as JSONB, for querying, and byte for byte, so fingerprints stay
// stable.
func (s *PostgresStore) CreateSnapshot(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var revision int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO projects (name, owner_key_id, last_revision)
		VALUES ($1, $2, 1)
		ON CONFLICT (name) DO UPDATE SET
			last_revision = projects.last_revision + 1,
			owner_key_id = COALESCE(projects.owner_key_id, excluded.owner_key_id),
			updated_at = NOW()
		RETURNING last_revision
	`, snap.Project, nullString(snap.OwnerID)).Scan(&revision)
	if err != nil {
		return fmt.Errorf("allocating revision: %w", err)
	}

	if snap.ID == "" {
		snap.ID = generateID()
	}
	if snap.Fingerprint == "" {
		snap.Fingerprint = computeHash(snap.Document)
	}
	snap.Revision = revision
	snap.SizeBytes = len(snap.Document)

	networks := snap.Networks
	if networks == nil {
		networks = []string{}
	}

	var createdAt time.Time
	err = tx.QueryRowContext(ctx, `
		INSERT INTO snapshots (id, project, revision, fingerprint, document, document_raw, size_bytes, networks, owner_key_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, snap.ID, snap.Project, snap.Revision, snap.Fingerprint, string(snap.Document), snap.Document, snap.SizeBytes,
		networks, nullString(snap.OwnerID)).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	snap.CreatedAt = createdAt.UTC().Format(pgTimeFormat)

	return tx.Commit()
}

const pgSnapshotColumns = `id, project, revision, fingerprint, document_raw, size_bytes, networks, owner_key_id, created_at`

// GetSnapshot retrieves a snapshot by project and ID
func (s *PostgresStore) GetSnapshot(ctx context.Context, project, id string) (*Snapshot, error) {
	// ids that are not UUIDs cannot match and would fail the cast
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pgSnapshotColumns+` FROM snapshots WHERE project = $1 AND id = $2`, project, id)
	return s.scanSnapshot(row)
}

// GetLatestSnapshot retrieves the highest revision of a project
func (s *PostgresStore) GetLatestSnapshot(ctx context.Context, project string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pgSnapshotColumns+` FROM snapshots WHERE project = $1 ORDER BY revision DESC LIMIT 1`, project)
	return s.scanSnapshot(row)
}

// ListSnapshots lists a project's snapshots newest first
func (s *PostgresStore) ListSnapshots(ctx context.Context, project string, pagination PaginationParams) (*PaginatedResult[Snapshot], error) {
	limit := pageLimit(pagination.Limit)
	before, err := revisionCursor(pagination.Cursor)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, project, revision, fingerprint, size_bytes, networks, owner_key_id, created_at
		FROM snapshots WHERE project = $1`
	args := []any{project}
	if before > 0 {
		query += ` AND revision < $2 ORDER BY revision DESC LIMIT $3`
		args = append(args, before, limit+1)
	} else {
		query += ` ORDER BY revision DESC LIMIT $2`
		args = append(args, limit+1)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var owner sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&snap.ID, &snap.Project, &snap.Revision, &snap.Fingerprint, &snap.SizeBytes,
			s.types.SQLScanner(&snap.Networks), &owner, &createdAt); err != nil {
			return nil, err
		}
		snap.OwnerID = owner.String
		snap.CreatedAt = createdAt.UTC().Format(pgTimeFormat)
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return paginateSnapshots(snaps, limit), nil
}

// ListProjects lists projects that have snapshots, ordered by name
func (s *PostgresStore) ListProjects(ctx context.Context, pagination PaginationParams) (*PaginatedResult[Project], error) {
	limit := pageLimit(pagination.Limit)
	query := `SELECT project, MAX(revision), COUNT(*), MAX(created_at) FROM snapshots`
	args := []any{}
	if pagination.Cursor != "" {
		query += ` WHERE project > $1 GROUP BY project ORDER BY project LIMIT $2`
		args = append(args, pagination.Cursor, limit+1)
	} else {
		query += ` GROUP BY project ORDER BY project LIMIT $1`
		args = append(args, limit+1)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var updatedAt time.Time
		if err := rows.Scan(&p.Name, &p.LatestRevision, &p.Snapshots, &updatedAt); err != nil {
			return nil, err
		}
		p.UpdatedAt = updatedAt.UTC().Format(pgTimeFormat)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return paginateProjects(projects, limit), nil
}

// DeleteSnapshot deletes one snapshot. Revision numbers are never reused.
func (s *PostgresStore) DeleteSnapshot(ctx context.Context, project, id string) error {
	if !isUUID(id) {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE project = $1 AND id = $2", project, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// GetProjectOwner returns the owner ID of a project, or "" when it has none
func (s *PostgresStore) GetProjectOwner(ctx context.Context, project string) (string, error) {
	var ownerID sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT owner_key_id FROM projects WHERE name = $1`, project).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ownerID.String, nil
}

// CreateAPIKey creates a new API key and returns its secret
func (s *PostgresStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key, err := generateAPIKey()
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES ($1, $2, $3)", generateID(), hashAPIKey(key), name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	var ak APIKey
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL", hashAPIKey(key)).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ak.CreatedAt = createdAt.UTC().Format(pgTimeFormat)
	if _, err := s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", ak.ID); err != nil {
		s.logger.Warn("failed to record API key use", "id", ak.ID, "error", err)
	}
	return &ak, nil
}

// ListAPIKeys lists all active API keys
func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL ORDER BY created_at, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var createdAt time.Time
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &createdAt, &lastUsed); err != nil {
			return nil, err
		}
		k.CreatedAt = createdAt.UTC().Format(pgTimeFormat)
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.Time.UTC().Format(pgTimeFormat)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an active API key
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	if !isUUID(id) {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *PostgresStore) scanSnapshot(row rowScanner) (*Snapshot, error) {
	var snap Snapshot
	var owner sql.NullString
	var createdAt time.Time
	err := row.Scan(&snap.ID, &snap.Project, &snap.Revision, &snap.Fingerprint, &snap.Document,
		&snap.SizeBytes, s.types.SQLScanner(&snap.Networks), &owner, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	snap.OwnerID = owner.String
	snap.CreatedAt = createdAt.UTC().Format(pgTimeFormat)
	return &snap, nil
}
