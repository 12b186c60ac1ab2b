package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store. The path ":memory:" opens a
// private in-memory database.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Projects: ownership and the revision counter
	CREATE TABLE IF NOT EXISTS projects (
		name TEXT PRIMARY KEY,
		owner_key_id TEXT,
		last_revision INTEGER NOT NULL,
		created_at TEXT DEFAULT (datetime('now')),
		updated_at TEXT DEFAULT (datetime('now'))
	);

	-- Snapshots
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL REFERENCES projects(name),
		revision INTEGER NOT NULL,
		fingerprint TEXT NOT NULL,
		document BLOB NOT NULL,
		size_bytes INTEGER NOT NULL,
		networks TEXT NOT NULL DEFAULT '',
		owner_key_id TEXT,
		created_at TEXT DEFAULT (datetime('now')),
		UNIQUE(project, revision)
	);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now')),
		last_used_at TEXT,
		revoked_at TEXT
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

// CreateSnapshot stores snap as the project's next revision and fills in
// its ID, Revision, SizeBytes and CreatedAt. The first publisher of a
// project becomes its owner.
func (s *SQLiteStore) CreateSnapshot(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var revision int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO projects (name, owner_key_id, last_revision, created_at, updated_at)
		VALUES (?, ?, 1, datetime('now'), datetime('now'))
		ON CONFLICT(name) DO UPDATE SET
			last_revision = projects.last_revision + 1,
			owner_key_id = COALESCE(projects.owner_key_id, excluded.owner_key_id),
			updated_at = excluded.updated_at
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

	err = tx.QueryRowContext(ctx, `
		INSERT INTO snapshots (id, project, revision, fingerprint, document, size_bytes, networks, owner_key_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		RETURNING created_at
	`, snap.ID, snap.Project, snap.Revision, snap.Fingerprint, snap.Document, snap.SizeBytes,
		joinNetworks(snap.Networks), nullString(snap.OwnerID)).Scan(&snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	return tx.Commit()
}

const sqliteSnapshotColumns = `id, project, revision, fingerprint, document, size_bytes, networks, owner_key_id, created_at`

// GetSnapshot retrieves a snapshot by project and ID
func (s *SQLiteStore) GetSnapshot(ctx context.Context, project, id string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSnapshotColumns+` FROM snapshots WHERE project = ? AND id = ?`, project, id)
	return scanSnapshot(row)
}

// GetLatestSnapshot retrieves the highest revision of a project
func (s *SQLiteStore) GetLatestSnapshot(ctx context.Context, project string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteSnapshotColumns+` FROM snapshots WHERE project = ? ORDER BY revision DESC LIMIT 1`, project)
	return scanSnapshot(row)
}

// ListSnapshots lists a project's snapshots newest first. Documents are not
// loaded; the cursor is the revision to continue below.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, project string, pagination PaginationParams) (*PaginatedResult[Snapshot], error) {
	limit := pageLimit(pagination.Limit)
	before, err := revisionCursor(pagination.Cursor)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, project, revision, fingerprint, size_bytes, networks, owner_key_id, created_at
		FROM snapshots WHERE project = ?`
	args := []any{project}
	if before > 0 {
		query += ` AND revision < ?`
		args = append(args, before)
	}
	query += ` ORDER BY revision DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var networks string
		var owner sql.NullString
		if err := rows.Scan(&snap.ID, &snap.Project, &snap.Revision, &snap.Fingerprint, &snap.SizeBytes, &networks, &owner, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snap.Networks = splitNetworks(networks)
		snap.OwnerID = owner.String
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return paginateSnapshots(snaps, limit), nil
}

// ListProjects lists projects that have snapshots, ordered by name
func (s *SQLiteStore) ListProjects(ctx context.Context, pagination PaginationParams) (*PaginatedResult[Project], error) {
	limit := pageLimit(pagination.Limit)
	query := `SELECT project, MAX(revision), COUNT(*), MAX(created_at) FROM snapshots`
	var args []any
	if pagination.Cursor != "" {
		query += ` WHERE project > ?`
		args = append(args, pagination.Cursor)
	}
	query += ` GROUP BY project ORDER BY project LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Name, &p.LatestRevision, &p.Snapshots, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return paginateProjects(projects, limit), nil
}

// DeleteSnapshot deletes one snapshot. Revision numbers are never reused.
func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, project, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE project = ? AND id = ?", project, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// GetProjectOwner returns the owner ID of a project, or "" when it has none
func (s *SQLiteStore) GetProjectOwner(ctx context.Context, project string) (string, error) {
	var ownerID sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT owner_key_id FROM projects WHERE name = ?`, project).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ownerID.String, nil
}

// CreateAPIKey creates a new API key and returns its secret
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key, err := generateAPIKey()
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name, created_at) VALUES (?, ?, ?, datetime('now'))",
		generateID(), hashAPIKey(key), name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *SQLiteStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	var ak APIKey
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL", hashAPIKey(key)).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &ak.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = datetime('now') WHERE id = ?", ak.ID); err != nil {
		s.logger.Warn("failed to record API key use", "id", ak.ID, "error", err)
	}
	return &ak, nil
}

// ListAPIKeys lists all active API keys
func (s *SQLiteStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL ORDER BY created_at, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var lastUsed sql.NullString
		if err := rows.Scan(&k.ID, &k.Name, &k.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		k.LastUsedAt = lastUsed.String
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an active API key
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = datetime('now') WHERE id = ? AND revoked_at IS NULL", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var snap Snapshot
	var networks string
	var owner sql.NullString
	err := row.Scan(&snap.ID, &snap.Project, &snap.Revision, &snap.Fingerprint, &snap.Document,
		&snap.SizeBytes, &networks, &owner, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	snap.Networks = splitNetworks(networks)
	snap.OwnerID = owner.String
	return &snap, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func paginateSnapshots(snaps []Snapshot, limit int) *PaginatedResult[Snapshot] {
	result := &PaginatedResult[Snapshot]{Data: snaps}
	if len(snaps) > limit {
		result.Data = snaps[:limit]
		result.HasMore = true
		result.NextCursor = fmt.Sprint(result.Data[limit-1].Revision)
	}
	return result
}

func paginateProjects(projects []Project, limit int) *PaginatedResult[Project] {
	result := &PaginatedResult[Project]{Data: projects}
	if len(projects) > limit {
		result.Data = projects[:limit]
		result.HasMore = true
		result.NextCursor = result.Data[limit-1].Name
	}
	return result
}
