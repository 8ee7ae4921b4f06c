// Package store owns the canonical artifact store: a SQLite database holding
// artifacts, settings, the per-(artifact, adapter, path) sync hash table and
// the append-only history ledgers. When file storage mode is active the
// artifacts are mirrored to markdown files alongside the database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/messages"
)

// Mode identifies the active storage representation.
type Mode string

const (
	ModeDatabase Mode = "database"
	ModeFiles    Mode = "files"
)

const (
	settingStorageMode     = "storage_mode"
	settingRecentlyDeleted = "recently_deleted"
	settingSourceMap       = "import_source_map"

	historyRetention = 50
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Store is the canonical store handle. It is safe for concurrent use; the
// migration manager serializes against import and sync through Exclusive.
type Store struct {
	db      *sql.DB
	baseDir string
	dbPath  string

	// mu is the engine-level lock: import and sync hold it shared, a
	// running migration holds it exclusively.
	mu sync.RWMutex
}

// Open opens (creating if needed) the canonical store under baseDir.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf(messages.StoreOpenFailedFmt, baseDir, err)
	}
	dbPath := filepath.Join(baseDir, "loom.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf(messages.StoreOpenFailedFmt, dbPath, err)
	}
	s := &Store{db: db, baseDir: baseDir, dbPath: dbPath}
	if err := s.migrateSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf(messages.StoreMigrateSchemaFmt, err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Checkpoint flushes the WAL into the main database file so a plain file
// copy of DBPath is a complete snapshot.
func (s *Store) Checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}

// RestoreFrom replaces the live database file with the snapshot at src. The
// connection is closed for the copy and reopened afterwards; callers must
// hold the exclusive engine lock.
func (s *Store) RestoreFrom(src string) error {
	if err := s.db.Close(); err != nil {
		return err
	}
	for _, stale := range []string{s.dbPath + "-wal", s.dbPath + "-shm"} {
		if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	raw, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.dbPath, raw, 0o600); err != nil {
		return err
	}
	dsn := s.dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	s.db = db
	return s.migrateSchema()
}

// DBPath returns the database file path. The migration manager snapshots it.
func (s *Store) DBPath() string { return s.dbPath }

// BaseDir returns the store's base directory.
func (s *Store) BaseDir() string { return s.baseDir }

// ArtifactsDir returns the directory holding the file-storage mirror.
func (s *Store) ArtifactsDir() string { return filepath.Join(s.baseDir, "artifacts") }

// Shared acquires the engine lock shared and returns the release function.
func (s *Store) Shared() func() {
	s.mu.RLock()
	return s.mu.RUnlock
}

// Exclusive acquires the engine lock exclusively (blocking import and sync)
// and returns the release function.
func (s *Store) Exclusive() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) migrateSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS artifacts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	type TEXT NOT NULL,
	scope TEXT NOT NULL,
	target_paths TEXT NOT NULL DEFAULT '[]',
	enabled_adapters TEXT NOT NULL DEFAULT '[]',
	enabled INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sync_hashes (
	artifact_id TEXT NOT NULL,
	adapter_id TEXT NOT NULL,
	path TEXT NOT NULL,
	hash TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (artifact_id, adapter_id, path)
);
CREATE TABLE IF NOT EXISTS import_history (
	id TEXT PRIMARY KEY,
	ts INTEGER NOT NULL,
	source_type TEXT NOT NULL,
	imported INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	conflicts INTEGER NOT NULL,
	errors INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sync_history (
	id TEXT PRIMARY KEY,
	ts INTEGER NOT NULL,
	files_written INTEGER NOT NULL,
	conflicts INTEGER NOT NULL,
	errors INTEGER NOT NULL,
	success INTEGER NOT NULL
);`
	_, err := s.db.Exec(schema)
	return err
}

// CreateInput carries the fields for a new artifact.
type CreateInput struct {
	Name            string
	Description     string
	Content         string
	Type            artifact.Type
	Scope           artifact.Scope
	TargetPaths     []string
	EnabledAdapters []string
	Enabled         bool
}

// UpdateInput carries partial updates; nil fields are left unchanged.
type UpdateInput struct {
	Name            *string
	Description     *string
	Content         *string
	Scope           *artifact.Scope
	TargetPaths     []string
	EnabledAdapters []string
	Enabled         *bool
}

// Create inserts a new artifact and mirrors it to disk in file mode.
func (s *Store) Create(ctx context.Context, in CreateInput) (*artifact.Artifact, error) {
	if in.Name == "" {
		return nil, errors.New(messages.StoreNameRequired)
	}
	if in.Content == "" {
		return nil, errors.New(messages.StoreContentRequired)
	}
	if _, err := artifact.ParseType(string(in.Type)); err != nil {
		return nil, err
	}
	if _, err := artifact.ParseScope(string(in.Scope)); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	a := &artifact.Artifact{
		ID:              artifact.NewID(),
		Name:            in.Name,
		Description:     in.Description,
		Content:         in.Content,
		Type:            in.Type,
		Scope:           in.Scope,
		TargetPaths:     in.TargetPaths,
		EnabledAdapters: in.EnabledAdapters,
		Enabled:         in.Enabled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	targets, adapters, err := encodeLists(a.TargetPaths, a.EnabledAdapters)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO artifacts (id, name, description, content, type, scope, target_paths, enabled_adapters, enabled, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Description, a.Content, string(a.Type), string(a.Scope),
		targets, adapters, boolToInt(a.Enabled), now.Unix(), now.Unix())
	if err != nil {
		return nil, err
	}
	if err := s.mirrorToDisk(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns one artifact by ID.
func (s *Store) Get(ctx context.Context, id string) (*artifact.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, description, content, type, scope, target_paths, enabled_adapters, enabled, created_at, updated_at
FROM artifacts WHERE id = ?`, id)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, err
}

// List returns every artifact ordered by name.
func (s *Store) List(ctx context.Context) ([]artifact.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, description, content, type, scope, target_paths, enabled_adapters, enabled, created_at, updated_at
FROM artifacts ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []artifact.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Update applies in to the artifact and mirrors the result in file mode.
func (s *Store) Update(ctx context.Context, id string, in UpdateInput) (*artifact.Artifact, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		a.Name = *in.Name
	}
	if in.Description != nil {
		a.Description = *in.Description
	}
	if in.Content != nil {
		a.Content = *in.Content
	}
	if in.Scope != nil {
		a.Scope = *in.Scope
	}
	if in.TargetPaths != nil {
		a.TargetPaths = in.TargetPaths
	}
	if in.EnabledAdapters != nil {
		a.EnabledAdapters = in.EnabledAdapters
	}
	if in.Enabled != nil {
		a.Enabled = *in.Enabled
	}
	a.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	targets, adapters, err := encodeLists(a.TargetPaths, a.EnabledAdapters)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
UPDATE artifacts SET name = ?, description = ?, content = ?, scope = ?, target_paths = ?, enabled_adapters = ?, enabled = ?, updated_at = ?
WHERE id = ?`,
		a.Name, a.Description, a.Content, string(a.Scope), targets, adapters,
		boolToInt(a.Enabled), a.UpdatedAt.Unix(), a.ID)
	if err != nil {
		return nil, err
	}
	if err := s.mirrorToDisk(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Toggle flips the enabled flag.
func (s *Store) Toggle(ctx context.Context, id string) (*artifact.Artifact, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	enabled := !a.Enabled
	return s.Update(ctx, id, UpdateInput{Enabled: &enabled})
}

// Delete soft-deletes an artifact: the row and any file mirror are removed,
// and the record is retained under the recently-deleted setting for one-shot
// undo via Restore. Each deletion replaces the previous retained record.
func (s *Store) Delete(ctx context.Context, id string) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if err := s.SetSetting(ctx, settingRecentlyDeleted, string(encoded)); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_hashes WHERE artifact_id = ?`, id); err != nil {
		return err
	}
	if s.mode(ctx) == ModeFiles {
		_ = os.Remove(artifactFilePath(s.ArtifactsDir(), id))
	}
	return nil
}

// Restore re-creates the most recently deleted artifact. Only the last
// deletion is restorable; a successful restore consumes it.
func (s *Store) Restore(ctx context.Context) (*artifact.Artifact, error) {
	encoded, ok, err := s.GetSetting(ctx, settingRecentlyDeleted)
	if err != nil {
		return nil, err
	}
	if !ok || encoded == "" {
		return nil, errors.New(messages.StoreNothingToRestore)
	}
	var a artifact.Artifact
	if err := json.Unmarshal([]byte(encoded), &a); err != nil {
		return nil, err
	}

	targets, adapters, err := encodeLists(a.TargetPaths, a.EnabledAdapters)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO artifacts (id, name, description, content, type, scope, target_paths, enabled_adapters, enabled, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Description, a.Content, string(a.Type), string(a.Scope),
		targets, adapters, boolToInt(a.Enabled), a.CreatedAt.Unix(), a.UpdatedAt.Unix())
	if err != nil {
		return nil, err
	}
	if err := s.SetSetting(ctx, settingRecentlyDeleted, ""); err != nil {
		return nil, err
	}
	if err := s.mirrorToDisk(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Duplicate copies an artifact under the next free copy name.
func (s *Store) Duplicate(ctx context.Context, id string) (*artifact.Artifact, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	existing, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(existing))
	for i := range existing {
		names[i] = existing[i].Name
	}
	return s.Create(ctx, CreateInput{
		Name:            artifact.NextUniqueName(src.Name, names),
		Description:     src.Description,
		Content:         src.Content,
		Type:            src.Type,
		Scope:           src.Scope,
		TargetPaths:     src.TargetPaths,
		EnabledAdapters: src.EnabledAdapters,
		Enabled:         src.Enabled,
	})
}

// mirrorToDisk persists the artifact as a markdown file when file storage
// mode is active.
func (s *Store) mirrorToDisk(a *artifact.Artifact) error {
	if s.mode(context.Background()) != ModeFiles {
		return nil
	}
	return SaveArtifactFile(s.ArtifactsDir(), a)
}

func (s *Store) mode(ctx context.Context) Mode {
	value, ok, err := s.GetSetting(ctx, settingStorageMode)
	if err != nil || !ok {
		return ModeDatabase
	}
	if Mode(value) == ModeFiles {
		return ModeFiles
	}
	return ModeDatabase
}

// StorageMode reports the active storage representation.
func (s *Store) StorageMode(ctx context.Context) Mode {
	return s.mode(ctx)
}

// SetStorageMode records the active storage representation.
func (s *Store) SetStorageMode(ctx context.Context, m Mode) error {
	if m != ModeDatabase && m != ModeFiles {
		return fmt.Errorf(messages.ConfigInvalidModeFmt, m, ModeDatabase, ModeFiles)
	}
	return s.SetSetting(ctx, settingStorageMode, string(m))
}

func encodeLists(targets, adapters []string) (string, string, error) {
	if targets == nil {
		targets = []string{}
	}
	if adapters == nil {
		adapters = []string{}
	}
	t, err := json.Marshal(targets)
	if err != nil {
		return "", "", err
	}
	a, err := json.Marshal(adapters)
	if err != nil {
		return "", "", err
	}
	return string(t), string(a), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*artifact.Artifact, error) {
	var (
		a                 artifact.Artifact
		typ, scope        string
		targets, adapters string
		enabled           int
		created, updated  int64
	)
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Content, &typ, &scope,
		&targets, &adapters, &enabled, &created, &updated)
	if err != nil {
		return nil, err
	}
	if a.Type, err = artifact.ParseType(typ); err != nil {
		return nil, err
	}
	if a.Scope, err = artifact.ParseScope(scope); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(targets), &a.TargetPaths); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(adapters), &a.EnabledAdapters); err != nil {
		return nil, err
	}
	a.Enabled = enabled != 0
	a.CreatedAt = time.Unix(created, 0).UTC()
	a.UpdatedAt = time.Unix(updated, 0).UTC()
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
