package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SyncHash returns the last hash the sync engine wrote for the triple, if
// one is recorded.
func (s *Store) SyncHash(ctx context.Context, artifactID, adapterID, path string) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
SELECT hash FROM sync_hashes WHERE artifact_id = ? AND adapter_id = ? AND path = ?`,
		artifactID, adapterID, path).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return hash, true, nil
}

// SetSyncHash records the hash last written for the triple.
func (s *Store) SetSyncHash(ctx context.Context, artifactID, adapterID, path, hash string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sync_hashes (artifact_id, adapter_id, path, hash, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(artifact_id, adapter_id, path) DO UPDATE SET hash = excluded.hash, updated_at = excluded.updated_at`,
		artifactID, adapterID, path, hash, time.Now().Unix())
	return err
}

// SyncedPaths returns every path the engine has written for the artifact,
// keyed by adapter. Used for stale-file pruning.
func (s *Store) SyncedPaths(ctx context.Context, artifactID string) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT adapter_id, path FROM sync_hashes WHERE artifact_id = ?`, artifactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var adapter, path string
		if err := rows.Scan(&adapter, &path); err != nil {
			return nil, err
		}
		out[adapter] = append(out[adapter], path)
	}
	return out, rows.Err()
}

// AllSyncedPaths returns every tracked (artifact, adapter, path, hash) row.
func (s *Store) AllSyncedPaths(ctx context.Context) ([]SyncHashRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT artifact_id, adapter_id, path, hash FROM sync_hashes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncHashRow
	for rows.Next() {
		var r SyncHashRow
		if err := rows.Scan(&r.ArtifactID, &r.AdapterID, &r.Path, &r.Hash); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SyncHashRow is one tracked last-written hash.
type SyncHashRow struct {
	ArtifactID string
	AdapterID  string
	Path       string
	Hash       string
}

// DeleteSyncHash forgets the tracked hash for one triple.
func (s *Store) DeleteSyncHash(ctx context.Context, artifactID, adapterID, path string) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM sync_hashes WHERE artifact_id = ? AND adapter_id = ? AND path = ?`,
		artifactID, adapterID, path)
	return err
}
