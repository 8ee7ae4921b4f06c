package store

import (
	"context"
	"time"

	"github.com/tidewell/loom/internal/artifact"
)

// ImportHistoryEntry is one append-only record of an import run.
type ImportHistoryEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	SourceType string    `json:"sourceType"`
	Imported   int       `json:"imported"`
	Skipped    int       `json:"skipped"`
	Conflicts  int       `json:"conflicts"`
	Errors     int       `json:"errors"`
}

// SyncHistoryEntry is one append-only record of a sync run.
type SyncHistoryEntry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	FilesWritten int       `json:"filesWritten"`
	Conflicts    int       `json:"conflicts"`
	Errors       int       `json:"errors"`
	Success      bool      `json:"success"`
}

// AppendImportHistory appends one entry and trims the ledger to the
// retention cap. Existing entries are never mutated.
func (s *Store) AppendImportHistory(ctx context.Context, e ImportHistoryEntry) error {
	if e.ID == "" {
		e.ID = artifact.NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO import_history (id, ts, source_type, imported, skipped, conflicts, errors)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.Unix(), e.SourceType, e.Imported, e.Skipped, e.Conflicts, e.Errors)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
DELETE FROM import_history WHERE id NOT IN (
	SELECT id FROM import_history ORDER BY ts DESC, id DESC LIMIT ?)`, historyRetention)
	return err
}

// ImportHistory returns entries newest first.
func (s *Store) ImportHistory(ctx context.Context) ([]ImportHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts, source_type, imported, skipped, conflicts, errors
FROM import_history ORDER BY ts DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ImportHistoryEntry
	for rows.Next() {
		var (
			e  ImportHistoryEntry
			ts int64
		)
		if err := rows.Scan(&e.ID, &ts, &e.SourceType, &e.Imported, &e.Skipped, &e.Conflicts, &e.Errors); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendSyncHistory appends one entry and trims to the retention cap.
func (s *Store) AppendSyncHistory(ctx context.Context, e SyncHistoryEntry) error {
	if e.ID == "" {
		e.ID = artifact.NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sync_history (id, ts, files_written, conflicts, errors, success)
VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.Unix(), e.FilesWritten, e.Conflicts, e.Errors, boolToInt(e.Success))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
DELETE FROM sync_history WHERE id NOT IN (
	SELECT id FROM sync_history ORDER BY ts DESC, id DESC LIMIT ?)`, historyRetention)
	return err
}

// SyncHistory returns up to limit entries newest first. limit <= 0 means the
// full retained ledger.
func (s *Store) SyncHistory(ctx context.Context, limit int) ([]SyncHistoryEntry, error) {
	if limit <= 0 || limit > historyRetention {
		limit = historyRetention
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts, files_written, conflicts, errors, success
FROM sync_history ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncHistoryEntry
	for rows.Next() {
		var (
			e       SyncHistoryEntry
			ts      int64
			success int
		)
		if err := rows.Scan(&e.ID, &ts, &e.FilesWritten, &e.Conflicts, &e.Errors, &success); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		e.Success = success != 0
		out = append(out, e)
	}
	return out, rows.Err()
}
