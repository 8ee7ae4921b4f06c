// Package migrate moves the canonical store between storage
// representations. A run snapshots the database first; nothing mutates
// until the snapshot and its checksum are safely on disk, and the snapshot
// is what rollback restores.
package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidewell/loom/internal/fsutil"
	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/store"
)

// Status is the migration state machine. RolledBack is reachable only from
// Completed or Failed while the backup snapshot still exists.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
)

const (
	settingStatus = "migration_status"
	settingBackup = "migration_backup"

	checksumExt = ".sha256"
)

// Progress is a live snapshot of a migration run.
type Progress struct {
	Status     Status   `json:"status"`
	Total      int      `json:"total"`
	Migrated   int      `json:"migrated"`
	Current    string   `json:"current"`
	BackupPath string   `json:"backupPath,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// Report is the outcome of a verification pass. It never mutates either
// representation.
type Report struct {
	SourceCount int      `json:"sourceCount"`
	DestCount   int      `json:"destCount"`
	Missing     []string `json:"missing"`
	Extra       []string `json:"extra"`
	Mismatched  []string `json:"mismatched"`
	LoadErrors  int      `json:"loadErrors"`
}

// Clean reports whether both representations agree exactly.
func (r *Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0 && len(r.Mismatched) == 0 && r.LoadErrors == 0
}

// Manager drives migrations against one store.
type Manager struct {
	Store *store.Store
	Log   *slog.Logger

	mu       sync.Mutex
	progress Progress
}

// New returns a Manager.
func New(st *store.Store) *Manager {
	return &Manager{Store: st, Log: slog.Default(), progress: Progress{Status: StatusNotStarted}}
}

// Progress returns a snapshot of the current run for polling.
func (m *Manager) Progress() Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.progress
	p.Errors = append([]string(nil), m.progress.Errors...)
	return p
}

func (m *Manager) setProgress(update func(*Progress)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	update(&m.progress)
}

// Migrate converts database storage to file storage. The database snapshot
// plus checksum is written before anything mutates; a snapshot failure
// aborts with the store untouched. Per-artifact failures are recorded and
// skipped, and the run finishes Failed if any occurred.
func (m *Manager) Migrate(ctx context.Context) (Progress, error) {
	m.mu.Lock()
	if m.progress.Status == StatusInProgress {
		m.mu.Unlock()
		return m.Progress(), errors.New(messages.MigrateAlreadyRunning)
	}
	m.progress = Progress{Status: StatusNotStarted}
	m.mu.Unlock()

	unlock := m.Store.Exclusive()
	defer unlock()

	artifacts, err := m.Store.List(ctx)
	if err != nil {
		return m.Progress(), err
	}

	backupPath, err := m.snapshot(ctx)
	if err != nil {
		return m.Progress(), fmt.Errorf(messages.MigrateBackupFailedFmt, err)
	}

	m.setProgress(func(p *Progress) {
		p.Status = StatusInProgress
		p.Total = len(artifacts)
		p.BackupPath = backupPath
	})

	dir := m.Store.ArtifactsDir()
	for i := range artifacts {
		a := &artifacts[i]
		m.setProgress(func(p *Progress) { p.Current = a.Name })
		if err := store.SaveArtifactFile(dir, a); err != nil {
			m.setProgress(func(p *Progress) {
				p.Errors = append(p.Errors, fmt.Sprintf(messages.MigrateItemFailedFmt, a.Name, err))
			})
			continue
		}
		m.setProgress(func(p *Progress) { p.Migrated++ })
	}

	final := StatusCompleted
	if len(m.Progress().Errors) > 0 {
		final = StatusFailed
	}
	if final == StatusCompleted {
		if err := m.Store.SetStorageMode(ctx, store.ModeFiles); err != nil {
			m.setProgress(func(p *Progress) { p.Errors = append(p.Errors, err.Error()) })
			final = StatusFailed
		}
	}
	m.setProgress(func(p *Progress) {
		p.Status = final
		p.Current = ""
	})
	m.persistState(ctx, final, backupPath)

	if m.Log != nil {
		m.Log.Info("migration finished",
			"status", string(final),
			"migrated", m.Progress().Migrated,
			"total", len(artifacts),
			"backup", backupPath)
	}
	return m.Progress(), nil
}

// Verify compares the database against the file representation without
// mutating either. IDs present on one side only land in Missing or Extra;
// shared IDs whose identity hashes differ land in Mismatched.
func (m *Manager) Verify(ctx context.Context) (*Report, error) {
	unlock := m.Store.Shared()
	defer unlock()

	source, err := m.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	dest, loadErrs := store.LoadArtifactFiles(m.Store.ArtifactsDir())

	report := &Report{
		SourceCount: len(source),
		DestCount:   len(dest),
		LoadErrors:  len(loadErrs),
	}

	destByID := make(map[string]int, len(dest))
	for i := range dest {
		destByID[dest[i].ID] = i
	}
	seen := make(map[string]struct{}, len(source))
	for i := range source {
		seen[source[i].ID] = struct{}{}
		j, ok := destByID[source[i].ID]
		if !ok {
			report.Missing = append(report.Missing, source[i].ID)
			continue
		}
		if source[i].IdentityHash() != dest[j].IdentityHash() {
			report.Mismatched = append(report.Mismatched, source[i].ID)
		}
	}
	for i := range dest {
		if _, ok := seen[dest[i].ID]; !ok {
			report.Extra = append(report.Extra, dest[i].ID)
		}
	}
	return report, nil
}

// Rollback restores the database from the snapshot a prior Migrate
// produced. The snapshot's checksum must verify; anything less is a hard
// error and the live store is untouched.
func (m *Manager) Rollback(ctx context.Context, backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf(messages.MigrateBackupMissingFmt, backupPath)
	}
	sum, err := os.ReadFile(backupPath + checksumExt)
	if err != nil {
		return fmt.Errorf(messages.MigrateChecksumMissingFmt, backupPath)
	}
	raw, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf(messages.MigrateBackupMissingFmt, backupPath)
	}
	if hashBytes(raw) != string(sum) {
		return errors.New(messages.MigrateChecksumMismatch)
	}

	status, recorded := m.persistedState(ctx)
	if status != StatusCompleted && status != StatusFailed {
		return errors.New(messages.MigrateRollbackUnavailable)
	}
	if recorded != "" && recorded != backupPath {
		return errors.New(messages.MigrateRollbackUnavailable)
	}

	unlock := m.Store.Exclusive()
	defer unlock()

	if err := m.Store.RestoreFrom(backupPath); err != nil {
		return fmt.Errorf(messages.MigrateRestoreFailedFmt, err)
	}
	// The snapshot predates the migration, so it already records database
	// mode and a clean migration state. The file mirror is now stale.
	_ = os.RemoveAll(m.Store.ArtifactsDir())

	m.setProgress(func(p *Progress) { p.Status = StatusRolledBack })
	m.persistState(ctx, StatusRolledBack, backupPath)
	return nil
}

// snapshot checkpoints the WAL and copies the database file plus a sha256
// checksum sidecar into the backups directory.
func (m *Manager) snapshot(ctx context.Context) (string, error) {
	if err := m.Store.Checkpoint(ctx); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(m.Store.DBPath())
	if err != nil {
		return "", err
	}
	backupDir := filepath.Join(m.Store.BaseDir(), "backups")
	if err := os.MkdirAll(backupDir, 0o700); err != nil {
		return "", err
	}
	backupPath := filepath.Join(backupDir, fmt.Sprintf("loom-%s.db", time.Now().UTC().Format("20060102T150405")))
	if err := fsutil.WriteFileAtomic(backupPath, raw, 0o600); err != nil {
		return "", err
	}
	if err := fsutil.WriteFileAtomic(backupPath+checksumExt, []byte(hashBytes(raw)), 0o600); err != nil {
		return "", fmt.Errorf(messages.MigrateChecksumFailedFmt, err)
	}
	return backupPath, nil
}

func (m *Manager) persistState(ctx context.Context, status Status, backupPath string) {
	_ = m.Store.SetSetting(ctx, settingStatus, string(status))
	_ = m.Store.SetSetting(ctx, settingBackup, backupPath)
}

func (m *Manager) persistedState(ctx context.Context) (Status, string) {
	status := m.progress.Status
	if raw, ok, err := m.Store.GetSetting(ctx, settingStatus); err == nil && ok {
		status = Status(raw)
	}
	backup := ""
	if raw, ok, err := m.Store.GetSetting(ctx, settingBackup); err == nil && ok {
		backup = raw
	}
	return status, backup
}

func hashBytes(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
