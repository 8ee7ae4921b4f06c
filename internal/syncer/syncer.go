// Package syncer projects canonical artifacts into adapter config files.
// Every enabled (artifact, adapter, scope) triple the adapter's capabilities
// permit resolves to one target path; writes are atomic and drift-checked
// against the hash recorded at the last write, so a file edited by the user
// or another tool is never silently overwritten.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/registry"
	"github.com/tidewell/loom/internal/store"
)

// Action classifies one planned file operation.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionUnchanged Action = "unchanged"
	ActionRemove    Action = "remove"
	ActionConflict  Action = "conflict"
)

// PlanEntry is one file the engine intends to touch, with enough context to
// render a diff.
type PlanEntry struct {
	ArtifactID   string             `json:"artifactId"`
	ArtifactName string             `json:"artifactName"`
	AdapterID    registry.AdapterID `json:"adapterId"`
	Path         string             `json:"path"`
	Action       Action             `json:"action"`
	OldContent   string             `json:"oldContent,omitempty"`
	NewContent   string             `json:"newContent,omitempty"`
}

// Conflict records drift: the file on disk no longer matches what the
// engine last wrote there.
type Conflict struct {
	ArtifactID  string             `json:"artifactId"`
	AdapterID   registry.AdapterID `json:"adapterId"`
	Path        string             `json:"path"`
	LocalHash   string             `json:"localHash"`
	CurrentHash string             `json:"currentHash"`
}

// Result is the outcome of one sync or preview run. Success is true only
// when both Errors and Conflicts are empty.
type Result struct {
	Success      bool        `json:"success"`
	FilesWritten []string    `json:"filesWritten"`
	Pruned       []string    `json:"pruned"`
	Errors       []string    `json:"errors"`
	Conflicts    []Conflict  `json:"conflicts"`
	Plan         []PlanEntry `json:"plan"`
}

// Options tunes one run.
type Options struct {
	// DryRun computes the plan and conflicts without touching disk or
	// recorded hashes.
	DryRun bool
	// Prune removes tracked files whose artifact, adapter or target no
	// longer wants them.
	Prune bool
}

const (
	filePerm = os.FileMode(0o644)
	dirPerm  = os.FileMode(0o755)

	defaultParallel = 4
)

// Engine performs sync runs.
type Engine struct {
	Store    *store.Store
	Registry *registry.Registry
	System   System
	// Parallel bounds concurrent file writes. Planned paths are distinct
	// so writes never race each other.
	Parallel int
	Log      *slog.Logger
}

// New returns an Engine backed by the real filesystem.
func New(st *store.Store, reg *registry.Registry) *Engine {
	return &Engine{
		Store:    st,
		Registry: reg,
		System:   RealSystem{},
		Parallel: defaultParallel,
		Log:      slog.Default(),
	}
}

// SyncAll syncs every enabled artifact in the store.
func (e *Engine) SyncAll(ctx context.Context, opts Options) (*Result, error) {
	artifacts, err := e.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	return e.Sync(ctx, artifacts, opts)
}

// Preview computes the plan for the given artifacts without writing.
func (e *Engine) Preview(ctx context.Context, artifacts []artifact.Artifact, opts Options) (*Result, error) {
	opts.DryRun = true
	return e.Sync(ctx, artifacts, opts)
}

// Sync plans and executes the projection of the given artifacts. Disabled
// artifacts contribute no writes but still count toward prune: their
// previously tracked files are stale.
func (e *Engine) Sync(ctx context.Context, artifacts []artifact.Artifact, opts Options) (*Result, error) {
	if e.System == nil {
		return nil, errors.New(messages.SyncSystemRequired)
	}

	unlock := e.Store.Shared()
	defer unlock()

	result := &Result{}
	plan := e.buildPlan(ctx, artifacts, result)
	if opts.Prune {
		plan = e.appendStale(ctx, plan, result)
	}
	result.Plan = plan

	if !opts.DryRun {
		e.execute(ctx, plan, result)
		entry := store.SyncHistoryEntry{
			FilesWritten: len(result.FilesWritten),
			Conflicts:    len(result.Conflicts),
			Errors:       len(result.Errors),
			Success:      len(result.Errors) == 0 && len(result.Conflicts) == 0,
		}
		if err := e.Store.AppendSyncHistory(ctx, entry); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	} else {
		for _, p := range plan {
			switch p.Action {
			case ActionCreate, ActionUpdate:
				result.FilesWritten = append(result.FilesWritten, p.Path)
			case ActionRemove:
				result.Pruned = append(result.Pruned, p.Path)
			}
		}
	}

	result.Success = len(result.Errors) == 0 && len(result.Conflicts) == 0
	if e.Log != nil {
		e.Log.Info("sync run finished",
			"dryRun", opts.DryRun,
			"written", len(result.FilesWritten),
			"pruned", len(result.Pruned),
			"conflicts", len(result.Conflicts),
			"errors", len(result.Errors))
	}
	return result, nil
}

// buildPlan resolves every triple to a path and classifies the pending
// operation. Conflicts are detected here so a dry run reports them too.
func (e *Engine) buildPlan(ctx context.Context, artifacts []artifact.Artifact, result *Result) []PlanEntry {
	var plan []PlanEntry
	for i := range artifacts {
		a := &artifacts[i]
		if !a.Enabled {
			continue
		}
		for _, raw := range a.EnabledAdapters {
			id := registry.AdapterID(raw)
			entry, ok := e.Registry.Lookup(id)
			if !ok {
				result.Errors = append(result.Errors, fmt.Sprintf(messages.SyncErrorEntryFmt, raw, fmt.Errorf("unknown adapter")))
				continue
			}
			if !entry.Supports(a.Type, a.Scope) {
				continue
			}
			for _, path := range e.resolvePaths(a, id, result) {
				plan = append(plan, e.classify(ctx, a, id, path, result)...)
			}
		}
	}
	return plan
}

func (e *Engine) resolvePaths(a *artifact.Artifact, id registry.AdapterID, result *Result) []string {
	if a.Scope == artifact.ScopeGlobal {
		path, err := e.Registry.ResolveGlobal(id, a.Type, a.Name)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf(messages.SyncErrorEntryFmt, id, err))
			return nil
		}
		return []string{path}
	}
	var out []string
	for _, root := range a.TargetPaths {
		path, err := e.Registry.ResolveLocal(id, a.Type, a.Name, root)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf(messages.SyncErrorEntryFmt, id, err))
			continue
		}
		out = append(out, path)
	}
	return out
}

func (e *Engine) classify(ctx context.Context, a *artifact.Artifact, id registry.AdapterID, path string, result *Result) []PlanEntry {
	newHash := artifact.ContentHash(a.Content)
	entry := PlanEntry{
		ArtifactID:   a.ID,
		ArtifactName: a.Name,
		AdapterID:    id,
		Path:         path,
		NewContent:   a.Content,
	}

	raw, err := e.System.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			result.Errors = append(result.Errors, fmt.Sprintf(messages.SyncErrorEntryFmt, id, fmt.Errorf(messages.SyncReadFileFailedFmt, path, err)))
			return nil
		}
		entry.Action = ActionCreate
		return []PlanEntry{entry}
	}
	entry.OldContent = string(raw)
	diskHash := artifact.ContentHash(string(raw))

	if diskHash == newHash {
		entry.Action = ActionUnchanged
		return []PlanEntry{entry}
	}

	lastHash, tracked, err := e.Store.SyncHash(ctx, a.ID, string(id), path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf(messages.SyncErrorEntryFmt, id, err))
		return nil
	}
	if tracked && diskHash != lastHash {
		// Someone else changed the file since the last write.
		result.Conflicts = append(result.Conflicts, Conflict{
			ArtifactID:  a.ID,
			AdapterID:   id,
			Path:        path,
			LocalHash:   newHash,
			CurrentHash: diskHash,
		})
		entry.Action = ActionConflict
		return []PlanEntry{entry}
	}

	entry.Action = ActionUpdate
	return []PlanEntry{entry}
}

// appendStale adds remove entries for every tracked path no longer wanted
// by any planned triple.
func (e *Engine) appendStale(ctx context.Context, plan []PlanEntry, result *Result) []PlanEntry {
	rows, err := e.Store.AllSyncedPaths(ctx)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return plan
	}
	wanted := make(map[string]struct{}, len(plan))
	for _, p := range plan {
		wanted[p.ArtifactID+"|"+string(p.AdapterID)+"|"+p.Path] = struct{}{}
	}
	for _, row := range rows {
		if _, ok := wanted[row.ArtifactID+"|"+row.AdapterID+"|"+row.Path]; ok {
			continue
		}
		entry := PlanEntry{
			ArtifactID: row.ArtifactID,
			AdapterID:  registry.AdapterID(row.AdapterID),
			Path:       row.Path,
			Action:     ActionRemove,
		}
		if raw, err := e.System.ReadFile(row.Path); err == nil {
			entry.OldContent = string(raw)
		}
		plan = append(plan, entry)
	}
	return plan
}

// execute applies the plan. Writes touch disjoint paths and run with
// bounded parallelism; the result is guarded by a mutex.
func (e *Engine) execute(ctx context.Context, plan []PlanEntry, result *Result) {
	parallel := e.Parallel
	if parallel < 1 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, p := range plan {
		if p.Action == ActionUnchanged || p.Action == ActionConflict {
			if p.Action == ActionUnchanged {
				// Adopt an already-matching file as the baseline.
				if err := e.Store.SetSyncHash(ctx, p.ArtifactID, string(p.AdapterID), p.Path, artifact.ContentHash(p.NewContent)); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf(messages.SyncErrorEntryFmt, p.AdapterID, err))
				}
			}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(p PlanEntry) {
			defer wg.Done()
			defer func() { <-sem }()
			written, pruned, err := e.apply(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Errors = append(result.Errors, fmt.Sprintf(messages.SyncErrorEntryFmt, p.AdapterID, err))
			case written:
				result.FilesWritten = append(result.FilesWritten, p.Path)
			case pruned:
				result.Pruned = append(result.Pruned, p.Path)
			}
		}(p)
	}
	wg.Wait()
}

func (e *Engine) apply(ctx context.Context, p PlanEntry) (written, pruned bool, err error) {
	switch p.Action {
	case ActionRemove:
		if err := e.System.Remove(p.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, false, fmt.Errorf(messages.SyncRemoveFailedFmt, p.Path, err)
		}
		if err := e.Store.DeleteSyncHash(ctx, p.ArtifactID, string(p.AdapterID), p.Path); err != nil {
			return false, false, err
		}
		return false, true, nil
	case ActionCreate, ActionUpdate:
		dir := filepath.Dir(p.Path)
		if err := e.System.MkdirAll(dir, dirPerm); err != nil {
			return false, false, fmt.Errorf(messages.SyncCreateDirFailedFmt, dir, err)
		}
		if err := e.System.WriteFileAtomic(p.Path, []byte(p.NewContent), filePerm); err != nil {
			return false, false, fmt.Errorf(messages.SyncWriteFileFailedFmt, p.Path, err)
		}
		if err := e.Store.SetSyncHash(ctx, p.ArtifactID, string(p.AdapterID), p.Path, artifact.ContentHash(p.NewContent)); err != nil {
			return false, false, err
		}
		return true, false, nil
	}
	return false, false, nil
}

// ResolveConflict settles one drift conflict. "overwrite" forces the
// engine's content onto disk; "keep-remote" adopts the on-disk content as
// the new baseline without touching the file.
func (e *Engine) ResolveConflict(ctx context.Context, c Conflict, resolution string) error {
	unlock := e.Store.Shared()
	defer unlock()

	switch resolution {
	case "overwrite":
		a, err := e.Store.Get(ctx, c.ArtifactID)
		if err != nil {
			return fmt.Errorf(messages.SyncConflictGoneFmt, c.Path)
		}
		if err := e.System.MkdirAll(filepath.Dir(c.Path), dirPerm); err != nil {
			return fmt.Errorf(messages.SyncCreateDirFailedFmt, filepath.Dir(c.Path), err)
		}
		if err := e.System.WriteFileAtomic(c.Path, []byte(a.Content), filePerm); err != nil {
			return fmt.Errorf(messages.SyncWriteFileFailedFmt, c.Path, err)
		}
		return e.Store.SetSyncHash(ctx, c.ArtifactID, string(c.AdapterID), c.Path, artifact.ContentHash(a.Content))
	case "keep-remote":
		raw, err := e.System.ReadFile(c.Path)
		if err != nil {
			return fmt.Errorf(messages.SyncReadFileFailedFmt, c.Path, err)
		}
		return e.Store.SetSyncHash(ctx, c.ArtifactID, string(c.AdapterID), c.Path, artifact.ContentHash(string(raw)))
	default:
		return fmt.Errorf(messages.SyncUnknownResolutionFmt, resolution)
	}
}
