// Package importer commits scanned candidates to the canonical store. Each
// run is candidate-local: a failure or conflict on one candidate never rolls
// back or blocks the rest, and every input candidate ends up in exactly one
// of the result's buckets.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/scan"
	"github.com/tidewell/loom/internal/store"
)

// ConflictMode selects how a name collision with an existing artifact is
// resolved. The empty mode resolves nothing: collisions land in the
// result's Conflicts bucket for an explicit retry.
type ConflictMode string

const (
	ModeSkip    ConflictMode = "skip"
	ModeRename  ConflictMode = "rename"
	ModeReplace ConflictMode = "replace"
)

// Options configures one import run.
type Options struct {
	// Selected restricts the run to these candidate IDs. Nil means all.
	// Unselected candidates are dropped silently.
	Selected     []string
	ConflictMode ConflictMode
	// DefaultScope overrides every candidate's scope when set.
	DefaultScope *artifact.Scope
	// DefaultAdapters overrides every candidate's adapter set when set.
	DefaultAdapters []string
	// SourceType labels the run in import history.
	SourceType string
	// ScanErrors carries the scanner's error strings into the run so
	// they count toward the result and the history entry.
	ScanErrors []string
}

// Skipped is a candidate left out on purpose, with the reason.
type Skipped struct {
	Candidate scan.Candidate `json:"candidate"`
	Reason    string         `json:"reason"`
}

// Conflict is a candidate whose name collision the run's mode could not
// resolve. The canonical store is unchanged for it.
type Conflict struct {
	Candidate  scan.Candidate `json:"candidate"`
	ExistingID string         `json:"existingId"`
	Reason     string         `json:"reason"`
}

// Result reconciles every selected candidate into one of four buckets.
type Result struct {
	Imported  []artifact.Artifact `json:"imported"`
	Skipped   []Skipped           `json:"skipped"`
	Conflicts []Conflict          `json:"conflicts"`
	Errors    []string            `json:"errors"`
}

// Executor runs imports against a store.
type Executor struct {
	Store *store.Store
	// AfterImport, when set, runs after any run that imported at least
	// one artifact. Returned messages are folded into the result's
	// Errors. Used to trigger a post-import sync.
	AfterImport func(ctx context.Context) []string

	Log *slog.Logger
}

// New returns an Executor.
func New(st *store.Store) *Executor {
	return &Executor{Store: st, Log: slog.Default()}
}

// Execute imports the selected candidates in order. Rename collision
// avoidance depends on names created earlier in the same batch, so the
// input order is the processing order.
func (e *Executor) Execute(ctx context.Context, candidates []scan.Candidate, opts Options) (*Result, error) {
	unlock := e.Store.Shared()
	defer unlock()

	result := &Result{}
	result.Errors = append(result.Errors, opts.ScanErrors...)

	existing, err := e.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*artifact.Artifact, len(existing))
	byHash := make(map[string]*artifact.Artifact, len(existing))
	for i := range existing {
		byName[strings.ToLower(existing[i].Name)] = &existing[i]
		byHash[artifact.ContentHash(existing[i].Content)] = &existing[i]
	}

	sourceMap, err := e.Store.SourceMap(ctx)
	if err != nil {
		return nil, err
	}
	sourceMapDirty := false

	var selected map[string]struct{}
	if opts.Selected != nil {
		selected = make(map[string]struct{}, len(opts.Selected))
		for _, id := range opts.Selected {
			selected[id] = struct{}{}
		}
	}

	for _, c := range candidates {
		if selected != nil {
			if _, ok := selected[c.ID]; !ok {
				continue
			}
		}
		if strings.TrimSpace(c.Content) == "" {
			result.Skipped = append(result.Skipped, Skipped{Candidate: c, Reason: messages.ImportReasonEmptyContent})
			continue
		}

		// A candidate from a source we imported before updates the
		// mapped artifact in place instead of creating a sibling.
		if key := sourceKey(c); key != "" {
			if id, ok := sourceMap[key]; ok {
				updated, err := e.updateInPlace(ctx, id, "", c, opts)
				if err == nil && updated != nil {
					result.Imported = append(result.Imported, *updated)
					dropHashFor(byHash, updated.ID)
					byName[strings.ToLower(updated.Name)] = updated
					byHash[artifact.ContentHash(updated.Content)] = updated
					continue
				}
				if err != nil && !errors.Is(err, store.ErrNotFound) {
					result.Errors = append(result.Errors, fmt.Sprintf(messages.ImportCreateFailedFmt, c.ProposedName, err))
					continue
				}
				// Mapped artifact is gone; forget the mapping and
				// fall through to a fresh import.
				delete(sourceMap, key)
				sourceMapDirty = true
			}
		}

		hash := artifact.ContentHash(c.Content)
		collision := byName[strings.ToLower(c.ProposedName)]

		if dup, ok := byHash[hash]; ok {
			if collision != nil && collision.ID == dup.ID {
				result.Skipped = append(result.Skipped, Skipped{
					Candidate: c,
					Reason:    fmt.Sprintf(messages.ImportReasonDuplicateFmt, dup.Name),
				})
			} else {
				result.Skipped = append(result.Skipped, Skipped{
					Candidate: c,
					Reason:    fmt.Sprintf(messages.ImportReasonDuplicateContentFmt, dup.Name),
				})
			}
			continue
		}

		name := c.ProposedName
		var replaceID string
		if collision != nil {
			switch opts.ConflictMode {
			case ModeSkip:
				result.Skipped = append(result.Skipped, Skipped{Candidate: c, Reason: messages.ImportReasonNameExists})
				continue
			case ModeRename:
				name = artifact.NextUniqueName(name, knownNames(byName))
			case ModeReplace:
				replaceID = collision.ID
			default:
				result.Conflicts = append(result.Conflicts, Conflict{
					Candidate:  c,
					ExistingID: collision.ID,
					Reason:     messages.ImportReasonNameCollision,
				})
				continue
			}
		}

		var created *artifact.Artifact
		if replaceID != "" {
			created, err = e.updateInPlace(ctx, replaceID, name, c, opts)
		} else {
			created, err = e.create(ctx, name, c, opts)
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf(messages.ImportCreateFailedFmt, name, err))
			continue
		}

		result.Imported = append(result.Imported, *created)
		if replaceID != "" {
			// The replaced content's hash must not shadow later
			// candidates that happen to carry it.
			dropHashFor(byHash, created.ID)
		}
		byName[strings.ToLower(created.Name)] = created
		byHash[artifact.ContentHash(created.Content)] = created
		if key := sourceKey(c); key != "" {
			sourceMap[key] = created.ID
			sourceMapDirty = true
		}
	}

	if sourceMapDirty {
		if err := e.Store.SaveSourceMap(ctx, sourceMap); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	entry := store.ImportHistoryEntry{
		SourceType: opts.SourceType,
		Imported:   len(result.Imported),
		Skipped:    len(result.Skipped),
		Conflicts:  len(result.Conflicts),
		Errors:     len(result.Errors),
	}
	if err := e.Store.AppendImportHistory(ctx, entry); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	if e.AfterImport != nil && len(result.Imported) > 0 {
		for _, msg := range e.AfterImport(ctx) {
			result.Errors = append(result.Errors, fmt.Sprintf(messages.ImportSyncErrorFmt, opts.SourceType, msg))
		}
	}

	if e.Log != nil {
		e.Log.Info("import run finished",
			"source", opts.SourceType,
			"imported", len(result.Imported),
			"skipped", len(result.Skipped),
			"conflicts", len(result.Conflicts),
			"errors", len(result.Errors))
	}
	return result, nil
}

// RetryConflicts re-runs a previous result's conflicts with rename mode
// forced. Rename always produces a name absent from the canonical set, so
// the retry terminates with an empty Conflicts bucket.
func (e *Executor) RetryConflicts(ctx context.Context, prev *Result, opts Options) (*Result, error) {
	candidates := make([]scan.Candidate, 0, len(prev.Conflicts))
	for _, c := range prev.Conflicts {
		candidates = append(candidates, c.Candidate)
	}
	opts.Selected = nil
	opts.ConflictMode = ModeRename
	opts.ScanErrors = nil
	return e.Execute(ctx, candidates, opts)
}

func (e *Executor) create(ctx context.Context, name string, c scan.Candidate, opts Options) (*artifact.Artifact, error) {
	scope := c.Scope
	if opts.DefaultScope != nil {
		scope = *opts.DefaultScope
	}
	adapters := c.EnabledAdapters
	if opts.DefaultAdapters != nil {
		adapters = opts.DefaultAdapters
	}
	return e.Store.Create(ctx, store.CreateInput{
		Name:            name,
		Description:     c.SourceLabel,
		Content:         c.Content,
		Type:            c.Type,
		Scope:           scope,
		TargetPaths:     c.TargetPaths,
		EnabledAdapters: adapters,
		Enabled:         true,
	})
}

// updateInPlace rewrites an existing artifact from a candidate. A non-empty
// name is adopted; the empty name keeps the stored one.
func (e *Executor) updateInPlace(ctx context.Context, id, name string, c scan.Candidate, opts Options) (*artifact.Artifact, error) {
	in := store.UpdateInput{Content: &c.Content}
	if name != "" {
		in.Name = &name
	}
	if opts.DefaultScope != nil {
		in.Scope = opts.DefaultScope
	}
	if opts.DefaultAdapters != nil {
		in.EnabledAdapters = opts.DefaultAdapters
	}
	return e.Store.Update(ctx, id, in)
}

// sourceKey derives the persistent identity of a candidate's origin. Only
// path-backed sources have one; clipboard text is never re-import-tracked.
func sourceKey(c scan.Candidate) string {
	if c.SourcePath == "" || c.SourceType == scan.SourceClipboard {
		return ""
	}
	return string(c.SourceType) + "|" + string(c.SourceTool) + "|" + c.SourcePath
}

// dropHashFor removes whichever content-hash key maps to the artifact id.
func dropHashFor(byHash map[string]*artifact.Artifact, id string) {
	for h, a := range byHash {
		if a.ID == id {
			delete(byHash, h)
			return
		}
	}
}

func knownNames(byName map[string]*artifact.Artifact) []string {
	out := make([]string, 0, len(byName))
	for n := range byName {
		out = append(out, n)
	}
	return out
}
