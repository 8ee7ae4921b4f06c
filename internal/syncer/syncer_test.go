package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/registry"
	"github.com/tidewell/loom/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func localRule(t *testing.T, st *store.Store, name, content, root string, adapters ...string) *artifact.Artifact {
	t.Helper()
	a, err := st.Create(context.Background(), store.CreateInput{
		Name:            name,
		Content:         content,
		Type:            artifact.TypeRule,
		Scope:           artifact.ScopeLocal,
		TargetPaths:     []string{root},
		EnabledAdapters: adapters,
		Enabled:         true,
	})
	require.NoError(t, err)
	return a
}

func TestSyncWritesLocalRule(t *testing.T) {
	st := openTestStore(t)
	root := t.TempDir()
	localRule(t, st, "style", "team style guide\n", root, "gemini")

	e := New(st, registry.Default())
	result, err := e.SyncAll(context.Background(), Options{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, result.FilesWritten, 1)
	assert.Empty(t, result.Conflicts)

	target := filepath.Join(root, ".gemini", "GEMINI.md")
	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "team style guide\n", string(raw))
}

func TestSyncWritesToEveryEnabledAdapter(t *testing.T) {
	st := openTestStore(t)
	root := t.TempDir()
	localRule(t, st, "style", "content\n", root, "gemini", "claude-code")

	e := New(st, registry.Default())
	result, err := e.SyncAll(context.Background(), Options{})
	require.NoError(t, err)
	assert.Len(t, result.FilesWritten, 2)

	assert.FileExists(t, filepath.Join(root, ".gemini", "GEMINI.md"))
	assert.FileExists(t, filepath.Join(root, ".claude", "CLAUDE.md"))
}

func TestSyncSkipsDisabledArtifacts(t *testing.T) {
	st := openTestStore(t)
	root := t.TempDir()
	a := localRule(t, st, "style", "content\n", root, "gemini")
	_, err := st.Toggle(context.Background(), a.ID)
	require.NoError(t, err)

	e := New(st, registry.Default())
	result, err := e.SyncAll(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, result.FilesWritten)
}

func TestSyncCapabilityGating(t *testing.T) {
	st := openTestStore(t)
	root := t.TempDir()
	// kilo supports rules only; a skill targeting it produces no write
	// and no error.
	_, err := st.Create(context.Background(), store.CreateInput{
		Name:            "deploy",
		Content:         "skill body\n",
		Type:            artifact.TypeSkill,
		Scope:           artifact.ScopeLocal,
		TargetPaths:     []string{root},
		EnabledAdapters: []string{"kilo"},
		Enabled:         true,
	})
	require.NoError(t, err)

	e := New(st, registry.Default())
	result, err := e.SyncAll(context.Background(), Options{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.FilesWritten)
	assert.Empty(t, result.Errors)
}

func TestSyncDriftDetection(t *testing.T) {
	st := openTestStore(t)
	root := t.TempDir()
	localRule(t, st, "style", "canonical content\n", root, "gemini")

	e := New(st, registry.Default())
	ctx := context.Background()

	first, err := e.SyncAll(ctx, Options{})
	require.NoError(t, err)
	require.Len(t, first.FilesWritten, 1)
	target := first.FilesWritten[0]

	// The user edits the projected file behind the engine's back.
	require.NoError(t, os.WriteFile(target, []byte("hand-edited content\n"), 0o644))

	second, err := e.SyncAll(ctx, Options{})
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Empty(t, second.FilesWritten)
	require.Len(t, second.Conflicts, 1)
	c := second.Conflicts[0]
	assert.Equal(t, target, c.Path)
	assert.Equal(t, artifact.ContentHash("canonical content\n"), c.LocalHash)
	assert.Equal(t, artifact.ContentHash("hand-edited content\n"), c.CurrentHash)

	// The drifted file was left untouched.
	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hand-edited content\n", string(raw))
}

func TestResolveConflictOverwrite(t *testing.T) {
	st := openTestStore(t)
	root := t.TempDir()
	localRule(t, st, "style", "canonical content\n", root, "gemini")

	e := New(st, registry.Default())
	ctx := context.Background()
	first, err := e.SyncAll(ctx, Options{})
	require.NoError(t, err)
	target := first.FilesWritten[0]
	require.NoError(t, os.WriteFile(target, []byte("drift\n"), 0o644))

	second, err := e.SyncAll(ctx, Options{})
	require.NoError(t, err)
	require.Len(t, second.Conflicts, 1)

	require.NoError(t, e.ResolveConflict(ctx, second.Conflicts[0], "overwrite"))
	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "canonical content\n", string(raw))

	third, err := e.SyncAll(ctx, Options{})
	require.NoError(t, err)
	assert.True(t, third.Success)
	assert.Empty(t, third.Conflicts)
}

func TestResolveConflictKeepRemote(t *testing.T) {
	st := openTestStore(t)
	root := t.TempDir()
	localRule(t, st, "style", "canonical content\n", root, "gemini")

	e := New(st, registry.Default())
	ctx := context.Background()
	first, err := e.SyncAll(ctx, Options{})
	require.NoError(t, err)
	target := first.FilesWritten[0]
	require.NoError(t, os.WriteFile(target, []byte("drift\n"), 0o644))

	second, err := e.SyncAll(ctx, Options{})
	require.NoError(t, err)
	require.Len(t, second.Conflicts, 1)

	require.NoError(t, e.ResolveConflict(ctx, second.Conflicts[0], "keep-remote"))

	// Drift is now the baseline; the canonical content still differs, so
	// the next run writes it on top of the accepted baseline.
	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "drift\n", string(raw))

	third, err := e.SyncAll(ctx, Options{})
	require.NoError(t, err)
	assert.Empty(t, third.Conflicts)
	assert.Len(t, third.FilesWritten, 1)
}

func TestResolveConflictUnknownResolution(t *testing.T) {
	st := openTestStore(t)
	e := New(st, registry.Default())
	err := e.ResolveConflict(context.Background(), Conflict{}, "merge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown conflict resolution")
}

func TestPreviewWritesNothing(t *testing.T) {
	st := openTestStore(t)
	root := t.TempDir()
	localRule(t, st, "style", "content\n", root, "gemini")

	e := New(st, registry.Default())
	all, err := st.List(context.Background())
	require.NoError(t, err)

	result, err := e.Preview(context.Background(), all, Options{})
	require.NoError(t, err)
	require.Len(t, result.FilesWritten, 1)
	require.Len(t, result.Plan, 1)
	assert.Equal(t, ActionCreate, result.Plan[0].Action)
	assert.NoFileExists(t, filepath.Join(root, ".gemini", "GEMINI.md"))

	history, err := st.SyncHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSyncPrunesStalePaths(t *testing.T) {
	st := openTestStore(t)
	root := t.TempDir()
	a := localRule(t, st, "style", "content\n", root, "gemini")

	e := New(st, registry.Default())
	ctx := context.Background()
	first, err := e.SyncAll(ctx, Options{})
	require.NoError(t, err)
	target := first.FilesWritten[0]

	_, err = st.Toggle(ctx, a.ID)
	require.NoError(t, err)

	second, err := e.SyncAll(ctx, Options{Prune: true})
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, []string{target}, second.Pruned)
	assert.NoFileExists(t, target)

	rows, err := st.AllSyncedPaths(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSyncUnchangedFileNotRewritten(t *testing.T) {
	st := openTestStore(t)
	root := t.TempDir()
	localRule(t, st, "style", "content\n", root, "gemini")

	e := New(st, registry.Default())
	ctx := context.Background()
	_, err := e.SyncAll(ctx, Options{})
	require.NoError(t, err)

	second, err := e.SyncAll(ctx, Options{})
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Empty(t, second.FilesWritten)
	require.Len(t, second.Plan, 1)
	assert.Equal(t, ActionUnchanged, second.Plan[0].Action)
}

// failingSystem rejects writes under a given directory.
type failingSystem struct {
	RealSystem
	denyDir string
}

func (f failingSystem) WriteFileAtomic(filename string, data []byte, perm os.FileMode) error {
	if f.denyDir != "" && strings.HasPrefix(filename, f.denyDir) {
		return errors.New("permission denied")
	}
	return f.RealSystem.WriteFileAtomic(filename, data, perm)
}

func TestSyncPerFileErrorIsolation(t *testing.T) {
	st := openTestStore(t)
	goodRoot := t.TempDir()
	badRoot := t.TempDir()
	localRule(t, st, "good", "content\n", goodRoot, "gemini")
	localRule(t, st, "bad", "content two\n", badRoot, "gemini")

	e := New(st, registry.Default())
	e.System = failingSystem{denyDir: badRoot}

	result, err := e.SyncAll(context.Background(), Options{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, result.FilesWritten, 1)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "gemini")

	history, err := st.SyncHistory(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
}
