package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func createRule(t *testing.T, st *store.Store, name, content string) *artifact.Artifact {
	t.Helper()
	a, err := st.Create(context.Background(), store.CreateInput{
		Name:            name,
		Content:         content,
		Type:            artifact.TypeRule,
		Scope:           artifact.ScopeGlobal,
		EnabledAdapters: []string{"gemini"},
		Enabled:         true,
	})
	require.NoError(t, err)
	return a
}

func identityHashes(t *testing.T, st *store.Store) map[string]string {
	t.Helper()
	all, err := st.List(context.Background())
	require.NoError(t, err)
	out := make(map[string]string, len(all))
	for i := range all {
		out[all[i].ID] = all[i].IdentityHash()
	}
	return out
}

func TestMigrateWritesFilesAndSwitchesMode(t *testing.T) {
	st := openTestStore(t)
	createRule(t, st, "one", "first content\n")
	createRule(t, st, "two", "second content")

	m := New(st)
	ctx := context.Background()
	progress, err := m.Migrate(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, progress.Status)
	assert.Equal(t, 2, progress.Total)
	assert.Equal(t, 2, progress.Migrated)
	assert.Empty(t, progress.Errors)
	assert.FileExists(t, progress.BackupPath)
	assert.FileExists(t, progress.BackupPath+checksumExt)

	assert.Equal(t, store.ModeFiles, st.StorageMode(ctx))

	loaded, errs := store.LoadArtifactFiles(st.ArtifactsDir())
	assert.Empty(t, errs)
	assert.Len(t, loaded, 2)
}

func TestMigratePerItemFailureIsBestEffort(t *testing.T) {
	st := openTestStore(t)
	good := createRule(t, st, "good", "content\n")
	bad := createRule(t, st, "bad", "content two\n")

	// A directory squatting on the bad artifact's file path makes that
	// one item fail while the rest migrate.
	require.NoError(t, os.MkdirAll(filepath.Join(st.ArtifactsDir(), bad.ID+".md"), 0o755))

	m := New(st)
	progress, err := m.Migrate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, progress.Status)
	assert.Equal(t, 1, progress.Migrated)
	require.Len(t, progress.Errors, 1)
	assert.Contains(t, progress.Errors[0], "bad")
	assert.FileExists(t, filepath.Join(st.ArtifactsDir(), good.ID+".md"))
}

func TestVerifyCleanAfterMigration(t *testing.T) {
	st := openTestStore(t)
	createRule(t, st, "one", "first content\n")
	createRule(t, st, "two", "second content")

	m := New(st)
	ctx := context.Background()
	_, err := m.Migrate(ctx)
	require.NoError(t, err)

	report, err := m.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.SourceCount)
	assert.Equal(t, 2, report.DestCount)
}

func TestVerifyDetectsMismatchAndExtra(t *testing.T) {
	st := openTestStore(t)
	a := createRule(t, st, "one", "first content\n")

	m := New(st)
	ctx := context.Background()
	_, err := m.Migrate(ctx)
	require.NoError(t, err)

	// Tamper with the migrated file's content.
	tampered := *a
	tampered.Content = "tampered"
	require.NoError(t, store.SaveArtifactFile(st.ArtifactsDir(), &tampered))

	// Add a file the database knows nothing about.
	orphan := artifact.Artifact{ID: artifact.NewID(), Name: "orphan", Content: "x",
		Type: artifact.TypeRule, Scope: artifact.ScopeGlobal}
	require.NoError(t, store.SaveArtifactFile(st.ArtifactsDir(), &orphan))

	report, err := m.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.Equal(t, []string{a.ID}, report.Mismatched)
	assert.Equal(t, []string{orphan.ID}, report.Extra)
	assert.Empty(t, report.Missing)
}

func TestMigrateRollbackRoundTrip(t *testing.T) {
	st := openTestStore(t)
	createRule(t, st, "one", "first content\n")
	createRule(t, st, "two", "second content")
	before := identityHashes(t, st)

	m := New(st)
	ctx := context.Background()
	progress, err := m.Migrate(ctx)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, progress.Status)

	// Mutate the store after migration; rollback must erase this.
	createRule(t, st, "post-migration", "should vanish")

	require.NoError(t, m.Rollback(ctx, progress.BackupPath))

	assert.Equal(t, before, identityHashes(t, st))
	assert.Equal(t, store.ModeDatabase, st.StorageMode(ctx))
	assert.Equal(t, StatusRolledBack, m.Progress().Status)
	assert.NoDirExists(t, st.ArtifactsDir())
}

func TestRollbackRequiresValidBackup(t *testing.T) {
	st := openTestStore(t)
	createRule(t, st, "one", "content\n")
	m := New(st)
	ctx := context.Background()

	err := m.Rollback(ctx, filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	progress, err := m.Migrate(ctx)
	require.NoError(t, err)

	// Corrupting the snapshot must fail the checksum, leaving the store
	// alone.
	require.NoError(t, os.WriteFile(progress.BackupPath, []byte("garbage"), 0o600))
	err = m.Rollback(ctx, progress.BackupPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")

	all, listErr := st.List(ctx)
	require.NoError(t, listErr)
	assert.Len(t, all, 1)
}

func TestRollbackWithoutPriorMigration(t *testing.T) {
	st := openTestStore(t)
	m := New(st)

	// A checksummed file that no migration produced is still refused.
	fake := filepath.Join(t.TempDir(), "fake.db")
	require.NoError(t, os.WriteFile(fake, []byte("data"), 0o600))
	require.NoError(t, os.WriteFile(fake+checksumExt, []byte(hashBytes([]byte("data"))), 0o600))

	err := m.Rollback(context.Background(), fake)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rollback requires a backup")
}
