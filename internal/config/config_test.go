package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, int64(10<<20), cfg.Scan.MaxFileSizeBytes)
	assert.Equal(t, 4, cfg.Sync.Parallel)
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	body := `
workspace_roots = ["/work/repo"]
default_adapters = ["gemini", "claude-code"]

[scan]
max_candidates = 50

[sync]
parallel = 2
prune = true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"/work/repo"}, cfg.WorkspaceRoots)
	assert.Equal(t, []string{"gemini", "claude-code"}, cfg.DefaultAdapters)
	assert.Equal(t, 50, cfg.Scan.MaxCandidates)
	// Unset keys keep their defaults.
	assert.Equal(t, 8, cfg.Scan.MaxDepth)
	assert.Equal(t, 2, cfg.Sync.Parallel)
	assert.True(t, cfg.Sync.Prune)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("workspace_rots = [\"/x\"]\n"), "test.toml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigValidation))
}

func TestValidateRejectsUnknownAdapter(t *testing.T) {
	_, err := Parse([]byte("default_adapters = [\"not-a-tool\"]\n"), "test.toml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigValidation))
	assert.Contains(t, err.Error(), "not-a-tool")
}

func TestValidateRejectsNegativeLimits(t *testing.T) {
	_, err := Parse([]byte("[scan]\nmax_depth = -1\n"), "test.toml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigValidation))
}

func TestResolveBaseDirHonorsEnv(t *testing.T) {
	t.Setenv("LOOM_HOME", "/tmp/loom-test")
	dir, err := ResolveBaseDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/loom-test", dir)
}
