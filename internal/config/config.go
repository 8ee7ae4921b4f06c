// Package config loads the user-level Loom configuration from
// .loom/config.toml under the base directory.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/registry"
)

// ErrConfigValidation is a sentinel that wraps config validation failures
// (as opposed to TOML syntax, filesystem, or other loading errors). Callers
// can use errors.Is(err, ErrConfigValidation) to distinguish validation
// problems from other load failure modes.
var ErrConfigValidation = errors.New("config validation failed")

// DefaultBaseDir is where Loom keeps its store and config when the user
// does not override it.
const DefaultBaseDir = "~/.loom"

// Config is the persisted user configuration.
type Config struct {
	// WorkspaceRoots are repository roots probed by the ai-tool scanner
	// and eligible as local sync targets.
	WorkspaceRoots []string `toml:"workspace_roots"`
	// DefaultAdapters is applied to candidates that carry no adapter set
	// of their own.
	DefaultAdapters []string `toml:"default_adapters"`

	Scan ScanConfig `toml:"scan"`
	Sync SyncConfig `toml:"sync"`
}

// ScanConfig bounds scan sessions.
type ScanConfig struct {
	MaxFileSizeBytes int64 `toml:"max_file_size_bytes"`
	MaxCandidates    int   `toml:"max_candidates"`
	MaxDepth         int   `toml:"max_depth"`
}

// SyncConfig tunes sync runs.
type SyncConfig struct {
	Parallel int  `toml:"parallel"`
	Prune    bool `toml:"prune"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			MaxFileSizeBytes: 10 << 20,
			MaxCandidates:    1000,
			MaxDepth:         8,
		},
		Sync: SyncConfig{Parallel: 4},
	}
}

// ResolveBaseDir expands the base directory, honoring the LOOM_HOME
// environment variable.
func ResolveBaseDir() (string, error) {
	dir := os.Getenv("LOOM_HOME")
	if dir == "" {
		dir = DefaultBaseDir
	}
	return homedir.Expand(dir)
}

// Path returns the config file path under baseDir.
func Path(baseDir string) string {
	return filepath.Join(baseDir, "config.toml")
}

// Load reads the config under baseDir. A missing file yields defaults; a
// present file must parse strictly and validate.
func Load(baseDir string) (*Config, error) {
	path := Path(baseDir)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf(messages.ConfigMissingFileFmt, path, err)
	}
	return Parse(data, path)
}

// Parse parses and validates config TOML data. source names the origin in
// error messages.
func Parse(data []byte, source string) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf(messages.ConfigInvalidFmt, source, err)
	}
	if err := decodeStrict(data); err != nil {
		return nil, fmt.Errorf("%w: "+messages.ConfigUnrecognizedKeysFmt, ErrConfigValidation, source, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	return cfg, nil
}

// decodeStrict re-decodes the TOML data with strict unknown-field
// rejection.
func decodeStrict(data []byte) error {
	var cfg Config
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	return decoder.Decode(&cfg)
}

// Validate checks semantic constraints the TOML schema cannot express.
func (c *Config) Validate() error {
	reg := registry.Default()
	for _, id := range c.DefaultAdapters {
		if _, ok := reg.Lookup(registry.AdapterID(id)); !ok {
			return fmt.Errorf("unknown adapter %q in default_adapters", id)
		}
	}
	if c.Scan.MaxFileSizeBytes < 0 {
		return fmt.Errorf("scan.max_file_size_bytes must not be negative")
	}
	if c.Scan.MaxCandidates < 0 {
		return fmt.Errorf("scan.max_candidates must not be negative")
	}
	if c.Scan.MaxDepth < 0 {
		return fmt.Errorf("scan.max_depth must not be negative")
	}
	if c.Sync.Parallel < 0 {
		return fmt.Errorf("sync.parallel must not be negative")
	}
	return nil
}
