// Package registry is the static description of every external AI tool the
// engine can project artifacts into: capabilities per artifact type and
// scope, plus the path templates for global and workspace placement.
package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/tidewell/loom/internal/artifact"
)

// AdapterID identifies one supported tool. The set is closed; dispatch over
// adapters is by registry lookup, never by open-ended string comparison.
type AdapterID string

const (
	AdapterClaudeCode  AdapterID = "claude-code"
	AdapterCodex       AdapterID = "codex"
	AdapterGemini      AdapterID = "gemini"
	AdapterAntigravity AdapterID = "antigravity"
	AdapterOpenCode    AdapterID = "opencode"
	AdapterCline       AdapterID = "cline"
	AdapterCursor      AdapterID = "cursor"
	AdapterWindsurf    AdapterID = "windsurf"
	AdapterKilo        AdapterID = "kilo"
	AdapterRooCode     AdapterID = "roo-code"
)

// RootPlaceholder marks the workspace root inside local path templates.
const RootPlaceholder = "{root}"

// Capabilities describes which artifact types and scopes a tool accepts.
type Capabilities struct {
	SupportsRules         bool
	SupportsCommandStubs  bool
	SupportsSlashCommands bool
	SupportsSkills        bool
	SupportsGlobalScope   bool
	SupportsLocalScope    bool
}

// PathTemplates holds placement templates for one tool. GlobalPath may use
// "~" for the home directory; local templates contain RootPlaceholder.
type PathTemplates struct {
	GlobalPath        string
	LocalPathTemplate string
	GlobalCommandsDir string
	LocalCommandsDir  string
	GlobalSkillsDir   string
	LocalSkillsDir    string
}

// ToolEntry is the registry record for one supported tool.
type ToolEntry struct {
	ID           AdapterID
	Name         string
	Capabilities Capabilities
	Paths        PathTemplates
	FileFormat   string
	// ScanPaths lists every config location (current and legacy) the
	// ai-tool scanner probes, relative to home for global scope and to a
	// workspace root for local scope.
	ScanPaths []string
}

// Supports reports whether the tool accepts the given artifact type at the
// given scope.
func (e *ToolEntry) Supports(typ artifact.Type, scope artifact.Scope) bool {
	switch scope {
	case artifact.ScopeGlobal:
		if !e.Capabilities.SupportsGlobalScope {
			return false
		}
	case artifact.ScopeLocal:
		if !e.Capabilities.SupportsLocalScope {
			return false
		}
	}
	switch typ {
	case artifact.TypeRule:
		return e.Capabilities.SupportsRules
	case artifact.TypeCommand:
		return e.Capabilities.SupportsSlashCommands
	case artifact.TypeSkill:
		return e.Capabilities.SupportsSkills
	}
	return false
}

// Registry is the read-mostly set of tool entries. Refresh by rebuilding via
// Default.
type Registry struct {
	entries map[AdapterID]ToolEntry
}

// Default builds the registry of supported tools.
func Default() *Registry {
	full := Capabilities{
		SupportsRules:         true,
		SupportsCommandStubs:  true,
		SupportsSlashCommands: true,
		SupportsSkills:        true,
		SupportsGlobalScope:   true,
		SupportsLocalScope:    true,
	}
	rulesOnly := Capabilities{
		SupportsRules:       true,
		SupportsGlobalScope: true,
		SupportsLocalScope:  true,
	}

	entries := []ToolEntry{
		{
			ID:           AdapterClaudeCode,
			Name:         "Claude Code",
			Capabilities: full,
			Paths: PathTemplates{
				GlobalPath:        "~/.claude/CLAUDE.md",
				LocalPathTemplate: "{root}/.claude/CLAUDE.md",
				GlobalCommandsDir: "~/.claude/commands",
				LocalCommandsDir:  "{root}/.claude/commands",
				GlobalSkillsDir:   "~/.claude/skills",
				LocalSkillsDir:    "{root}/.claude/skills",
			},
			FileFormat: "markdown",
			ScanPaths:  []string{".claude/CLAUDE.md"},
		},
		{
			ID:           AdapterCodex,
			Name:         "Codex",
			Capabilities: full,
			Paths: PathTemplates{
				GlobalPath:        "~/.codex/AGENTS.md",
				LocalPathTemplate: "{root}/.codex/AGENTS.md",
				GlobalCommandsDir: "~/.codex/prompts",
				LocalCommandsDir:  "{root}/.codex/prompts",
				GlobalSkillsDir:   "~/.codex/skills",
				LocalSkillsDir:    "{root}/.codex/skills",
			},
			FileFormat: "markdown",
			ScanPaths:  []string{".codex/AGENTS.md", ".agents/AGENTS.md"},
		},
		{
			ID:           AdapterGemini,
			Name:         "Gemini",
			Capabilities: full,
			Paths: PathTemplates{
				GlobalPath:        "~/.gemini/GEMINI.md",
				LocalPathTemplate: "{root}/.gemini/GEMINI.md",
				GlobalCommandsDir: "~/.gemini/commands",
				LocalCommandsDir:  "{root}/.gemini/commands",
				GlobalSkillsDir:   "~/.gemini/skills",
				LocalSkillsDir:    "{root}/.gemini/skills",
			},
			FileFormat: "markdown",
			ScanPaths:  []string{".gemini/GEMINI.md"},
		},
		{
			ID:           AdapterAntigravity,
			Name:         "Antigravity",
			Capabilities: full,
			Paths: PathTemplates{
				GlobalPath:        "~/.antigravity/GEMINI.md",
				LocalPathTemplate: "{root}/.antigravity/GEMINI.md",
				GlobalCommandsDir: "~/.gemini/antigravity/global_workflows",
				LocalCommandsDir:  "{root}/.agents/workflows",
				GlobalSkillsDir:   "~/.gemini/antigravity/skills",
				LocalSkillsDir:    "{root}/.agents/skills",
			},
			FileFormat: "markdown",
			ScanPaths:  []string{".antigravity/GEMINI.md", ".gemini/antigravity/GEMINI.md"},
		},
		{
			ID:           AdapterOpenCode,
			Name:         "OpenCode",
			Capabilities: full,
			Paths: PathTemplates{
				GlobalPath:        "~/.config/opencode/AGENTS.md",
				LocalPathTemplate: "{root}/.opencode/AGENTS.md",
				GlobalCommandsDir: "~/.config/opencode/commands",
				LocalCommandsDir:  "{root}/.opencode/commands",
				GlobalSkillsDir:   "~/.config/opencode/skills",
				LocalSkillsDir:    "{root}/.opencode/skills",
			},
			FileFormat: "markdown",
			ScanPaths:  []string{".config/opencode/AGENTS.md", ".opencode/AGENTS.md"},
		},
		{
			ID:   AdapterCline,
			Name: "Cline",
			Capabilities: Capabilities{
				SupportsRules:         true,
				SupportsSlashCommands: true,
				SupportsGlobalScope:   true,
				SupportsLocalScope:    true,
			},
			Paths: PathTemplates{
				GlobalPath:        "~/.clinerules",
				LocalPathTemplate: "{root}/.clinerules",
				GlobalCommandsDir: "~/Documents/Cline/Workflows",
				LocalCommandsDir:  "{root}/.clinerules/workflows",
			},
			FileFormat: "markdown",
			ScanPaths:  []string{".clinerules"},
		},
		{
			ID:   AdapterCursor,
			Name: "Cursor",
			Capabilities: Capabilities{
				SupportsRules:         true,
				SupportsSlashCommands: true,
				SupportsGlobalScope:   true,
				SupportsLocalScope:    true,
			},
			Paths: PathTemplates{
				GlobalPath:        "~/.cursorrules",
				LocalPathTemplate: "{root}/.cursorrules",
				GlobalCommandsDir: "~/.cursor/commands",
				LocalCommandsDir:  "{root}/.cursor/commands",
			},
			FileFormat: "markdown",
			ScanPaths:  []string{".cursorrules", ".cursor/COMMANDS.md"},
		},
		{
			ID:           AdapterWindsurf,
			Name:         "Windsurf",
			Capabilities: rulesOnly,
			Paths: PathTemplates{
				GlobalPath:        "~/.windsurf/rules/AGENTS.md",
				LocalPathTemplate: "{root}/.windsurf/rules/AGENTS.md",
			},
			FileFormat: "markdown",
			ScanPaths:  []string{".windsurf/rules/AGENTS.md", ".windsurf/rules/rules.md", ".windsurfrules"},
		},
		{
			ID:           AdapterKilo,
			Name:         "Kilo Code",
			Capabilities: rulesOnly,
			Paths: PathTemplates{
				GlobalPath:        "~/.kilocode/rules/AGENTS.md",
				LocalPathTemplate: "{root}/.kilocode/rules/AGENTS.md",
			},
			FileFormat: "markdown",
			ScanPaths:  []string{".kilocode/rules/AGENTS.md", ".kilo/rules/AGENTS.md"},
		},
		{
			ID:           AdapterRooCode,
			Name:         "Roo Code",
			Capabilities: rulesOnly,
			Paths: PathTemplates{
				GlobalPath:        "~/.roo/rules/AGENTS.md",
				LocalPathTemplate: "{root}/.roo/rules/AGENTS.md",
			},
			FileFormat: "markdown",
			ScanPaths:  []string{".roo/rules/AGENTS.md", ".roo/rules/rules.md", ".roocode/rules/AGENTS.md", ".roocode/rules/rules.md"},
		},
	}

	reg := &Registry{entries: make(map[AdapterID]ToolEntry, len(entries))}
	for _, e := range entries {
		reg.entries[e.ID] = e
	}
	return reg
}

// Lookup returns the entry for id.
func (r *Registry) Lookup(id AdapterID) (ToolEntry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// Entries returns all tool entries sorted by ID.
func (r *Registry) Entries() []ToolEntry {
	out := make([]ToolEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns every adapter ID sorted.
func (r *Registry) IDs() []AdapterID {
	out := make([]AdapterID, 0, len(r.entries))
	for id := range r.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResolveGlobal returns the absolute target path for an artifact of the given
// type under the tool's global placement.
func (r *Registry) ResolveGlobal(id AdapterID, typ artifact.Type, name string) (string, error) {
	e, ok := r.entries[id]
	if !ok {
		return "", fmt.Errorf("unknown adapter %q", id)
	}
	switch typ {
	case artifact.TypeRule:
		return expandHome(e.Paths.GlobalPath)
	case artifact.TypeCommand:
		if e.Paths.GlobalCommandsDir == "" {
			return "", fmt.Errorf("adapter %s does not place commands globally", id)
		}
		dir, err := expandHome(e.Paths.GlobalCommandsDir)
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, name+".md"), nil
	case artifact.TypeSkill:
		if e.Paths.GlobalSkillsDir == "" {
			return "", fmt.Errorf("adapter %s does not place skills globally", id)
		}
		dir, err := expandHome(e.Paths.GlobalSkillsDir)
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, name, "SKILL.md"), nil
	}
	return "", fmt.Errorf("unknown artifact type %q", typ)
}

// ResolveLocal returns the absolute target path for an artifact of the given
// type under the tool's workspace placement rooted at root.
func (r *Registry) ResolveLocal(id AdapterID, typ artifact.Type, name, root string) (string, error) {
	e, ok := r.entries[id]
	if !ok {
		return "", fmt.Errorf("unknown adapter %q", id)
	}
	switch typ {
	case artifact.TypeRule:
		if e.Paths.LocalPathTemplate == "" {
			return "", fmt.Errorf("adapter %s has no local placement", id)
		}
		return substituteRoot(e.Paths.LocalPathTemplate, root), nil
	case artifact.TypeCommand:
		if e.Paths.LocalCommandsDir == "" {
			return "", fmt.Errorf("adapter %s does not place commands locally", id)
		}
		return filepath.Join(substituteRoot(e.Paths.LocalCommandsDir, root), name+".md"), nil
	case artifact.TypeSkill:
		if e.Paths.LocalSkillsDir == "" {
			return "", fmt.Errorf("adapter %s does not place skills locally", id)
		}
		return filepath.Join(substituteRoot(e.Paths.LocalSkillsDir, root), name, "SKILL.md"), nil
	}
	return "", fmt.Errorf("unknown artifact type %q", typ)
}

func substituteRoot(template, root string) string {
	return filepath.FromSlash(strings.ReplaceAll(template, RootPlaceholder, root))
}

func expandHome(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.FromSlash(expanded), nil
}
