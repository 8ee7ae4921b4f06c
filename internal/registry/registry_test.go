package registry

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidewell/loom/internal/artifact"
)

func TestDefaultContainsAllAdapters(t *testing.T) {
	reg := Default()
	want := []AdapterID{
		AdapterAntigravity, AdapterClaudeCode, AdapterCline, AdapterCodex,
		AdapterCursor, AdapterGemini, AdapterKilo, AdapterOpenCode,
		AdapterRooCode, AdapterWindsurf,
	}
	got := reg.IDs()
	if len(got) != len(want) {
		t.Fatalf("registry has %d adapters, want %d", len(got), len(want))
	}
	for _, id := range want {
		if _, ok := reg.Lookup(id); !ok {
			t.Errorf("missing adapter %s", id)
		}
	}
}

func TestEntriesSortedAndComplete(t *testing.T) {
	reg := Default()
	entries := reg.Entries()
	for i := 1; i < len(entries); i++ {
		if entries[i-1].ID >= entries[i].ID {
			t.Fatalf("entries not sorted: %s before %s", entries[i-1].ID, entries[i].ID)
		}
	}
	for _, e := range entries {
		if e.Name == "" {
			t.Errorf("adapter %s has empty name", e.ID)
		}
		if e.Paths.GlobalPath == "" {
			t.Errorf("adapter %s has no global path", e.ID)
		}
		if len(e.ScanPaths) == 0 {
			t.Errorf("adapter %s has no scan paths", e.ID)
		}
	}
}

func TestSupportsRespectsCapabilities(t *testing.T) {
	reg := Default()
	kilo, _ := reg.Lookup(AdapterKilo)
	if !kilo.Supports(artifact.TypeRule, artifact.ScopeGlobal) {
		t.Error("kilo should support global rules")
	}
	if kilo.Supports(artifact.TypeSkill, artifact.ScopeGlobal) {
		t.Error("kilo should not support skills")
	}
	if kilo.Supports(artifact.TypeCommand, artifact.ScopeLocal) {
		t.Error("kilo should not support commands")
	}

	claude, _ := reg.Lookup(AdapterClaudeCode)
	if !claude.Supports(artifact.TypeSkill, artifact.ScopeLocal) {
		t.Error("claude-code should support local skills")
	}
}

func TestResolveLocalSubstitutesRoot(t *testing.T) {
	reg := Default()
	root := filepath.Join("tmp", "repo")

	path, err := reg.ResolveLocal(AdapterClaudeCode, artifact.TypeRule, "ignored", root)
	if err != nil {
		t.Fatalf("resolve local rule: %v", err)
	}
	if !strings.HasPrefix(path, root) {
		t.Fatalf("path %q not rooted at %q", path, root)
	}
	if strings.Contains(path, RootPlaceholder) {
		t.Fatalf("placeholder left in %q", path)
	}

	cmdPath, err := reg.ResolveLocal(AdapterClaudeCode, artifact.TypeCommand, "review", root)
	if err != nil {
		t.Fatalf("resolve local command: %v", err)
	}
	if filepath.Base(cmdPath) != "review.md" {
		t.Fatalf("command path %q, want review.md leaf", cmdPath)
	}

	skillPath, err := reg.ResolveLocal(AdapterClaudeCode, artifact.TypeSkill, "triage", root)
	if err != nil {
		t.Fatalf("resolve local skill: %v", err)
	}
	if filepath.Base(skillPath) != "SKILL.md" {
		t.Fatalf("skill path %q, want SKILL.md leaf", skillPath)
	}
}

func TestResolveGlobalExpandsHome(t *testing.T) {
	reg := Default()
	path, err := reg.ResolveGlobal(AdapterGemini, artifact.TypeRule, "ignored")
	if err != nil {
		t.Fatalf("resolve global: %v", err)
	}
	if strings.HasPrefix(path, "~") {
		t.Fatalf("home not expanded in %q", path)
	}
}

func TestResolveRejectsUnsupportedPlacement(t *testing.T) {
	reg := Default()
	if _, err := reg.ResolveGlobal(AdapterWindsurf, artifact.TypeSkill, "x"); err == nil {
		t.Error("windsurf global skill placement should fail")
	}
	if _, err := reg.ResolveLocal("nope", artifact.TypeRule, "x", "/tmp"); err == nil {
		t.Error("unknown adapter should fail")
	}
}
