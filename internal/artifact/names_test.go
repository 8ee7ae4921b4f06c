package artifact

import (
	"strings"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"quality", "quality"},
		{"My Rule!", "My-Rule"},
		{"  spaced   out  ", "spaced-out"},
		{"***", "imported-rule"},
		{"", "imported-rule"},
		{"under_score-dash", "under_score-dash"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNextUniqueNameFreeBase(t *testing.T) {
	if got := NextUniqueName("quality", []string{"other"}); got != "quality" {
		t.Fatalf("got %q, want %q", got, "quality")
	}
}

func TestNextUniqueNameAppendsCopySuffix(t *testing.T) {
	got := NextUniqueName("quality", []string{"quality"})
	if got != "quality (Copy)" {
		t.Fatalf("got %q, want %q", got, "quality (Copy)")
	}
}

func TestNextUniqueNameCounters(t *testing.T) {
	existing := []string{"quality", "quality (Copy)", "quality (Copy) 2"}
	got := NextUniqueName("quality", existing)
	if got != "quality (Copy) 3" {
		t.Fatalf("got %q, want %q", got, "quality (Copy) 3")
	}
}

func TestNextUniqueNameCaseInsensitive(t *testing.T) {
	got := NextUniqueName("Quality", []string{"quality"})
	if got != "Quality (Copy)" {
		t.Fatalf("got %q, want %q", got, "Quality (Copy)")
	}
}

func TestNextUniqueNameRepeatedProducesDistinct(t *testing.T) {
	existing := []string{"base"}
	seen := map[string]bool{"base": true}
	for i := 0; i < 20; i++ {
		name := NextUniqueName("base", existing)
		if seen[name] {
			t.Fatalf("duplicate generated name %q on iteration %d", name, i)
		}
		seen[name] = true
		existing = append(existing, name)
	}
}

func TestNextUniqueNameTruncatesLongBase(t *testing.T) {
	base := strings.Repeat("a", MaxNameLen)
	existing := []string{base}
	got := NextUniqueName(base, existing)
	if len(got) > MaxNameLen {
		t.Fatalf("generated name length %d exceeds cap %d", len(got), MaxNameLen)
	}
	if !strings.HasSuffix(got, "(Copy)") {
		t.Fatalf("got %q, want copy suffix", got)
	}
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash("test content")
	b := ContentHash("test content")
	c := ContentHash("different content")
	if a != b {
		t.Fatal("hash not deterministic")
	}
	if a == c {
		t.Fatal("distinct content produced identical hashes")
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64", len(a))
	}
}

func TestParseTypeAndScope(t *testing.T) {
	for _, valid := range []string{"rule", "command", "skill"} {
		if _, err := ParseType(valid); err != nil {
			t.Errorf("ParseType(%q): %v", valid, err)
		}
	}
	if _, err := ParseType("widget"); err == nil {
		t.Error("ParseType accepted unknown type")
	}
	for _, valid := range []string{"global", "local"} {
		if _, err := ParseScope(valid); err != nil {
			t.Errorf("ParseScope(%q): %v", valid, err)
		}
	}
	if _, err := ParseScope("repo"); err == nil {
		t.Error("ParseScope accepted unknown scope")
	}
}
