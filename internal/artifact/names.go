package artifact

import (
	"fmt"
	"strings"
)

// MaxNameLen caps artifact names. NextUniqueName truncates the base before
// suffixing so generated names never exceed it.
const MaxNameLen = 120

const copySuffix = " (Copy)"

// SanitizeName reduces a discovered name to a safe artifact name: ASCII
// alphanumerics, dashes and underscores, whitespace collapsed to dashes.
// Empty results fall back to "imported-rule".
func SanitizeName(name string) string {
	var b strings.Builder
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '-' || ch == '_' || ch == ' ':
			b.WriteRune(ch)
		}
	}
	compact := strings.Join(strings.Fields(b.String()), "-")
	if compact == "" {
		return "imported-rule"
	}
	if len(compact) > MaxNameLen {
		compact = compact[:MaxNameLen]
	}
	return compact
}

// NextUniqueName returns base when it is free, otherwise the first
// "base (Copy)", "base (Copy) 2", ... not present in existing. Matching is
// case-insensitive. The base is truncated before the suffix is appended so
// the result stays within MaxNameLen, which keeps the loop terminating even
// for bases at the length cap.
func NextUniqueName(base string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		taken[strings.ToLower(name)] = struct{}{}
	}
	if _, ok := taken[strings.ToLower(base)]; !ok {
		return base
	}

	candidate := fitWithSuffix(base, copySuffix)
	if _, ok := taken[strings.ToLower(candidate)]; !ok {
		return candidate
	}
	for n := 2; ; n++ {
		suffix := fmt.Sprintf("%s %d", copySuffix, n)
		candidate = fitWithSuffix(base, suffix)
		if _, ok := taken[strings.ToLower(candidate)]; !ok {
			return candidate
		}
	}
}

func fitWithSuffix(base, suffix string) string {
	if len(base)+len(suffix) > MaxNameLen {
		base = strings.TrimRight(base[:MaxNameLen-len(suffix)], " ")
	}
	return base + suffix
}
