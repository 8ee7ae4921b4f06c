package scan

import (
	"strings"

	"github.com/tidewell/loom/internal/artifact"
)

// Normalize finalizes a scan batch: same-batch candidates with identical
// content hashes collapse to the first occurrence, and proposed names are
// made unique within the batch. A candidate whose name merely collides with
// a canonical name keeps it — the import executor owns that conflict under
// the chosen conflict mode — but when two candidates in one batch want the
// same name, later ones are renamed against the combined set of canonical
// names and names already proposed in the batch.
func Normalize(candidates []Candidate, canonicalNames []string) []Candidate {
	seenHash := make(map[string]struct{}, len(candidates))
	proposed := make(map[string]struct{}, len(candidates))
	canonical := make(map[string]struct{}, len(canonicalNames))
	for _, n := range canonicalNames {
		canonical[strings.ToLower(n)] = struct{}{}
	}

	combined := func() []string {
		out := make([]string, 0, len(canonical)+len(proposed))
		for n := range canonical {
			out = append(out, n)
		}
		for n := range proposed {
			out = append(out, n)
		}
		return out
	}

	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seenHash[c.ContentHash]; dup {
			continue
		}
		seenHash[c.ContentHash] = struct{}{}

		key := strings.ToLower(c.ProposedName)
		if _, taken := proposed[key]; taken {
			c.ProposedName = artifact.NextUniqueName(c.ProposedName, combined())
			key = strings.ToLower(c.ProposedName)
		}
		proposed[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
