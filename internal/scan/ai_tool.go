package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/registry"
)

// ScanAITool probes every known tool config location — global paths under
// the user home and local paths under each configured workspace root — and
// emits one candidate per readable file, tagged with the discovering tool.
func (s *Scanner) ScanAITool(ctx context.Context) Result {
	var result Result

	home := s.HomeDir
	if home == "" {
		resolved, err := homedir.Dir()
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanHomeDirFailedFmt, err))
			return result
		}
		home = resolved
	}

	for _, entry := range s.Registry.Entries() {
		if ctx.Err() != nil {
			return Result{}
		}
		for _, rel := range entry.ScanPaths {
			path := filepath.Join(home, filepath.FromSlash(rel))
			if !isRegularFile(path) {
				continue
			}
			candidate, err := s.candidateFromPath(path, SourceAITool, entry.Name, entry.ID, artifact.ScopeGlobal, nil)
			if err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.Candidates = append(result.Candidates, candidate)
		}
	}

	for _, root := range s.WorkspaceRoots {
		for _, entry := range s.Registry.Entries() {
			if ctx.Err() != nil {
				return Result{}
			}
			for _, rel := range entry.ScanPaths {
				path := filepath.Join(root, filepath.FromSlash(rel))
				if !isRegularFile(path) {
					continue
				}
				if len(result.Candidates) >= s.MaxCandidates {
					result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanCandidateLimitFmt, s.MaxCandidates))
					applyToolSuffixPolicy(result.Candidates)
					return result
				}
				candidate, err := s.candidateFromPath(path, SourceAITool, entry.Name, entry.ID, artifact.ScopeLocal, []string{root})
				if err != nil {
					result.Errors = append(result.Errors, err.Error())
					continue
				}
				result.Candidates = append(result.Candidates, candidate)
			}
		}
	}

	applyToolSuffixPolicy(result.Candidates)
	return result
}

// applyToolSuffixPolicy disambiguates candidates that share a name but were
// discovered from different tools by suffixing the proposed name with the
// tool ID.
func applyToolSuffixPolicy(candidates []Candidate) {
	tools := make(map[string]map[registry.AdapterID]struct{})
	for i := range candidates {
		if candidates[i].SourceTool == "" {
			continue
		}
		key := strings.ToLower(candidates[i].Name)
		if tools[key] == nil {
			tools[key] = make(map[registry.AdapterID]struct{})
		}
		tools[key][candidates[i].SourceTool] = struct{}{}
	}
	for i := range candidates {
		if candidates[i].SourceTool == "" {
			continue
		}
		if len(tools[strings.ToLower(candidates[i].Name)]) > 1 {
			candidates[i].ProposedName = candidates[i].Name + "-" + string(candidates[i].SourceTool)
		}
	}
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
