package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/messages"
	"github.com/tidewell/loom/internal/registry"
)

// ScanFile reads a single file into one candidate.
func (s *Scanner) ScanFile(ctx context.Context, path string) Result {
	var result Result
	if err := ctx.Err(); err != nil {
		return result
	}
	candidate, err := s.candidateFromPath(path, SourceFile, "File", "", artifact.ScopeGlobal, nil)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	result.Candidates = append(result.Candidates, candidate)
	return result
}

// ScanDirectory recurses (bounded depth) over a directory, producing one
// candidate per supported file. Unreadable or unparseable entries become
// errors, not aborted scans.
func (s *Scanner) ScanDirectory(ctx context.Context, root string) Result {
	var result Result

	info, err := os.Stat(root)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanDirUnreadableFmt, root, err))
		return result
	}
	if !info.IsDir() {
		result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanNotDirectoryFmt, root))
		return result
	}

	limitReached := false
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanFileUnreadableFmt, path, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if skippedDir(d.Name()) {
				return fs.SkipDir
			}
			if depth(root, path) > s.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if len(result.Candidates) >= s.MaxCandidates {
			result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanCandidateLimitFmt, s.MaxCandidates))
			limitReached = true
			return fs.SkipAll
		}
		candidate, err := s.candidateFromPath(path, SourceDirectory, "Directory", "", artifact.ScopeGlobal, nil)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			return nil
		}
		result.Candidates = append(result.Candidates, candidate)
		return nil
	})
	if walkErr != nil && !limitReached {
		// Cancellation discards partial results; scanning has no side
		// effects so this is always safe.
		if ctx.Err() != nil {
			return Result{}
		}
		result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanDirUnreadableFmt, root, walkErr))
	}
	return result
}

func (s *Scanner) candidateFromPath(path string, src SourceType, label string, tool registry.AdapterID, scope artifact.Scope, targets []string) (Candidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Candidate{}, fmt.Errorf(messages.ScanFileUnreadableFmt, path, err)
	}
	if info.Size() > s.MaxFileSize {
		return Candidate{}, fmt.Errorf(messages.ScanFileTooLargeFmt, path, s.MaxFileSize)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Candidate{}, fmt.Errorf(messages.ScanFileUnreadableFmt, path, err)
	}
	if !utf8.Valid(raw) {
		return Candidate{}, fmt.Errorf(messages.ScanFileNotUTF8Fmt, path)
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := inferName(path, stem, tool)
	return s.candidateFromText(string(raw), name, src, label, path, tool, scope, targets), nil
}

// inferName picks a candidate name from the file, replacing tool-generic
// stems like AGENTS or CLAUDE with "<tool>-import".
func inferName(path, stem string, tool registry.AdapterID) string {
	normalized := strings.ToLower(stem)
	generic := map[string]bool{
		"agents": true, "commands": true, "gemini": true, "claude": true,
		"rules": true, ".clinerules": true, ".cursorrules": true, ".windsurfrules": true,
	}
	if generic[normalized] && tool != "" {
		return string(tool) + "-import"
	}
	if stem == "" {
		return filepath.Base(path)
	}
	return stem
}

// skippedDir filters out trees that are never rule sources.
func skippedDir(name string) bool {
	switch name {
	case ".git", ".hg", ".svn", "node_modules", "vendor":
		return true
	}
	return false
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}
