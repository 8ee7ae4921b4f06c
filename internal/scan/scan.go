// Package scan discovers import candidates from heterogeneous sources:
// other AI tools' config files, single files, directory trees, URLs and
// clipboard text. Scans never fail on a single bad item; per-item problems
// are collected as error strings on the result.
package scan

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/registry"
)

// SourceType identifies where a candidate was discovered. Closed set.
type SourceType string

const (
	SourceAITool    SourceType = "ai_tool"
	SourceFile      SourceType = "file"
	SourceDirectory SourceType = "directory"
	SourceURL       SourceType = "url"
	SourceClipboard SourceType = "clipboard"
)

// Candidate is one provisional artifact discovered by a scan. Candidates are
// ephemeral; they live only for the scan session that produced them.
type Candidate struct {
	ID              string             `json:"id"`
	SourceType      SourceType         `json:"sourceType"`
	SourceLabel     string             `json:"sourceLabel"`
	SourcePath      string             `json:"sourcePath"`
	SourceTool      registry.AdapterID `json:"sourceTool,omitempty"`
	Name            string             `json:"name"`
	ProposedName    string             `json:"proposedName"`
	Content         string             `json:"content"`
	Type            artifact.Type      `json:"artifactType"`
	Scope           artifact.Scope     `json:"scope"`
	TargetPaths     []string           `json:"targetPaths,omitempty"`
	EnabledAdapters []string           `json:"enabledAdapters"`
	ContentHash     string             `json:"contentHash"`
	FileSize        int64              `json:"fileSize"`
}

// Result is the outcome of one scan: candidates plus non-fatal errors.
type Result struct {
	Candidates []Candidate `json:"candidates"`
	Errors     []string    `json:"errors"`
}

const (
	// DefaultMaxFileSize bounds a single scanned file or response body.
	DefaultMaxFileSize = 10 << 20
	// DefaultMaxCandidates bounds one scan session.
	DefaultMaxCandidates = 1000
	// DefaultMaxDepth bounds directory recursion.
	DefaultMaxDepth = 8
)

// Scanner discovers candidates. The zero value is not usable; construct via
// New.
type Scanner struct {
	Registry      *registry.Registry
	Client        *http.Client
	MaxFileSize   int64
	MaxCandidates int
	MaxDepth      int
	// HomeDir overrides the user home for ai-tool scans (tests).
	HomeDir string
	// WorkspaceRoots are the known repository roots probed for local
	// tool configs.
	WorkspaceRoots []string
}

// New returns a Scanner with default limits.
func New(reg *registry.Registry) *Scanner {
	return &Scanner{
		Registry:      reg,
		Client:        &http.Client{Timeout: 30 * time.Second},
		MaxFileSize:   DefaultMaxFileSize,
		MaxCandidates: DefaultMaxCandidates,
		MaxDepth:      DefaultMaxDepth,
	}
}

// payload is the optional structured form of a scanned document. Target
// paths are intentionally absent: untrusted payloads must not choose where
// files are written.
type payload struct {
	Name            string   `json:"name" yaml:"name"`
	Content         string   `json:"content" yaml:"content"`
	Scope           string   `json:"scope" yaml:"scope"`
	EnabledAdapters []string `json:"enabledAdapters" yaml:"enabledAdapters"`
}

// candidateFromText builds one candidate from raw document text, sniffing
// JSON/YAML payloads and markdown headings for metadata.
func (s *Scanner) candidateFromText(text, fallbackName string, src SourceType, label, path string, tool registry.AdapterID, scope artifact.Scope, targets []string) Candidate {
	trimmed := strings.TrimSpace(text)
	name := fallbackName
	content := trimmed
	adapters := s.defaultAdapters(tool)

	if p, ok := parsePayload(trimmed); ok {
		if strings.TrimSpace(p.Name) != "" {
			name = p.Name
		}
		if strings.TrimSpace(p.Content) != "" {
			content = p.Content
		}
		if parsed, err := artifact.ParseScope(p.Scope); err == nil {
			scope = parsed
		}
		if filtered := s.knownAdapters(p.EnabledAdapters); len(filtered) > 0 {
			adapters = filtered
		}
	} else if title := markdownTitle(trimmed); title != "" && isGenericName(fallbackName) {
		name = title
	}

	clean := artifact.SanitizeName(name)
	return Candidate{
		ID:              artifact.NewID(),
		SourceType:      src,
		SourceLabel:     label,
		SourcePath:      path,
		SourceTool:      tool,
		Name:            clean,
		ProposedName:    clean,
		Content:         content,
		Type:            artifact.TypeRule,
		Scope:           scope,
		TargetPaths:     targets,
		EnabledAdapters: adapters,
		ContentHash:     artifact.ContentHash(content),
		FileSize:        int64(len(content)),
	}
}

func parsePayload(text string) (payload, bool) {
	var p payload
	if json.Valid([]byte(text)) {
		if err := json.Unmarshal([]byte(text), &p); err == nil && (p.Name != "" || p.Content != "") {
			return p, true
		}
	}
	// YAML parses most plain text as a scalar; require a mapping that
	// yields at least one known field.
	if strings.Contains(text, ":") {
		if err := yaml.Unmarshal([]byte(text), &p); err == nil && (p.Name != "" || p.Content != "") {
			return p, true
		}
	}
	return payload{}, false
}

// defaultAdapters picks the adapter set for a candidate with no explicit
// payload adapters: the discovering tool itself, or a broad default.
func (s *Scanner) defaultAdapters(tool registry.AdapterID) []string {
	if tool != "" {
		return []string{string(tool)}
	}
	return []string{string(registry.AdapterGemini), string(registry.AdapterOpenCode)}
}

func (s *Scanner) knownAdapters(ids []string) []string {
	var out []string
	for _, id := range ids {
		if _, ok := s.Registry.Lookup(registry.AdapterID(id)); ok {
			out = append(out, id)
		}
	}
	return out
}

// isGenericName reports whether a file-stem name carries no information and
// a markdown heading should win.
func isGenericName(name string) bool {
	switch strings.ToLower(name) {
	case "agents", "commands", "gemini", "claude", "rules", "readme",
		".clinerules", ".cursorrules", "imported-rule", "clipboard-import", "imported-url":
		return true
	}
	return false
}
