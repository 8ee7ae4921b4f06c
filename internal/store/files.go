package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/fsutil"
)

const frontmatterDelim = "---"

// SaveArtifactFile writes one artifact as a markdown file with YAML
// frontmatter under dir. File names are keyed by ID so renames never orphan
// files.
func SaveArtifactFile(dir string, a *artifact.Artifact) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	meta, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", a.ID, err)
	}
	var b strings.Builder
	b.WriteString(frontmatterDelim + "\n")
	b.Write(meta)
	b.WriteString(frontmatterDelim + "\n")
	// One newline is always appended and exactly one stripped on parse, so
	// content round-trips byte identical.
	b.WriteString(a.Content)
	b.WriteString("\n")
	return fsutil.WriteFileAtomic(artifactFilePath(dir, a.ID), []byte(b.String()), 0o600)
}

// LoadArtifactFiles reads every artifact file under dir. Unparseable files
// become error strings; the load continues.
func LoadArtifactFiles(dir string) ([]artifact.Artifact, []string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []string{fmt.Sprintf("read artifacts dir %s: %v", dir, err)}
	}

	var (
		out  []artifact.Artifact
		errs []string
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		a, err := ParseArtifactFile(path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("failed to parse %s: %v", entry.Name(), err))
			continue
		}
		out = append(out, *a)
	}
	return out, errs
}

// ParseArtifactFile reads one frontmatter markdown artifact file.
func ParseArtifactFile(path string) (*artifact.Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(raw)
	if !strings.HasPrefix(text, frontmatterDelim+"\n") {
		return nil, fmt.Errorf("missing frontmatter")
	}
	rest := text[len(frontmatterDelim)+1:]
	idx := strings.Index(rest, "\n"+frontmatterDelim+"\n")
	if idx < 0 {
		return nil, fmt.Errorf("unterminated frontmatter")
	}
	meta := rest[:idx+1]
	body := rest[idx+len(frontmatterDelim)+2:]

	var a artifact.Artifact
	if err := yaml.Unmarshal([]byte(meta), &a); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}
	if a.ID == "" {
		return nil, fmt.Errorf("frontmatter missing id")
	}
	a.Content = strings.TrimSuffix(body, "\n")
	return &a, nil
}

func artifactFilePath(dir, id string) string {
	return filepath.Join(dir, id+".md")
}
