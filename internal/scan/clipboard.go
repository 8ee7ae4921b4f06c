package scan

import (
	"fmt"
	"strings"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/messages"
)

// ScanClipboard wraps caller-supplied text as a single candidate. name may
// be empty.
func (s *Scanner) ScanClipboard(content, name string) Result {
	var result Result
	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, messages.ScanClipboardEmpty)
		return result
	}
	if int64(len(content)) > s.MaxFileSize {
		result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanClipboardTooLargeFmt, s.MaxFileSize))
		return result
	}
	if strings.TrimSpace(name) == "" {
		name = "clipboard-import"
	}
	result.Candidates = append(result.Candidates,
		s.candidateFromText(content, name, SourceClipboard, "Clipboard", "clipboard", "", artifact.ScopeGlobal, nil))
	return result
}
