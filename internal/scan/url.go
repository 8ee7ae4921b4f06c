package scan

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidewell/loom/internal/artifact"
	"github.com/tidewell/loom/internal/messages"
)

// ScanURL fetches one document. Any network or parse failure yields an
// empty candidate list and one error.
func (s *Scanner) ScanURL(ctx context.Context, rawURL string) Result {
	var result Result

	parsed, err := validateURL(rawURL)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanURLFetchFailedFmt, rawURL, err))
		return result
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}
		}
		result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanURLFetchFailedFmt, rawURL, err))
		return result
	}
	defer resp.Body.Close()

	// Redirects may land somewhere the original URL validation would
	// have rejected.
	if _, err := validateURL(resp.Request.URL.String()); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanURLStatusFmt, rawURL, resp.Status))
		return result
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.MaxFileSize+1))
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanURLBodyFailedFmt, rawURL, err))
		return result
	}
	if int64(len(body)) > s.MaxFileSize {
		result.Errors = append(result.Errors, fmt.Sprintf(messages.ScanURLTooLargeFmt, s.MaxFileSize))
		return result
	}

	name := inferredURLName(parsed)
	result.Candidates = append(result.Candidates,
		s.candidateFromText(string(body), name, SourceURL, "URL", parsed.String(), "", artifact.ScopeGlobal, nil))
	return result
}

func inferredURLName(u *url.URL) string {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			name := segments[i]
			if dot := strings.LastIndex(name, "."); dot > 0 {
				name = name[:dot]
			}
			return name
		}
	}
	return "imported-url"
}

func validateURL(input string) (*url.URL, error) {
	parsed, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf(messages.ScanURLInvalidFmt, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%s", messages.ScanURLSchemeNotAllowed)
	}
	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%s", messages.ScanURLHostRequired)
	}
	if strings.EqualFold(host, "localhost") {
		return nil, fmt.Errorf("%s", messages.ScanURLLocalhostNotAllowed)
	}
	if ip := net.ParseIP(host); ip != nil && isDisallowedIP(ip) {
		return nil, fmt.Errorf("%s", messages.ScanURLPrivateIPNotAllowed)
	}
	return parsed, nil
}

func isDisallowedIP(ip net.IP) bool {
	return ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}
