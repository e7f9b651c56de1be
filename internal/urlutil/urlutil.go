// Package urlutil provides URL extraction, normalization, and source
// detection for incoming media-retrieval requests.
package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/mramrohaleem/Telegram-bot-Dawah/internal/models"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// InvalidURLError signals a missing, malformed, or unsupported URL
type InvalidURLError struct {
	Reason string
}

func (e *InvalidURLError) Error() string {
	return e.Reason
}

// ExtractFirstURL finds the first HTTP(S) URL-like token in a text message.
// It returns an empty string when none is present.
func ExtractFirstURL(text string) string {
	return urlPattern.FindString(text)
}

// NormalizeURL lower-cases the scheme and host of a URL while leaving the
// path and query untouched, since paths are commonly case-sensitive.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	return parsed.String(), nil
}

// ValidateURL checks structure and allowed scheme, returning the normalized URL
func ValidateURL(raw string) (string, error) {
	if raw == "" {
		return "", &InvalidURLError{Reason: "URL is missing"}
	}

	normalized, err := NormalizeURL(raw)
	if err != nil {
		return "", &InvalidURLError{Reason: "URL is malformed"}
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", &InvalidURLError{Reason: "URL is malformed"}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", &InvalidURLError{Reason: fmt.Sprintf("unsupported URL scheme %q", parsed.Scheme)}
	}
	if parsed.Host == "" {
		return "", &InvalidURLError{Reason: "URL must include a hostname"}
	}
	return normalized, nil
}

// Domain returns the normalized host portion of a URL
func Domain(raw string) string {
	normalized, err := NormalizeURL(raw)
	if err != nil {
		return ""
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return parsed.Host
}

var sourceDomains = map[string]models.SourceType{
	"youtube.com":       models.SourceYouTube,
	"www.youtube.com":   models.SourceYouTube,
	"youtu.be":          models.SourceYouTube,
	"facebook.com":      models.SourceFacebook,
	"www.facebook.com":  models.SourceFacebook,
	"fb.watch":          models.SourceFacebook,
	"archive.org":       models.SourceArchive,
	"www.archive.org":   models.SourceArchive,
	"way2allah.com":     models.SourceIslamicSite,
	"www.way2allah.com": models.SourceIslamicSite,
	"islamway.net":      models.SourceIslamicSite,
	"www.islamway.net":  models.SourceIslamicSite,
}

// DetectSourceType maps a domain to a SourceType, trying parent domains so
// subdomains like ar.islamway.net resolve too. The boolean is false for
// unsupported domains.
func DetectSourceType(domain string) (models.SourceType, bool) {
	d := strings.ToLower(domain)
	for d != "" {
		if source, ok := sourceDomains[d]; ok {
			return source, true
		}
		idx := strings.Index(d, ".")
		if idx < 0 {
			break
		}
		d = d[idx+1:]
	}
	return models.SourceGeneric, false
}

var directMediaExtensions = []string{".mp3", ".mp4", ".m4a", ".webm", ".wav"}

// IsDirectMediaURL reports whether the URL path ends in a known media extension
func IsDirectMediaURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	lower := strings.ToLower(parsed.Path)
	for _, ext := range directMediaExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// SanitizeTitle returns a filesystem-safe filename derived from a title
func SanitizeTitle(title, ext string) string {
	safe := unsafeFilenameChars.ReplaceAllString(title, "_")
	safe = strings.ReplaceAll(safe, "..", "_")
	safe = strings.Trim(strings.TrimSpace(safe), ".")
	if safe == "" {
		safe = "media"
	}
	if len(safe) > 120 {
		safe = safe[:120]
	}
	if ext != "" {
		return safe + "." + strings.TrimPrefix(ext, ".")
	}
	return safe
}

// FilenameFromPath returns the final element of a file path
func FilenameFromPath(p string) string {
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}
