package urlutil

import (
	"net/url"
	"path"
	"strings"
)

// Canonicalize applies a deterministic normalization to a URL, producing a canonical form.
// It maps equivalent URL spellings to a single canonical representation.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Path is cleaned (trailing slashes removed, except for root "/")
//   - Fragments are removed
//   - Query parameters are removed
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
//   - Context-free: does not depend on crawl history
func Canonicalize(sourceUrl url.URL) url.URL {
	// Create a copy to avoid mutating the original
	canonical := sourceUrl

	// Lowercase scheme and host
	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	// Remove default port if present
	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	// Collapse duplicate slashes, then remove trailing slashes (except root)
	canonical.Path = collapseSlashes(canonical.Path)
	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}

	// Remove fragment (anchor)
	canonical.Fragment = ""
	canonical.RawFragment = ""

	// Remove query parameters
	canonical.RawQuery = ""
	canonical.ForceQuery = false

	return canonical
}

// lowerASCII converts ASCII characters to lowercase without allocating.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}

// collapseSlashes replaces runs of consecutive slashes in a path with a
// single slash, preserving a leading slash if present.
func collapseSlashes(p string) string {
	if p == "" {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}

// AdmissionRule evaluates whether a canonicalized, discovered URL may be
// added to a job's frontier. All predicates must hold for admission
// (spec "URL Admission": scheme, host, path prefix, extension, depth, budget).
type AdmissionRule struct {
	AllowedHost        string
	IgnorePathPrefixes []string
	ExcludedExtensions map[string]struct{}
	MaxDepth           int
}

// DefaultExcludedExtensions is the admission-rule extension blocklist:
// document/archive/image/stylesheet/script/data formats that are never
// crawlable documentation content.
func DefaultExcludedExtensions() map[string]struct{} {
	exts := []string{
		"pdf", "zip", "gz", "tar", "rar", "7z",
		"png", "jpg", "jpeg", "gif", "svg", "webp", "ico", "bmp",
		"css", "js", "mjs",
		"xml", "json",
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[e] = struct{}{}
	}
	return set
}

// IsAdmitted applies the admission predicates to an already-canonicalized
// URL at the given crawl depth, against the current queued+stored count for
// the job and its budget cap.
func (r AdmissionRule) IsAdmitted(canonical url.URL, depth int, queuedAndStored int, maxPages int) bool {
	if canonical.Scheme != "http" && canonical.Scheme != "https" {
		return false
	}
	if !strings.EqualFold(canonical.Host, r.AllowedHost) {
		return false
	}
	for _, prefix := range r.IgnorePathPrefixes {
		if prefix != "" && strings.HasPrefix(canonical.Path, prefix) {
			return false
		}
	}
	if ext := extensionOf(canonical.Path); ext != "" {
		if _, excluded := r.ExcludedExtensions[ext]; excluded {
			return false
		}
	}
	if depth > r.MaxDepth {
		return false
	}
	if queuedAndStored >= maxPages {
		return false
	}
	return true
}

// extensionOf returns the lowercase extension (without the leading dot) of
// a URL path, or "" if the path has none.
func extensionOf(p string) string {
	ext := path.Ext(p)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
