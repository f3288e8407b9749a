package sanitizer

import (
	"net/url"

	"golang.org/x/net/html"
)

type SanitizedHTMLDoc struct {
	contentNode    *html.Node
	discoveredUrls []url.URL
}

func (s *SanitizedHTMLDoc) GetDiscoveredURLs() []url.URL {
	return s.discoveredUrls
}

// GetContentNode returns the sanitized document's root node, or nil for a
// zero-value SanitizedHTMLDoc (the error-path return from Sanitize).
func (s *SanitizedHTMLDoc) GetContentNode() *html.Node {
	return s.contentNode
}
