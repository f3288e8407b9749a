package extractor

import (
	"net/url"

	"github.com/crawlkit-dev/crawlkit/pkg/failure"
)

// Extractor isolates main documentation content from a fetched HTML page.
// Implementations must not perform network I/O; Extract only parses bytes
// already in memory.
type Extractor interface {
	Extract(sourceUrl url.URL, htmlByte []byte) (ExtractionResult, failure.ClassifiedError)
	SetExtractParam(params ExtractParam)
}

var _ Extractor = (*DomExtractor)(nil)
