package metadata

import "time"

// MetadataSink is the observational logging collaborator every pipeline
// stage (fetcher, extractor, sanitizer, mdconvert, assets, normalize,
// storage, robots) depends on. Implementations must never let logging
// influence control flow (see the ErrorCause doc comment in data.go).
type MetadataSink interface {
	RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, details string, attrs []Attribute)
	RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount, crawlDepth int)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
	RecordAssetFetch(fetchURL string, httpStatus int, duration time.Duration, retryCount int)
}

// CrawlFinalizer records the terminal, derived summary of a completed crawl
// exactly once (see crawlStats's doc comment in data.go).
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration)
}

// ArtifactKind classifies what RecordArtifact is being told was written.
type ArtifactKind string

const (
	ArtifactMarkdown ArtifactKind = "markdown"
	ArtifactAsset    ArtifactKind = "asset"
)
