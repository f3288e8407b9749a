package metadata

import "time"

// NoopSink is a zero-value MetadataSink/CrawlFinalizer that discards every
// event. Tests across the pipeline packages embed it in a spy struct and
// override only the methods they care about, rather than hand-rolling all
// four MetadataSink methods for each test double.
type NoopSink struct{}

func (NoopSink) RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, details string, attrs []Attribute) {
}

func (NoopSink) RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount, crawlDepth int) {
}

func (NoopSink) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {}

func (NoopSink) RecordAssetFetch(fetchURL string, httpStatus int, duration time.Duration, retryCount int) {
}

func (NoopSink) RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration) {
}

var (
	_ MetadataSink   = NoopSink{}
	_ CrawlFinalizer = NoopSink{}
)
