package metadata

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Recorder is the default MetadataSink/CrawlFinalizer: a zerolog.Logger
// emitting the pipeline-stage event shapes above as structured fields,
// tagged with a worker name so concurrent crawl workers' logs interleave
// without needing to be disambiguated downstream.
type Recorder struct {
	logger     zerolog.Logger
	workerName string
}

// NewRecorder builds a Recorder writing structured JSON lines to stdout,
// tagged with workerName.
func NewRecorder(workerName string) Recorder {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("worker", workerName).Logger()
	return Recorder{logger: logger, workerName: workerName}
}

// NewRecorderWithLogger wraps a pre-built logger, e.g. one writing to a
// bytes.Buffer under test.
func NewRecorderWithLogger(workerName string, logger zerolog.Logger) Recorder {
	return Recorder{logger: logger.With().Str("worker", workerName).Logger(), workerName: workerName}
}

func (r *Recorder) RecordError(observedAt time.Time, packageName, action string, cause ErrorCause, details string, attrs []Attribute) {
	evt := r.logger.Error().
		Time("observed_at", observedAt).
		Str("package", packageName).
		Str("action", action).
		Int("cause", int(cause)).
		Str("details", details)
	for _, a := range attrs {
		evt = evt.Str(string(a.Key), a.Value)
	}
	evt.Msg(action)
}

func (r *Recorder) RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount, crawlDepth int) {
	r.logger.Info().
		Str("url", fetchURL).
		Int("http_status", httpStatus).
		Dur("duration", duration).
		Str("content_type", contentType).
		Int("retry_count", retryCount).
		Int("crawl_depth", crawlDepth).
		Msg("fetch")
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	evt := r.logger.Info().Str("kind", string(kind)).Str("path", path)
	for _, a := range attrs {
		evt = evt.Str(string(a.Key), a.Value)
	}
	evt.Msg("artifact")
}

func (r *Recorder) RecordAssetFetch(fetchURL string, httpStatus int, duration time.Duration, retryCount int) {
	r.logger.Info().
		Str("url", fetchURL).
		Int("http_status", httpStatus).
		Dur("duration", duration).
		Int("retry_count", retryCount).
		Msg("asset_fetch")
}

// RecordFinalCrawlStats logs a crawl's terminal aggregate counts and
// duration (see crawlStats's doc comment). No pipeline stage in this module
// calls it.
func (r *Recorder) RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration) {
	r.logger.Info().
		Int("total_pages", totalPages).
		Int("total_errors", totalErrors).
		Int("total_assets", totalAssets).
		Dur("duration", duration).
		Msg("crawl_finished")
}

var (
	_ MetadataSink   = (*Recorder)(nil)
	_ CrawlFinalizer = (*Recorder)(nil)
)
