package metadata_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/crawlkit-dev/crawlkit/internal/metadata"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_RecordError_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	recorder := metadata.NewRecorderWithLogger("test-worker", zerolog.New(&buf))

	recorder.RecordError(time.Now(), "extractor", "DomExtractor.Extract", metadata.CauseContentInvalid, "boom", []metadata.Attribute{
		metadata.NewAttr(metadata.AttrURL, "https://docs.example.com/a"),
	})

	out := buf.String()
	assert.Contains(t, out, "extractor")
	assert.Contains(t, out, "DomExtractor.Extract")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "test-worker")
}

func TestRecorder_RecordFinalCrawlStats(t *testing.T) {
	var buf bytes.Buffer
	recorder := metadata.NewRecorderWithLogger("test-worker", zerolog.New(&buf))

	recorder.RecordFinalCrawlStats(10, 2, 3, 5*time.Second)

	out := buf.String()
	assert.Contains(t, out, "crawl_finished")
	assert.Contains(t, out, `"total_pages":10`)
}

var (
	_ metadata.MetadataSink   = (*metadata.Recorder)(nil)
	_ metadata.CrawlFinalizer = (*metadata.Recorder)(nil)
)
