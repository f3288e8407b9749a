// Package finalizer implements spec.md §4.5: the post-crawl pass that reads
// the Engine's incrementally-written raw fetch ledger, writes the
// deduplicated pages.jsonl/summary.json/kb/*.md artifact set, registers each
// as a JobArtifact, and drives the Job to its terminal state.
package finalizer

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
)

const (
	// RawRecordsFilename is the Engine's single-writer, append-only ledger
	// of every completed FrontierEntry (spec.md §4.5 step 1).
	RawRecordsFilename = "pages.raw.jsonl"
	PagesFilename       = "pages.jsonl"
	SummaryFilename     = "summary.json"
	KBDirname           = "kb"
)

// RawPageRecord is one line of pages.raw.jsonl: everything the Finalizer
// needs about a completed fetch without re-deriving it from the Store.
type RawPageRecord struct {
	URL          string    `json:"url"`
	CanonicalURL string    `json:"canonical_url"`
	Depth        int       `json:"depth"`
	Outcome      string    `json:"outcome"`
	StatusCode   int       `json:"status_code"`
	Error        string    `json:"error,omitempty"`
	ContentHash  string    `json:"content_hash,omitempty"`
	DocumentID   string    `json:"document_id,omitempty"`
	QualityScore float64   `json:"quality_score,omitempty"`
	MarkdownPath string    `json:"markdown_path,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// PageRecord is one line of pages.jsonl: one deduplicated Document, its
// primary URL, and every alias URL that resolved to it.
type PageRecord struct {
	DocumentID   string    `json:"document_id"`
	URL          string    `json:"url"`
	ContentHash  string    `json:"content_hash"`
	Title        string    `json:"title"`
	Language     string    `json:"language"`
	DocType      string    `json:"doc_type"`
	QualityScore float64   `json:"quality_score"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	Version      int       `json:"version"`
	URLAliases   []Alias   `json:"url_aliases,omitempty"`
}

// Alias is one non-primary URL that deduplicated onto a PageRecord's Document.
type Alias struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Summary is summary.json's shape (spec.md §4.5 step 4).
type Summary struct {
	TotalFetched     int            `json:"total_fetched"`
	TotalExported    int            `json:"total_exported"`
	TotalErrors      int            `json:"total_errors"`
	SiteStatus       string         `json:"site_status"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	FinishedAt       time.Time      `json:"finished_at"`
	ElapsedSeconds   float64        `json:"elapsed_seconds"`
	StatusHistogram  map[string]int `json:"status_histogram"`
	TopErrors        []ErrorCount   `json:"top_errors"`
}

// ErrorCount is one entry of summary.json's top-10 error-type histogram.
type ErrorCount struct {
	Error string `json:"error"`
	Count int    `json:"count"`
}

func newPageRecord(doc jobmodel.Document, aliases []jobmodel.DocumentURL) PageRecord {
	rec := PageRecord{
		DocumentID:   doc.ID().String(),
		URL:          doc.PrimaryURL().String(),
		ContentHash:  doc.ContentHash(),
		Title:        doc.Title(),
		Language:     doc.Language(),
		DocType:      string(doc.DocType()),
		QualityScore: doc.QualityScore(),
		FirstSeenAt:  doc.FirstSeenAt(),
		LastSeenAt:   doc.LastSeenAt(),
		Version:      doc.Version(),
	}
	for _, a := range aliases {
		a := a
		rec.URLAliases = append(rec.URLAliases, Alias{URL: a.URL().String(), Reason: string(a.Reason())})
	}
	return rec
}

// RawRecordWriter appends RawPageRecords to pages.raw.jsonl. It is the
// crawl's single writer of that file (spec.md §5's "output file is appended
// by exactly one writer"), so its only synchronization need is serializing
// concurrent worker goroutines within that one Engine.
type RawRecordWriter struct {
	mu sync.Mutex
	f  *os.File
}

// NewRawRecordWriter opens (creating/truncating) path for append-only writes.
func NewRawRecordWriter(path string) (*RawRecordWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	return &RawRecordWriter{f: f}, nil
}

// Append writes one JSON line; concurrent workers may call this safely.
func (w *RawRecordWriter) Append(rec RawPageRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.f.Write(line)
	return err
}

// Close flushes and closes the underlying file.
func (w *RawRecordWriter) Close() error {
	return w.f.Close()
}

func readRawRecords(path string) ([]RawPageRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []RawPageRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec RawPageRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func writePagesJSONL(path string, records []PageRecord) error {
	sort.Slice(records, func(i, j int) bool { return records[i].FirstSeenAt.Before(records[j].FirstSeenAt) })

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func writeSummaryJSON(path string, summary Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func buildSummary(job jobmodel.Job, raw []RawPageRecord, now time.Time) Summary {
	histogram := make(map[string]int)
	errorCounts := make(map[string]int)
	for _, rec := range raw {
		if rec.StatusCode > 0 {
			histogram[statusBucket(rec.StatusCode)]++
		}
		if rec.Error != "" {
			errorCounts[rec.Error]++
		}
	}

	topErrors := make([]ErrorCount, 0, len(errorCounts))
	for msg, count := range errorCounts {
		topErrors = append(topErrors, ErrorCount{Error: msg, Count: count})
	}
	sort.Slice(topErrors, func(i, j int) bool {
		if topErrors[i].Count != topErrors[j].Count {
			return topErrors[i].Count > topErrors[j].Count
		}
		return topErrors[i].Error < topErrors[j].Error
	})
	if len(topErrors) > 10 {
		topErrors = topErrors[:10]
	}

	var elapsed float64
	if job.StartedAt() != nil {
		elapsed = now.Sub(*job.StartedAt()).Seconds()
	}

	return Summary{
		TotalFetched:    len(raw),
		TotalExported:   job.PagesExported(),
		TotalErrors:     job.ErrorsCount(),
		SiteStatus:      string(job.SiteStatus()),
		StartedAt:       job.StartedAt(),
		FinishedAt:      now,
		ElapsedSeconds:  elapsed,
		StatusHistogram: histogram,
		TopErrors:       topErrors,
	}
}

func statusBucket(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
