package jobmodel

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// DocType classifies extracted content for downstream reporting.
type DocType string

const (
	DocTypeArticle   DocType = "article"
	DocTypeReference DocType = "reference"
	DocTypeUnknown   DocType = "unknown"
)

// Document is one deduplicated piece of content: the first URL whose
// extraction produces a given content_hash becomes primary; later URLs
// producing the same hash attach as DocumentURL aliases instead of creating
// a new Document (spec.md §3 Document invariants).
type Document struct {
	id              uuid.UUID
	jobID           uuid.UUID
	contentHash     string
	titleHash       string
	primaryURL      url.URL
	primaryCanonical url.URL
	title           string
	language        string
	docType         DocType
	qualityScore    float64
	qualityPassed   bool
	firstSeenAt     time.Time
	lastSeenAt      time.Time
	version         int
}

// NewDocument constructs the primary Document for a freshly seen content_hash.
func NewDocument(
	jobID uuid.UUID,
	contentHash, titleHash string,
	primaryURL, primaryCanonical url.URL,
	title, language string,
	docType DocType,
	qualityScore float64,
	qualityPassed bool,
	now time.Time,
) Document {
	return Document{
		id:               uuid.New(),
		jobID:            jobID,
		contentHash:      contentHash,
		titleHash:        titleHash,
		primaryURL:       primaryURL,
		primaryCanonical: primaryCanonical,
		title:            title,
		language:         language,
		docType:          docType,
		qualityScore:     qualityScore,
		qualityPassed:    qualityPassed,
		firstSeenAt:      now,
		lastSeenAt:       now,
		version:          1,
	}
}

func (d *Document) ID() uuid.UUID                { return d.id }
func (d *Document) JobID() uuid.UUID             { return d.jobID }
func (d *Document) ContentHash() string          { return d.contentHash }
func (d *Document) TitleHash() string            { return d.titleHash }
func (d *Document) PrimaryURL() url.URL          { return d.primaryURL }
func (d *Document) PrimaryCanonical() url.URL    { return d.primaryCanonical }
func (d *Document) Title() string                { return d.title }
func (d *Document) Language() string             { return d.language }
func (d *Document) DocType() DocType             { return d.docType }
func (d *Document) QualityScore() float64        { return d.qualityScore }
func (d *Document) QualityPassed() bool          { return d.qualityPassed }
func (d *Document) FirstSeenAt() time.Time       { return d.firstSeenAt }
func (d *Document) LastSeenAt() time.Time        { return d.lastSeenAt }
func (d *Document) Version() int                 { return d.version }

// TouchSeen bumps last_seen_at and version when a later crawl re-encounters
// the same content_hash; every other Document field stays immutable
// (spec.md §3 "never mutated except last_seen_at and version").
func (d *Document) TouchSeen(now time.Time) {
	d.lastSeenAt = now
	d.version++
}

// AliasReason classifies why a URL maps to a Document other than its primary.
type AliasReason string

const (
	AliasCanonical       AliasReason = "canonical"
	AliasContentHash     AliasReason = "content_hash"
	AliasRedirect        AliasReason = "redirect"
	AliasLanguageVariant AliasReason = "language_variant"
)

// DocumentURL maps a URL onto the Document it resolved to.
type DocumentURL struct {
	docID     uuid.UUID
	url       url.URL
	canonical url.URL
	reason    AliasReason
}

// NewDocumentURL constructs a DocumentURL alias record.
func NewDocumentURL(docID uuid.UUID, rawURL, canonical url.URL, reason AliasReason) DocumentURL {
	return DocumentURL{docID: docID, url: rawURL, canonical: canonical, reason: reason}
}

func (a *DocumentURL) DocumentID() uuid.UUID { return a.docID }
func (a *DocumentURL) URL() url.URL          { return a.url }
func (a *DocumentURL) Canonical() url.URL    { return a.canonical }
func (a *DocumentURL) Reason() AliasReason   { return a.reason }
