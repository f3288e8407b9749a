package jobmodel

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactKind classifies a file the Finalizer wrote for a job (spec.md §4.5).
type ArtifactKind string

const (
	ArtifactPagesJSONL    ArtifactKind = "pages_jsonl"
	ArtifactPagesRawJSONL ArtifactKind = "pages_raw_jsonl"
	ArtifactSummaryJSON   ArtifactKind = "summary_json"
	ArtifactKnowledgeBase ArtifactKind = "kb_markdown"
)

// JobArtifact records one output file the Finalizer produced, so a re-run or
// a status query can report what was written without re-walking the output
// directory.
type JobArtifact struct {
	id        uuid.UUID
	jobID     uuid.UUID
	kind      ArtifactKind
	path      string
	sizeByte  int64
	createdAt time.Time
}

// NewJobArtifact constructs a JobArtifact record stamped at now.
func NewJobArtifact(jobID uuid.UUID, kind ArtifactKind, path string, sizeByte int64, now time.Time) JobArtifact {
	return JobArtifact{
		id:        uuid.New(),
		jobID:     jobID,
		kind:      kind,
		path:      path,
		sizeByte:  sizeByte,
		createdAt: now,
	}
}

func (a *JobArtifact) ID() uuid.UUID        { return a.id }
func (a *JobArtifact) JobID() uuid.UUID     { return a.jobID }
func (a *JobArtifact) Kind() ArtifactKind   { return a.kind }
func (a *JobArtifact) Path() string         { return a.path }
func (a *JobArtifact) SizeByte() int64      { return a.sizeByte }
func (a *JobArtifact) CreatedAt() time.Time { return a.createdAt }
