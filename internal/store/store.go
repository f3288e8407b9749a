// Package store implements the crawl Store (spec.md §4.2): atomic job and
// frontier mutations, lease acquisition, dedup on insert, and event logging,
// backed by an embedded Badger KV through badgerhold.
package store

import (
	"time"

	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/google/uuid"
)

// Store is the durable collaborator the Supervisor and Crawl Engine drive.
// Every method is serializable at the granularity of a single call;
// Heartbeat/progress reads are read-your-writes against the same call site
// that issued the write (spec.md §4.2).
type Store interface {
	CreateJob(job jobmodel.Job) error
	GetJob(id uuid.UUID) (jobmodel.Job, error)
	ClaimNextQueuedJob(workerID string, now time.Time) (jobmodel.Job, bool, error)
	Heartbeat(jobID uuid.UUID, pagesFetched int, now time.Time) error
	SetState(jobID uuid.UUID, newState jobmodel.JobState, now time.Time) error
	UpdateJob(jobID uuid.UUID, mutate func(*jobmodel.Job)) error
	// ListNonTerminalJobs returns every Job not in a terminal state, for the
	// Supervisor's per-tick stall-rule evaluation and lease/TTL expiry sweeps
	// (spec.md §4.3).
	ListNonTerminalJobs() ([]jobmodel.Job, error)

	EnqueueURL(entry jobmodel.FrontierEntry) (inserted bool, err error)
	LeaseURLs(jobID uuid.UUID, workerID string, batch int, ttl time.Duration, now time.Time) ([]jobmodel.FrontierEntry, error)
	CompleteURL(entryID uuid.UUID, outcome jobmodel.CompleteOutcome, now time.Time) error
	ExpireStaleLeases(jobID uuid.UUID, now time.Time) ([]jobmodel.FrontierEntry, error)

	UpsertDocument(doc jobmodel.Document) (id uuid.UUID, isNew bool, err error)
	AttachURLAlias(alias jobmodel.DocumentURL) error
	ListDocuments(jobID uuid.UUID) ([]jobmodel.Document, error)
	ListDocumentAliases(docID uuid.UUID) ([]jobmodel.DocumentURL, error)

	LogEvent(event jobmodel.JobEvent) error
	ListEvents(jobID uuid.UUID) ([]jobmodel.JobEvent, error)

	RegisterArtifact(artifact jobmodel.JobArtifact) error
	ListArtifacts(jobID uuid.UUID) ([]jobmodel.JobArtifact, error)

	Close() error
}
