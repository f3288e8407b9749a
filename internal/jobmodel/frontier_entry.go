package jobmodel

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// FrontierEntryState is one of a FrontierEntry's lifecycle states.
type FrontierEntryState string

const (
	EntryQueued   FrontierEntryState = "queued"
	EntryFetching FrontierEntryState = "fetching"
	EntryFetched  FrontierEntryState = "fetched"
	EntryParsed   FrontierEntryState = "parsed"
	EntryStored   FrontierEntryState = "stored"
	EntryFailed   FrontierEntryState = "failed"
	EntrySkipped  FrontierEntryState = "skipped"
)

// MaxRetries is the retry_count ceiling past which a FrontierEntry is
// permanently failed (spec.md §3 FrontierEntry invariants).
const MaxRetries = 3

// FrontierEntry is one pending/completed URL for one Job.
type FrontierEntry struct {
	id    uuid.UUID
	jobID uuid.UUID

	url          url.URL
	canonicalURL url.URL
	state        FrontierEntryState
	depth        int
	priority     int

	discoveredAt time.Time
	leasedAt     *time.Time
	leasedBy     string
	leaseExpires *time.Time

	retryCount     int
	lastError      string
	lastStatusCode int

	fetchedAt *time.Time
	parsedAt  *time.Time
	storedAt  *time.Time
}

// NewFrontierEntry constructs a queued FrontierEntry discovered at now.
func NewFrontierEntry(jobID uuid.UUID, rawURL, canonicalURL url.URL, depth, priority int, now time.Time) FrontierEntry {
	return FrontierEntry{
		id:           uuid.New(),
		jobID:        jobID,
		url:          rawURL,
		canonicalURL: canonicalURL,
		state:        EntryQueued,
		depth:        depth,
		priority:     priority,
		discoveredAt: now,
	}
}

func (e *FrontierEntry) ID() uuid.UUID                  { return e.id }
func (e *FrontierEntry) JobID() uuid.UUID                { return e.jobID }
func (e *FrontierEntry) URL() url.URL                    { return e.url }
func (e *FrontierEntry) CanonicalURL() url.URL           { return e.canonicalURL }
func (e *FrontierEntry) State() FrontierEntryState       { return e.state }
func (e *FrontierEntry) Depth() int                      { return e.depth }
func (e *FrontierEntry) Priority() int                   { return e.priority }
func (e *FrontierEntry) DiscoveredAt() time.Time         { return e.discoveredAt }
func (e *FrontierEntry) LeasedAt() *time.Time            { return e.leasedAt }
func (e *FrontierEntry) LeasedBy() string                { return e.leasedBy }
func (e *FrontierEntry) LeaseExpiresAt() *time.Time      { return e.leaseExpires }
func (e *FrontierEntry) RetryCount() int                 { return e.retryCount }
func (e *FrontierEntry) LastError() string               { return e.lastError }
func (e *FrontierEntry) LastStatusCode() int             { return e.lastStatusCode }
func (e *FrontierEntry) FetchedAt() *time.Time           { return e.fetchedAt }
func (e *FrontierEntry) ParsedAt() *time.Time            { return e.parsedAt }
func (e *FrontierEntry) StoredAt() *time.Time            { return e.storedAt }

// IsVisibleForLease reports whether this entry may be handed out by
// LeaseURLs: either untouched (queued), or fetching with an expired lease
// (spec.md §3 FrontierEntry invariants).
func (e *FrontierEntry) IsVisibleForLease(now time.Time) bool {
	if e.state == EntryQueued {
		return true
	}
	return e.state == EntryFetching && e.leaseExpires != nil && e.leaseExpires.Before(now)
}

// Lease marks the entry fetching, owned by workerID until now+ttl.
func (e *FrontierEntry) Lease(workerID string, now time.Time, ttl time.Duration) {
	e.state = EntryFetching
	e.leasedAt = &now
	e.leasedBy = workerID
	expires := now.Add(ttl)
	e.leaseExpires = &expires
}

// ExpireLease returns the entry to queued and bumps retry_count, marking it
// permanently failed once MaxRetries is exceeded.
func (e *FrontierEntry) ExpireLease() {
	e.retryCount++
	e.leasedAt = nil
	e.leasedBy = ""
	e.leaseExpires = nil
	if e.retryCount > MaxRetries {
		e.state = EntryFailed
		return
	}
	e.state = EntryQueued
}

// CompleteOutcome describes the result of one fetch/parse/store attempt,
// passed to Complete to drive the entry's terminal (or retryable) state.
type CompleteOutcome struct {
	State      FrontierEntryState
	StatusCode int
	Err        string
}

// Complete moves the entry to the outcome's state and stamps the matching
// timestamp field.
func (e *FrontierEntry) Complete(outcome CompleteOutcome, now time.Time) {
	e.state = outcome.State
	e.lastStatusCode = outcome.StatusCode
	e.lastError = outcome.Err
	switch outcome.State {
	case EntryFetched:
		e.fetchedAt = &now
	case EntryParsed:
		e.parsedAt = &now
	case EntryStored:
		e.storedAt = &now
	case EntryFailed:
		e.retryCount++
	}
}
