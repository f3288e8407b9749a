// Package jobmodel defines the crawl job's durable shapes — Job,
// FrontierEntry, Document, DocumentURL, JobEvent — and the state-machine
// rules the Store enforces on them.
package jobmodel

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// JobState is one of a Job's lifecycle states.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobRunning    JobState = "running"
	JobFinalizing JobState = "finalizing"
	JobDone       JobState = "done"
	JobFailed     JobState = "failed"
	JobCancelled  JobState = "cancelled"
	JobExpired    JobState = "expired"
)

// IsTerminal reports whether no further transition is possible.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobDone, JobFailed, JobCancelled, JobExpired:
		return true
	default:
		return false
	}
}

// jobTransitions enumerates every edge in the state machine. "expired" is
// deliberately absent here: it is reached from any non-terminal state via
// TTL elapse, handled by CanTransition's own JobExpired case rather than this table.
//
// running→queued is a supervisor-only edge, not part of the engine's normal
// exit paths (finalizing/failed/cancelled): it is how the Supervisor restarts
// an orphaned or stalled job (spec.md §4.3's restart action) while keeping
// restart_count and the frontier intact.
var jobTransitions = map[JobState]map[JobState]struct{}{
	JobQueued: {
		JobRunning: {},
	},
	JobRunning: {
		JobFinalizing: {},
		JobFailed:     {},
		JobCancelled:  {},
		JobQueued:     {},
	},
	JobFinalizing: {
		JobDone:      {},
		JobCancelled: {},
		JobFailed:    {},
	},
}

// CanTransition reports whether from→to is a legal Job state transition.
func CanTransition(from, to JobState) bool {
	if to == JobExpired {
		return !from.IsTerminal()
	}
	edges, ok := jobTransitions[from]
	if !ok {
		return false
	}
	_, ok = edges[to]
	return ok
}

// SiteStatus summarizes the engine's current read on the target site, fed
// by internal/blocklist's rolling-window detector (spec.md §4.4.4) plus the
// one-way JS-fallback transition (§4.4.2).
type SiteStatus string

const (
	SiteStatusHealthy       SiteStatus = "healthy"
	SiteStatusSlow          SiteStatus = "slow"
	SiteStatusBlocked       SiteStatus = "blocked"
	SiteStatusThrottled     SiteStatus = "throttled"
	SiteStatusLoginRequired SiteStatus = "login_required"
	// SiteStatusSwitchedToJS marks a job that has fallen back to the
	// JS-rendering fetcher. The switch is one-way: once set, the engine
	// never reverts to the plain HTML fetcher for the rest of the job.
	SiteStatusSwitchedToJS SiteStatus = "switched_to_js"
)

// Job is one crawl instance: immutable config plus mutable lifecycle state.
type Job struct {
	id          uuid.UUID
	accessToken string

	seedURL            url.URL
	allowedHost        string
	maxPages           int
	timeout            time.Duration
	ignorePathPrefixes []string
	forceJS            bool

	state JobState

	pagesFetched  int
	pagesExported int
	errorsCount   int

	createdAt      time.Time
	startedAt      *time.Time
	finishedAt     *time.Time
	expiresAt      time.Time
	heartbeatAt    time.Time
	lastProgressAt time.Time

	restartCount int
	siteStatus   SiteStatus
	blockEvidence string
	lastError     string

	cancelRequested bool
}

// DefaultJobTTL is the TTL applied to expires_at when none is supplied.
const DefaultJobTTL = 24 * time.Hour

// NewJob constructs a queued Job from its immutable config, stamping
// created_at/expires_at from now.
func NewJob(
	seedURL url.URL,
	allowedHost string,
	maxPages int,
	timeout time.Duration,
	ignorePathPrefixes []string,
	forceJS bool,
	accessToken string,
	now time.Time,
	ttl time.Duration,
) Job {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return Job{
		id:                 uuid.New(),
		accessToken:        accessToken,
		seedURL:            seedURL,
		allowedHost:        allowedHost,
		maxPages:           maxPages,
		timeout:            timeout,
		ignorePathPrefixes: append([]string(nil), ignorePathPrefixes...),
		forceJS:            forceJS,
		state:              JobQueued,
		createdAt:          now,
		expiresAt:          now.Add(ttl),
		heartbeatAt:        now,
		lastProgressAt:     now,
		siteStatus:         SiteStatusHealthy,
	}
}

func (j *Job) ID() uuid.UUID                    { return j.id }
func (j *Job) AccessToken() string              { return j.accessToken }
func (j *Job) SeedURL() url.URL                 { return j.seedURL }
func (j *Job) AllowedHost() string              { return j.allowedHost }
func (j *Job) MaxPages() int                    { return j.maxPages }
func (j *Job) Timeout() time.Duration           { return j.timeout }
func (j *Job) IgnorePathPrefixes() []string     { return append([]string(nil), j.ignorePathPrefixes...) }
func (j *Job) ForceJS() bool                    { return j.forceJS }
func (j *Job) State() JobState                  { return j.state }
func (j *Job) PagesFetched() int                { return j.pagesFetched }
func (j *Job) PagesExported() int               { return j.pagesExported }
func (j *Job) ErrorsCount() int                 { return j.errorsCount }
func (j *Job) CreatedAt() time.Time             { return j.createdAt }
func (j *Job) StartedAt() *time.Time            { return j.startedAt }
func (j *Job) FinishedAt() *time.Time           { return j.finishedAt }
func (j *Job) ExpiresAt() time.Time             { return j.expiresAt }
func (j *Job) HeartbeatAt() time.Time           { return j.heartbeatAt }
func (j *Job) LastProgressAt() time.Time        { return j.lastProgressAt }
func (j *Job) RestartCount() int                { return j.restartCount }
func (j *Job) SiteStatus() SiteStatus           { return j.siteStatus }
func (j *Job) BlockEvidence() string            { return j.blockEvidence }
func (j *Job) LastError() string                { return j.lastError }
func (j *Job) CancelRequested() bool            { return j.cancelRequested }

// RequestCancel sets the cooperative cancel flag; the engine observes it on
// its next heartbeat tick.
func (j *Job) RequestCancel() { j.cancelRequested = true }

// Transition moves the Job to newState, returning ErrIllegalTransition if
// the edge isn't allowed. Terminal timestamps and state-specific fields are
// stamped here so callers never have to remember which fields go with which
// transition.
func (j *Job) Transition(newState JobState, now time.Time) error {
	if !CanTransition(j.state, newState) {
		return &ErrIllegalTransition{From: j.state, To: j.state, Attempted: newState}
	}
	switch newState {
	case JobRunning:
		j.startedAt = &now
		j.heartbeatAt = now
		j.lastProgressAt = now
	case JobDone, JobFailed, JobCancelled, JobExpired:
		j.finishedAt = &now
	}
	j.state = newState
	return nil
}

// RecordHeartbeat updates progress counters; pagesFetched must be
// monotonically non-decreasing while the Job is non-terminal.
func (j *Job) RecordHeartbeat(pagesFetched int, now time.Time) {
	j.heartbeatAt = now
	if pagesFetched > j.pagesFetched {
		j.pagesFetched = pagesFetched
		j.lastProgressAt = now
	}
}

// IncrementErrorsCount bumps the counters.errors_count invariant.
func (j *Job) IncrementErrorsCount() { j.errorsCount++ }

// IncrementPagesExported bumps pages_exported, which only happens for a
// Document's primary URL, never its aliases (spec.md §3 Document invariants).
func (j *Job) IncrementPagesExported() { j.pagesExported++ }

// SetSiteStatus records the engine's current blocking-detection verdict.
func (j *Job) SetSiteStatus(status SiteStatus, evidence string) {
	j.siteStatus = status
	j.blockEvidence = evidence
}

// SetLastError records the most recent error observed for this Job.
func (j *Job) SetLastError(msg string) { j.lastError = msg }

// IncrementRestartCount is called when the Supervisor restarts a stalled job.
func (j *Job) IncrementRestartCount() { j.restartCount++ }

// IsExpired reports whether now has reached expires_at for a non-terminal Job.
func (j *Job) IsExpired(now time.Time) bool {
	return !j.state.IsTerminal() && !now.Before(j.expiresAt)
}
