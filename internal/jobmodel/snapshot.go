package jobmodel

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// JobSnapshot is Job's exported, storage-facing mirror — the same
// DTO-for-persistence idiom internal/config uses for its JSON/YAML override
// files. internal/store marshals/unmarshals this shape directly; Job itself
// keeps its fields private so every mutation goes through its invariant-
// checked methods.
type JobSnapshot struct {
	ID          uuid.UUID
	AccessToken string

	SeedURL            string
	AllowedHost        string
	MaxPages           int
	TimeoutSeconds     float64
	IgnorePathPrefixes []string
	ForceJS            bool

	State JobState `badgerholdIndex:"State"`

	PagesFetched  int
	PagesExported int
	ErrorsCount   int

	CreatedAt      time.Time `badgerholdIndex:"CreatedAt"`
	StartedAt      *time.Time
	FinishedAt     *time.Time
	ExpiresAt      time.Time
	HeartbeatAt    time.Time
	LastProgressAt time.Time

	RestartCount   int
	SiteStatus     SiteStatus
	BlockEvidence  string
	LastError      string
	CancelRequested bool
}

// Snapshot converts a Job into its persistable DTO.
func (j *Job) Snapshot() JobSnapshot {
	return JobSnapshot{
		ID:                 j.id,
		AccessToken:        j.accessToken,
		SeedURL:            j.seedURL.String(),
		AllowedHost:        j.allowedHost,
		MaxPages:           j.maxPages,
		TimeoutSeconds:     j.timeout.Seconds(),
		IgnorePathPrefixes: j.IgnorePathPrefixes(),
		ForceJS:            j.forceJS,
		State:              j.state,
		PagesFetched:       j.pagesFetched,
		PagesExported:      j.pagesExported,
		ErrorsCount:        j.errorsCount,
		CreatedAt:          j.createdAt,
		StartedAt:          j.startedAt,
		FinishedAt:         j.finishedAt,
		ExpiresAt:          j.expiresAt,
		HeartbeatAt:        j.heartbeatAt,
		LastProgressAt:     j.lastProgressAt,
		RestartCount:       j.restartCount,
		SiteStatus:         j.siteStatus,
		BlockEvidence:      j.blockEvidence,
		LastError:          j.lastError,
		CancelRequested:    j.cancelRequested,
	}
}

// RehydrateJob reconstructs a Job from a previously persisted JobSnapshot.
func RehydrateJob(s JobSnapshot) (Job, error) {
	seed, err := url.Parse(s.SeedURL)
	if err != nil {
		return Job{}, err
	}
	return Job{
		id:                 s.ID,
		accessToken:        s.AccessToken,
		seedURL:            *seed,
		allowedHost:        s.AllowedHost,
		maxPages:           s.MaxPages,
		timeout:            time.Duration(s.TimeoutSeconds * float64(time.Second)),
		ignorePathPrefixes: append([]string(nil), s.IgnorePathPrefixes...),
		forceJS:            s.ForceJS,
		state:              s.State,
		pagesFetched:       s.PagesFetched,
		pagesExported:      s.PagesExported,
		errorsCount:        s.ErrorsCount,
		createdAt:          s.CreatedAt,
		startedAt:          s.StartedAt,
		finishedAt:         s.FinishedAt,
		expiresAt:          s.ExpiresAt,
		heartbeatAt:        s.HeartbeatAt,
		lastProgressAt:     s.LastProgressAt,
		restartCount:       s.RestartCount,
		siteStatus:         s.SiteStatus,
		blockEvidence:      s.BlockEvidence,
		lastError:          s.LastError,
		cancelRequested:    s.CancelRequested,
	}, nil
}

// FrontierEntrySnapshot is FrontierEntry's exported, storage-facing mirror.
type FrontierEntrySnapshot struct {
	ID    uuid.UUID
	JobID uuid.UUID `badgerholdIndex:"JobID"`

	URL          string
	CanonicalURL string
	State        FrontierEntryState `badgerholdIndex:"State"`
	Depth        int
	Priority     int

	DiscoveredAt time.Time
	LeasedAt     *time.Time
	LeasedBy     string
	LeaseExpires *time.Time

	RetryCount     int
	LastError      string
	LastStatusCode int

	FetchedAt *time.Time
	ParsedAt  *time.Time
	StoredAt  *time.Time
}

// Snapshot converts a FrontierEntry into its persistable DTO.
func (e *FrontierEntry) Snapshot() FrontierEntrySnapshot {
	return FrontierEntrySnapshot{
		ID:             e.id,
		JobID:          e.jobID,
		URL:            e.url.String(),
		CanonicalURL:   e.canonicalURL.String(),
		State:          e.state,
		Depth:          e.depth,
		Priority:       e.priority,
		DiscoveredAt:   e.discoveredAt,
		LeasedAt:       e.leasedAt,
		LeasedBy:       e.leasedBy,
		LeaseExpires:   e.leaseExpires,
		RetryCount:     e.retryCount,
		LastError:      e.lastError,
		LastStatusCode: e.lastStatusCode,
		FetchedAt:      e.fetchedAt,
		ParsedAt:       e.parsedAt,
		StoredAt:       e.storedAt,
	}
}

// RehydrateFrontierEntry reconstructs a FrontierEntry from a previously
// persisted FrontierEntrySnapshot.
func RehydrateFrontierEntry(s FrontierEntrySnapshot) (FrontierEntry, error) {
	rawURL, err := url.Parse(s.URL)
	if err != nil {
		return FrontierEntry{}, err
	}
	canonical, err := url.Parse(s.CanonicalURL)
	if err != nil {
		return FrontierEntry{}, err
	}
	return FrontierEntry{
		id:             s.ID,
		jobID:          s.JobID,
		url:            *rawURL,
		canonicalURL:   *canonical,
		state:          s.State,
		depth:          s.Depth,
		priority:       s.Priority,
		discoveredAt:   s.DiscoveredAt,
		leasedAt:       s.LeasedAt,
		leasedBy:       s.LeasedBy,
		leaseExpires:   s.LeaseExpires,
		retryCount:     s.RetryCount,
		lastError:      s.LastError,
		lastStatusCode: s.LastStatusCode,
		fetchedAt:      s.FetchedAt,
		parsedAt:       s.ParsedAt,
		storedAt:       s.StoredAt,
	}, nil
}

// DocumentSnapshot is Document's exported, storage-facing mirror.
type DocumentSnapshot struct {
	ID               uuid.UUID
	JobID            uuid.UUID `badgerholdIndex:"JobID"`
	ContentHash      string    `badgerholdIndex:"ContentHash"`
	TitleHash        string
	PrimaryURL       string
	PrimaryCanonical string
	Title            string
	Language         string
	DocType          DocType
	QualityScore     float64
	QualityPassed    bool
	FirstSeenAt      time.Time
	LastSeenAt       time.Time
	Version          int
}

// Snapshot converts a Document into its persistable DTO.
func (d *Document) Snapshot() DocumentSnapshot {
	return DocumentSnapshot{
		ID:               d.id,
		JobID:            d.jobID,
		ContentHash:      d.contentHash,
		TitleHash:        d.titleHash,
		PrimaryURL:       d.primaryURL.String(),
		PrimaryCanonical: d.primaryCanonical.String(),
		Title:            d.title,
		Language:         d.language,
		DocType:          d.docType,
		QualityScore:     d.qualityScore,
		QualityPassed:    d.qualityPassed,
		FirstSeenAt:      d.firstSeenAt,
		LastSeenAt:       d.lastSeenAt,
		Version:          d.version,
	}
}

// RehydrateDocument reconstructs a Document from a persisted DocumentSnapshot.
func RehydrateDocument(s DocumentSnapshot) (Document, error) {
	primary, err := url.Parse(s.PrimaryURL)
	if err != nil {
		return Document{}, err
	}
	canonical, err := url.Parse(s.PrimaryCanonical)
	if err != nil {
		return Document{}, err
	}
	return Document{
		id:               s.ID,
		jobID:            s.JobID,
		contentHash:      s.ContentHash,
		titleHash:        s.TitleHash,
		primaryURL:       *primary,
		primaryCanonical: *canonical,
		title:            s.Title,
		language:         s.Language,
		docType:          s.DocType,
		qualityScore:     s.QualityScore,
		qualityPassed:    s.QualityPassed,
		firstSeenAt:      s.FirstSeenAt,
		lastSeenAt:       s.LastSeenAt,
		version:          s.Version,
	}, nil
}

// DocumentURLSnapshot is DocumentURL's exported, storage-facing mirror.
type DocumentURLSnapshot struct {
	DocumentID uuid.UUID
	URL        string
	Canonical  string
	Reason     AliasReason
}

// Snapshot converts a DocumentURL into its persistable DTO.
func (a *DocumentURL) Snapshot() DocumentURLSnapshot {
	return DocumentURLSnapshot{
		DocumentID: a.docID,
		URL:        a.url.String(),
		Canonical:  a.canonical.String(),
		Reason:     a.reason,
	}
}

// RehydrateDocumentURL reconstructs a DocumentURL from a persisted snapshot.
func RehydrateDocumentURL(s DocumentURLSnapshot) (DocumentURL, error) {
	rawURL, err := url.Parse(s.URL)
	if err != nil {
		return DocumentURL{}, err
	}
	canonical, err := url.Parse(s.Canonical)
	if err != nil {
		return DocumentURL{}, err
	}
	return DocumentURL{docID: s.DocumentID, url: *rawURL, canonical: *canonical, reason: s.Reason}, nil
}

// JobEventSnapshot is JobEvent's exported, storage-facing mirror.
type JobEventSnapshot struct {
	ID        uuid.UUID
	JobID     uuid.UUID `badgerholdIndex:"JobID"`
	Level     EventLevel
	Event     string
	Data      map[string]any
	CreatedAt time.Time
}

// Snapshot converts a JobEvent into its persistable DTO.
func (e *JobEvent) Snapshot() JobEventSnapshot {
	return JobEventSnapshot{
		ID:        e.id,
		JobID:     e.jobID,
		Level:     e.level,
		Event:     e.event,
		Data:      e.data,
		CreatedAt: e.createdAt,
	}
}

// RehydrateJobEvent reconstructs a JobEvent from a persisted JobEventSnapshot.
func RehydrateJobEvent(s JobEventSnapshot) JobEvent {
	return JobEvent{id: s.ID, jobID: s.JobID, level: s.Level, event: s.Event, data: s.Data, createdAt: s.CreatedAt}
}

// JobArtifactSnapshot is JobArtifact's exported, storage-facing mirror.
type JobArtifactSnapshot struct {
	ID        uuid.UUID
	JobID     uuid.UUID `badgerholdIndex:"JobID"`
	Kind      ArtifactKind
	Path      string
	SizeByte  int64
	CreatedAt time.Time
}

// Snapshot converts a JobArtifact into its persistable DTO.
func (a *JobArtifact) Snapshot() JobArtifactSnapshot {
	return JobArtifactSnapshot{
		ID:        a.id,
		JobID:     a.jobID,
		Kind:      a.kind,
		Path:      a.path,
		SizeByte:  a.sizeByte,
		CreatedAt: a.createdAt,
	}
}

// RehydrateJobArtifact reconstructs a JobArtifact from a persisted snapshot.
func RehydrateJobArtifact(s JobArtifactSnapshot) JobArtifact {
	return JobArtifact{id: s.ID, jobID: s.JobID, kind: s.Kind, path: s.Path, sizeByte: s.SizeByte, createdAt: s.CreatedAt}
}
