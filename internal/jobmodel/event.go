package jobmodel

import (
	"time"

	"github.com/google/uuid"
)

// EventLevel mirrors zerolog's level vocabulary so JobEvent rows can be
// replayed straight into internal/obslog without translation.
type EventLevel string

const (
	EventLevelInfo  EventLevel = "info"
	EventLevelWarn  EventLevel = "warn"
	EventLevelError EventLevel = "error"
)

// JobEvent is one row of the append-only transition/error/block-evidence log.
type JobEvent struct {
	id        uuid.UUID
	jobID     uuid.UUID
	level     EventLevel
	event     string
	data      map[string]any
	createdAt time.Time
}

// NewJobEvent constructs a JobEvent stamped at now. data is copied shallowly
// so later caller mutation of the source map can't retroactively alter a
// logged event.
func NewJobEvent(jobID uuid.UUID, level EventLevel, event string, data map[string]any, now time.Time) JobEvent {
	copied := make(map[string]any, len(data))
	for k, v := range data {
		copied[k] = v
	}
	return JobEvent{
		id:        uuid.New(),
		jobID:     jobID,
		level:     level,
		event:     event,
		data:      copied,
		createdAt: now,
	}
}

func (e *JobEvent) ID() uuid.UUID          { return e.id }
func (e *JobEvent) JobID() uuid.UUID       { return e.jobID }
func (e *JobEvent) Level() EventLevel      { return e.level }
func (e *JobEvent) Event() string          { return e.event }
func (e *JobEvent) Data() map[string]any   { return e.data }
func (e *JobEvent) CreatedAt() time.Time   { return e.createdAt }
