package store

import (
	"errors"

	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"
)

// LogEvent appends one row to the job's append-only transition/error/
// block-evidence log (spec.md §3 JobEvent, §4.2).
func (s *BadgerStore) LogEvent(event jobmodel.JobEvent) error {
	snap := event.Snapshot()
	if err := s.db.Insert(snap.ID.String(), &snap); err != nil {
		return &OpError{Op: "LogEvent", Err: err}
	}
	return nil
}

func (s *BadgerStore) ListEvents(jobID uuid.UUID) ([]jobmodel.JobEvent, error) {
	var snaps []jobmodel.JobEventSnapshot
	query := badgerhold.Where("JobID").Eq(jobID).SortBy("CreatedAt")
	if err := s.db.Find(&snaps, query); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, &OpError{Op: "ListEvents", Err: err}
	}

	events := make([]jobmodel.JobEvent, 0, len(snaps))
	for _, snap := range snaps {
		events = append(events, jobmodel.RehydrateJobEvent(snap))
	}
	return events, nil
}
