package store

import (
	"errors"
	"time"

	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"
)

func (s *BadgerStore) CreateJob(job jobmodel.Job) error {
	snap := job.Snapshot()
	if err := s.db.Insert(snap.ID.String(), &snap); err != nil {
		return &OpError{Op: "CreateJob", Err: err}
	}
	return nil
}

func (s *BadgerStore) GetJob(id uuid.UUID) (jobmodel.Job, error) {
	var snap jobmodel.JobSnapshot
	if err := s.db.Get(id.String(), &snap); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return jobmodel.Job{}, ErrJobNotFound
		}
		return jobmodel.Job{}, &OpError{Op: "GetJob", Err: err}
	}
	return jobmodel.RehydrateJob(snap)
}

// ClaimNextQueuedJob selects the oldest queued Job, atomically sets it
// running, and returns it (spec.md §4.2). The app-level mutex is what makes
// "select then flip" atomic — the same read-modify-write-under-lock idiom
// ternarybob-quaero's JobStorage uses, since badgerhold doesn't expose
// cross-key transactions.
func (s *BadgerStore) ClaimNextQueuedJob(workerID string, now time.Time) (jobmodel.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []jobmodel.JobSnapshot
	query := badgerhold.Where("State").Eq(jobmodel.JobQueued).SortBy("CreatedAt").Limit(1)
	if err := s.db.Find(&candidates, query); err != nil {
		return jobmodel.Job{}, false, &OpError{Op: "ClaimNextQueuedJob", Err: err}
	}
	if len(candidates) == 0 {
		return jobmodel.Job{}, false, nil
	}

	job, err := jobmodel.RehydrateJob(candidates[0])
	if err != nil {
		return jobmodel.Job{}, false, &OpError{Op: "ClaimNextQueuedJob", Err: err}
	}
	if err := job.Transition(jobmodel.JobRunning, now); err != nil {
		return jobmodel.Job{}, false, &OpError{Op: "ClaimNextQueuedJob", Err: err}
	}

	snap := job.Snapshot()
	if err := s.db.Update(snap.ID.String(), &snap); err != nil {
		return jobmodel.Job{}, false, &OpError{Op: "ClaimNextQueuedJob", Err: err}
	}
	return job, true, nil
}

func (s *BadgerStore) Heartbeat(jobID uuid.UUID, pagesFetched int, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap jobmodel.JobSnapshot
	if err := s.db.Get(jobID.String(), &snap); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ErrJobNotFound
		}
		return &OpError{Op: "Heartbeat", Err: err}
	}
	job, err := jobmodel.RehydrateJob(snap)
	if err != nil {
		return &OpError{Op: "Heartbeat", Err: err}
	}
	job.RecordHeartbeat(pagesFetched, now)

	updated := job.Snapshot()
	if err := s.db.Update(jobID.String(), &updated); err != nil {
		return &OpError{Op: "Heartbeat", Err: err}
	}
	return nil
}

// UpdateJob reads, rehydrates, and re-persists a Job under the same
// get-mutate-update lock ClaimNextQueuedJob/Heartbeat/SetState use, for
// fields neither of those narrower methods touches (site_status, error
// bookkeeping, restart_count) — the Engine and Supervisor's shared path for
// any Job mutation that isn't a state transition or a heartbeat.
func (s *BadgerStore) UpdateJob(jobID uuid.UUID, mutate func(*jobmodel.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap jobmodel.JobSnapshot
	if err := s.db.Get(jobID.String(), &snap); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ErrJobNotFound
		}
		return &OpError{Op: "UpdateJob", Err: err}
	}
	job, err := jobmodel.RehydrateJob(snap)
	if err != nil {
		return &OpError{Op: "UpdateJob", Err: err}
	}
	mutate(&job)

	updated := job.Snapshot()
	if err := s.db.Update(jobID.String(), &updated); err != nil {
		return &OpError{Op: "UpdateJob", Err: err}
	}
	return nil
}

// ListNonTerminalJobs returns every Job whose state isn't one of
// done/failed/cancelled/expired, for the Supervisor's per-tick sweeps.
func (s *BadgerStore) ListNonTerminalJobs() ([]jobmodel.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snaps []jobmodel.JobSnapshot
	query := badgerhold.Where("State").In(jobmodel.JobQueued, jobmodel.JobRunning, jobmodel.JobFinalizing)
	if err := s.db.Find(&snaps, query); err != nil {
		return nil, &OpError{Op: "ListNonTerminalJobs", Err: err}
	}

	jobs := make([]jobmodel.Job, 0, len(snaps))
	for _, snap := range snaps {
		job, err := jobmodel.RehydrateJob(snap)
		if err != nil {
			return nil, &OpError{Op: "ListNonTerminalJobs", Err: err}
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *BadgerStore) SetState(jobID uuid.UUID, newState jobmodel.JobState, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap jobmodel.JobSnapshot
	if err := s.db.Get(jobID.String(), &snap); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ErrJobNotFound
		}
		return &OpError{Op: "SetState", Err: err}
	}
	job, err := jobmodel.RehydrateJob(snap)
	if err != nil {
		return &OpError{Op: "SetState", Err: err}
	}
	if err := job.Transition(newState, now); err != nil {
		return err
	}

	updated := job.Snapshot()
	if err := s.db.Update(jobID.String(), &updated); err != nil {
		return &OpError{Op: "SetState", Err: err}
	}
	return nil
}
