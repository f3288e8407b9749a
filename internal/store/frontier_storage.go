package store

import (
	"errors"
	"time"

	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"
)

// EnqueueURL is a no-op if (job_id, canonical_url) already exists; otherwise
// it inserts a queued entry (spec.md §4.2, §3 FrontierEntry invariants).
func (s *BadgerStore) EnqueueURL(entry jobmodel.FrontierEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing []jobmodel.FrontierEntrySnapshot
	query := badgerhold.Where("JobID").Eq(entry.JobID()).And("CanonicalURL").Eq(entry.CanonicalURL().String())
	if err := s.db.Find(&existing, query); err != nil {
		return false, &OpError{Op: "EnqueueURL", Err: err}
	}
	if len(existing) > 0 {
		return false, nil
	}

	snap := entry.Snapshot()
	if err := s.db.Insert(snap.ID.String(), &snap); err != nil {
		return false, &OpError{Op: "EnqueueURL", Err: err}
	}
	return true, nil
}

// LeaseURLs atomically selects up to batch visible entries (queued, or
// fetching with an expired lease) and marks them leased to workerID.
func (s *BadgerStore) LeaseURLs(jobID uuid.UUID, workerID string, batch int, ttl time.Duration, now time.Time) ([]jobmodel.FrontierEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []jobmodel.FrontierEntrySnapshot
	query := badgerhold.Where("JobID").Eq(jobID).And("State").Eq(jobmodel.EntryQueued).Limit(batch)
	if err := s.db.Find(&candidates, query); err != nil {
		return nil, &OpError{Op: "LeaseURLs", Err: err}
	}

	if len(candidates) < batch {
		var expiredLease []jobmodel.FrontierEntrySnapshot
		staleQuery := badgerhold.Where("JobID").Eq(jobID).And("State").Eq(jobmodel.EntryFetching).And("LeaseExpires").Lt(&now).Limit(batch - len(candidates))
		if err := s.db.Find(&expiredLease, staleQuery); err != nil {
			return nil, &OpError{Op: "LeaseURLs", Err: err}
		}
		candidates = append(candidates, expiredLease...)
	}

	leased := make([]jobmodel.FrontierEntry, 0, len(candidates))
	for _, snap := range candidates {
		entry, err := jobmodel.RehydrateFrontierEntry(snap)
		if err != nil {
			return nil, &OpError{Op: "LeaseURLs", Err: err}
		}
		if !entry.IsVisibleForLease(now) {
			continue
		}
		entry.Lease(workerID, now, ttl)
		updated := entry.Snapshot()
		if err := s.db.Update(updated.ID.String(), &updated); err != nil {
			return nil, &OpError{Op: "LeaseURLs", Err: err}
		}
		leased = append(leased, entry)
	}
	return leased, nil
}

func (s *BadgerStore) CompleteURL(entryID uuid.UUID, outcome jobmodel.CompleteOutcome, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap jobmodel.FrontierEntrySnapshot
	if err := s.db.Get(entryID.String(), &snap); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ErrEntryNotFound
		}
		return &OpError{Op: "CompleteURL", Err: err}
	}
	entry, err := jobmodel.RehydrateFrontierEntry(snap)
	if err != nil {
		return &OpError{Op: "CompleteURL", Err: err}
	}
	entry.Complete(outcome, now)

	updated := entry.Snapshot()
	if err := s.db.Update(entryID.String(), &updated); err != nil {
		return &OpError{Op: "CompleteURL", Err: err}
	}
	return nil
}

// ExpireStaleLeases returns entries whose lease expired, bumping retry_count
// and making them visible again (or permanently failed past MaxRetries).
func (s *BadgerStore) ExpireStaleLeases(jobID uuid.UUID, now time.Time) ([]jobmodel.FrontierEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []jobmodel.FrontierEntrySnapshot
	query := badgerhold.Where("JobID").Eq(jobID).And("State").Eq(jobmodel.EntryFetching).And("LeaseExpires").Lt(&now)
	if err := s.db.Find(&stale, query); err != nil {
		return nil, &OpError{Op: "ExpireStaleLeases", Err: err}
	}

	expired := make([]jobmodel.FrontierEntry, 0, len(stale))
	for _, snap := range stale {
		entry, err := jobmodel.RehydrateFrontierEntry(snap)
		if err != nil {
			return nil, &OpError{Op: "ExpireStaleLeases", Err: err}
		}
		entry.ExpireLease()
		updated := entry.Snapshot()
		if err := s.db.Update(updated.ID.String(), &updated); err != nil {
			return nil, &OpError{Op: "ExpireStaleLeases", Err: err}
		}
		expired = append(expired, entry)
	}
	return expired, nil
}
