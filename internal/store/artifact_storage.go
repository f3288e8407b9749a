package store

import (
	"errors"

	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"
)

// RegisterArtifact appends one output-file record for the Finalizer
// (spec.md §4.5 "register JobArtifacts"). Re-registering the same path on a
// re-run is safe: ListArtifacts is informational, not a uniqueness gate.
func (s *BadgerStore) RegisterArtifact(artifact jobmodel.JobArtifact) error {
	snap := artifact.Snapshot()
	if err := s.db.Insert(snap.ID.String(), &snap); err != nil {
		return &OpError{Op: "RegisterArtifact", Err: err}
	}
	return nil
}

func (s *BadgerStore) ListArtifacts(jobID uuid.UUID) ([]jobmodel.JobArtifact, error) {
	var snaps []jobmodel.JobArtifactSnapshot
	if err := s.db.Find(&snaps, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, &OpError{Op: "ListArtifacts", Err: err}
	}

	artifacts := make([]jobmodel.JobArtifact, 0, len(snaps))
	for _, snap := range snaps {
		artifacts = append(artifacts, jobmodel.RehydrateJobArtifact(snap))
	}
	return artifacts, nil
}
