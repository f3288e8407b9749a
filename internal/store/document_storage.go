package store

import (
	"errors"

	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"
)

// UpsertDocument is deterministic on (job_id, content_hash): if a Document
// with that pair already exists, its last_seen_at/version are bumped and the
// existing id is returned; otherwise a new primary Document is inserted
// (spec.md §3 Document invariants, §4.2).
func (s *BadgerStore) UpsertDocument(doc jobmodel.Document) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing []jobmodel.DocumentSnapshot
	query := badgerhold.Where("JobID").Eq(doc.JobID()).And("ContentHash").Eq(doc.ContentHash())
	if err := s.db.Find(&existing, query); err != nil {
		return uuid.UUID{}, false, &OpError{Op: "UpsertDocument", Err: err}
	}
	if len(existing) > 0 {
		found, err := jobmodel.RehydrateDocument(existing[0])
		if err != nil {
			return uuid.UUID{}, false, &OpError{Op: "UpsertDocument", Err: err}
		}
		found.TouchSeen(doc.LastSeenAt())
		updated := found.Snapshot()
		if err := s.db.Update(updated.ID.String(), &updated); err != nil {
			return uuid.UUID{}, false, &OpError{Op: "UpsertDocument", Err: err}
		}
		return found.ID(), false, nil
	}

	snap := doc.Snapshot()
	if err := s.db.Insert(snap.ID.String(), &snap); err != nil {
		return uuid.UUID{}, false, &OpError{Op: "UpsertDocument", Err: err}
	}
	return doc.ID(), true, nil
}

func (s *BadgerStore) AttachURLAlias(alias jobmodel.DocumentURL) error {
	snap := alias.Snapshot()
	key := alias.DocumentID().String() + "|" + snap.URL
	if err := s.db.Upsert(key, &snap); err != nil {
		return &OpError{Op: "AttachURLAlias", Err: err}
	}
	return nil
}

// ListDocumentAliases returns every DocumentURL recorded against docID, for
// the Finalizer's url_aliases grouping (spec.md §4.5 step 2).
func (s *BadgerStore) ListDocumentAliases(docID uuid.UUID) ([]jobmodel.DocumentURL, error) {
	var snaps []jobmodel.DocumentURLSnapshot
	if err := s.db.Find(&snaps, badgerhold.Where("DocumentID").Eq(docID)); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, &OpError{Op: "ListDocumentAliases", Err: err}
	}

	aliases := make([]jobmodel.DocumentURL, 0, len(snaps))
	for _, snap := range snaps {
		alias, err := jobmodel.RehydrateDocumentURL(snap)
		if err != nil {
			return nil, &OpError{Op: "ListDocumentAliases", Err: err}
		}
		aliases = append(aliases, alias)
	}
	return aliases, nil
}

func (s *BadgerStore) ListDocuments(jobID uuid.UUID) ([]jobmodel.Document, error) {
	var snaps []jobmodel.DocumentSnapshot
	if err := s.db.Find(&snaps, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, &OpError{Op: "ListDocuments", Err: err}
	}

	docs := make([]jobmodel.Document, 0, len(snaps))
	for _, snap := range snaps {
		doc, err := jobmodel.RehydrateDocument(snap)
		if err != nil {
			return nil, &OpError{Op: "ListDocuments", Err: err}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
