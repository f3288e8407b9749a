package jobmodel_test

import (
	"testing"
	"time"

	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewDocument_FirstVersionAndSeenTimestamps(t *testing.T) {
	now := time.Now()
	doc := jobmodel.NewDocument(
		uuid.New(), "hash-1", "title-hash-1",
		mustURL(t, "https://docs.example.com/a"),
		mustURL(t, "https://docs.example.com/a"),
		"A title", "en", jobmodel.DocTypeArticle, 0.9, true, now,
	)

	assert.Equal(t, 1, doc.Version())
	assert.Equal(t, now, doc.FirstSeenAt())
	assert.Equal(t, now, doc.LastSeenAt())
}

func TestDocument_TouchSeen_BumpsVersionOnly(t *testing.T) {
	now := time.Now()
	doc := jobmodel.NewDocument(
		uuid.New(), "hash-1", "title-hash-1",
		mustURL(t, "https://docs.example.com/a"),
		mustURL(t, "https://docs.example.com/a"),
		"A title", "en", jobmodel.DocTypeArticle, 0.9, true, now,
	)

	later := now.Add(time.Hour)
	doc.TouchSeen(later)

	assert.Equal(t, 2, doc.Version())
	assert.Equal(t, later, doc.LastSeenAt())
	assert.Equal(t, now, doc.FirstSeenAt(), "first_seen_at is immutable")
	assert.Equal(t, "hash-1", doc.ContentHash(), "content_hash is immutable")
}

func TestNewDocumentURL_RecordsAliasReason(t *testing.T) {
	docID := uuid.New()
	alias := jobmodel.NewDocumentURL(docID, mustURL(t, "https://docs.example.com/b"), mustURL(t, "https://docs.example.com/b"), jobmodel.AliasContentHash)

	assert.Equal(t, docID, alias.DocumentID())
	assert.Equal(t, jobmodel.AliasContentHash, alias.Reason())
}
