package store_test

import (
	"net/url"
	"testing"

	"github.com/crawlkit-dev/crawlkit/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.BadgerStore {
	t.Helper()
	s, err := store.NewBadgerStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}
