package auditlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLogAndReadAllRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.ndjson")
	l, err := New(path)
	require.NoError(t, err)

	require.NoError(t, l.Log(Entry{Timestamp: time.Unix(1, 0).UTC(), ChainID: "Bitcoin", Operation: "DEPOSIT_OBSERVED", Reference: "tx1", Status: "SUCCESS"}))
	require.NoError(t, l.Log(Entry{Timestamp: time.Unix(2, 0).UTC(), ChainID: "Bitcoin", Operation: "TICKET_SUBMITTED", Reference: "t1", Status: "SUCCESS"}))

	entries, err := l.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "DEPOSIT_OBSERVED", entries[0].Operation)
	require.Equal(t, "t1", entries[1].Reference)
}

func TestReadAllOnMissingFileReturnsEmpty(t *testing.T) {
	l, err := New(filepath.Join(t.TempDir(), "audit.ndjson"))
	require.NoError(t, err)
	entries, err := l.ReadAll()
	require.NoError(t, err)
	require.Empty(t, entries)
}
