package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(runID int64, endedAt time.Time) core.ArchiveEntry {
	return core.ArchiveEntry{
		RunID:     runID,
		ProjectID: 7,
		Workers:   2,
		Total:     10,
		Passed:    8,
		Failed:    1,
		Skipped:   1,
		StartedAt: endedAt.Add(-time.Minute).Unix(),
		EndedAt:   endedAt.Unix(),
	}
}

func TestStore_RecordAndList(t *testing.T) {
	s := openTestStore(t)

	now := time.Now()
	require.NoError(t, s.RecordRun(t.Context(), entry(101, now.Add(-2*time.Hour))))
	require.NoError(t, s.RecordRun(t.Context(), entry(102, now.Add(-time.Hour))))
	require.NoError(t, s.RecordRun(t.Context(), entry(103, now)))

	runs, err := s.ListRuns(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// Newest first.
	assert.Equal(t, int64(103), runs[0].RunID)
	assert.Equal(t, int64(101), runs[2].RunID)
	assert.Equal(t, 8, runs[0].Passed)
	assert.Equal(t, 1, runs[0].Failed)
}

func TestStore_ListLimit(t *testing.T) {
	s := openTestStore(t)

	now := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordRun(t.Context(), entry(int64(200+i), now.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := s.ListRuns(t.Context(), 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	// Non-positive limit falls back to the default window.
	runs, err = s.ListRuns(t.Context(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 5)
}

func TestStore_ListEmpty(t *testing.T) {
	s := openTestStore(t)
	runs, err := s.ListRuns(t.Context(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordRun(t.Context(), entry(300, time.Now())))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	runs, err := s2.ListRuns(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(300), runs[0].RunID)
}
