package coord

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
	"github.com/hugo-lorenzo-mato/testherd/internal/logging"
)

func testRegistry(t *testing.T, root string) *Registry {
	t.Helper()
	return NewRegistry(root, NewFileStore(logging.NewNop().Logger), logging.NewNop().Logger)
}

func TestRegistry_RegisterAndList(t *testing.T) {
	root := t.TempDir()
	r := testRegistry(t, root)

	rec := core.NewWorkerRecord(core.NewWorkerIdentity())
	require.NoError(t, r.Register(rec))

	active, err := r.ListActive(time.Minute)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, rec.Identity.ID, active[0].Identity.ID)
	assert.Equal(t, core.WorkerStatusActive, active[0].Status)
}

func TestRegistry_Unregister(t *testing.T) {
	root := t.TempDir()
	r := testRegistry(t, root)

	rec := core.NewWorkerRecord(core.NewWorkerIdentity())
	require.NoError(t, r.Register(rec))
	require.NoError(t, r.Unregister(rec.Identity.ID))

	active, err := r.ListActive(time.Minute)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Unregistering twice is harmless.
	require.NoError(t, r.Unregister(rec.Identity.ID))
}

func TestRegistry_ListActiveDeletesStaleRecords(t *testing.T) {
	root := t.TempDir()
	r := testRegistry(t, root)

	stale := core.NewWorkerRecord(core.NewWorkerIdentity())
	require.NoError(t, r.Register(stale))

	// Age the heartbeat directly in the record file.
	store := NewFileStore(logging.NewNop().Logger)
	stale.LastHeartbeat = time.Now().Add(-time.Hour)
	path := filepath.Join(root, "workers", string(stale.Identity.ID)+".worker")
	require.NoError(t, store.Write(path, stale))

	fresh := core.NewWorkerRecord(core.NewWorkerIdentity())
	require.NoError(t, r.Register(fresh))

	active, err := r.ListActive(time.Minute)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, fresh.Identity.ID, active[0].Identity.ID)

	// GC side effect: the stale record's backing file is gone.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "stale record file should be deleted")
}

func TestRegistry_ListSkipsUnreadableRecords(t *testing.T) {
	root := t.TempDir()
	r := testRegistry(t, root)

	rec := core.NewWorkerRecord(core.NewWorkerIdentity())
	require.NoError(t, r.Register(rec))

	bad := filepath.Join(root, "workers", "broken.worker")
	require.NoError(t, os.WriteFile(bad, []byte("{oops"), 0o644))

	records, err := r.List()
	require.NoError(t, err, "one unreadable record must not fail the listing")
	require.Len(t, records, 1)
}

func TestRegistry_TouchRefreshesHeartbeat(t *testing.T) {
	root := t.TempDir()
	r := testRegistry(t, root)

	rec := core.NewWorkerRecord(core.NewWorkerIdentity())
	rec.LastHeartbeat = time.Now().Add(-time.Minute)
	require.NoError(t, r.Register(rec))

	before, err := r.Get(rec.Identity.ID)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, r.Touch(rec.Identity.ID))

	after, err := r.Get(rec.Identity.ID)
	require.NoError(t, err)
	assert.True(t, after.LastHeartbeat.After(before.LastHeartbeat))
}

func TestRegistry_UpdateProgress(t *testing.T) {
	root := t.TempDir()
	r := testRegistry(t, root)

	rec := core.NewWorkerRecord(core.NewWorkerIdentity())
	require.NoError(t, r.Register(rec))

	require.NoError(t, r.UpdateProgress(rec.Identity.ID, core.WorkerStatusCompleted, 12, 10))

	got, err := r.Get(rec.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, core.WorkerStatusCompleted, got.Status)
	assert.Equal(t, 12, got.TestsSeen)
	assert.Equal(t, 10, got.ResultsProcessed)
}

func TestRegistry_UpdateProgressRejectsUnknownStatus(t *testing.T) {
	r := testRegistry(t, t.TempDir())
	err := r.UpdateProgress("some-id", core.WorkerStatus("bogus"), 0, 0)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatProtocol))
}

func TestHeartbeat_KeepsRecordFresh(t *testing.T) {
	root := t.TempDir()
	r := testRegistry(t, root)

	rec := core.NewWorkerRecord(core.NewWorkerIdentity())
	require.NoError(t, r.Register(rec))

	hb := NewHeartbeat(r, rec.Identity.ID, 10*time.Millisecond, logging.NewNop().Logger)
	hb.Start(t.Context())
	defer hb.Stop()

	time.Sleep(60 * time.Millisecond)

	got, err := r.Get(rec.Identity.ID)
	require.NoError(t, err)
	assert.Less(t, got.HeartbeatAge(time.Now()), 50*time.Millisecond)
}

func TestHeartbeat_StopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	r := testRegistry(t, root)
	rec := core.NewWorkerRecord(core.NewWorkerIdentity())
	require.NoError(t, r.Register(rec))

	hb := NewHeartbeat(r, rec.Identity.ID, 10*time.Millisecond, logging.NewNop().Logger)
	hb.Start(t.Context())
	hb.Stop()
	hb.Stop()
}
