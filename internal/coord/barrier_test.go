package coord

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
	"github.com/hugo-lorenzo-mato/testherd/internal/logging"
)

func testBarrier(t *testing.T, r *Registry, staleness time.Duration) *Barrier {
	t.Helper()
	return NewBarrier(r, staleness, 5*time.Millisecond, logging.NewNop().Logger)
}

func TestBarrier_EmptyRegistryReturnsImmediately(t *testing.T) {
	r := testRegistry(t, t.TempDir())
	b := testBarrier(t, r, time.Minute)

	drained, err := b.WaitForAll(t.Context(), time.Second)
	require.NoError(t, err)
	assert.True(t, drained)
}

func TestBarrier_TimesOutWhileWorkerActive(t *testing.T) {
	root := t.TempDir()
	r := testRegistry(t, root)
	b := testBarrier(t, r, time.Minute)

	require.NoError(t, r.Register(core.NewWorkerRecord(core.NewWorkerIdentity())))

	start := time.Now()
	drained, err := b.WaitForAll(t.Context(), 40*time.Millisecond)
	require.NoError(t, err, "a barrier timeout is an outcome, not an error")
	assert.False(t, drained)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestBarrier_ReturnsOnceWorkerUnregisters(t *testing.T) {
	root := t.TempDir()
	r := testRegistry(t, root)
	b := testBarrier(t, r, time.Minute)

	rec := core.NewWorkerRecord(core.NewWorkerIdentity())
	require.NoError(t, r.Register(rec))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = r.Unregister(rec.Identity.ID)
	}()

	drained, err := b.WaitForAll(t.Context(), time.Second)
	require.NoError(t, err)
	assert.True(t, drained)
}

func TestBarrier_StaleWorkerDoesNotBlock(t *testing.T) {
	root := t.TempDir()
	r := testRegistry(t, root)
	// Tight staleness: the record below is already dead on arrival.
	b := testBarrier(t, r, 10*time.Millisecond)

	rec := core.NewWorkerRecord(core.NewWorkerIdentity())
	rec.LastHeartbeat = time.Now().Add(-time.Hour)
	store := NewFileStore(logging.NewNop().Logger)
	require.NoError(t, store.Write(
		root+"/workers/"+string(rec.Identity.ID)+".worker", rec))

	drained, err := b.WaitForAll(t.Context(), time.Second)
	require.NoError(t, err)
	assert.True(t, drained, "crashed workers are swept, not waited on")
}
