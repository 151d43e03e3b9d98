package watch

import (
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"

	"github.com/hugo-lorenzo-mato/testherd/internal/logging"
)

func testWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := New(t.TempDir(), logging.NewNop().Logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.fsw.Close() })
	return w
}

func TestTranslate(t *testing.T) {
	w := testWatcher(t)

	cases := []struct {
		name    string
		path    string
		op      fsnotify.Op
		want    EventKind
		subject string
	}{
		{"worker joined", "workers/w-1.worker", fsnotify.Create, EventWorkerJoined, "w-1"},
		{"worker heartbeat", "workers/w-1.worker", fsnotify.Write, EventWorkerBeat, "w-1"},
		{"worker left", "workers/w-1.worker", fsnotify.Remove, EventWorkerLeft, "w-1"},
		{"lock taken", "locks/run-state.lock", fsnotify.Create, EventLockTaken, "run-state"},
		{"lock freed", "locks/run-state.lock", fsnotify.Remove, EventLockFreed, "run-state"},
		{"lock freed by rename", "locks/run-state.lock", fsnotify.Rename, EventLockFreed, "run-state"},
		{"shard stored", "results/w-1.results", fsnotify.Create, EventShardStored, "w-1"},
		{"shard rewritten", "results/w-1.results", fsnotify.Write, EventShardStored, "w-1"},
		{"run state created", "run.json", fsnotify.Create, EventRunUpdated, "run.json"},
		{"run state updated", "run.json", fsnotify.Write, EventRunUpdated, "run.json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, ok := w.translate(fsnotify.Event{
				Name: filepath.Join(w.root, tc.path),
				Op:   tc.op,
			})
			assert.True(t, ok)
			assert.Equal(t, tc.want, ev.Kind)
			assert.Equal(t, tc.subject, ev.Subject)
			assert.False(t, ev.At.IsZero())
		})
	}
}

func TestTranslate_IgnoresPlumbingFiles(t *testing.T) {
	w := testWatcher(t)

	ignored := []struct {
		path string
		op   fsnotify.Op
	}{
		{"run.json.tmp12345", fsnotify.Create},
		{"run.json.wlock", fsnotify.Create},
		{"workers/w-1.worker.tmp99", fsnotify.Write},
		{"workers/notes.txt", fsnotify.Create},
		{"locks/run-state.lock", fsnotify.Chmod},
		{"stray.json", fsnotify.Create},
	}
	for _, tc := range ignored {
		_, ok := w.translate(fsnotify.Event{
			Name: filepath.Join(w.root, tc.path),
			Op:   tc.op,
		})
		assert.False(t, ok, "%s (%s) should be invisible", tc.path, tc.op)
	}
}
