package coord

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
)

const workerFileExt = ".worker"

// Registry tracks worker processes through per-worker record files. Each
// record is written only by its owning process; foreign records are read-only
// except for deletion once their heartbeat has gone stale.
type Registry struct {
	dir    string
	store  *FileStore
	logger *slog.Logger

	// Serializes writes from this process (main workflow vs heartbeat timer).
	mu sync.Mutex
}

// NewRegistry creates a registry rooted at the coordination directory's
// workers/ subdirectory.
func NewRegistry(root string, store *FileStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		dir:    filepath.Join(root, "workers"),
		store:  store,
		logger: logger,
	}
}

// Register persists a fresh record for the worker.
func (r *Registry) Register(rec *core.WorkerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.LastHeartbeat = time.Now()
	return r.store.Write(r.recordPath(rec.Identity.ID), rec)
}

// Touch refreshes the worker's heartbeat timestamp. Called from the
// heartbeat timer, never from the critical path.
func (r *Registry) Touch(id core.WorkerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.get(id)
	if err != nil {
		return err
	}
	rec.LastHeartbeat = time.Now()
	return r.store.Write(r.recordPath(id), rec)
}

// UpdateProgress records counters and status for the owning worker.
func (r *Registry) UpdateProgress(id core.WorkerID, status core.WorkerStatus, testsSeen, resultsProcessed int) error {
	if !status.IsValid() {
		return core.ErrProtocol("INVALID_STATUS", fmt.Sprintf("unknown worker status %q", status))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.get(id)
	if err != nil {
		return err
	}
	rec.Status = status
	rec.TestsSeen = testsSeen
	rec.ResultsProcessed = resultsProcessed
	rec.LastHeartbeat = time.Now()
	return r.store.Write(r.recordPath(id), rec)
}

// Unregister deletes the worker's record. Must run on every exit path.
func (r *Registry) Unregister(id core.WorkerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.Remove(r.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return classifyFileError(err, "removing worker record")
	}
	return nil
}

// Get reads a single worker record.
func (r *Registry) Get(id core.WorkerID) (*core.WorkerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *Registry) get(id core.WorkerID) (*core.WorkerRecord, error) {
	var rec core.WorkerRecord
	if err := r.store.Read(r.recordPath(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List enumerates all readable worker records without any side effect.
// Intended for status surfaces.
func (r *Registry) List() ([]*core.WorkerRecord, error) {
	return r.enumerate(func(rec *core.WorkerRecord, path string) bool { return true })
}

// ListActive returns workers whose heartbeat is younger than staleness.
// Records proven dead by heartbeat age are deleted as a side effect, so
// every listing doubles as garbage collection of crashed workers.
func (r *Registry) ListActive(staleness time.Duration) ([]*core.WorkerRecord, error) {
	now := time.Now()
	return r.enumerate(func(rec *core.WorkerRecord, path string) bool {
		if rec.IsAlive(now, staleness) {
			return true
		}
		r.logger.Info("removing stale worker record",
			"worker", rec.Identity.ID, "heartbeat_age", rec.HeartbeatAge(now))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("removing stale worker record failed", "path", path, "error", err)
		}
		return false
	})
}

func (r *Registry) enumerate(keep func(*core.WorkerRecord, string) bool) ([]*core.WorkerRecord, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, classifyFileError(err, "reading workers directory")
	}

	var records []*core.WorkerRecord
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != workerFileExt {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		var rec core.WorkerRecord
		if err := r.store.Read(path, &rec); err != nil {
			// Unreadable records are logged and skipped, never fatal.
			r.logger.Warn("skipping unreadable worker record", "file", entry.Name(), "error", err)
			continue
		}
		if keep(&rec, path) {
			records = append(records, &rec)
		}
	}
	return records, nil
}

func (r *Registry) recordPath(id core.WorkerID) string {
	return filepath.Join(r.dir, string(id)+workerFileExt)
}
