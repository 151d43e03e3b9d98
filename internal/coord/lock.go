package coord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
)

const lockFileExt = ".lock"

// LockManager grants coarse-grained, expiring, named locks backed by one
// lock file per resource. Exclusive file creation is the sole tie-break
// between simultaneous acquirers; record timestamps are used only for expiry.
type LockManager struct {
	dir          string
	identity     core.WorkerIdentity
	pollInterval time.Duration
	logger       *slog.Logger
}

// LockManagerOption configures the manager.
type LockManagerOption func(*LockManager)

// WithPollInterval sets the interval AcquireBlocking polls on.
func WithPollInterval(d time.Duration) LockManagerOption {
	return func(m *LockManager) {
		m.pollInterval = d
	}
}

// NewLockManager creates a lock manager rooted at the coordination
// directory's locks/ subdirectory.
func NewLockManager(root string, identity core.WorkerIdentity, logger *slog.Logger, opts ...LockManagerOption) *LockManager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &LockManager{
		dir:          filepath.Join(root, "locks"),
		identity:     identity,
		pollInterval: 100 * time.Millisecond,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire attempts to take the named lock. It returns (false, nil) when the
// lock is validly held by someone else; it never blocks waiting for release.
// A lock whose record is expired or unparseable is reclaimed and creation is
// retried once.
func (m *LockManager) Acquire(resource string, ttl time.Duration) (bool, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return false, classifyFileError(err, "creating locks directory")
	}
	path := m.lockPath(resource)

	for attempt := 0; attempt < 2; attempt++ {
		ok, err := m.tryCreate(path, resource, ttl)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		rec, readErr := m.readRecord(path)
		if readErr != nil {
			// Unreadable record: treat as corrupt, eligible for reclamation.
			m.logger.Warn("reclaiming corrupt lock record", "resource", resource, "error", readErr)
			os.Remove(path)
			continue
		}
		if rec.Expired(time.Now()) {
			m.logger.Info("reclaiming expired lock",
				"resource", resource, "holder", rec.Holder.ID, "expired_at", rec.ExpiresAt)
			os.Remove(path)
			continue
		}
		return false, nil
	}
	return false, nil
}

// AcquireBlocking polls Acquire on a fixed interval until success, maxWait,
// or context cancellation. A timeout surfaces as a distinguishable error.
func (m *LockManager) AcquireBlocking(ctx context.Context, resource string, ttl, maxWait time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for {
		ok, err := m.Acquire(resource, ttl)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return &core.DomainError{
				Category:  core.ErrCatTimeout,
				Code:      core.CodeLockWaitTimeout,
				Message:   fmt.Sprintf("lock %q not acquired within %s", resource, maxWait),
				Retryable: true,
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
}

// Release deletes the lock after verifying this manager's identity is the
// recorded holder. Releasing a lock held by another identity reports a
// protocol violation and leaves the lock in place.
func (m *LockManager) Release(resource string) error {
	path := m.lockPath(resource)
	rec, err := m.readRecord(path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.ErrProtocol(core.CodeLockNotHeld,
				fmt.Sprintf("lock %q is not held", resource))
		}
		return core.ErrCorruption(core.CodeRecordCorrupted,
			fmt.Sprintf("lock record for %q unreadable", resource)).WithCause(err)
	}
	if !rec.HeldBy(m.identity.ID) {
		return core.ErrProtocol(core.CodeLockNotHeld,
			fmt.Sprintf("lock %q held by %s, not %s", resource, rec.Holder.ID, m.identity.ID))
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return classifyFileError(err, "removing lock file")
	}
	return nil
}

// Inspect returns the current record for a resource, or a not-found error.
// Read-only, intended for status surfaces.
func (m *LockManager) Inspect(resource string) (*core.LockRecord, error) {
	rec, err := m.readRecord(m.lockPath(resource))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrNotFound("lock", resource)
		}
		return nil, core.ErrCorruption(core.CodeRecordCorrupted,
			fmt.Sprintf("lock record for %q unreadable", resource)).WithCause(err)
	}
	return rec, nil
}

// List enumerates all held locks, skipping unreadable records.
func (m *LockManager) List() ([]*core.LockRecord, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, classifyFileError(err, "reading locks directory")
	}
	var records []*core.LockRecord
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != lockFileExt {
			continue
		}
		rec, readErr := m.readRecord(filepath.Join(m.dir, entry.Name()))
		if readErr != nil {
			m.logger.Warn("skipping unreadable lock record", "file", entry.Name(), "error", readErr)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// tryCreate attempts the exclusive create. Returns (false, nil) when the
// file already exists.
func (m *LockManager) tryCreate(path, resource string, ttl time.Duration) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, classifyFileError(err, "creating lock file")
	}
	defer f.Close()

	rec := core.NewLockRecord(resource, m.identity, ttl)
	data, err := json.Marshal(rec)
	if err != nil {
		os.Remove(path)
		return false, fmt.Errorf("marshaling lock record: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		os.Remove(path)
		return false, classifyFileError(err, "writing lock record")
	}
	return true, nil
}

func (m *LockManager) readRecord(path string) (*core.LockRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec core.LockRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *LockManager) lockPath(resource string) string {
	return filepath.Join(m.dir, resource+lockFileExt)
}
