package coord

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
)

// FileStore performs crash-safe read/modify/write of JSON documents. Writes
// go to a temp file in the target's directory followed by a single rename,
// serialized against concurrent writers by a short-lived `.wlock` file.
type FileStore struct {
	writeLockTTL time.Duration
	logger       *slog.Logger
}

// FileStoreOption configures the store.
type FileStoreOption func(*FileStore)

// WithWriteLockTTL sets how old a write lock may be before it is presumed
// abandoned by a crashed writer.
func WithWriteLockTTL(ttl time.Duration) FileStoreOption {
	return func(s *FileStore) {
		s.writeLockTTL = ttl
	}
}

// NewFileStore creates a file store.
func NewFileStore(logger *slog.Logger, opts ...FileStoreOption) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileStore{
		writeLockTTL: 10 * time.Second,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read parses the document at path into v. An absent or zero-length file is
// reported as not-found, never as corruption.
func (s *FileStore) Read(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.ErrNotFound("document", path)
		}
		return classifyFileError(err, "reading document")
	}
	if len(data) == 0 {
		return core.ErrNotFound("document", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return core.ErrCorruption(core.CodeRecordCorrupted,
			fmt.Sprintf("invalid JSON in %s", path)).WithCause(err)
	}
	return nil
}

// Write persists v to path, leaving path either untouched or fully updated
// even if the process dies mid-operation.
func (s *FileStore) Write(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return classifyFileError(err, "creating document directory")
	}

	release, err := s.acquireWriteLock(path)
	if err != nil {
		return err
	}
	defer release()
	defer s.cleanupTemps(path)

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling document: %w", err)
	}
	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return classifyFileError(err, "writing document")
	}
	return nil
}

// Exists checks if a document exists at path.
func (s *FileStore) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// acquireWriteLock serializes writers to one document. A lock left behind by
// a crashed writer is reclaimed once it is older than the write-lock TTL.
func (s *FileStore) acquireWriteLock(path string) (func(), error) {
	lockPath := path + ".wlock"
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return func() {
				if rmErr := os.Remove(lockPath); rmErr != nil && !os.IsNotExist(rmErr) {
					s.logger.Warn("removing write lock failed", "path", lockPath, "error", rmErr)
				}
			}, nil
		}
		if !os.IsExist(err) {
			return nil, classifyFileError(err, "creating write lock")
		}
		info, statErr := os.Stat(lockPath)
		if statErr == nil && time.Since(info.ModTime()) < s.writeLockTTL {
			return nil, core.ErrContention(core.CodeWriteContention,
				fmt.Sprintf("concurrent writer holds %s", lockPath))
		}
		// Abandoned by a crashed writer, reclaim and retry once.
		os.Remove(lockPath)
	}
	return nil, core.ErrContention(core.CodeWriteContention,
		fmt.Sprintf("concurrent writer holds %s", lockPath))
}

// cleanupTemps removes leftover temp files from writers that died before
// their rename. Best effort.
func (s *FileStore) cleanupTemps(path string) {
	matches, err := filepath.Glob(path + ".tmp*")
	if err != nil {
		return
	}
	for _, m := range matches {
		if rmErr := os.Remove(m); rmErr == nil {
			s.logger.Debug("removed leftover temp file", "path", m)
		}
	}
}

// classifyFileError maps raw OS errors onto the coordination error taxonomy
// so callers never have to inspect errno values.
func classifyFileError(err error, op string) error {
	if errors.Is(err, os.ErrPermission) {
		return core.ErrExhaustion(op + ": permission denied").WithCause(err)
	}
	if errors.Is(err, syscall.ENOSPC) {
		return core.ErrExhaustion(op + ": no space left on device").WithCause(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
