package coord

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
)

const shardFileExt = ".results"

// ShardStore persists one result shard per worker and merges them back
// together. A shard is owned by its worker and written once at flush time.
type ShardStore struct {
	dir    string
	store  *FileStore
	logger *slog.Logger
}

// NewShardStore creates a shard store rooted at the coordination directory's
// results/ subdirectory.
func NewShardStore(root string, store *FileStore, logger *slog.Logger) *ShardStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShardStore{
		dir:    filepath.Join(root, "results"),
		store:  store,
		logger: logger,
	}
}

// StoreShard persists the worker's full result list. Idempotent overwrite,
// not append; a worker calls this once per run.
func (s *ShardStore) StoreShard(identity core.WorkerIdentity, results []core.Result) error {
	shard := core.ResultShard{
		Worker:  identity.ID,
		Results: results,
		SavedAt: time.Now(),
	}
	return s.store.Write(s.shardPath(identity.ID), &shard)
}

// Aggregate reads every shard file and concatenates their results in
// file-enumeration order. Order within a shard is preserved; no ordering is
// promised across shards. A shard that fails to parse is skipped and logged.
// Zero shard files is reported as a protocol violation, not a crash.
func (s *ShardStore) Aggregate() ([]core.Result, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrProtocol(core.CodeNoShards, "no result shards to aggregate")
		}
		return nil, classifyFileError(err, "reading results directory")
	}

	var merged []core.Result
	shards := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != shardFileExt {
			continue
		}
		var shard core.ResultShard
		if err := s.store.Read(filepath.Join(s.dir, entry.Name()), &shard); err != nil {
			s.logger.Warn("skipping unreadable result shard", "file", entry.Name(), "error", err)
			continue
		}
		shards++
		merged = append(merged, shard.Results...)
	}
	if shards == 0 {
		return nil, core.ErrProtocol(core.CodeNoShards, "no result shards to aggregate")
	}
	return merged, nil
}

// Count returns the number of shard files present.
func (s *ShardStore) Count() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, classifyFileError(err, "reading results directory")
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == shardFileExt {
			n++
		}
	}
	return n, nil
}

func (s *ShardStore) shardPath(id core.WorkerID) string {
	return filepath.Join(s.dir, string(id)+shardFileExt)
}
