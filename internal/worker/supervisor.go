package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hugo-lorenzo-mato/testherd/internal/config"
	"github.com/hugo-lorenzo-mato/testherd/internal/coord"
	"github.com/hugo-lorenzo-mato/testherd/internal/core"
)

// Work produces this worker's share of the test results.
type Work func(ctx context.Context) ([]core.Result, error)

// Supervisor drives one worker through the coordination lifecycle:
// register → heartbeat → work → store shard → run-ownership protocol →
// unregister. A separate Finalize pass waits on the completion barrier and
// submits the merged results.
type Supervisor struct {
	cfg      *config.Config
	identity core.WorkerIdentity
	logger   *slog.Logger

	store       *coord.FileStore
	locks       *coord.LockManager
	registry    *coord.Registry
	shards      *coord.ShardStore
	barrier     *coord.Barrier
	coordinator *coord.Coordinator

	archive core.RunArchive

	startedAt time.Time
}

// SupervisorOption configures the supervisor.
type SupervisorOption func(*Supervisor)

// WithArchive records finished runs into the given archive during Finalize.
func WithArchive(archive core.RunArchive) SupervisorOption {
	return func(s *Supervisor) {
		s.archive = archive
	}
}

// NewSupervisor wires the coordination components for one worker identity.
// Every supervisor is independent; multiple can coexist in one process, each
// acting as its own worker.
func NewSupervisor(cfg *config.Config, remote core.RunClient, logger *slog.Logger, opts ...SupervisorOption) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	identity := core.NewWorkerIdentity()
	logger = logger.With("worker", identity.ID)

	root := cfg.Coord.Root
	store := coord.NewFileStore(logger)
	locks := coord.NewLockManager(root, identity, logger,
		coord.WithPollInterval(cfg.Coord.LockPoll))
	registry := coord.NewRegistry(root, store, logger)
	shards := coord.NewShardStore(root, store, logger)
	barrier := coord.NewBarrier(registry, cfg.Coord.EffectiveStaleness(), cfg.Coord.BarrierPoll, logger)
	coordinator := coord.NewCoordinator(root, store, locks, remote, coord.CoordinatorConfig{
		ProjectID:   cfg.Remote.ProjectID,
		RunName:     cfg.Remote.RunName,
		LockTTL:     cfg.Coord.LockTTL,
		LockMaxWait: cfg.Coord.LockMaxWait,
	}, logger)

	s := &Supervisor{
		cfg:         cfg,
		identity:    identity,
		logger:      logger,
		store:       store,
		locks:       locks,
		registry:    registry,
		shards:      shards,
		barrier:     barrier,
		coordinator: coordinator,
		startedAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Identity returns this supervisor's worker identity.
func (s *Supervisor) Identity() core.WorkerIdentity {
	return s.identity
}

// Coordinator exposes the run-ownership protocol for callers that manage
// the lifecycle themselves.
func (s *Supervisor) Coordinator() *coord.Coordinator {
	return s.coordinator
}

// RunWorker executes the full worker lifecycle around work. Cleanup runs on
// every exit path; cleanup failures during shutdown are logged and swallowed
// so the remaining teardown still proceeds.
func (s *Supervisor) RunWorker(ctx context.Context, work Work) (err error) {
	rec := core.NewWorkerRecord(s.identity)
	if err := s.registry.Register(rec); err != nil {
		return err
	}

	hb := coord.NewHeartbeat(s.registry, s.identity.ID, s.cfg.Coord.HeartbeatInterval, s.logger)
	hb.Start(ctx)

	defer func() {
		hb.Stop()
		if uerr := s.registry.Unregister(s.identity.ID); uerr != nil {
			s.logger.Warn("unregister failed during shutdown", "error", uerr)
		}
	}()

	results, err := work(ctx)
	if err != nil {
		if perr := s.registry.UpdateProgress(s.identity.ID, core.WorkerStatusFailed, 0, 0); perr != nil {
			s.logger.Warn("recording failure status failed", "error", perr)
		}
		return err
	}

	if err := s.shards.StoreShard(s.identity, results); err != nil {
		return err
	}

	caseIDs := collectCaseIDs(results)
	state, decision, err := s.coordinator.EnsureRun(ctx, caseIDs)
	if err != nil {
		return err
	}
	s.logger.Info("run ownership settled",
		"run_id", state.RunID, "decision", decision, "cases", len(state.CaseIDs))

	if err := s.registry.UpdateProgress(s.identity.ID, core.WorkerStatusCompleted,
		len(results), len(results)); err != nil {
		s.logger.Warn("recording completion failed", "error", err)
	}
	return nil
}

// Finalize waits for all known workers to finish, merges every shard, and
// submits the merged results to the remote run. A barrier timeout is not
// fatal: aggregation proceeds with whatever shards exist.
func (s *Supervisor) Finalize(ctx context.Context) error {
	drained, err := s.barrier.WaitForAll(ctx, s.cfg.Coord.BarrierTimeout)
	if err != nil {
		return err
	}
	if !drained {
		s.logger.Warn("proceeding with partial aggregation after barrier timeout")
	}

	workers, err := s.shards.Count()
	if err != nil {
		return err
	}
	merged, err := s.shards.Aggregate()
	if err != nil {
		return err
	}

	if err := s.coordinator.SubmitResults(ctx, merged); err != nil {
		return err
	}
	s.logger.Info("results submitted", "results", len(merged), "shards", workers)

	if s.archive != nil {
		if err := s.recordHistory(ctx, workers, merged); err != nil {
			// The run already succeeded; a broken archive only costs history.
			s.logger.Warn("recording run history failed", "error", err)
		}
	}
	return nil
}

func (s *Supervisor) recordHistory(ctx context.Context, workers int, merged []core.Result) error {
	state, err := s.coordinator.LoadRunState()
	if err != nil {
		return err
	}
	entry := core.ArchiveEntry{
		RunID:     state.RunID,
		ProjectID: state.ProjectID,
		Workers:   workers,
		Total:     len(merged),
		StartedAt: s.startedAt.Unix(),
		EndedAt:   time.Now().Unix(),
	}
	for _, r := range merged {
		switch r.Status {
		case core.ResultPassed:
			entry.Passed++
		case core.ResultFailed:
			entry.Failed++
		case core.ResultSkipped:
			entry.Skipped++
		}
	}
	return s.archive.RecordRun(ctx, entry)
}

func collectCaseIDs(results []core.Result) []int64 {
	seen := make(map[int64]struct{}, len(results))
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.CaseID]; ok {
			continue
		}
		seen[r.CaseID] = struct{}{}
		ids = append(ids, r.CaseID)
	}
	return ids
}
