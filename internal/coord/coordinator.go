package coord

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
)

// RunLockResource is the lock name guarding the shared run state.
const RunLockResource = "run-state"

const runStateFile = "run.json"

// CoordinatorConfig carries the knobs the run-ownership protocol needs.
type CoordinatorConfig struct {
	ProjectID   int64
	RunName     string
	LockTTL     time.Duration
	LockMaxWait time.Duration
}

// Coordinator executes the run-ownership protocol: under the run-state lock
// it decides whether this worker creates the remote run or joins an existing
// one, merges the case id set, and persists the result. SharedRunState is
// only ever mutated inside that critical section; the mutation path is not
// reachable from outside this type.
type Coordinator struct {
	root   string
	store  *FileStore
	locks  *LockManager
	remote core.RunClient
	cfg    CoordinatorConfig
	logger *slog.Logger
}

// NewCoordinator creates a coordinator over the coordination root.
func NewCoordinator(root string, store *FileStore, locks *LockManager, remote core.RunClient, cfg CoordinatorConfig, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		root:   root,
		store:  store,
		locks:  locks,
		remote: remote,
		cfg:    cfg,
		logger: logger,
	}
}

// EnsureRun obtains or confirms the shared run for this worker's case ids.
// Exactly one concurrent caller observes DecisionCreating; the rest observe
// DecisionReusing with their sets merged in. A lock timeout fails the whole
// attempt loudly; falling back to "create anyway" would mint duplicate
// remote runs.
func (c *Coordinator) EnsureRun(ctx context.Context, caseIDs []int64) (*core.SharedRunState, core.RunDecision, error) {
	if err := c.locks.AcquireBlocking(ctx, RunLockResource, c.cfg.LockTTL, c.cfg.LockMaxWait); err != nil {
		return nil, core.DecisionNoRun, &core.DomainError{
			Category: core.ErrCatContention,
			Code:     core.CodeRunAttemptFailed,
			Message:  "could not acquire run-state lock",
			Cause:    err,
		}
	}
	defer func() {
		if err := c.locks.Release(RunLockResource); err != nil {
			// Shutdown of the critical section must not mask the real outcome.
			c.logger.Warn("releasing run-state lock failed", "error", err)
		}
	}()

	// Never trust a pre-lock snapshot: the state is reloaded now that the
	// lock orders us against every other worker.
	state, err := c.loadState()
	if err != nil {
		return nil, core.DecisionNoRun, err
	}

	decision, err := c.decide(ctx, state, caseIDs)
	if err != nil {
		// All-or-nothing: the collaborator failed, so the persisted state
		// stays exactly as it was.
		return nil, core.DecisionNoRun, err
	}

	state.UpdatedBy = c.locks.identity.ID
	state.UpdatedAt = time.Now()
	if err := c.store.Write(c.statePath(), state); err != nil {
		return nil, core.DecisionNoRun, err
	}
	return state, decision, nil
}

// decide applies the create-vs-reuse state machine against the collaborator.
func (c *Coordinator) decide(ctx context.Context, state *core.SharedRunState, caseIDs []int64) (core.RunDecision, error) {
	if state.Assigned() {
		status, err := c.remote.GetRunStatus(ctx, state.RunID)
		if err != nil {
			return core.DecisionNoRun, err
		}
		if status.Exists && !status.Completed {
			state.MergeCaseIDs(caseIDs)
			if err := c.remote.UpdateRunMembership(ctx, state.RunID, state.CaseIDs); err != nil {
				return core.DecisionNoRun, err
			}
			c.logger.Info("reusing run", "run_id", state.RunID, "cases", len(state.CaseIDs))
			return core.DecisionReusing, nil
		}
		// Completed or vanished remotely: the recorded id is dead weight.
		c.logger.Info("recorded run unusable, creating a new one",
			"run_id", state.RunID, "exists", status.Exists, "completed", status.Completed)
	}

	runID, err := c.remote.CreateRun(ctx, c.cfg.ProjectID, c.runName(), caseIDs)
	if err != nil {
		return core.DecisionNoRun, err
	}
	state.RunID = runID
	state.CaseIDs = nil
	state.MergeCaseIDs(caseIDs)
	c.logger.Info("created run", "run_id", runID, "cases", len(state.CaseIDs))
	return core.DecisionCreating, nil
}

// SubmitResults posts aggregated results against the assigned run.
func (c *Coordinator) SubmitResults(ctx context.Context, results []core.Result) error {
	state, err := c.LoadRunState()
	if err != nil {
		return err
	}
	if !state.Assigned() {
		return core.ErrProtocol(core.CodeRunAttemptFailed, "no run assigned to submit results to")
	}
	return c.remote.SubmitResults(ctx, state.RunID, results)
}

// LoadRunState reads the shared state outside the critical section. The
// returned value is a stale snapshot and must be treated as such.
func (c *Coordinator) LoadRunState() (*core.SharedRunState, error) {
	return c.loadState()
}

func (c *Coordinator) loadState() (*core.SharedRunState, error) {
	var state core.SharedRunState
	err := c.store.Read(c.statePath(), &state)
	switch {
	case err == nil:
		if state.ProjectID == 0 {
			state.ProjectID = c.cfg.ProjectID
		}
		return &state, nil
	case core.IsCategory(err, core.ErrCatNotFound):
		return core.NewSharedRunState(c.cfg.ProjectID), nil
	default:
		return nil, err
	}
}

func (c *Coordinator) runName() string {
	if c.cfg.RunName != "" {
		return c.cfg.RunName
	}
	return fmt.Sprintf("Automated run %s", time.Now().Format("2006-01-02 15:04"))
}

func (c *Coordinator) statePath() string {
	return filepath.Join(c.root, runStateFile)
}
