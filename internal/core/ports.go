package core

import "context"

// RunStatus is what the remote test-management system reports about a run.
type RunStatus struct {
	Exists    bool
	Completed bool
}

// RunClient is the collaborator boundary to the remote test-management API.
// The coordination subsystem consumes it as an opaque request/response
// surface and knows nothing about the wire format behind it.
type RunClient interface {
	// GetRunStatus looks up an existing run.
	GetRunStatus(ctx context.Context, runID int64) (RunStatus, error)

	// CreateRun creates a new run restricted to the given case ids and
	// returns its id.
	CreateRun(ctx context.Context, projectID int64, name string, caseIDs []int64) (int64, error)

	// UpdateRunMembership replaces the run's case id set.
	UpdateRunMembership(ctx context.Context, runID int64, caseIDs []int64) error

	// SubmitResults posts results against the run.
	SubmitResults(ctx context.Context, runID int64, results []Result) error
}

// UserClient resolves users on the remote system. Kept separate from
// RunClient because most callers never need it.
type UserClient interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// User is a remote test-management user.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RunArchive records finished runs for later inspection.
type RunArchive interface {
	RecordRun(ctx context.Context, entry ArchiveEntry) error
	ListRuns(ctx context.Context, limit int) ([]ArchiveEntry, error)
	Close() error
}

// ArchiveEntry is one finished run as stored in the archive.
type ArchiveEntry struct {
	RunID     int64  `json:"run_id"`
	ProjectID int64  `json:"project_id"`
	Workers   int    `json:"workers"`
	Total     int    `json:"total"`
	Passed    int    `json:"passed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	StartedAt int64  `json:"started_at"`
	EndedAt   int64  `json:"ended_at"`
	Notes     string `json:"notes,omitempty"`
}
