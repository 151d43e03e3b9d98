package core

import (
	"sort"
	"time"
)

// RunDecision is the outcome of one run-ownership attempt.
type RunDecision string

const (
	DecisionNoRun    RunDecision = "no_run"   // No decision made yet
	DecisionCreating RunDecision = "creating" // This worker created the remote run
	DecisionReusing  RunDecision = "reusing"  // An existing run was joined
	DecisionAssigned RunDecision = "assigned" // Run id confirmed, nothing to merge
)

// SharedRunState is the singleton document all workers converge on. It is
// mutated only inside the run-ownership critical section; reads outside the
// section are stale snapshots.
type SharedRunState struct {
	ProjectID int64     `json:"project_id"`
	RunID     int64     `json:"run_id"` // 0 means unassigned
	CaseIDs   []int64   `json:"case_ids"`
	UpdatedBy WorkerID  `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSharedRunState creates an unassigned state for a project.
func NewSharedRunState(projectID int64) *SharedRunState {
	return &SharedRunState{ProjectID: projectID}
}

// Assigned reports whether a remote run id has been decided.
func (s *SharedRunState) Assigned() bool {
	return s.RunID != 0
}

// MergeCaseIDs merges ids into the state's set, deduplicated and sorted.
// If the existing set is empty the caller's ids become the new baseline.
func (s *SharedRunState) MergeCaseIDs(ids []int64) {
	if len(s.CaseIDs) == 0 {
		s.CaseIDs = dedupeCaseIDs(ids)
		return
	}
	s.CaseIDs = dedupeCaseIDs(append(s.CaseIDs, ids...))
}

func dedupeCaseIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
