package core

import "time"

// ResultStatus mirrors the remote test-management system's status codes.
type ResultStatus int

const (
	ResultPassed   ResultStatus = 1
	ResultBlocked  ResultStatus = 2
	ResultUntested ResultStatus = 3
	ResultRetest   ResultStatus = 4
	ResultFailed   ResultStatus = 5
	ResultSkipped  ResultStatus = 6
)

// Result is one test outcome produced by a worker.
type Result struct {
	CaseID   int64         `json:"case_id"`
	Status   ResultStatus  `json:"status"`
	Comment  string        `json:"comment,omitempty"`
	Elapsed  time.Duration `json:"elapsed,omitempty"`
	Defects  []string      `json:"defects,omitempty"`
	TestedAt time.Time     `json:"tested_at,omitempty"`
}

// ResultShard is the per-worker persisted result list. Owned exclusively by
// its worker; written once at flush time, read by aggregation.
type ResultShard struct {
	Worker  WorkerID  `json:"worker"`
	Results []Result  `json:"results"`
	SavedAt time.Time `json:"saved_at"`
}
