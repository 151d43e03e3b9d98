package core

import "time"

// WorkerStatus represents the lifecycle state of a worker.
type WorkerStatus string

const (
	WorkerStatusActive    WorkerStatus = "active"
	WorkerStatusIdle      WorkerStatus = "idle"
	WorkerStatusFailed    WorkerStatus = "failed"
	WorkerStatusCompleted WorkerStatus = "completed"
)

// IsValid reports whether the status is a known value.
func (s WorkerStatus) IsValid() bool {
	switch s {
	case WorkerStatusActive, WorkerStatusIdle, WorkerStatusFailed, WorkerStatusCompleted:
		return true
	}
	return false
}

// WorkerRecord is the persisted, mutable registry entry for one worker.
// It is owned exclusively by its originating process while that process is
// alive; other processes read it but never mutate it. The one sanctioned
// exception is deletion of an orphaned record whose heartbeat has gone stale.
type WorkerRecord struct {
	Identity         WorkerIdentity `json:"identity"`
	Status           WorkerStatus   `json:"status"`
	LastHeartbeat    time.Time      `json:"last_heartbeat"`
	TestsSeen        int            `json:"tests_seen"`
	ResultsProcessed int            `json:"results_processed"`
}

// NewWorkerRecord creates an active record with a fresh heartbeat.
func NewWorkerRecord(identity WorkerIdentity) *WorkerRecord {
	return &WorkerRecord{
		Identity:      identity,
		Status:        WorkerStatusActive,
		LastHeartbeat: time.Now(),
	}
}

// HeartbeatAge returns how long ago the worker last heartbeat relative to now.
func (r *WorkerRecord) HeartbeatAge(now time.Time) time.Duration {
	return now.Sub(r.LastHeartbeat)
}

// IsAlive reports whether the record's heartbeat is within the staleness
// window. Liveness is a pure function of two timestamps; process liveness is
// never consulted because it cannot be observed reliably across hosts.
func (r *WorkerRecord) IsAlive(now time.Time, staleness time.Duration) bool {
	return r.HeartbeatAge(now) < staleness
}
