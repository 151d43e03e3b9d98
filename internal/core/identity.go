package core

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// WorkerID uniquely identifies a worker process within a test run.
type WorkerID string

// WorkerIdentity is the immutable per-process identity. It is created once at
// startup and never mutated. The ID combines wall-clock time, the OS process
// id, and random bytes so that collisions across one run are negligible.
type WorkerIdentity struct {
	ID        WorkerID  `json:"id"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// NewWorkerIdentity creates the identity for the current process.
func NewWorkerIdentity() WorkerIdentity {
	now := time.Now()
	pid := os.Getpid()
	id := fmt.Sprintf("w-%d-%d-%s", now.UnixNano(), pid, uuid.NewString()[:8])
	return WorkerIdentity{
		ID:        WorkerID(id),
		PID:       pid,
		StartedAt: now,
	}
}

// String returns the worker id.
func (w WorkerIdentity) String() string {
	return string(w.ID)
}
