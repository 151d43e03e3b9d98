package core

import "time"

// LockRecord is the persisted content of a named lock file. The file's
// exclusive-create is the sole source of truth for who won a race; the
// timestamps here are advisory and used only for expiry.
type LockRecord struct {
	Resource   string         `json:"resource"`
	Holder     WorkerIdentity `json:"holder"`
	AcquiredAt time.Time      `json:"acquired_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

// NewLockRecord creates a record for holder with the given ttl.
func NewLockRecord(resource string, holder WorkerIdentity, ttl time.Duration) *LockRecord {
	now := time.Now()
	return &LockRecord{
		Resource:   resource,
		Holder:     holder,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
}

// Expired reports whether the lock is logically dead. An expired lock may be
// deleted by any process, holder or not.
func (l *LockRecord) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// HeldBy reports whether id is the recorded holder.
func (l *LockRecord) HeldBy(id WorkerID) bool {
	return l.Holder.ID == id
}
