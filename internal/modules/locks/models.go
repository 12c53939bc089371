package locks

import "time"

// ImportLock is a live per-resource lock row. At most one exists per
// resource key at any instant; rows older than the manager's TTL are
// treated as abandoned and purged by the next acquire attempt.
type ImportLock struct {
	ResourceKey string    `json:"resource_key"`
	HolderID    string    `json:"holder_id"`
	Purpose     string    `json:"purpose"`
	AcquiredAt  time.Time `json:"acquired_at"`
}

// Age returns how long the lock has been held.
func (l ImportLock) Age(now time.Time) time.Duration {
	return now.Sub(l.AcquiredAt)
}
