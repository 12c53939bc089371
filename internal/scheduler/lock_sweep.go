package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/ledgerpilot/reconciler/internal/events"
	"github.com/ledgerpilot/reconciler/internal/modules/locks"
)

// LockSweepJob periodically purges import locks past their TTL. The lock
// manager self-heals per key on acquire, so this sweep only keeps the
// lock table tidy for operators; correctness does not depend on it.
type LockSweepJob struct {
	manager *locks.Manager
	events  *events.Manager
	log     zerolog.Logger
}

// NewLockSweepJob creates a new lock sweep job
func NewLockSweepJob(manager *locks.Manager, eventManager *events.Manager, log zerolog.Logger) *LockSweepJob {
	return &LockSweepJob{
		manager: manager,
		events:  eventManager,
		log:     log.With().Str("job", "lock_sweep").Logger(),
	}
}

// Name returns the job name
func (j *LockSweepJob) Name() string {
	return "lock_sweep"
}

// Run purges expired locks
func (j *LockSweepJob) Run() error {
	purged, err := j.manager.PurgeExpired()
	if err != nil {
		return err
	}
	if purged > 0 {
		j.events.Emit(events.LocksPurged, "scheduler", map[string]interface{}{
			"purged": purged,
		})
		j.log.Info().Int("purged", purged).Msg("Expired import locks purged")
	}
	return nil
}
