package locks

import (
	"time"

	"github.com/rs/zerolog"
)

// DefaultTTL is how long a lock may live before any subsequent acquire
// attempt is allowed to purge it as abandoned.
const DefaultTTL = 300 * time.Second

// Manager provides non-blocking per-resource mutual exclusion over the
// lock store. The store handle is passed in at construction; there is no
// process-wide registry, so multiple tenants can run independent managers
// in one process.
type Manager struct {
	repo *Repository
	ttl  time.Duration
	log  zerolog.Logger
	now  func() time.Time
}

// NewManager creates a new lock manager. A non-positive ttl falls back to
// DefaultTTL.
func NewManager(repo *Repository, ttl time.Duration, log zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		repo: repo,
		ttl:  ttl,
		log:  log.With().Str("service", "locks").Logger(),
		now:  time.Now,
	}
}

// TryAcquire attempts to take the lock on resourceKey. It never blocks:
// if a live lock exists the call returns false immediately. An expired
// lock on the same key is purged first, so a crashed holder can only
// stall imports for the TTL.
func (m *Manager) TryAcquire(resourceKey, holderID, purpose string) (bool, error) {
	now := m.now()

	if err := m.repo.DeleteExpired(resourceKey, now.Add(-m.ttl)); err != nil {
		return false, err
	}

	acquired, err := m.repo.TryInsert(resourceKey, holderID, purpose, now)
	if err != nil {
		return false, err
	}

	if acquired {
		m.log.Debug().
			Str("resource", resourceKey).
			Str("holder", holderID).
			Str("purpose", purpose).
			Msg("Lock acquired")
	} else {
		m.log.Info().
			Str("resource", resourceKey).
			Str("holder", holderID).
			Msg("Lock held by another import")
	}
	return acquired, nil
}

// Release drops the lock on resourceKey. Releasing a lock that does not
// exist is a no-op.
func (m *Manager) Release(resourceKey string) error {
	if err := m.repo.Delete(resourceKey); err != nil {
		return err
	}
	m.log.Debug().Str("resource", resourceKey).Msg("Lock released")
	return nil
}

// ListActive returns the current lock rows.
func (m *Manager) ListActive() ([]ImportLock, error) {
	return m.repo.ListActive()
}

// PurgeExpired removes every lock past the TTL. Correctness does not
// depend on this running; acquires self-heal per key.
func (m *Manager) PurgeExpired() (int, error) {
	purged, err := m.repo.DeleteAllExpired(m.now().Add(-m.ttl))
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		m.log.Warn().Int("purged", purged).Msg("Purged expired import locks")
	}
	return purged, nil
}

// TTL returns the configured expiry threshold.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
