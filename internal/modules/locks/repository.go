package locks

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const timeLayout = "2006-01-02 15:04:05"

// Schema for the import lock table. The primary key on resource_key is
// what makes concurrent acquires race to a single winner.
const Schema = `
CREATE TABLE IF NOT EXISTS import_locks (
    resource_key TEXT PRIMARY KEY,
    holder_id TEXT NOT NULL,
    purpose TEXT NOT NULL,
    acquired_at TEXT NOT NULL
);
`

// InitSchema ensures the import_locks table exists
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Repository handles import lock persistence
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new lock repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "locks").Logger(),
	}
}

// TryInsert attempts to insert a lock row for resourceKey. Returns false
// without error when a row already exists.
func (r *Repository) TryInsert(resourceKey, holderID, purpose string, acquiredAt time.Time) (bool, error) {
	result, err := r.db.Exec(
		`INSERT INTO import_locks (resource_key, holder_id, purpose, acquired_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(resource_key) DO NOTHING`,
		resourceKey, holderID, purpose, acquiredAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert lock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return rows == 1, nil
}

// Delete removes the lock row for resourceKey. Deleting a missing row is
// not an error.
func (r *Repository) Delete(resourceKey string) error {
	if _, err := r.db.Exec("DELETE FROM import_locks WHERE resource_key = ?", resourceKey); err != nil {
		return fmt.Errorf("failed to delete lock: %w", err)
	}
	return nil
}

// DeleteExpired removes rows for resourceKey acquired before cutoff.
func (r *Repository) DeleteExpired(resourceKey string, cutoff time.Time) error {
	_, err := r.db.Exec(
		"DELETE FROM import_locks WHERE resource_key = ? AND acquired_at < ?",
		resourceKey, cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to purge expired lock: %w", err)
	}
	return nil
}

// DeleteAllExpired removes every lock acquired before cutoff, returning
// how many were purged. Used by the background sweep.
func (r *Repository) DeleteAllExpired(cutoff time.Time) (int, error) {
	result, err := r.db.Exec(
		"DELETE FROM import_locks WHERE acquired_at < ?",
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired locks: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge result: %w", err)
	}
	return int(rows), nil
}

// ListActive returns all lock rows, oldest first.
func (r *Repository) ListActive() ([]ImportLock, error) {
	rows, err := r.db.Query(
		"SELECT resource_key, holder_id, purpose, acquired_at FROM import_locks ORDER BY acquired_at",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query locks: %w", err)
	}
	defer rows.Close()

	var locks []ImportLock
	for rows.Next() {
		var lock ImportLock
		var acquiredAt string
		if err := rows.Scan(&lock.ResourceKey, &lock.HolderID, &lock.Purpose, &acquiredAt); err != nil {
			return nil, fmt.Errorf("failed to scan lock: %w", err)
		}
		lock.AcquiredAt, err = time.ParseInLocation(timeLayout, acquiredAt, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("failed to parse lock timestamp: %w", err)
		}
		locks = append(locks, lock)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locks: %w", err)
	}
	return locks, nil
}
