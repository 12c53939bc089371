package patterns

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const timeLayout = "2006-01-02 15:04:05"

// Schema for the pattern table. The unique index is what makes concurrent
// learns for the same description race safely to one last-write-wins row.
const Schema = `
CREATE TABLE IF NOT EXISTS patterns (
    id INTEGER PRIMARY KEY,
    company_scope TEXT NOT NULL,
    normalized_description TEXT NOT NULL,
    assigned_type TEXT NOT NULL,
    assigned_account TEXT NOT NULL,
    assigned_category TEXT,
    assigned_cost_centre TEXT,
    times_used INTEGER NOT NULL DEFAULT 1,
    first_used TEXT NOT NULL,
    last_used TEXT NOT NULL,
    UNIQUE(company_scope, normalized_description)
);

CREATE INDEX IF NOT EXISTS idx_patterns_scope ON patterns(company_scope);
`

// InitSchema ensures the patterns table exists
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Repository handles pattern persistence
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new pattern repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "patterns").Logger(),
	}
}

// Upsert records an assignment for (scope, normalized). A repeat
// occurrence increments times_used, refreshes last_used and overwrites
// the assignment with the latest decision.
func (r *Repository) Upsert(scope, normalized string, assignment Assignment, now time.Time) error {
	ts := now.UTC().Format(timeLayout)
	_, err := r.db.Exec(
		`INSERT INTO patterns (
			company_scope, normalized_description, assigned_type, assigned_account,
			assigned_category, assigned_cost_centre, times_used, first_used, last_used
		) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(company_scope, normalized_description) DO UPDATE SET
			assigned_type = excluded.assigned_type,
			assigned_account = excluded.assigned_account,
			assigned_category = excluded.assigned_category,
			assigned_cost_centre = excluded.assigned_cost_centre,
			times_used = times_used + 1,
			last_used = excluded.last_used`,
		scope, normalized,
		assignment.Type, assignment.Account, assignment.Category, assignment.CostCentre,
		ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pattern: %w", err)
	}
	return nil
}

// GetExact returns the pattern for (scope, normalized), or nil.
func (r *Repository) GetExact(scope, normalized string) (*Pattern, error) {
	row := r.db.QueryRow(
		selectColumns+" WHERE company_scope = ? AND normalized_description = ?",
		scope, normalized,
	)
	return r.scanPattern(row)
}

// FindByToken returns the most-used pattern in scope whose normalized
// description contains token as a substring, or nil.
func (r *Repository) FindByToken(scope, token string) (*Pattern, error) {
	row := r.db.QueryRow(
		selectColumns+` WHERE company_scope = ? AND normalized_description LIKE '%' || ? || '%'
		 ORDER BY times_used DESC, last_used DESC LIMIT 1`,
		scope, token,
	)
	return r.scanPattern(row)
}

// CountForScope returns how many patterns exist for a scope.
func (r *Repository) CountForScope(scope string) (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM patterns WHERE company_scope = ?", scope).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count patterns: %w", err)
	}
	return count, nil
}

const selectColumns = `
	SELECT id, company_scope, normalized_description, assigned_type, assigned_account,
	       COALESCE(assigned_category, ''), COALESCE(assigned_cost_centre, ''),
	       times_used, first_used, last_used
	FROM patterns`

func (r *Repository) scanPattern(row *sql.Row) (*Pattern, error) {
	var p Pattern
	var firstUsed, lastUsed string

	err := row.Scan(
		&p.ID, &p.CompanyScope, &p.NormalizedDescription,
		&p.AssignedType, &p.AssignedAccount, &p.AssignedCategory, &p.AssignedCostCentre,
		&p.TimesUsed, &firstUsed, &lastUsed,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pattern: %w", err)
	}

	if p.FirstUsed, err = time.ParseInLocation(timeLayout, firstUsed, time.UTC); err != nil {
		return nil, fmt.Errorf("failed to parse first_used: %w", err)
	}
	if p.LastUsed, err = time.ParseInLocation(timeLayout, lastUsed, time.UTC); err != nil {
		return nil, fmt.Errorf("failed to parse last_used: %w", err)
	}
	return &p, nil
}
