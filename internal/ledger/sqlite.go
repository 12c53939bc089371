package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ledgerpilot/reconciler/internal/domain"
)

const dateLayout = "2006-01-02"

// Schema for the SQLite-backed ledger. Amounts are stored as decimal
// strings so no value ever round-trips through a float.
const Schema = `
CREATE TABLE IF NOT EXISTS ledger_accounts (
    account_code TEXT PRIMARY KEY,
    balance TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    id TEXT PRIMARY KEY,
    account_code TEXT NOT NULL REFERENCES ledger_accounts(account_code),
    date TEXT NOT NULL,
    reference TEXT,
    memo TEXT,
    amount TEXT NOT NULL,
    outstanding_balance TEXT NOT NULL DEFAULT '0',
    due_date TEXT,
    is_reconciled INTEGER NOT NULL DEFAULT 0,
    recon_batch INTEGER,
    recon_line INTEGER,
    as_of_balance TEXT
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_date ON ledger_entries(account_code, date);

CREATE TABLE IF NOT EXISTS master_accounts (
    account_code TEXT NOT NULL,
    side TEXT NOT NULL,
    display_name TEXT NOT NULL,
    name_keys TEXT,
    PRIMARY KEY (account_code, side)
);
`

// InitSchema ensures the ledger tables exist
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Store is the SQLite implementation of Provider.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStore creates a new SQLite ledger store
func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// FetchEntries returns entries for accountCode dated within [from, to].
func (s *Store) FetchEntries(ctx context.Context, accountCode string, from, to time.Time) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_code, date, COALESCE(reference, ''), COALESCE(memo, ''),
		        amount, outstanding_balance, COALESCE(due_date, ''),
		        is_reconciled, COALESCE(recon_batch, 0)
		 FROM ledger_entries
		 WHERE account_code = ? AND date >= ? AND date <= ?
		 ORDER BY date, id`,
		accountCode, from.Format(dateLayout), to.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// FetchMasterList returns the identity list for one ledger side.
func (s *Store) FetchMasterList(ctx context.Context, side domain.MasterSide) ([]domain.MatchCandidate, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT account_code, display_name, COALESCE(name_keys, '') FROM master_accounts WHERE side = ? ORDER BY account_code",
		string(side),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query master accounts: %w", err)
	}
	defer rows.Close()

	var candidates []domain.MatchCandidate
	for rows.Next() {
		var c domain.MatchCandidate
		var keys string
		if err := rows.Scan(&c.AccountCode, &c.DisplayName, &keys); err != nil {
			return nil, fmt.Errorf("failed to scan master account: %w", err)
		}
		if keys != "" {
			c.NameKeys = strings.Split(keys, "|")
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating master accounts: %w", err)
	}
	return candidates, nil
}

// HighestBatch returns the highest batch number used for an account.
func (s *Store) HighestBatch(ctx context.Context, accountCode string) (int, error) {
	var batch int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(recon_batch), 0) FROM ledger_entries WHERE account_code = ?",
		accountCode,
	).Scan(&batch)
	if err != nil {
		return 0, fmt.Errorf("failed to query highest batch: %w", err)
	}
	return batch, nil
}

// Balance returns the account's current balance.
func (s *Store) Balance(ctx context.Context, accountCode string) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT balance FROM ledger_accounts WHERE account_code = ?",
		accountCode,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return decimal.Zero, fmt.Errorf("unknown account %s", accountCode)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query balance: %w", err)
	}
	return parseAmount(raw, "balance")
}

// ApplyReconciliation marks an entry reconciled under batch/line. The
// update only touches rows that are either unreconciled or already carry
// the same batch/line stamp, which makes a re-run of the same commit a
// no-op rather than an error.
func (s *Store) ApplyReconciliation(ctx context.Context, entryID string, batch, line int, asOfBalance decimal.Decimal) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE ledger_entries
		 SET is_reconciled = 1, recon_batch = ?, recon_line = ?, as_of_balance = ?
		 WHERE id = ? AND (is_reconciled = 0 OR (recon_batch = ? AND recon_line = ?))`,
		batch, line, asOfBalance.String(), entryID, batch, line,
	)
	if err != nil {
		return fmt.Errorf("failed to apply reconciliation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read reconciliation result: %w", err)
	}
	if rows == 1 {
		return nil
	}

	// Distinguish "missing" from "reconciled under another batch".
	var existingBatch sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		"SELECT recon_batch FROM ledger_entries WHERE id = ?", entryID,
	).Scan(&existingBatch)
	if err == sql.ErrNoRows {
		return fmt.Errorf("ledger entry %s not found", entryID)
	}
	if err != nil {
		return fmt.Errorf("failed to inspect ledger entry %s: %w", entryID, err)
	}
	return fmt.Errorf("ledger entry %s already reconciled under batch %d", entryID, existingBatch.Int64)
}

// UpsertAccount creates or replaces an account row. Used by seeding and
// tests.
func (s *Store) UpsertAccount(accountCode string, balance decimal.Decimal) error {
	_, err := s.db.Exec(
		`INSERT INTO ledger_accounts (account_code, balance) VALUES (?, ?)
		 ON CONFLICT(account_code) DO UPDATE SET balance = excluded.balance`,
		accountCode, balance.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// InsertEntry adds a ledger entry row.
func (s *Store) InsertEntry(entry domain.LedgerEntry) error {
	var dueDate string
	if !entry.DueDate.IsZero() {
		dueDate = entry.DueDate.Format(dateLayout)
	}
	reconciled := 0
	if entry.IsReconciled {
		reconciled = 1
	}

	_, err := s.db.Exec(
		`INSERT INTO ledger_entries (
			id, account_code, date, reference, memo, amount,
			outstanding_balance, due_date, is_reconciled, recon_batch
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.AccountCode, entry.Date.Format(dateLayout),
		entry.Reference, entry.Memo, entry.Amount.String(),
		entry.OutstandingBalance.String(), dueDate, reconciled,
		nullableBatch(entry.ReconciliationBatch),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// InsertCandidate adds a master-file identity row.
func (s *Store) InsertCandidate(side domain.MasterSide, candidate domain.MatchCandidate) error {
	_, err := s.db.Exec(
		"INSERT INTO master_accounts (account_code, side, display_name, name_keys) VALUES (?, ?, ?, ?)",
		candidate.AccountCode, string(side), candidate.DisplayName, strings.Join(candidate.NameKeys, "|"),
	)
	if err != nil {
		return fmt.Errorf("failed to insert master account: %w", err)
	}
	return nil
}

func nullableBatch(batch int) interface{} {
	if batch == 0 {
		return nil
	}
	return batch
}

func scanEntry(rows *sql.Rows) (domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	var date, amount, outstanding, dueDate string
	var reconciled int

	err := rows.Scan(
		&entry.ID, &entry.AccountCode, &date, &entry.Reference, &entry.Memo,
		&amount, &outstanding, &dueDate, &reconciled, &entry.ReconciliationBatch,
	)
	if err != nil {
		return entry, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	if entry.Date, err = time.ParseInLocation(dateLayout, date, time.UTC); err != nil {
		return entry, fmt.Errorf("failed to parse entry date: %w", err)
	}
	if dueDate != "" {
		if entry.DueDate, err = time.ParseInLocation(dateLayout, dueDate, time.UTC); err != nil {
			return entry, fmt.Errorf("failed to parse entry due date: %w", err)
		}
	}
	if entry.Amount, err = parseAmount(amount, "amount"); err != nil {
		return entry, err
	}
	if entry.OutstandingBalance, err = parseAmount(outstanding, "outstanding balance"); err != nil {
		return entry, err
	}
	entry.IsReconciled = reconciled == 1

	return entry, nil
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s %q: %w", field, raw, err)
	}
	return value, nil
}
