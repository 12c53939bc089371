package matching

import "github.com/ledgerpilot/reconciler/internal/domain"

// Status is the outcome of a match attempt. Callers must handle every
// variant; "not found" and "ambiguous" are results, not errors.
type Status string

const (
	StatusMatched        Status = "MATCHED"
	StatusAmountMismatch Status = "AMOUNT_MISMATCH"
	StatusNotFound       Status = "NOT_FOUND"
	StatusAmbiguous      Status = "AMBIGUOUS"
)

// MatchResult pairs one external transaction with at most one ledger
// entry. Created per matching run; never persisted by the engine itself.
type MatchResult struct {
	TxnRef  string   `json:"external_txn_ref"`
	EntryID string   `json:"ledger_entry_ref,omitempty"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
	Status  Status   `json:"status"`
}

// Outcome is the full result of one engine run.
type Outcome struct {
	Matches          []MatchResult
	UnmatchedTxns    []domain.ExternalTransaction
	UnmatchedEntries []domain.LedgerEntry
}

// Config holds the engine's tunables.
type Config struct {
	DateToleranceDays int
	MinScore          float64
}

// DefaultConfig returns the standard tunables.
func DefaultConfig() Config {
	return Config{
		DateToleranceDays: 5,
		MinScore:          0.7,
	}
}

// IdentityResult classifies a payer/payee name against the customer and
// supplier master lists. A name scoring above threshold on both sides is
// Ambiguous and must never be auto-applied.
type IdentityResult struct {
	Name        string            `json:"name"`
	Side        domain.MasterSide `json:"side,omitempty"`
	AccountCode string            `json:"account_ref,omitempty"`
	DisplayName string            `json:"display_name,omitempty"`
	Score       float64           `json:"score"`
	Status      Status            `json:"status"`
	SkipReason  string            `json:"skip_reason,omitempty"`
}
