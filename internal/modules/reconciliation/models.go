package reconciliation

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerpilot/reconciler/internal/clients/extraction"
	"github.com/ledgerpilot/reconciler/internal/domain"
	"github.com/ledgerpilot/reconciler/internal/modules/matching"
	"github.com/ledgerpilot/reconciler/internal/modules/patterns"
)

// State of one import attempt. Locked → Matched → Committed → Unlocked is
// the happy path; Rejected branches off a failed lock acquisition and
// Failed off a partial commit.
type State string

const (
	StateLocked    State = "LOCKED"
	StateMatched   State = "MATCHED"
	StateCommitted State = "COMMITTED"
	StateUnlocked  State = "UNLOCKED"
	StateRejected  State = "REJECTED"
	StateFailed    State = "FAILED"
)

// Line numbers within a batch run 10, 20, 30, … so manual corrections can
// be slotted between them later.
const lineStep = 10

// Request describes one import/reconciliation attempt.
type Request struct {
	CompanyScope string                       `json:"company_scope"`
	AccountCode  string                       `json:"account_code"`
	Transactions []domain.ExternalTransaction `json:"transactions"`
	Statement    domain.Statement             `json:"statement"`
	Commit       bool                         `json:"commit"`
	HolderID     string                       `json:"holder_id,omitempty"`
}

// Summary counts the partitions of a matching run.
type Summary struct {
	ToImport              int `json:"to_import"`
	ToReconcile           int `json:"to_reconcile"`
	AlreadyReconciled     int `json:"already_reconciled"`
	LedgerEntriesInPeriod int `json:"ledger_entries_in_period"`
	Excluded              int `json:"excluded"`
}

// BalanceCheck compares the statement closing balance against the ledger.
// A non-zero variance is an operator-visible signal, never a failure.
type BalanceCheck struct {
	StatementClosing    decimal.Decimal `json:"statement_closing"`
	LedgerBefore        decimal.Decimal `json:"ledger_before"`
	ExpectedAfterImport decimal.Decimal `json:"expected_after_import"`
	Variance            decimal.Decimal `json:"variance"`
}

// ImportCandidate is an unmatched transaction decorated with a pattern
// suggestion and an identity classification, ready for human review.
type ImportCandidate struct {
	Transaction domain.ExternalTransaction `json:"transaction"`
	Side        domain.LedgerSide          `json:"side"`
	Suggestion  *patterns.Suggestion       `json:"suggestion,omitempty"`
	Identity    *matching.IdentityResult   `json:"identity,omitempty"`
}

// CommitOutcome records what a commit attempt did, entry by entry.
type CommitOutcome struct {
	BatchID   int               `json:"batch_id"`
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// Report is the full result of one import run.
type Report struct {
	RunID        string                       `json:"run_id"`
	AccountCode  string                       `json:"account_code"`
	State        State                        `json:"state"`
	Summary      Summary                      `json:"summary"`
	BalanceCheck BalanceCheck                 `json:"balance_check"`
	Matches      []matching.MatchResult       `json:"matches"`
	ToImport     []ImportCandidate            `json:"to_import"`
	Excluded     []extraction.MalformedRecord `json:"excluded,omitempty"`
	Commit       *CommitOutcome               `json:"commit,omitempty"`
}
