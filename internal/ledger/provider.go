// Package ledger defines the data-provider boundary to the external
// ledger store. One matching/commit engine runs against any backend that
// implements Provider; the ledger remains the single source of truth for
// balances and is never cached across requests.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerpilot/reconciler/internal/domain"
)

// Provider is the capability set the reconciliation committer needs from
// a ledger backend.
type Provider interface {
	// FetchEntries returns the entries for an account within a date
	// range, reconciled ones included.
	FetchEntries(ctx context.Context, accountCode string, from, to time.Time) ([]domain.LedgerEntry, error)

	// FetchMasterList returns the customer or supplier identity list.
	FetchMasterList(ctx context.Context, side domain.MasterSide) ([]domain.MatchCandidate, error)

	// HighestBatch returns the highest reconciliation batch number ever
	// used for an account, 0 when none.
	HighestBatch(ctx context.Context, accountCode string) (int, error)

	// Balance returns the account's current ledger balance.
	Balance(ctx context.Context, accountCode string) (decimal.Decimal, error)

	// ApplyReconciliation marks one entry reconciled under batch/line
	// with the statement closing balance as the as-of balance. Must be
	// idempotent: re-applying the same batch/line to an entry already
	// reconciled under them is a no-op, not an error.
	ApplyReconciliation(ctx context.Context, entryID string, batch, line int, asOfBalance decimal.Decimal) error
}
