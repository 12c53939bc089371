package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpilot/reconciler/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMatch_PerfectScore(t *testing.T) {
	txns := []domain.ExternalTransaction{
		{Ref: "t1", Date: date(2025, 6, 10), Amount: amt("250.00"), Description: "INV1042 PAYMENT"},
	}
	entries := []domain.LedgerEntry{
		{ID: "e1", Date: date(2025, 6, 10), Amount: amt("250.00"), Reference: "INV1042"},
	}

	outcome := Match(txns, entries, DefaultConfig())

	require.Len(t, outcome.Matches, 1)
	m := outcome.Matches[0]
	assert.Equal(t, StatusMatched, m.Status)
	assert.Equal(t, "e1", m.EntryID)
	// 0.6 amount + 0.3 date + 0.1 reference.
	assert.InDelta(t, 1.0, m.Score, 1e-9)
	assert.Empty(t, outcome.UnmatchedTxns)
	assert.Empty(t, outcome.UnmatchedEntries)
}

func TestMatch_DateWithinTolerance(t *testing.T) {
	txns := []domain.ExternalTransaction{
		{Ref: "t1", Date: date(2025, 6, 10), Amount: amt("250.00"), Description: "INV1042 PAYMENT"},
	}
	entries := []domain.LedgerEntry{
		{ID: "e1", Date: date(2025, 6, 15), Amount: amt("250.00"), Reference: "INV1042"},
	}

	outcome := Match(txns, entries, Config{DateToleranceDays: 5, MinScore: 0.7})

	require.Len(t, outcome.Matches, 1)
	m := outcome.Matches[0]
	assert.Equal(t, StatusMatched, m.Status)
	// 0.6 amount + 0.1 reference + 0.3*(1 - 5/6) date.
	assert.InDelta(t, 0.75, m.Score, 1e-9)
}

func TestMatch_DateBeyondToleranceHalves(t *testing.T) {
	txns := []domain.ExternalTransaction{
		{Ref: "t1", Date: date(2025, 6, 10), Amount: amt("250.00"), Description: "INV1042 PAYMENT"},
	}
	entries := []domain.LedgerEntry{
		{ID: "e1", Date: date(2025, 6, 30), Amount: amt("250.00"), Reference: "INV1042"},
	}

	outcome := Match(txns, entries, Config{DateToleranceDays: 5, MinScore: 0.7})

	require.Len(t, outcome.Matches, 1)
	m := outcome.Matches[0]
	// (0.6 + 0.1) halved, not zeroed, but below threshold.
	assert.Equal(t, StatusNotFound, m.Status)
	assert.Len(t, outcome.UnmatchedTxns, 1)
	assert.Len(t, outcome.UnmatchedEntries, 1)
}

func TestMatch_AmountGate(t *testing.T) {
	txns := []domain.ExternalTransaction{
		{Ref: "t1", Date: date(2025, 6, 10), Amount: amt("100.00"), Description: "PAYMENT RECEIVED"},
	}
	entries := []domain.LedgerEntry{
		// Same date, but amount off by a full currency unit: the pair
		// is excluded no matter how well date and text agree.
		{ID: "e1", Date: date(2025, 6, 10), Amount: amt("99.00"), Memo: "PAYMENT RECEIVED"},
	}

	outcome := Match(txns, entries, DefaultConfig())

	require.Len(t, outcome.Matches, 1)
	assert.Equal(t, StatusNotFound, outcome.Matches[0].Status)
	assert.Empty(t, outcome.Matches[0].EntryID)
	assert.Len(t, outcome.UnmatchedTxns, 1)
	assert.Len(t, outcome.UnmatchedEntries, 1)
}

func TestMatch_AmountWithinEpsilon(t *testing.T) {
	txns := []domain.ExternalTransaction{
		{Ref: "t1", Date: date(2025, 6, 10), Amount: amt("100.00")},
	}
	entries := []domain.LedgerEntry{
		{ID: "e1", Date: date(2025, 6, 10), Amount: amt("100.01")},
	}

	outcome := Match(txns, entries, DefaultConfig())
	assert.Equal(t, StatusMatched, outcome.Matches[0].Status)
}

func TestMatch_AmountMismatchWithReferenceEvidence(t *testing.T) {
	txns := []domain.ExternalTransaction{
		{Ref: "t1", Date: date(2025, 6, 10), Amount: amt("100.00"), Description: "INV1042 PAYMENT"},
	}
	entries := []domain.LedgerEntry{
		{ID: "e1", Date: date(2025, 6, 10), Amount: amt("99.00"), Reference: "INV1042"},
	}

	outcome := Match(txns, entries, DefaultConfig())

	require.Len(t, outcome.Matches, 1)
	assert.Equal(t, StatusAmountMismatch, outcome.Matches[0].Status)
	assert.NotEmpty(t, outcome.Matches[0].Reasons)
}

func TestMatch_BelowThresholdCandidateBeatsMismatchFlag(t *testing.T) {
	txns := []domain.ExternalTransaction{
		{Ref: "t1", Date: date(2025, 6, 10), Amount: amt("250.00"), Description: "INV1042 PAYMENT"},
	}
	entries := []domain.LedgerEntry{
		// Right amount but far off in date: passes the gate, scores
		// below threshold.
		{ID: "e1", Date: date(2025, 6, 30), Amount: amt("250.00")},
		// Reference hit with the wrong amount.
		{ID: "e2", Date: date(2025, 6, 10), Amount: amt("99.00"), Reference: "INV1042"},
	}

	outcome := Match(txns, entries, Config{DateToleranceDays: 5, MinScore: 0.7})

	require.Len(t, outcome.Matches, 1)
	m := outcome.Matches[0]
	assert.Equal(t, StatusNotFound, m.Status, "a gate-passing candidate exists, so no mismatch flag")
	require.NotEmpty(t, m.Reasons)
	assert.Contains(t, m.Reasons[0], "below threshold")
}

func TestMatch_SignRoutesButNeverGates(t *testing.T) {
	// Negative statement amount still matches a positive entry by
	// absolute value.
	txns := []domain.ExternalTransaction{
		{Ref: "t1", Date: date(2025, 6, 10), Amount: amt("-250.00"), Description: "INV1042"},
	}
	entries := []domain.LedgerEntry{
		{ID: "e1", Date: date(2025, 6, 10), Amount: amt("250.00"), Reference: "INV1042"},
	}

	outcome := Match(txns, entries, DefaultConfig())
	assert.Equal(t, StatusMatched, outcome.Matches[0].Status)
	assert.Equal(t, domain.SidePayment, txns[0].Side())
}

func TestMatch_OutstandingBalancePreferred(t *testing.T) {
	txns := []domain.ExternalTransaction{
		{Ref: "t1", Date: date(2025, 6, 10), Amount: amt("150.00")},
	}
	entries := []domain.LedgerEntry{
		// Partially paid invoice: the outstanding balance is what the
		// statement amount should equal.
		{ID: "e1", Date: date(2025, 6, 10), Amount: amt("500.00"), OutstandingBalance: amt("150.00")},
	}

	outcome := Match(txns, entries, DefaultConfig())
	assert.Equal(t, StatusMatched, outcome.Matches[0].Status)
}

func TestMatch_OneToOne(t *testing.T) {
	// Three identical transactions, two identical entries: every entry
	// is used at most once.
	txn := domain.ExternalTransaction{Date: date(2025, 6, 10), Amount: amt("50.00"), Description: "SUBSCRIPTION"}
	txns := []domain.ExternalTransaction{txn, txn, txn}
	txns[0].Ref, txns[1].Ref, txns[2].Ref = "t1", "t2", "t3"

	entries := []domain.LedgerEntry{
		{ID: "e1", Date: date(2025, 6, 10), Amount: amt("50.00")},
		{ID: "e2", Date: date(2025, 6, 10), Amount: amt("50.00")},
	}

	outcome := Match(txns, entries, DefaultConfig())

	seen := map[string]int{}
	matched := 0
	for _, m := range outcome.Matches {
		if m.Status == StatusMatched {
			matched++
			seen[m.EntryID]++
		}
	}
	assert.Equal(t, 2, matched)
	for entryID, count := range seen {
		assert.Equal(t, 1, count, "entry %s matched more than once", entryID)
	}
	assert.Len(t, outcome.UnmatchedTxns, 1)
}

func TestMatch_GreedyTieBrokenByInputOrder(t *testing.T) {
	txns := []domain.ExternalTransaction{
		{Ref: "t1", Date: date(2025, 6, 10), Amount: amt("75.00"), Description: "NO USABLE TEXT"},
	}
	// Identical amount and date, no reference on either: the winner is
	// the first entry in input order and the result says so.
	entries := []domain.LedgerEntry{
		{ID: "e1", Date: date(2025, 6, 10), Amount: amt("75.00")},
		{ID: "e2", Date: date(2025, 6, 10), Amount: amt("75.00")},
	}

	outcome := Match(txns, entries, DefaultConfig())

	require.Len(t, outcome.Matches, 1)
	m := outcome.Matches[0]
	assert.Equal(t, "e1", m.EntryID)
	assert.Contains(t, m.Reasons, "tie broken by input order")
}

func TestMatch_AmountGateInvariant(t *testing.T) {
	// Property: whenever absolute amounts differ beyond 0.01, the pair
	// never matches regardless of date and text agreement.
	base := domain.ExternalTransaction{Ref: "t1", Date: date(2025, 6, 10), Description: "INV9 SETTLEMENT"}
	entry := domain.LedgerEntry{ID: "e1", Date: date(2025, 6, 10), Reference: "INV9", Amount: amt("200.00")}

	for _, raw := range []string{"199.98", "200.02", "100.00", "-300.00", "0.00"} {
		txn := base
		txn.Amount = amt(raw)
		score, _, gateOK := scorePair(txn, entry, DefaultConfig())
		assert.False(t, gateOK, "amount %s must fail the gate", raw)
		assert.Zero(t, score)
	}
}
