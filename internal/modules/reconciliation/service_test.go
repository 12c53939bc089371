package reconciliation

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpilot/reconciler/internal/database"
	"github.com/ledgerpilot/reconciler/internal/domain"
	"github.com/ledgerpilot/reconciler/internal/events"
	"github.com/ledgerpilot/reconciler/internal/modules/locks"
	"github.com/ledgerpilot/reconciler/internal/modules/matching"
	"github.com/ledgerpilot/reconciler/internal/modules/patterns"
	"github.com/ledgerpilot/reconciler/pkg/logger"
)

type appliedCall struct {
	EntryID string
	Batch   int
	Line    int
	AsOf    decimal.Decimal
}

// fakeProvider is an in-memory ledger backend for committer tests.
type fakeProvider struct {
	entries   []domain.LedgerEntry
	customers []domain.MatchCandidate
	suppliers []domain.MatchCandidate
	balance   decimal.Decimal
	highest   int
	applied   []appliedCall
	failOn    map[string]error
}

func (f *fakeProvider) FetchEntries(ctx context.Context, accountCode string, from, to time.Time) ([]domain.LedgerEntry, error) {
	return f.entries, nil
}

func (f *fakeProvider) FetchMasterList(ctx context.Context, side domain.MasterSide) ([]domain.MatchCandidate, error) {
	if side == domain.MasterCustomer {
		return f.customers, nil
	}
	return f.suppliers, nil
}

func (f *fakeProvider) HighestBatch(ctx context.Context, accountCode string) (int, error) {
	return f.highest, nil
}

func (f *fakeProvider) Balance(ctx context.Context, accountCode string) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeProvider) ApplyReconciliation(ctx context.Context, entryID string, batch, line int, asOf decimal.Decimal) error {
	if err, ok := f.failOn[entryID]; ok {
		return err
	}
	f.applied = append(f.applied, appliedCall{entryID, batch, line, asOf})
	return nil
}

func newTestService(t *testing.T, provider *fakeProvider) (*Service, *locks.Manager) {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "core.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, locks.InitSchema(db.Conn()))
	require.NoError(t, patterns.InitSchema(db.Conn()))

	log := logger.New(logger.Config{Level: "error"})
	lockManager := locks.NewManager(locks.NewRepository(db.Conn(), log), 0, log)
	learner := patterns.NewLearner(patterns.NewRepository(db.Conn(), log), events.NewManager(log), log)

	service := NewService(
		lockManager, learner, provider, nil,
		events.NewManager(log), matching.DefaultConfig(), log,
	)
	return service, lockManager
}

func date(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRequest(commit bool) Request {
	return Request{
		CompanyScope: "acme-co",
		AccountCode:  "BANK-01",
		Commit:       commit,
		Transactions: []domain.ExternalTransaction{
			{Ref: "t1", Date: date(10), Amount: amt("250.00"), Description: "INV1042 PAYMENT"},
			{Ref: "t2", Date: date(12), Amount: amt("99.50"), Description: "INV1043 PAYMENT"},
			{Ref: "t3", Date: date(14), Amount: amt("-42.00"), Description: "DD CITY POWER LTD 00012345", ExtractedName: "City Power Ltd"},
		},
		Statement: domain.Statement{
			OpeningBalance: amt("1000.00"),
			ClosingBalance: amt("1307.50"),
			PeriodStart:    date(1),
			PeriodEnd:      date(30),
		},
	}
}

func testEntries() []domain.LedgerEntry {
	return []domain.LedgerEntry{
		{ID: "e1", AccountCode: "BANK-01", Date: date(10), Reference: "INV1042", Amount: amt("250.00")},
		{ID: "e2", AccountCode: "BANK-01", Date: date(12), Reference: "INV1043", Amount: amt("99.50")},
		{ID: "e-done", AccountCode: "BANK-01", Date: date(2), Amount: amt("10.00"), IsReconciled: true, ReconciliationBatch: 4},
	}
}

func TestRun_PreviewDoesNotCommit(t *testing.T) {
	provider := &fakeProvider{entries: testEntries(), balance: amt("1349.50"), highest: 4}
	service, lockManager := newTestService(t, provider)

	report, err := service.Run(context.Background(), testRequest(false))
	require.NoError(t, err)

	assert.Equal(t, StateMatched, report.State)
	assert.Empty(t, provider.applied)
	assert.Nil(t, report.Commit)

	assert.Equal(t, 2, report.Summary.ToReconcile)
	assert.Equal(t, 1, report.Summary.ToImport)
	assert.Equal(t, 1, report.Summary.AlreadyReconciled)
	assert.Equal(t, 3, report.Summary.LedgerEntriesInPeriod)

	// Lock released on exit even without a commit.
	acquired, err := lockManager.TryAcquire("BANK-01", "probe", "test")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestRun_CommitAssignsBatchAndLines(t *testing.T) {
	provider := &fakeProvider{entries: testEntries(), balance: amt("1349.50"), highest: 4}
	service, _ := newTestService(t, provider)

	req := testRequest(true)
	report, err := service.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StateUnlocked, report.State)
	require.NotNil(t, report.Commit)
	assert.Equal(t, 5, report.Commit.BatchID, "batch is one greater than the highest used")

	require.Len(t, provider.applied, 2)
	assert.Equal(t, appliedCall{"e1", 5, 10, req.Statement.ClosingBalance}, provider.applied[0])
	assert.Equal(t, appliedCall{"e2", 5, 20, req.Statement.ClosingBalance}, provider.applied[1])
}

func TestRun_RejectedWhenLockHeld(t *testing.T) {
	provider := &fakeProvider{entries: testEntries(), balance: amt("1349.50")}
	service, lockManager := newTestService(t, provider)

	acquired, err := lockManager.TryAcquire("BANK-01", "other-import", "statement import")
	require.NoError(t, err)
	require.True(t, acquired)

	report, err := service.Run(context.Background(), testRequest(true))
	assert.ErrorIs(t, err, ErrResourceBusy)
	require.NotNil(t, report)
	assert.Equal(t, StateRejected, report.State)
	assert.Empty(t, provider.applied)

	// The original holder keeps the lock.
	active, err := lockManager.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "other-import", active[0].HolderID)
}

func TestRun_PartialCommitReportsExactly(t *testing.T) {
	provider := &fakeProvider{
		entries: testEntries(),
		balance: amt("1349.50"),
		highest: 4,
		failOn:  map[string]error{"e2": fmt.Errorf("ledger row locked")},
	}
	service, lockManager := newTestService(t, provider)

	report, err := service.Run(context.Background(), testRequest(true))

	var partial *PartialCommitError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, StateFailed, report.State)
	assert.Equal(t, []string{"e1"}, partial.Succeeded)
	assert.Contains(t, partial.Failed, "e2")
	assert.Equal(t, 5, partial.BatchID)

	// The applied update is not rolled back.
	require.Len(t, provider.applied, 1)
	assert.Equal(t, "e1", provider.applied[0].EntryID)

	// Lock released despite the failure.
	acquired, err := lockManager.TryAcquire("BANK-01", "probe", "test")
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestRun_BalanceCheckVariance(t *testing.T) {
	// Ledger sits at 1349.50; the only unmatched transaction is -42.00,
	// so the ledger after import should be 1307.50 — exactly the
	// statement closing balance.
	provider := &fakeProvider{entries: testEntries(), balance: amt("1349.50"), highest: 4}
	service, _ := newTestService(t, provider)

	report, err := service.Run(context.Background(), testRequest(false))
	require.NoError(t, err)

	check := report.BalanceCheck
	assert.True(t, check.ExpectedAfterImport.Equal(amt("1307.50")), "expected %s", check.ExpectedAfterImport)
	assert.True(t, check.Variance.IsZero(), "variance %s", check.Variance)
}

func TestRun_NonZeroVarianceDoesNotBlock(t *testing.T) {
	provider := &fakeProvider{entries: testEntries(), balance: amt("1400.00"), highest: 4}
	service, _ := newTestService(t, provider)

	report, err := service.Run(context.Background(), testRequest(true))
	require.NoError(t, err)

	assert.False(t, report.BalanceCheck.Variance.IsZero())
	assert.Equal(t, StateUnlocked, report.State, "variance is a signal, not a failure")
}

func TestRun_MalformedRecordExcludedBatchProceeds(t *testing.T) {
	provider := &fakeProvider{entries: testEntries(), balance: amt("1349.50"), highest: 4}
	service, _ := newTestService(t, provider)

	req := testRequest(false)
	req.Transactions = append(req.Transactions, domain.ExternalTransaction{
		Ref: "bad", Amount: amt("10.00"), Description: "NO DATE",
	})

	report, err := service.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, report.Excluded, 1)
	assert.Equal(t, "bad", report.Excluded[0].Record.Ref)
	assert.Equal(t, 1, report.Summary.Excluded)
	assert.Equal(t, 2, report.Summary.ToReconcile, "good records still processed")
}

func TestRun_UnmatchedDecoratedWithSuggestionAndIdentity(t *testing.T) {
	provider := &fakeProvider{
		entries:   testEntries(),
		balance:   amt("1349.50"),
		suppliers: []domain.MatchCandidate{{AccountCode: "S044", DisplayName: "City Power Ltd"}},
	}
	service, _ := newTestService(t, provider)

	// Teach the learner a prior decision for the same description shape.
	require.NoError(t, service.learner.Learn("acme-co", "DD CITY POWER LTD 00099999",
		patterns.Assignment{Type: "payment", Account: "7200", Category: "Utilities"}))

	report, err := service.Run(context.Background(), testRequest(false))
	require.NoError(t, err)

	require.Len(t, report.ToImport, 1)
	candidate := report.ToImport[0]
	assert.Equal(t, "t3", candidate.Transaction.Ref)
	assert.Equal(t, domain.SidePayment, candidate.Side)

	require.NotNil(t, candidate.Suggestion)
	assert.Equal(t, "7200", candidate.Suggestion.Account)
	assert.Equal(t, patterns.SourceExact, candidate.Suggestion.Source)

	require.NotNil(t, candidate.Identity)
	assert.Equal(t, matching.StatusMatched, candidate.Identity.Status)
	assert.Equal(t, "S044", candidate.Identity.AccountCode)
	assert.Equal(t, domain.MasterSupplier, candidate.Identity.Side)
}

func TestRun_EmitsLifecycleEvents(t *testing.T) {
	provider := &fakeProvider{entries: testEntries(), balance: amt("1349.50"), highest: 4}

	db, err := database.New(filepath.Join(t.TempDir(), "core.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, locks.InitSchema(db.Conn()))
	require.NoError(t, patterns.InitSchema(db.Conn()))

	// Other tests in this package set the global level to error; the
	// audit trail is emitted at info.
	previous := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(previous) })

	var buf bytes.Buffer
	log := zerolog.New(&buf)
	lockManager := locks.NewManager(locks.NewRepository(db.Conn(), log), 0, log)
	learner := patterns.NewLearner(patterns.NewRepository(db.Conn(), log), events.NewManager(log), log)
	service := NewService(lockManager, learner, provider, nil, events.NewManager(log), matching.DefaultConfig(), log)

	_, err = service.Run(context.Background(), testRequest(false))
	require.NoError(t, err)

	logged := buf.String()
	assert.Contains(t, logged, string(events.ImportStarted))
	assert.Contains(t, logged, string(events.LockAcquired))
	assert.Contains(t, logged, string(events.ImportCompleted))
	assert.Contains(t, logged, string(events.LockReleased))
}

func TestRun_AmbiguousIdentitySurfaced(t *testing.T) {
	provider := &fakeProvider{
		entries:   testEntries(),
		balance:   amt("1349.50"),
		customers: []domain.MatchCandidate{{AccountCode: "C044", DisplayName: "City Power"}},
		suppliers: []domain.MatchCandidate{{AccountCode: "S044", DisplayName: "City Power Ltd"}},
	}
	service, _ := newTestService(t, provider)

	report, err := service.Run(context.Background(), testRequest(false))
	require.NoError(t, err)

	require.Len(t, report.ToImport, 1)
	identity := report.ToImport[0].Identity
	require.NotNil(t, identity)
	assert.Equal(t, matching.StatusAmbiguous, identity.Status)
	assert.NotEmpty(t, identity.SkipReason)
	assert.Empty(t, identity.AccountCode, "ambiguous identity is never auto-applied")
}
