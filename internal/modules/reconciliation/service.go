package reconciliation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ledgerpilot/reconciler/internal/clients/extraction"
	"github.com/ledgerpilot/reconciler/internal/domain"
	"github.com/ledgerpilot/reconciler/internal/events"
	"github.com/ledgerpilot/reconciler/internal/ledger"
	"github.com/ledgerpilot/reconciler/internal/modules/locks"
	"github.com/ledgerpilot/reconciler/internal/modules/matching"
	"github.com/ledgerpilot/reconciler/internal/modules/patterns"
)

const lockPurpose = "statement import"

// Extractor is the slice of the extraction client the committer uses.
type Extractor interface {
	Extract(ctx context.Context, documentRef string) (*extraction.ExtractionResult, error)
}

// Service orchestrates one import attempt: acquire lock, fetch ledger
// entries, run the matching engine, decorate unmatched items with pattern
// suggestions, commit accepted matches under a new batch, verify the
// resulting balance, release the lock.
type Service struct {
	locks     *locks.Manager
	learner   *patterns.Learner
	provider  ledger.Provider
	extractor Extractor
	events    *events.Manager
	matchCfg  matching.Config
	log       zerolog.Logger
}

// NewService creates a new reconciliation committer
func NewService(
	lockManager *locks.Manager,
	learner *patterns.Learner,
	provider ledger.Provider,
	extractor Extractor,
	eventManager *events.Manager,
	matchCfg matching.Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		locks:     lockManager,
		learner:   learner,
		provider:  provider,
		extractor: extractor,
		events:    eventManager,
		matchCfg:  matchCfg,
		log:       log.With().Str("service", "reconciliation").Logger(),
	}
}

// Run executes one import attempt. A held lock returns the report in
// state REJECTED together with ErrResourceBusy. A partial commit returns
// the report in state FAILED together with a *PartialCommitError naming
// exactly which entries succeeded, so a re-run only touches the rest.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	report := &Report{
		RunID:       uuid.NewString(),
		AccountCode: req.AccountCode,
	}
	log := s.log.With().Str("run_id", report.RunID).Str("account", req.AccountCode).Logger()

	holder := req.HolderID
	if holder == "" {
		holder = uuid.NewString()
	}

	s.events.Emit(events.ImportStarted, "reconciliation", map[string]interface{}{
		"run_id": report.RunID, "account": req.AccountCode, "transactions": len(req.Transactions),
	})

	acquired, err := s.locks.TryAcquire(req.AccountCode, holder, lockPurpose)
	if err != nil {
		// Lock store failure is fatal: nothing has touched the ledger.
		return nil, fmt.Errorf("lock store unavailable: %w", err)
	}
	if !acquired {
		report.State = StateRejected
		s.events.Emit(events.ImportRejected, "reconciliation", map[string]interface{}{
			"run_id": report.RunID, "account": req.AccountCode,
		})
		return report, ErrResourceBusy
	}

	report.State = StateLocked
	s.events.Emit(events.LockAcquired, "reconciliation", map[string]interface{}{
		"run_id": report.RunID, "account": req.AccountCode, "holder": holder,
	})

	// Guaranteed-release path: every exit from here on drops the lock,
	// so a crash mid-commit cannot strand it past the TTL.
	defer func() {
		if err := s.locks.Release(req.AccountCode); err != nil {
			log.Error().Err(err).Msg("Failed to release import lock")
			return
		}
		s.events.Emit(events.LockReleased, "reconciliation", map[string]interface{}{
			"run_id": report.RunID, "account": req.AccountCode,
		})
		if report.State == StateCommitted {
			report.State = StateUnlocked
		}
	}()

	valid, excluded := validateTransactions(req.Transactions)
	report.Excluded = excluded
	for _, rec := range excluded {
		s.events.Emit(events.RecordExcluded, "reconciliation", map[string]interface{}{
			"run_id": report.RunID, "reason": rec.Reason,
		})
	}

	entries, err := s.provider.FetchEntries(ctx, req.AccountCode, req.Statement.PeriodStart, req.Statement.PeriodEnd)
	if err != nil {
		s.emitError(report.RunID, "fetch ledger entries", err)
		return report, fmt.Errorf("failed to fetch ledger entries: %w", err)
	}

	var open []domain.LedgerEntry
	alreadyReconciled := 0
	for _, entry := range entries {
		if entry.IsReconciled {
			alreadyReconciled++
			continue
		}
		open = append(open, entry)
	}

	outcome := matching.Match(valid, open, s.matchCfg)
	report.Matches = outcome.Matches
	report.State = StateMatched

	report.ToImport = s.decorateUnmatched(ctx, req.CompanyScope, outcome.UnmatchedTxns, report.RunID)

	report.Summary = Summary{
		ToImport:              len(outcome.UnmatchedTxns),
		ToReconcile:           countMatched(outcome.Matches),
		AlreadyReconciled:     alreadyReconciled,
		LedgerEntriesInPeriod: len(entries),
		Excluded:              len(excluded),
	}

	balanceBefore, err := s.provider.Balance(ctx, req.AccountCode)
	if err != nil {
		s.emitError(report.RunID, "fetch ledger balance", err)
		return report, fmt.Errorf("failed to fetch ledger balance: %w", err)
	}
	report.BalanceCheck = balanceCheck(req.Statement.ClosingBalance, balanceBefore, outcome.UnmatchedTxns)
	if !report.BalanceCheck.Variance.IsZero() {
		s.events.Emit(events.VarianceDetected, "reconciliation", map[string]interface{}{
			"run_id": report.RunID, "variance": report.BalanceCheck.Variance.String(),
		})
	}

	if !req.Commit {
		log.Info().
			Int("to_reconcile", report.Summary.ToReconcile).
			Int("to_import", report.Summary.ToImport).
			Msg("Preview run complete")
		s.emitCompleted(report)
		return report, nil
	}

	result, err := s.commit(ctx, req, report, log)
	if err == nil {
		s.emitCompleted(result)
	}
	return result, err
}

// RunFromDocument extracts a document through the extraction service and
// runs the import on its transactions.
func (s *Service) RunFromDocument(ctx context.Context, scope, accountCode, documentRef string, commit bool) (*Report, error) {
	if s.extractor == nil {
		return nil, fmt.Errorf("no extraction client configured")
	}

	result, err := s.extractor.Extract(ctx, documentRef)
	if err != nil {
		return nil, fmt.Errorf("extraction failed for %s: %w", documentRef, err)
	}

	stmt, err := extraction.ParseStatement(result.Statement)
	if err != nil {
		return nil, fmt.Errorf("invalid statement metadata: %w", err)
	}

	txns, malformed := extraction.ParseTransactions(result.Transactions)

	report, err := s.Run(ctx, Request{
		CompanyScope: scope,
		AccountCode:  accountCode,
		Transactions: txns,
		Statement:    stmt,
		Commit:       commit,
	})
	if report != nil {
		report.Excluded = append(malformed, report.Excluded...)
		report.Summary.Excluded = len(report.Excluded)
	}
	return report, err
}

// commit applies accepted matches entry by entry under a fresh batch
// number. Updates are not transactional across entries; a failure leaves
// earlier updates in place and is reported as partial.
func (s *Service) commit(ctx context.Context, req Request, report *Report, log zerolog.Logger) (*Report, error) {
	highest, err := s.provider.HighestBatch(ctx, req.AccountCode)
	if err != nil {
		s.emitError(report.RunID, "read highest batch", err)
		return report, fmt.Errorf("failed to read highest batch: %w", err)
	}
	batch := highest + 1

	commitOutcome := &CommitOutcome{BatchID: batch, Failed: map[string]string{}}
	line := 0
	for _, match := range report.Matches {
		if match.Status != matching.StatusMatched {
			continue
		}
		line += lineStep

		err := s.provider.ApplyReconciliation(ctx, match.EntryID, batch, line, req.Statement.ClosingBalance)
		if err != nil {
			log.Error().Err(err).Str("entry", match.EntryID).Int("line", line).Msg("Entry update failed")
			commitOutcome.Failed[match.EntryID] = err.Error()
			continue
		}
		commitOutcome.Succeeded = append(commitOutcome.Succeeded, match.EntryID)
	}
	report.Commit = commitOutcome

	if len(commitOutcome.Failed) > 0 {
		report.State = StateFailed
		s.events.Emit(events.PartialCommit, "reconciliation", map[string]interface{}{
			"run_id": report.RunID, "batch": batch,
			"succeeded": len(commitOutcome.Succeeded), "failed": len(commitOutcome.Failed),
		})
		return report, &PartialCommitError{
			BatchID:   batch,
			Succeeded: commitOutcome.Succeeded,
			Failed:    commitOutcome.Failed,
		}
	}

	report.State = StateCommitted
	s.events.Emit(events.BatchCommitted, "reconciliation", map[string]interface{}{
		"run_id": report.RunID, "batch": batch, "entries": len(commitOutcome.Succeeded),
	})
	log.Info().Int("batch", batch).Int("entries", len(commitOutcome.Succeeded)).Msg("Batch committed")

	return report, nil
}

func (s *Service) emitCompleted(report *Report) {
	s.events.Emit(events.ImportCompleted, "reconciliation", map[string]interface{}{
		"run_id": report.RunID, "state": string(report.State),
		"to_reconcile": report.Summary.ToReconcile, "to_import": report.Summary.ToImport,
	})
}

func (s *Service) emitError(runID, operation string, err error) {
	s.events.Emit(events.ErrorOccurred, "reconciliation", map[string]interface{}{
		"run_id": runID, "operation": operation, "error": err.Error(),
	})
}

// decorateUnmatched attaches pattern suggestions and identity
// classifications to transactions that need importing. Failures here are
// informational only and never fail the run.
func (s *Service) decorateUnmatched(ctx context.Context, scope string, txns []domain.ExternalTransaction, runID string) []ImportCandidate {
	if len(txns) == 0 {
		return nil
	}

	var customers, suppliers []domain.MatchCandidate
	var masterErr error
	customers, masterErr = s.provider.FetchMasterList(ctx, domain.MasterCustomer)
	if masterErr == nil {
		suppliers, masterErr = s.provider.FetchMasterList(ctx, domain.MasterSupplier)
	}
	if masterErr != nil {
		s.log.Warn().Err(masterErr).Msg("Master lists unavailable, skipping identity matching")
	}

	candidates := make([]ImportCandidate, 0, len(txns))
	for _, txn := range txns {
		candidate := ImportCandidate{Transaction: txn, Side: txn.Side()}

		suggestion, err := s.learner.Find(scope, txn.Description)
		if err != nil {
			s.log.Warn().Err(err).Str("txn", txn.Ref).Msg("Pattern lookup failed")
		} else {
			candidate.Suggestion = suggestion
		}

		if masterErr == nil && txn.ExtractedName != "" {
			identity := matching.MatchIdentity(txn.ExtractedName, customers, suppliers, s.matchCfg.MinScore)
			candidate.Identity = &identity
			if identity.Status == matching.StatusAmbiguous {
				s.events.Emit(events.AmbiguousIdentity, "reconciliation", map[string]interface{}{
					"run_id": runID, "txn": txn.Ref, "reason": identity.SkipReason,
				})
			}
		}

		candidates = append(candidates, candidate)
	}
	return candidates
}

// validateTransactions excludes records the engine cannot score. One bad
// record never fails the batch.
func validateTransactions(txns []domain.ExternalTransaction) ([]domain.ExternalTransaction, []extraction.MalformedRecord) {
	var valid []domain.ExternalTransaction
	var excluded []extraction.MalformedRecord

	for _, txn := range txns {
		if txn.Date.IsZero() {
			excluded = append(excluded, extraction.MalformedRecord{
				Record: extraction.TransactionRecord{
					Ref:         txn.Ref,
					Amount:      txn.Amount.String(),
					Description: txn.Description,
				},
				Reason: "missing transaction date",
			})
			continue
		}
		valid = append(valid, txn)
	}
	return valid, excluded
}

func countMatched(results []matching.MatchResult) int {
	count := 0
	for _, r := range results {
		if r.Status == matching.StatusMatched {
			count++
		}
	}
	return count
}

// balanceCheck compares the statement closing balance against the ledger
// balance before import plus the sum of transactions still to import.
func balanceCheck(closing, before decimal.Decimal, toImport []domain.ExternalTransaction) BalanceCheck {
	sum := decimal.Zero
	for _, txn := range toImport {
		sum = sum.Add(txn.Amount)
	}
	expected := before.Add(sum)

	return BalanceCheck{
		StatementClosing:    closing,
		LedgerBefore:        before,
		ExpectedAfterImport: expected,
		Variance:            closing.Sub(expected),
	}
}
