package matching

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerpilot/reconciler/internal/domain"
)

// Scoring weights. Amount equality is a hard gate worth 0.6 once passed;
// the date term contributes up to 0.3; text agreement is a bonus capped
// at 0.1. The final score is clamped to 1.0.
const (
	weightAmount   = 0.6
	weightDate     = 0.3
	bonusReference = 0.1
	bonusToken     = 0.05
)

// amountEpsilon is the tolerance on the absolute-amount gate, in currency
// units.
var amountEpsilon = decimal.New(1, -2)

// Match pairs transactions against candidate ledger entries one-to-one.
//
// Greedy assignment: transactions are processed in input order and each
// takes its single best-scoring unused entry at or above cfg.MinScore.
// Ties between equally scored entries are broken by entry input order.
// This is a known approximation, not a globally optimal assignment; the
// winner under tied scores depends on input order.
func Match(txns []domain.ExternalTransaction, entries []domain.LedgerEntry, cfg Config) Outcome {
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultConfig().MinScore
	}
	if cfg.DateToleranceDays <= 0 {
		cfg.DateToleranceDays = DefaultConfig().DateToleranceDays
	}

	used := make([]bool, len(entries))
	outcome := Outcome{}

	for _, txn := range txns {
		bestIdx := -1
		bestScore := 0.0
		var bestReasons []string
		tied := false
		mismatchRef := "" // entry whose reference matched but amount did not

		for i, entry := range entries {
			if used[i] {
				continue
			}

			score, reasons, gateOK := scorePair(txn, entry, cfg)
			if !gateOK {
				if referenceHit(txn, entry) && mismatchRef == "" {
					mismatchRef = entry.ID
				}
				continue
			}

			if score > bestScore {
				bestScore = score
				bestIdx = i
				bestReasons = reasons
				tied = false
			} else if score == bestScore && bestIdx >= 0 {
				tied = true
			}
		}

		if bestIdx >= 0 && bestScore >= cfg.MinScore {
			used[bestIdx] = true
			if tied {
				bestReasons = append(bestReasons, "tie broken by input order")
			}
			outcome.Matches = append(outcome.Matches, MatchResult{
				TxnRef:  txn.Ref,
				EntryID: entries[bestIdx].ID,
				Score:   bestScore,
				Reasons: bestReasons,
				Status:  StatusMatched,
			})
			continue
		}

		// A gate-passing candidate, even below threshold, is better
		// evidence of what the transaction is than a reference hit on
		// an entry with the wrong amount.
		result := MatchResult{TxnRef: txn.Ref, Status: StatusNotFound}
		if bestIdx >= 0 {
			result.Reasons = []string{fmt.Sprintf("best candidate scored %.2f, below threshold %.2f", bestScore, cfg.MinScore)}
		} else if mismatchRef != "" {
			result.Status = StatusAmountMismatch
			result.Reasons = []string{fmt.Sprintf("reference matches entry %s but amounts differ", mismatchRef)}
		}
		outcome.Matches = append(outcome.Matches, result)
		outcome.UnmatchedTxns = append(outcome.UnmatchedTxns, txn)
	}

	for i, entry := range entries {
		if !used[i] {
			outcome.UnmatchedEntries = append(outcome.UnmatchedEntries, entry)
		}
	}

	return outcome
}

// scorePair scores one transaction/entry pair. gateOK is false when the
// absolute amounts differ beyond the epsilon, which forces the pair out
// regardless of date or text agreement.
func scorePair(txn domain.ExternalTransaction, entry domain.LedgerEntry, cfg Config) (float64, []string, bool) {
	// Amount gate: compared by absolute value. Sign routes the
	// transaction to the correct ledger side, it never gates matching.
	diff := txn.Amount.Abs().Sub(entry.MatchAmount().Abs()).Abs()
	if diff.GreaterThan(amountEpsilon) {
		return 0, nil, false
	}

	score := weightAmount
	reasons := []string{"amount exact"}

	// Text bonus: entry reference verbatim in the description beats a
	// shared free-text token.
	desc := strings.ToUpper(txn.Description)
	ref := strings.ToUpper(strings.TrimSpace(entry.Reference))
	if ref != "" && strings.Contains(desc, ref) {
		score += bonusReference
		reasons = append(reasons, "reference in description")
	} else if sharesSignificantToken(entry.Memo+" "+entry.Reference, txn.Description) {
		score += bonusToken
		reasons = append(reasons, "shared text token")
	}

	// Date term: full weight on the exact day, tapering within the
	// tolerance; beyond it the accumulated score is halved, not zeroed.
	days := daysApart(txn.Date, entry.Date)
	switch {
	case days == 0:
		score += weightDate
		reasons = append(reasons, "date exact")
	case days <= cfg.DateToleranceDays:
		score += weightDate * (1 - float64(days)/float64(cfg.DateToleranceDays+1))
		reasons = append(reasons, fmt.Sprintf("date within %d days", days))
	default:
		score *= 0.5
		reasons = append(reasons, fmt.Sprintf("date %d days outside tolerance", days))
	}

	if score > 1.0 {
		score = 1.0
	}
	return score, reasons, true
}

// referenceHit reports whether the entry's reference appears in the
// transaction description, used to flag amount mismatches with strong
// textual evidence.
func referenceHit(txn domain.ExternalTransaction, entry domain.LedgerEntry) bool {
	ref := strings.ToUpper(strings.TrimSpace(entry.Reference))
	return ref != "" && strings.Contains(strings.ToUpper(txn.Description), ref)
}

// sharesSignificantToken reports whether two free-text strings share at
// least one token longer than three characters.
func sharesSignificantToken(a, b string) bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToUpper(a)) {
		if len(tok) > 3 {
			tokens[tok] = true
		}
	}
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range strings.Fields(strings.ToUpper(b)) {
		if len(tok) > 3 && tokens[tok] {
			return true
		}
	}
	return false
}

// daysApart returns the whole-day distance between two timestamps,
// ignoring time-of-day components.
func daysApart(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(au.Sub(bu).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
