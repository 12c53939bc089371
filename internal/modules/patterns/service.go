package patterns

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerpilot/reconciler/internal/events"
)

const (
	fuzzyConfidenceFactor = 0.8
	keywordConfidence     = 0.6
)

// keywordEntry is a fallback assignment for descriptions no pattern has
// been learned for yet.
type keywordEntry struct {
	Keyword  string
	Type     string
	Account  string
	Category string
}

// Built-in keyword table, scanned in order. First hit wins.
var keywordTable = []keywordEntry{
	{"SALARY", "payment", "7000", "Wages"},
	{"WAGES", "payment", "7000", "Wages"},
	{"HMRC", "payment", "7400", "Tax"},
	{"VAT", "payment", "7405", "VAT"},
	{"RENT", "payment", "7100", "Rent"},
	{"INSURANCE", "payment", "7300", "Insurance"},
	{"FUEL", "payment", "7500", "Motor Expenses"},
	{"INTEREST", "receipt", "4900", "Bank Interest"},
	{"DIVIDEND", "receipt", "4920", "Dividends"},
	{"REFUND", "receipt", "4950", "Refunds"},
	{"CHARGE", "payment", "7900", "Bank Charges"},
	{"FEE", "payment", "7900", "Bank Charges"},
}

// Learner converts prior human decisions into future auto-suggestions.
// Reads are safe for concurrent use; writes are upserts keyed by the
// table's uniqueness constraint.
type Learner struct {
	repo   *Repository
	events *events.Manager
	log    zerolog.Logger
	now    func() time.Time
}

// NewLearner creates a new pattern learner
func NewLearner(repo *Repository, eventManager *events.Manager, log zerolog.Logger) *Learner {
	return &Learner{
		repo:   repo,
		events: eventManager,
		log:    log.With().Str("service", "patterns").Logger(),
		now:    time.Now,
	}
}

// Learn records a confirmed assignment for a description. Idempotent
// upsert: a repeat occurrence of the same normalized description within
// the same scope updates the existing row rather than creating another.
func (l *Learner) Learn(scope, description string, assignment Assignment) error {
	normalized := Normalize(description)
	if normalized == "" {
		l.log.Debug().Str("scope", scope).Msg("Description normalizes to empty, nothing to learn")
		return nil
	}

	if err := l.repo.Upsert(scope, normalized, assignment, l.now()); err != nil {
		return err
	}

	l.events.Emit(events.PatternLearned, "patterns", map[string]interface{}{
		"scope": scope, "normalized": normalized, "account": assignment.Account,
	})
	l.log.Debug().
		Str("scope", scope).
		Str("normalized", normalized).
		Str("account", assignment.Account).
		Msg("Pattern learned")
	return nil
}

// Find looks up a suggestion for a description using three tiers: exact
// normalized match, substring match on the first significant token
// (confidence ×0.8), then the keyword table (fixed 0.6). Returns nil when
// nothing applies.
func (l *Learner) Find(scope, description string) (*Suggestion, error) {
	normalized := Normalize(description)
	if normalized == "" {
		return nil, nil
	}

	pattern, err := l.repo.GetExact(scope, normalized)
	if err != nil {
		return nil, err
	}
	if pattern != nil {
		return l.suggestion(pattern, 1.0, SourceExact), nil
	}

	if token := FirstSignificantToken(normalized); token != "" {
		pattern, err = l.repo.FindByToken(scope, token)
		if err != nil {
			return nil, err
		}
		if pattern != nil {
			return l.suggestion(pattern, fuzzyConfidenceFactor, SourceFuzzy), nil
		}
	}

	for _, entry := range keywordTable {
		if strings.Contains(normalized, entry.Keyword) {
			return &Suggestion{
				Account:    entry.Account,
				Type:       entry.Type,
				Category:   entry.Category,
				Confidence: keywordConfidence,
				Source:     SourceKeyword,
			}, nil
		}
	}

	return nil, nil
}

func (l *Learner) suggestion(p *Pattern, factor float64, source SuggestionSource) *Suggestion {
	return &Suggestion{
		Account:    p.AssignedAccount,
		Type:       p.AssignedType,
		Category:   p.AssignedCategory,
		CostCentre: p.AssignedCostCentre,
		Confidence: Confidence(p.TimesUsed, p.LastUsed, l.now()) * factor,
		Source:     source,
	}
}

// Confidence scores a pattern from its usage count and recency: a
// usage-bucketed base plus a recency boost, capped at 1.0.
func Confidence(timesUsed int, lastUsed, now time.Time) float64 {
	var base float64
	switch {
	case timesUsed > 10:
		base = 0.9
	case timesUsed >= 4:
		base = 0.8
	case timesUsed >= 2:
		base = 0.7
	default:
		base = 0.5
	}

	age := now.Sub(lastUsed)
	switch {
	case age <= 7*24*time.Hour:
		base += 0.1
	case age <= 30*24*time.Hour:
		base += 0.05
	}

	if base > 1.0 {
		base = 1.0
	}
	return base
}
