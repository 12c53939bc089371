package patterns

import "time"

// Pattern is a learned mapping from a normalized transaction description
// to a prior human account-assignment decision. At most one row exists
// per (company_scope, normalized_description).
type Pattern struct {
	ID                    int64     `json:"id"`
	CompanyScope          string    `json:"company_scope"`
	NormalizedDescription string    `json:"normalized_description"`
	AssignedType          string    `json:"assigned_type"`
	AssignedAccount       string    `json:"assigned_account"`
	AssignedCategory      string    `json:"assigned_category"`
	AssignedCostCentre    string    `json:"assigned_cost_centre,omitempty"`
	TimesUsed             int       `json:"times_used"`
	FirstUsed             time.Time `json:"first_used"`
	LastUsed              time.Time `json:"last_used"`
}

// Assignment is the human decision recorded against a description.
type Assignment struct {
	Type       string `json:"type"`
	Account    string `json:"account"`
	Category   string `json:"category"`
	CostCentre string `json:"cost_centre,omitempty"`
}

// SuggestionSource identifies which lookup tier produced a suggestion.
type SuggestionSource string

const (
	SourceExact   SuggestionSource = "exact"
	SourceFuzzy   SuggestionSource = "fuzzy"
	SourceKeyword SuggestionSource = "keyword"
)

// Suggestion decorates an unmatched transaction with a prior decision and
// a confidence in [0,1].
type Suggestion struct {
	Account    string           `json:"suggested_account"`
	Type       string           `json:"suggested_type"`
	Category   string           `json:"suggested_category"`
	CostCentre string           `json:"suggested_cost_centre,omitempty"`
	Confidence float64          `json:"suggestion_confidence"`
	Source     SuggestionSource `json:"suggestion_source"`
}
