package matching

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ledgerpilot/reconciler/internal/domain"
)

// MatchIdentity classifies a payer/payee name against the customer and
// supplier master lists. Each list is searched independently; a name that
// clears the threshold on both sides is Ambiguous and is never
// auto-applied — that is a hard rule, not a tie-break.
func MatchIdentity(name string, customers, suppliers []domain.MatchCandidate, minScore float64) IdentityResult {
	if minScore <= 0 {
		minScore = DefaultConfig().MinScore
	}

	result := IdentityResult{Name: name, Status: StatusNotFound}
	normalized := normalizeName(name)
	if normalized == "" {
		result.SkipReason = "empty name"
		return result
	}

	custIdx, custScore := bestCandidate(normalized, customers)
	suppIdx, suppScore := bestCandidate(normalized, suppliers)

	custHit := custIdx >= 0 && custScore >= minScore
	suppHit := suppIdx >= 0 && suppScore >= minScore

	switch {
	case custHit && suppHit:
		result.Status = StatusAmbiguous
		result.SkipReason = fmt.Sprintf(
			"name matches customer %s (%.2f) and supplier %s (%.2f)",
			customers[custIdx].AccountCode, custScore,
			suppliers[suppIdx].AccountCode, suppScore,
		)
	case custHit:
		result.Status = StatusMatched
		result.Side = domain.MasterCustomer
		result.AccountCode = customers[custIdx].AccountCode
		result.DisplayName = customers[custIdx].DisplayName
		result.Score = custScore
	case suppHit:
		result.Status = StatusMatched
		result.Side = domain.MasterSupplier
		result.AccountCode = suppliers[suppIdx].AccountCode
		result.DisplayName = suppliers[suppIdx].DisplayName
		result.Score = suppScore
	}

	return result
}

// bestCandidate returns the index and score of the best-matching
// candidate, or (-1, 0) for an empty list.
func bestCandidate(normalized string, list []domain.MatchCandidate) (int, float64) {
	bestIdx := -1
	bestScore := 0.0

	for i, candidate := range list {
		score := nameSimilarity(normalized, normalizeName(candidate.DisplayName))
		for _, key := range candidate.NameKeys {
			if k := normalizeName(key); k != "" && strings.Contains(normalized, k) {
				if score < 0.85 {
					score = 0.85
				}
				break
			}
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	return bestIdx, bestScore
}

// nameSimilarity scores two normalized names in [0,1] from their
// Levenshtein distance relative to the longer name.
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}

	dist := levenshtein.ComputeDistance(a, b)
	score := 1 - float64(dist)/float64(longest)
	if score < 0 {
		score = 0
	}
	return score
}

// nameLegalSuffixes are entity-form tokens dropped before comparing names.
var nameLegalSuffixes = map[string]bool{
	"LTD": true, "LIMITED": true, "PLC": true, "LLP": true, "LP": true,
	"INC": true, "CORP": true, "CO": true, "GMBH": true, "SARL": true, "BV": true,
	"THE": true,
}

// normalizeName uppercases, strips punctuation and legal-entity suffixes
// and collapses whitespace.
func normalizeName(name string) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
	}

	var kept []string
	for _, tok := range strings.Fields(sb.String()) {
		if nameLegalSuffixes[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}
