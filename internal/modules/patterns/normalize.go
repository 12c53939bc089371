package patterns

import (
	"regexp"
	"strings"
)

// Transport-method markers banks prepend or append to statement lines.
// Matched as whole tokens after uppercasing.
var transportMarkers = map[string]bool{
	"DD": true, "D/D": true, "DDR": true, "DIRECT": true, "DEBIT": true,
	"SO": true, "S/O": true, "STO": true, "STANDING": true, "ORDER": true,
	"TFR": true, "TRF": true, "TRANSFER": true, "FT": true,
	"BACS": true, "FPS": true, "FPI": true, "FPO": true, "CHAPS": true, "SEPA": true,
	"CARD": true, "POS": true, "CONTACTLESS": true, "VIS": true,
	"ATM": true, "CPT": true, "CSH": true,
	"CHQ": true, "CHEQUE": true,
}

// Legal-entity suffixes carried by counterparty names.
var legalSuffixes = map[string]bool{
	"LTD": true, "LIMITED": true, "PLC": true, "LLP": true, "LP": true,
	"INC": true, "CORP": true, "CO": true, "GMBH": true, "SARL": true, "BV": true,
}

const monthAlt = `(?:JAN(?:UARY)?|FEB(?:RUARY)?|MAR(?:CH)?|APR(?:IL)?|MAY|JUN(?:E)?|JUL(?:Y)?|AUG(?:UST)?|SEP(?:TEMBER)?|OCT(?:OBER)?|NOV(?:EMBER)?|DEC(?:EMBER)?)`

var (
	// Long digit runs are payment references, not identity.
	longNumberRe = regexp.MustCompile(`\b\d{5,}\b`)
	// Numeric date tokens in the common statement layouts.
	dateTokenRe = regexp.MustCompile(`\b\d{1,2}[/\-.]\d{1,2}(?:[/\-.]\d{2,4})?\b|\b\d{4}-\d{2}-\d{2}\b`)
	// Month-name date fragments such as "12 JAN" or "JAN 2025". The
	// month word alone is kept; only digit-adjacent forms are dates.
	monthTokenRe  = regexp.MustCompile(`\b\d{1,2}\s+` + monthAlt + `\b(?:\s+\d{2,4}\b)?|\b` + monthAlt + `\s+\d{2,4}\b`)
	punctuationRe = regexp.MustCompile(`[^A-Z0-9 ]+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Normalize reduces a raw statement description to its stable identity:
// uppercase, transport markers, long reference runs, date tokens and
// legal-entity suffixes removed, whitespace collapsed. Total and
// deterministic; the empty string normalizes to the empty string (which
// never matches anything).
func Normalize(description string) string {
	s := strings.ToUpper(strings.TrimSpace(description))
	if s == "" {
		return ""
	}

	s = dateTokenRe.ReplaceAllString(s, " ")
	s = monthTokenRe.ReplaceAllString(s, " ")
	s = longNumberRe.ReplaceAllString(s, " ")
	s = punctuationRe.ReplaceAllString(s, " ")

	tokens := strings.Fields(s)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if transportMarkers[tok] || legalSuffixes[tok] {
			continue
		}
		kept = append(kept, tok)
	}

	return whitespaceRe.ReplaceAllString(strings.Join(kept, " "), " ")
}

// FirstSignificantToken returns the first token of a normalized
// description longer than three characters, or "" when none exists.
// This is the key for the fuzzy (substring) lookup tier.
func FirstSignificantToken(normalized string) string {
	for _, tok := range strings.Fields(normalized) {
		if len(tok) > 3 {
			return tok
		}
	}
	return ""
}
