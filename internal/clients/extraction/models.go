package extraction

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerpilot/reconciler/internal/domain"
)

// wire formats accepted for transaction dates, tried in order.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006"}

// TransactionRecord is one typed record as the extraction service returns
// it. Amounts and dates stay strings on the wire; parsing happens here so
// a malformed record is flagged rather than failing the batch.
type TransactionRecord struct {
	Ref                string `json:"ref"`
	Date               string `json:"date"`
	Amount             string `json:"amount"`
	Description        string `json:"description"`
	ExtractedName      string `json:"extracted_name"`
	ExtractedReference string `json:"extracted_reference"`
}

// StatementMetadata mirrors the statement header the service extracts.
type StatementMetadata struct {
	OpeningBalance string   `json:"opening_balance"`
	ClosingBalance string   `json:"closing_balance"`
	PeriodStart    string   `json:"period_start"`
	PeriodEnd      string   `json:"period_end"`
	SourceAccounts []string `json:"source_account_identifiers"`
}

// ExtractionResult is the full payload for one document.
type ExtractionResult struct {
	Transactions []TransactionRecord `json:"transactions"`
	Statement    StatementMetadata   `json:"statement"`
}

// MalformedRecord is a transaction record excluded from matching, with
// the reason it could not be parsed.
type MalformedRecord struct {
	Record TransactionRecord `json:"record"`
	Reason string            `json:"reason"`
}

// ParseTransactions converts wire records into domain transactions.
// Records with an unparseable amount or date are returned separately;
// one bad record never fails the batch.
func ParseTransactions(records []TransactionRecord) ([]domain.ExternalTransaction, []MalformedRecord) {
	var txns []domain.ExternalTransaction
	var malformed []MalformedRecord

	for i, record := range records {
		amount, err := decimal.NewFromString(record.Amount)
		if err != nil {
			malformed = append(malformed, MalformedRecord{record, fmt.Sprintf("unparseable amount %q", record.Amount)})
			continue
		}

		date, err := parseDate(record.Date)
		if err != nil {
			malformed = append(malformed, MalformedRecord{record, fmt.Sprintf("unparseable date %q", record.Date)})
			continue
		}

		ref := record.Ref
		if ref == "" {
			ref = fmt.Sprintf("txn-%d", i+1)
		}

		txns = append(txns, domain.ExternalTransaction{
			Ref:                ref,
			Date:               date,
			Amount:             amount,
			Description:        record.Description,
			ExtractedName:      record.ExtractedName,
			ExtractedReference: record.ExtractedReference,
		})
	}

	return txns, malformed
}

// ParseStatement converts the wire statement header.
func ParseStatement(meta StatementMetadata) (domain.Statement, error) {
	var stmt domain.Statement
	var err error

	if stmt.OpeningBalance, err = decimal.NewFromString(meta.OpeningBalance); err != nil {
		return stmt, fmt.Errorf("unparseable opening balance %q: %w", meta.OpeningBalance, err)
	}
	if stmt.ClosingBalance, err = decimal.NewFromString(meta.ClosingBalance); err != nil {
		return stmt, fmt.Errorf("unparseable closing balance %q: %w", meta.ClosingBalance, err)
	}
	if stmt.PeriodStart, err = parseDate(meta.PeriodStart); err != nil {
		return stmt, fmt.Errorf("unparseable period start %q: %w", meta.PeriodStart, err)
	}
	if stmt.PeriodEnd, err = parseDate(meta.PeriodEnd); err != nil {
		return stmt, fmt.Errorf("unparseable period end %q: %w", meta.PeriodEnd, err)
	}
	stmt.SourceAccounts = meta.SourceAccounts

	return stmt, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no known date layout matches %q", raw)
}
