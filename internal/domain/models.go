package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerSide routes a transaction to the receipts or payments side of the
// ledger. Sign never gates matching; it only picks the side.
type LedgerSide string

const (
	SideReceipt LedgerSide = "RECEIPT"
	SidePayment LedgerSide = "PAYMENT"
)

// MasterSide identifies which master file an identity lookup ran against.
type MasterSide string

const (
	MasterCustomer MasterSide = "CUSTOMER"
	MasterSupplier MasterSide = "SUPPLIER"
)

// ExternalTransaction is a single transaction from an external source
// (bank statement extraction, payment-provider payout batch, supplier
// statement). Immutable once produced.
type ExternalTransaction struct {
	Ref                string          `json:"ref"`
	Date               time.Time       `json:"date"`
	Amount             decimal.Decimal `json:"amount"`
	Description        string          `json:"description"`
	ExtractedName      string          `json:"extracted_name,omitempty"`
	ExtractedReference string          `json:"extracted_reference,omitempty"`
}

// Side returns the ledger side implied by the transaction sign.
func (t ExternalTransaction) Side() LedgerSide {
	if t.Amount.IsNegative() {
		return SidePayment
	}
	return SideReceipt
}

// LedgerEntry is an outstanding accounting record awaiting reconciliation.
// Owned by the external ledger store; the core reads it and, on commit,
// requests mutation of the reconciliation fields.
type LedgerEntry struct {
	ID                  string          `json:"id"`
	AccountCode         string          `json:"account_code"`
	Date                time.Time       `json:"date"`
	Reference           string          `json:"reference"`
	Memo                string          `json:"memo,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	OutstandingBalance  decimal.Decimal `json:"outstanding_balance"`
	DueDate             time.Time       `json:"due_date,omitempty"`
	IsReconciled        bool            `json:"is_reconciled"`
	ReconciliationBatch int             `json:"reconciliation_batch,omitempty"`
}

// MatchAmount is the amount an external transaction is compared against:
// the outstanding balance when one is tracked, the full amount otherwise.
func (e LedgerEntry) MatchAmount() decimal.Decimal {
	if !e.OutstandingBalance.IsZero() {
		return e.OutstandingBalance
	}
	return e.Amount
}

// MatchCandidate is a customer or supplier master-file account used for
// identity (name) matching, not amount matching.
type MatchCandidate struct {
	AccountCode string   `json:"account_code"`
	DisplayName string   `json:"display_name"`
	NameKeys    []string `json:"normalized_name_keys,omitempty"`
}

// Statement carries the metadata the extraction service reports alongside
// the transaction list.
type Statement struct {
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	SourceAccounts []string        `json:"source_account_identifiers,omitempty"`
}
