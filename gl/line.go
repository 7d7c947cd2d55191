package gl

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerLine is one raw posting as it arrives from the source system.
// Dates are kept as raw strings; parsing happens during normalization so
// unparseable values can be counted instead of rejected.
//
// Two amount layouts are accepted: separate Debit/Credit columns, or the
// minimal (DC, Amount) pair where DC is "D" or "C". The normalizer
// materializes the latter into debit/credit before computing signed amounts.
type LedgerLine struct {
	TxnID       string
	Date        string
	DocID       string
	Description string
	AccountID   string

	// Optional metadata carried on the line itself. When present it takes
	// precedence over the chart of accounts.
	AccountName string
	AccountType string
	NormalSide  string

	Debit  decimal.Decimal
	Credit decimal.Decimal

	DC     string
	Amount decimal.Decimal
}

// TidyLine is the canonical restatement of a LedgerLine: metadata joined,
// amounts consistently signed, and a stable identity assigned. Immutable
// once built.
type TidyLine struct {
	LineNo   int
	GLLineID string

	TxnID       string
	Date        time.Time
	DocID       string
	Description string

	AccountID   string
	AccountName string
	AccountType AccountType
	NormalSide  NormalSide

	Debit  decimal.Decimal
	Credit decimal.Decimal

	// RawAmount is debit minus credit. SignedAmount equals RawAmount for
	// debit-normal accounts and its negation for credit-normal accounts, so
	// an increase is always positive.
	RawAmount    decimal.Decimal
	SignedAmount decimal.Decimal
}
