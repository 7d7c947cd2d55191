package recon

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// BankAmountTolerance is the default tolerance when comparing a bank
// statement amount against the matched ledger cash movement. Statement
// amounts are rounded to cents by the bank, so this class is deliberately
// looser than the ledger tolerance.
var BankAmountTolerance = decimal.NewFromFloat(0.01)

// BankLine is one row of the bank statement feed. GLTxnID is the foreign
// key into the ledger cash transactions; an empty value means the bank gave
// no reference.
type BankLine struct {
	BankTxnID   string
	PostedDate  time.Time
	Description string
	Amount      decimal.Decimal
	GLTxnID     string
	Month       string
}

// Match is a bank line joined (left outer) to its referenced cash
// transaction. Cash is nil when the join found nothing.
type Match struct {
	Bank      BankLine
	Cash      *CashTransaction
	IsMatched bool
}

// ExceptionType classifies a reconciliation finding.
type ExceptionType string

const (
	// ExceptionBankDuplicate flags every occurrence of a bank txn id that
	// appears more than once in the feed.
	ExceptionBankDuplicate ExceptionType = "bank_duplicate_txn_id"

	// ExceptionBankUnmatched flags a bank line with no gl reference, or a
	// reference that matches no cash transaction.
	ExceptionBankUnmatched ExceptionType = "bank_unmatched_item"

	// ExceptionAmountMismatch flags a joined pair whose amounts differ
	// beyond the amount tolerance.
	ExceptionAmountMismatch ExceptionType = "amount_mismatch"

	// ExceptionBookUnmatched flags a ledger cash transaction never
	// referenced by any bank line.
	ExceptionBookUnmatched ExceptionType = "book_unmatched_cash_txn"
)

// Exception is one reconciliation finding. Exceptions are data, not errors;
// they are never raised and never mutated after creation.
type Exception struct {
	Type       ExceptionType
	Month      string
	BankTxnID  string
	GLTxnID    string
	BankAmount decimal.NullDecimal
	GLAmount   decimal.NullDecimal
	Details    string
}

// Result holds the joined match table and the exception report of one
// reconciliation pass.
type Result struct {
	Matches    []Match
	Exceptions []Exception
}

// Clean reports whether the pass produced no exceptions.
func (r *Result) Clean() bool { return len(r.Exceptions) == 0 }

// MatchedCount returns the number of bank lines that joined successfully.
func (r *Result) MatchedCount() int {
	n := 0
	for _, m := range r.Matches {
		if m.IsMatched {
			n++
		}
	}
	return n
}

// ExceptionCounts returns the number of exceptions per type.
func (r *Result) ExceptionCounts() map[ExceptionType]int {
	counts := make(map[ExceptionType]int)
	for _, e := range r.Exceptions {
		counts[e.Type]++
	}
	return counts
}

// Option configures a reconciliation pass.
type Option func(*reconciler)

// WithAmountTolerance overrides the default bank amount tolerance.
func WithAmountTolerance(tolerance decimal.Decimal) Option {
	return func(r *reconciler) {
		r.amountTolerance = tolerance
	}
}

type reconciler struct {
	amountTolerance decimal.Decimal
}

// Reconcile joins bank lines to cash transactions on the gl txn id foreign
// key and runs four independent exception detectors over the joined result:
// duplicate bank ids, unmatched bank items, amount mismatches, and
// book-only cash transactions. No detector suppresses another; a single
// bank line can appear in the report more than once.
//
// There is no fuzzy matching by amount or date proximity; the explicit
// foreign key is the only join criterion. Exceptions come back sorted by
// (type, month, bank txn id) for deterministic output.
func Reconcile(bankLines []BankLine, cashTxns []CashTransaction, opts ...Option) *Result {
	r := &reconciler{amountTolerance: BankAmountTolerance}
	for _, opt := range opts {
		opt(r)
	}

	byTxnID := make(map[string]*CashTransaction, len(cashTxns))
	for i := range cashTxns {
		byTxnID[cashTxns[i].TxnID] = &cashTxns[i]
	}

	idCounts := make(map[string]int, len(bankLines))
	for _, line := range bankLines {
		idCounts[line.BankTxnID]++
	}

	result := &Result{Matches: make([]Match, 0, len(bankLines))}
	referenced := make(map[string]bool)

	for _, line := range bankLines {
		month := bankMonth(line)

		if idCounts[line.BankTxnID] > 1 {
			result.Exceptions = append(result.Exceptions, Exception{
				Type:       ExceptionBankDuplicate,
				Month:      month,
				BankTxnID:  line.BankTxnID,
				GLTxnID:    line.GLTxnID,
				BankAmount: nullDecimal(line.Amount),
				Details:    fmt.Sprintf("bank txn id occurs %d times", idCounts[line.BankTxnID]),
			})
		}

		var cash *CashTransaction
		if line.GLTxnID != "" {
			cash = byTxnID[line.GLTxnID]
		}
		if cash != nil {
			referenced[cash.TxnID] = true
		}

		match := Match{Bank: line, Cash: cash, IsMatched: cash != nil}
		result.Matches = append(result.Matches, match)

		if cash == nil {
			details := "no gl reference on bank line"
			if line.GLTxnID != "" {
				details = fmt.Sprintf("gl txn %s not found in cash transactions", line.GLTxnID)
			}
			result.Exceptions = append(result.Exceptions, Exception{
				Type:       ExceptionBankUnmatched,
				Month:      month,
				BankTxnID:  line.BankTxnID,
				GLTxnID:    line.GLTxnID,
				BankAmount: nullDecimal(line.Amount),
				Details:    details,
			})
			continue
		}

		diff := line.Amount.Sub(cash.NetAmount).Abs()
		if diff.GreaterThan(r.amountTolerance) {
			result.Exceptions = append(result.Exceptions, Exception{
				Type:       ExceptionAmountMismatch,
				Month:      month,
				BankTxnID:  line.BankTxnID,
				GLTxnID:    line.GLTxnID,
				BankAmount: nullDecimal(line.Amount),
				GLAmount:   nullDecimal(cash.NetAmount),
				Details:    fmt.Sprintf("amounts differ by %s", diff.String()),
			})
		}
	}

	// Cash transactions the bank never referenced. cashTxns is already in
	// canonical (date, txn id) order, so iteration is deterministic.
	for _, txn := range cashTxns {
		if referenced[txn.TxnID] {
			continue
		}
		result.Exceptions = append(result.Exceptions, Exception{
			Type:     ExceptionBookUnmatched,
			Month:    txn.Date.Format("2006-01"),
			GLTxnID:  txn.TxnID,
			GLAmount: nullDecimal(txn.NetAmount),
			Details:  "cash transaction not referenced by any bank line",
		})
	}

	sort.SliceStable(result.Exceptions, func(i, j int) bool {
		a, b := result.Exceptions[i], result.Exceptions[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.BankTxnID < b.BankTxnID
	})

	return result
}

func bankMonth(line BankLine) string {
	if line.Month != "" {
		return line.Month
	}
	if line.PostedDate.IsZero() {
		return ""
	}
	return line.PostedDate.Format("2006-01")
}

func nullDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
