// Package summary defines the structured run summary consumed by report
// generators and the web layer.
//
// The summary is a plain data object: named boolean checks that downstream
// memos cite as controls evidence, plus the numeric metrics behind them. It
// deliberately has no behavior beyond convenience accessors.
package summary

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Checks are the named pass/fail outcomes of a pipeline run.
type Checks struct {
	TransactionsBalanced  bool `json:"transactions_balanced"`
	GLNetZero             bool `json:"gl_net_zero"`
	BankRecClean          bool `json:"bank_rec_clean"`
	ARConservationHolds   bool `json:"ar_conservation_holds"`
	ARRollforwardTiesToTB bool `json:"ar_rollforward_ties_to_tb"`
}

// NamedCheck pairs a check name with its outcome, in report order.
type NamedCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// Named returns the checks as an ordered list for display.
func (c Checks) Named() []NamedCheck {
	return []NamedCheck{
		{"transactions_balanced", c.TransactionsBalanced},
		{"gl_net_zero", c.GLNetZero},
		{"bank_rec_clean", c.BankRecClean},
		{"ar_conservation_holds", c.ARConservationHolds},
		{"ar_rollforward_ties_to_tb", c.ARRollforwardTiesToTB},
	}
}

// AllPassed reports whether every check passed.
func (c Checks) AllPassed() bool {
	for _, check := range c.Named() {
		if !check.Passed {
			return false
		}
	}
	return true
}

// Metrics are the numeric observations of a pipeline run.
type Metrics struct {
	LedgerLines        int `json:"ledger_lines"`
	UnresolvedAccounts int `json:"unresolved_accounts"`
	BadDates           int `json:"bad_dates"`
	BadAmounts         int `json:"bad_amounts"`
	UnbalancedTxns     int `json:"unbalanced_txns"`

	CashTransactions int `json:"cash_transactions"`
	BankLines        int `json:"bank_lines"`
	MatchedBankLines int `json:"matched_bank_lines"`

	Exceptions       int            `json:"exceptions"`
	ExceptionsByType map[string]int `json:"exceptions_by_type"`

	PaymentSlices        int             `json:"payment_slices"`
	OpenInvoices         int             `json:"open_invoices"`
	UnappliedCollections decimal.Decimal `json:"unapplied_collections"`
	ARCashMismatches     int             `json:"ar_cash_mismatches"`

	MaxRollforwardDiff decimal.Decimal `json:"max_rollforward_diff"`
}

// Summary is the top-level result object of one run.
type Summary struct {
	RunID       uuid.UUID `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Checks      Checks    `json:"checks"`
	Metrics     Metrics   `json:"metrics"`
}

// New creates a summary shell with a fresh run id.
func New() *Summary {
	return &Summary{
		RunID:       uuid.New(),
		GeneratedAt: time.Now().UTC(),
		Metrics: Metrics{
			ExceptionsByType:     make(map[string]int),
			UnappliedCollections: decimal.Zero,
			MaxRollforwardDiff:   decimal.Zero,
		},
	}
}
