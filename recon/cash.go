// Package recon reconciles ledger cash activity against a bank statement
// feed.
//
// The package collapses tidy ledger lines into one cash movement per
// transaction, then matches bank statement lines to those movements by
// explicit foreign key. Discrepancies come back as typed exceptions, not
// errors: the reconciler's job is to surface them for review.
package recon

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	"github.com/avandermeer/tieout/gl"
)

// CashTransaction is the net impact of one ledger transaction on the cash
// account. Immutable once built.
type CashTransaction struct {
	TxnID       string
	Date        time.Time
	Description string
	NetAmount   decimal.Decimal
}

// AggregateCash collapses all tidy lines posted to the cash account into one
// row per transaction: net amount is the sum of debit minus credit, the date
// is the earliest line date, and the description comes from the first line
// in canonical order. Transactions whose net cash impact is zero within
// gl.LedgerTolerance are wash entries and are dropped.
//
// The result is sorted by (date, txn id); downstream diffs rely on this
// ordering being deterministic.
func AggregateCash(table *gl.TidyTable, cashAccountID string) []CashTransaction {
	byTxn := make(map[string]*CashTransaction)
	var order []string

	for _, line := range table.Lines {
		if line.AccountID != cashAccountID {
			continue
		}

		txn, ok := byTxn[line.TxnID]
		if !ok {
			txn = &CashTransaction{
				TxnID:       line.TxnID,
				Date:        line.Date,
				Description: line.Description,
				NetAmount:   decimal.Zero,
			}
			byTxn[line.TxnID] = txn
			order = append(order, line.TxnID)
		}

		txn.NetAmount = txn.NetAmount.Add(line.RawAmount)
		if line.Date.Before(txn.Date) {
			txn.Date = line.Date
		}
	}

	out := make([]CashTransaction, 0, len(order))
	for _, id := range order {
		txn := byTxn[id]
		if txn.NetAmount.Abs().LessThanOrEqual(gl.LedgerTolerance) {
			continue
		}
		out = append(out, *txn)
	}

	slices.SortFunc(out, func(a, b CashTransaction) int {
		if !a.Date.Equal(b.Date) {
			if a.Date.Before(b.Date) {
				return -1
			}
			return 1
		}
		switch {
		case a.TxnID < b.TxnID:
			return -1
		case a.TxnID > b.TxnID:
			return 1
		}
		return 0
	})

	return out
}
