// Package gl normalizes raw general-ledger postings into a tidy, consistently
// signed line table.
//
// Normalization joins each posting with its chart-of-accounts metadata,
// infers missing debit/credit conventions from the account type label, and
// assigns every line a stable identity so repeated runs over the same input
// produce byte-identical output. Data problems (unresolved accounts, bad
// dates, unbalanced transactions) are surfaced as quality metrics on the
// result, never raised as errors.
package gl

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerTolerance is the tolerance for the double-entry invariant: within a
// transaction the debits and credits must net to zero within this bound.
var LedgerTolerance = decimal.New(1, -9)

// DateLayout is the expected layout for ledger and statement dates.
const DateLayout = "2006-01-02"

// Quality carries the data-quality signals of a normalization run. None of
// these are fatal; they exist so downstream checks can flag a dirty ledger
// without halting the pipeline.
type Quality struct {
	// UnresolvedAccounts counts lines whose account metadata could not be
	// found on the line or in the chart of accounts.
	UnresolvedAccounts int

	// BadDates counts lines whose date was missing or unparseable. Such
	// lines keep a zero date and sort first.
	BadDates int

	// UnbalancedTxns counts transaction groups violating the double-entry
	// invariant beyond LedgerTolerance.
	UnbalancedTxns int

	// NetRawAmount is the sum of debit minus credit across the whole table.
	// A balanced ledger nets to zero.
	NetRawAmount decimal.Decimal
}

// TidyTable is the output of Normalize: the tidy lines in their canonical
// order plus the quality metrics observed while building them.
type TidyTable struct {
	Lines   []TidyLine
	Quality Quality
}

// Balanced reports whether every transaction group satisfied the
// double-entry invariant.
func (t *TidyTable) Balanced() bool {
	return t.Quality.UnbalancedTxns == 0
}

// NetZero reports whether the whole table nets to zero within
// LedgerTolerance.
func (t *TidyTable) NetZero() bool {
	return t.Quality.NetRawAmount.Abs().LessThanOrEqual(LedgerTolerance)
}

// Normalize converts raw ledger lines into a TidyTable.
//
// Lines are sorted by (date, txn id, account id) and numbered 1..k; the
// gl line id is "<txn id>-<line no>". Missing transaction ids fall back to
// the document id, then to a generated sequence. Account metadata present on
// a line wins over the chart; a missing normal side is inferred from the
// account type label.
func Normalize(lines []LedgerLine, chart *Chart) *TidyTable {
	table := &TidyTable{Lines: make([]TidyLine, 0, len(lines))}

	autoSeq := 0
	for _, raw := range lines {
		line := raw

		// Materialize the (dc, amount) variant into debit/credit columns.
		switch line.DC {
		case "D", "d":
			line.Debit = line.Amount
			line.Credit = decimal.Zero
		case "C", "c":
			line.Credit = line.Amount
			line.Debit = decimal.Zero
		}

		txnID := coalesce(line.TxnID, line.DocID)
		if txnID == "" {
			autoSeq++
			txnID = fmt.Sprintf("auto-%04d", autoSeq)
		}

		date, ok := parseDate(line.Date)
		if !ok {
			table.Quality.BadDates++
		}

		tidy := TidyLine{
			TxnID:       txnID,
			Date:        date,
			DocID:       line.DocID,
			Description: line.Description,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
		}

		resolveAccount(&tidy, line, chart, &table.Quality)

		tidy.RawAmount = line.Debit.Sub(line.Credit)
		if tidy.NormalSide == SideCredit {
			tidy.SignedAmount = tidy.RawAmount.Neg()
		} else {
			tidy.SignedAmount = tidy.RawAmount
		}

		table.Lines = append(table.Lines, tidy)
	}

	// Canonical order. The sort must be stable so identical inputs always
	// yield identical line numbering.
	sort.SliceStable(table.Lines, func(i, j int) bool {
		a, b := table.Lines[i], table.Lines[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.TxnID != b.TxnID {
			return a.TxnID < b.TxnID
		}
		return a.AccountID < b.AccountID
	})

	net := decimal.Zero
	perTxn := make(map[string]decimal.Decimal, len(table.Lines))
	for i := range table.Lines {
		line := &table.Lines[i]
		line.LineNo = i + 1
		line.GLLineID = fmt.Sprintf("%s-%d", line.TxnID, line.LineNo)

		net = net.Add(line.RawAmount)
		perTxn[line.TxnID] = perTxn[line.TxnID].Add(line.RawAmount)
	}
	table.Quality.NetRawAmount = net

	for _, sum := range perTxn {
		if sum.Abs().GreaterThan(LedgerTolerance) {
			table.Quality.UnbalancedTxns++
		}
	}

	return table
}

// resolveAccount fills the tidy line's account metadata, preferring values
// already on the raw line over the chart of accounts.
func resolveAccount(tidy *TidyLine, line LedgerLine, chart *Chart, quality *Quality) {
	var chartAcct Account
	if chart != nil {
		chartAcct, _ = chart.Lookup(line.AccountID)
	}

	tidy.AccountName = coalesce(line.AccountName, chartAcct.Name)
	typeLabel := coalesce(line.AccountType, string(chartAcct.Type))
	tidy.AccountType = AccountType(typeLabel)

	if typeLabel == "" {
		quality.UnresolvedAccounts++
	}

	side := coalesce(line.NormalSide, string(chartAcct.NormalSide))
	if side == "" {
		tidy.NormalSide = InferNormalSide(typeLabel)
	} else {
		tidy.NormalSide = NormalSide(side)
	}
}

func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
