// Package tieout wires the reconciliation engine into one pipeline: tidy the
// general ledger, aggregate cash activity, reconcile it against the bank
// feed, replay the AR event stream through FIFO matching, and tie the AR
// subledger out against the trial balance.
//
// The pipeline is a synchronous batch computation over in-memory tables.
// Discrepancies found along the way are data (exceptions, diagnostics,
// failed checks), not errors; Run only fails on precondition violations
// such as an unidentifiable cash account or a cancelled context.
package tieout

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/avandermeer/tieout/ar"
	"github.com/avandermeer/tieout/gl"
	"github.com/avandermeer/tieout/loader"
	"github.com/avandermeer/tieout/recon"
	"github.com/avandermeer/tieout/rollforward"
	"github.com/avandermeer/tieout/summary"
	"github.com/avandermeer/tieout/telemetry"
)

// Options configure a pipeline run. Zero values select the defaults.
type Options struct {
	// CashAccountID designates the ledger cash account to reconcile against
	// the bank feed. When empty, the first Asset account whose name
	// contains "cash" is used.
	CashAccountID string

	// BankTolerance overrides recon.BankAmountTolerance when positive.
	BankTolerance decimal.Decimal

	// RollforwardTolerance overrides rollforward.DefaultTolerance when
	// positive.
	RollforwardTolerance decimal.Decimal
}

// Results holds every output table of one pipeline run.
type Results struct {
	Tidy          *gl.TidyTable
	CashTxns      []recon.CashTransaction
	Bank          *recon.Result
	AR            *ar.Result
	ARRollforward *rollforward.Result
	Summary       *summary.Summary
}

// Run executes the full pipeline over loaded inputs.
func Run(ctx context.Context, inputs *loader.Inputs, opts Options) (*Results, error) {
	collector := telemetry.FromContext(ctx)
	timer := collector.Start("pipeline.run")
	defer timer.End()

	cashAccount := opts.CashAccountID
	if cashAccount == "" {
		id, ok := inputs.Chart.FindCashAccount()
		if !ok {
			return nil, fmt.Errorf("no cash account configured and none found in chart of accounts")
		}
		cashAccount = id
	}

	results := &Results{}

	normTimer := timer.Child(fmt.Sprintf("gl.normalize (%d lines)", len(inputs.LedgerLines)))
	results.Tidy = gl.Normalize(inputs.LedgerLines, inputs.Chart)
	normTimer.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cashTimer := timer.Child("recon.aggregate_cash")
	results.CashTxns = recon.AggregateCash(results.Tidy, cashAccount)
	cashTimer.End()

	bankTimer := timer.Child(fmt.Sprintf("recon.reconcile (%d bank lines)", len(inputs.BankLines)))
	var reconOpts []recon.Option
	if opts.BankTolerance.IsPositive() {
		reconOpts = append(reconOpts, recon.WithAmountTolerance(opts.BankTolerance))
	}
	results.Bank = recon.Reconcile(inputs.BankLines, results.CashTxns, reconOpts...)
	bankTimer.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	arTimer := timer.Child(fmt.Sprintf("ar.match (%d events)", len(inputs.AREvents)))
	results.AR = ar.Match(inputs.AREvents)
	arTimer.End()

	rollTimer := timer.Child("rollforward.ar")
	rollOpts := []rollforward.Option{rollforward.WithName("accounts_receivable")}
	if opts.RollforwardTolerance.IsPositive() {
		rollOpts = append(rollOpts, rollforward.WithTolerance(opts.RollforwardTolerance))
	}
	results.ARRollforward = rollforward.TieOut(
		arEndingBalances(inputs.TrialBalance),
		ar.DeltasByMonth(inputs.AREvents),
		rollOpts...,
	)
	rollTimer.End()

	results.Summary = buildSummary(inputs, results)
	return results, nil
}

// arEndingBalances extracts the monthly AR ending-balance series from the
// trial balance, signed debit-positive so it lines up with the AR deltas.
func arEndingBalances(tb []loader.TrialBalanceRow) map[string]decimal.Decimal {
	ending := make(map[string]decimal.Decimal)
	for _, row := range tb {
		if !strings.Contains(strings.ToLower(row.AccountName), "receivable") {
			continue
		}
		balance := row.EndingBalance
		if strings.EqualFold(row.EndingSide, string(gl.SideCredit)) {
			balance = balance.Neg()
		}
		ending[row.Month] = ending[row.Month].Add(balance)
	}
	return ending
}

func buildSummary(inputs *loader.Inputs, results *Results) *summary.Summary {
	s := summary.New()

	s.Checks = summary.Checks{
		TransactionsBalanced:  results.Tidy.Balanced(),
		GLNetZero:             results.Tidy.NetZero(),
		BankRecClean:          results.Bank.Clean(),
		ARConservationHolds:   ar.Conserved(inputs.AREvents, results.AR),
		ARRollforwardTiesToTB: results.ARRollforward.Passed,
	}

	quality := results.Tidy.Quality
	s.Metrics.LedgerLines = len(results.Tidy.Lines)
	s.Metrics.UnresolvedAccounts = quality.UnresolvedAccounts
	s.Metrics.BadDates = quality.BadDates + inputs.BankBadDates + inputs.ARBadDates
	s.Metrics.BadAmounts = inputs.BadAmounts
	s.Metrics.UnbalancedTxns = quality.UnbalancedTxns

	s.Metrics.CashTransactions = len(results.CashTxns)
	s.Metrics.BankLines = len(inputs.BankLines)
	s.Metrics.MatchedBankLines = results.Bank.MatchedCount()

	s.Metrics.Exceptions = len(results.Bank.Exceptions)
	for typ, n := range results.Bank.ExceptionCounts() {
		s.Metrics.ExceptionsByType[string(typ)] = n
	}

	s.Metrics.PaymentSlices = len(results.AR.Slices)
	s.Metrics.OpenInvoices = len(results.AR.OpenInvoices)
	s.Metrics.UnappliedCollections = results.AR.UnappliedTotal
	s.Metrics.ARCashMismatches = len(ar.CashMismatches(inputs.AREvents))
	s.Metrics.MaxRollforwardDiff = results.ARRollforward.MaxDiff

	return s
}
