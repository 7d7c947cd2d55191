package cli

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"github.com/avandermeer/tieout"
	"github.com/avandermeer/tieout/telemetry"
)

type CheckCmd struct {
	Dir string `help:"Data directory containing the input CSV tables." arg:"" default:"." type:"existingdir"`

	CashAccount          string  `help:"Ledger account id of the cash account (auto-detected from the chart when omitted)."`
	BankTolerance        float64 `help:"Tolerance for bank amount comparisons." default:"0.01"`
	RollforwardTolerance float64 `help:"Tolerance for rollforward tie-outs." default:"0.000001"`
}

func (cmd *CheckCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx := context.Background()

	var collector telemetry.Collector
	if globals.Telemetry {
		collector = telemetry.NewTimingCollector()
		runCtx = telemetry.WithCollector(runCtx, collector)

		defer func() {
			_, _ = fmt.Fprintln(ctx.Stderr)
			collector.Report(ctx.Stderr)
		}()
	}

	inputs, err := loadInputs(ctx, cmd.Dir)
	if err != nil {
		return err
	}

	results, err := tieout.Run(runCtx, inputs, tieout.Options{
		CashAccountID:        cmd.CashAccount,
		BankTolerance:        decimal.NewFromFloat(cmd.BankTolerance),
		RollforwardTolerance: decimal.NewFromFloat(cmd.RollforwardTolerance),
	})
	if err != nil {
		return err
	}

	for _, check := range results.Summary.Checks.Named() {
		if check.Passed {
			printSuccess(ctx.Stdout, check.Name)
		} else {
			printError(ctx.Stdout, check.Name)
		}
	}

	metrics := results.Summary.Metrics
	_, _ = fmt.Fprintln(ctx.Stdout)
	printInfof(ctx.Stdout, "%d ledger lines, %d cash transactions, %d bank lines (%d matched)",
		metrics.LedgerLines, metrics.CashTransactions, metrics.BankLines, metrics.MatchedBankLines)
	printInfof(ctx.Stdout, "%d payment slices, %d open invoices, %s unapplied",
		metrics.PaymentSlices, metrics.OpenInvoices, metrics.UnappliedCollections.String())

	if metrics.Exceptions > 0 {
		printInfof(ctx.Stdout, "%d reconciliation exception(s):", metrics.Exceptions)
		for _, e := range results.Bank.Exceptions {
			_, _ = fmt.Fprintf(ctx.Stdout, "  %s %s\n",
				dimStyle.Render(string(e.Type)), e.Details)
		}
	}

	if !results.Summary.Checks.AllPassed() {
		_, _ = fmt.Fprintln(ctx.Stdout)
		printError(ctx.Stdout, "checks failed")
		return NewCommandError(1)
	}

	_, _ = fmt.Fprintln(ctx.Stdout)
	printSuccess(ctx.Stdout, "All checks passed")
	return nil
}
