package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"github.com/avandermeer/tieout"
	"github.com/avandermeer/tieout/gl"
	"github.com/avandermeer/tieout/logger"
	"github.com/avandermeer/tieout/telemetry"
)

type ExportCmd struct {
	Dir string `help:"Data directory containing the input CSV tables." arg:"" default:"." type:"existingdir"`
	Out string `help:"Directory to write the output tables into." short:"o" default:"out"`

	Force                bool    `help:"Overwrite an existing output directory without confirmation." short:"f"`
	CashAccount          string  `help:"Ledger account id of the cash account (auto-detected from the chart when omitted)."`
	BankTolerance        float64 `help:"Tolerance for bank amount comparisons." default:"0.01"`
	RollforwardTolerance float64 `help:"Tolerance for rollforward tie-outs." default:"0.000001"`
}

func (cmd *ExportCmd) Run(ctx *kong.Context, globals *Globals) error {
	log := logger.New()
	runCtx := logger.WithContext(context.Background(), log)

	var collector telemetry.Collector
	if globals.Telemetry {
		collector = telemetry.NewTimingCollector()
		runCtx = telemetry.WithCollector(runCtx, collector)

		defer func() {
			_, _ = fmt.Fprintln(ctx.Stderr)
			collector.Report(ctx.Stderr)
		}()
	}

	if _, err := os.Stat(cmd.Out); err == nil && !cmd.Force {
		confirmed, err := promptYesNo(ctx, fmt.Sprintf("Output directory %q exists. Overwrite its tables?", cmd.Out))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !confirmed {
			return fmt.Errorf("output directory exists: %s", cmd.Out)
		}
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

	if err := os.MkdirAll(cmd.Out, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tables := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{"tidy_gl.csv", tidyHeader, tidyRows(results)},
		{"cash_transactions.csv", cashHeader, cashRows(results)},
		{"reconciliation_matches.csv", matchHeader, matchRows(results)},
		{"exceptions.csv", exceptionHeader, exceptionRows(results)},
		{"payment_slices.csv", sliceHeader, sliceRows(results)},
		{"open_invoices.csv", openInvoiceHeader, openInvoiceRows(results)},
		{"unapplied_collections.csv", unappliedHeader, unappliedRows(results)},
		{"rollforward_ar.csv", rollforwardHeader, rollforwardRows(results)},
	}

	for _, t := range tables {
		path := filepath.Join(cmd.Out, t.name)
		if err := writeCSV(path, t.header, t.rows); err != nil {
			return err
		}
		log.Info().Str("table", t.name).Int("rows", len(t.rows)).Msg("wrote output table")
	}

	summaryPath := filepath.Join(cmd.Out, "summary.json")
	if err := writeJSON(summaryPath, results.Summary); err != nil {
		return err
	}
	log.Info().Str("file", "summary.json").Msg("wrote run summary")

	printSuccess(ctx.Stdout, fmt.Sprintf("Exported %d tables to %s", len(tables)+1, pathStyle.Render(cmd.Out)))
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatDate renders a date cell, leaving unparseable (zeroed) dates blank.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(gl.DateLayout)
}

func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

var tidyHeader = []string{"gl_line_id", "line_no", "txn_id", "date", "doc_id", "description", "account_id", "account_name", "account_type", "normal_side", "debit", "credit", "raw_amount", "signed_amount"}

func tidyRows(results *tieout.Results) [][]string {
	rows := make([][]string, 0, len(results.Tidy.Lines))
	for _, l := range results.Tidy.Lines {
		rows = append(rows, []string{
			l.GLLineID, fmt.Sprint(l.LineNo), l.TxnID, formatDate(l.Date), l.DocID, l.Description,
			l.AccountID, l.AccountName, string(l.AccountType), string(l.NormalSide),
			l.Debit.String(), l.Credit.String(), l.RawAmount.String(), l.SignedAmount.String(),
		})
	}
	return rows
}

var cashHeader = []string{"txn_id", "date", "description", "net_amount"}

func cashRows(results *tieout.Results) [][]string {
	rows := make([][]string, 0, len(results.CashTxns))
	for _, t := range results.CashTxns {
		rows = append(rows, []string{t.TxnID, formatDate(t.Date), t.Description, t.NetAmount.String()})
	}
	return rows
}

var matchHeader = []string{"bank_txn_id", "posted_date", "description", "bank_amount", "gl_txn_id", "month", "cash_date", "cash_net_amount", "is_matched"}

func matchRows(results *tieout.Results) [][]string {
	rows := make([][]string, 0, len(results.Bank.Matches))
	for _, m := range results.Bank.Matches {
		cashDate, cashAmount := "", ""
		if m.Cash != nil {
			cashDate = formatDate(m.Cash.Date)
			cashAmount = m.Cash.NetAmount.String()
		}
		rows = append(rows, []string{
			m.Bank.BankTxnID, formatDate(m.Bank.PostedDate), m.Bank.Description, m.Bank.Amount.String(),
			m.Bank.GLTxnID, m.Bank.Month, cashDate, cashAmount, fmt.Sprint(m.IsMatched),
		})
	}
	return rows
}

var exceptionHeader = []string{"exception_type", "month", "bank_txn_id", "gl_txn_id", "bank_amount", "gl_amount", "details"}

func exceptionRows(results *tieout.Results) [][]string {
	rows := make([][]string, 0, len(results.Bank.Exceptions))
	for _, e := range results.Bank.Exceptions {
		rows = append(rows, []string{
			string(e.Type), e.Month, e.BankTxnID, e.GLTxnID,
			formatNullDecimal(e.BankAmount), formatNullDecimal(e.GLAmount), e.Details,
		})
	}
	return rows
}

var sliceHeader = []string{"customer", "invoice_id", "invoice_date", "payment_date", "amount_applied", "days_outstanding"}

func sliceRows(results *tieout.Results) [][]string {
	rows := make([][]string, 0, len(results.AR.Slices))
	for _, s := range results.AR.Slices {
		rows = append(rows, []string{
			s.Customer, s.InvoiceID, formatDate(s.InvoiceDate), formatDate(s.PaymentDate),
			s.AmountApplied.String(), fmt.Sprint(s.DaysOutstanding),
		})
	}
	return rows
}

var openInvoiceHeader = []string{"customer", "invoice_id", "invoice_date", "remaining_amount", "age_days"}

func openInvoiceRows(results *tieout.Results) [][]string {
	rows := make([][]string, 0, len(results.AR.OpenInvoices))
	for _, inv := range results.AR.OpenInvoices {
		rows = append(rows, []string{
			inv.Customer, inv.InvoiceID, formatDate(inv.InvoiceDate),
			inv.Remaining.String(), fmt.Sprint(inv.AgeDays),
		})
	}
	return rows
}

var unappliedHeader = []string{"customer", "unapplied_amount"}

func unappliedRows(results *tieout.Results) [][]string {
	rows := make([][]string, 0, len(results.AR.UnappliedByCustomer))
	for customer, amount := range results.AR.UnappliedByCustomer {
		rows = append(rows, []string{customer, amount.String()})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	return rows
}

var rollforwardHeader = []string{"period", "begin", "delta", "end", "calc_end", "diff"}

func rollforwardRows(results *tieout.Results) [][]string {
	rows := make([][]string, 0, len(results.ARRollforward.Rows))
	for _, r := range results.ARRollforward.Rows {
		rows = append(rows, []string{
			r.Period, r.Begin.String(), r.Delta.String(), r.End.String(),
			r.CalcEnd.String(), r.Diff.String(),
		})
	}
	return rows
}
