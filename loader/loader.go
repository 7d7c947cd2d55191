// Package loader reads the engine's input tables from a data directory.
//
// Five CSV tables are expected: the chart of accounts, the raw ledger
// lines, the bank statement feed, the AR event stream, and the monthly
// trial balance. Precondition problems (a table missing entirely, or a
// required column missing from a present table) are collected across all
// tables and returned as one aggregated error so the caller sees everything
// wrong at once. Malformed individual values are not errors: amounts fall
// back to zero and dates to the zero time, and the affected counts surface
// through quality metrics downstream.
package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avandermeer/tieout/ar"
	"github.com/avandermeer/tieout/gl"
	"github.com/avandermeer/tieout/recon"
)

// Input table filenames inside the data directory.
const (
	FileChart        = "chart_of_accounts.csv"
	FileLedgerLines  = "ledger_lines.csv"
	FileBankLines    = "bank_statement.csv"
	FileAREvents     = "ar_events.csv"
	FileTrialBalance = "trial_balance.csv"
)

// TrialBalanceRow is one account-month of the trial balance.
type TrialBalanceRow struct {
	Month         string
	AccountID     string
	AccountName   string
	AccountType   string
	NormalSide    string
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	EndingSide    string
	EndingBalance decimal.Decimal
}

// Inputs bundles all loaded tables.
type Inputs struct {
	Chart        *gl.Chart
	LedgerLines  []gl.LedgerLine
	BankLines    []recon.BankLine
	AREvents     []ar.Event
	TrialBalance []TrialBalanceRow

	// BankBadDates counts bank statement rows whose posted date failed to
	// parse and was zeroed.
	BankBadDates int

	// ARBadDates counts AR event rows whose date failed to parse and was
	// zeroed.
	ARBadDates int

	// BadAmounts counts non-blank amount cells across all tables that failed
	// to parse and were zeroed. Blank cells are legitimate empties and are
	// not counted.
	BadAmounts int
}

// MissingTableError reports an input table that could not be read at all.
type MissingTableError struct {
	Table string
	Err   error
}

func (e *MissingTableError) Error() string {
	return fmt.Sprintf("missing input table %s: %v", e.Table, e.Err)
}

func (e *MissingTableError) Unwrap() error { return e.Err }

// MissingColumnError reports a required column absent from a present table.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("table %s: missing required column %q", e.Table, e.Column)
}

// InputErrors aggregates all precondition violations found while loading.
type InputErrors struct {
	Errors []error
}

func (e *InputErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d input errors occurred", len(e.Errors))
}

// Unwrap returns the underlying errors for error unwrapping.
func (e *InputErrors) Unwrap() []error { return e.Errors }

// Load reads all input tables from dir. On precondition violations it
// returns a *InputErrors covering every missing table and column at once.
func Load(dir string) (*Inputs, error) {
	inputs := &Inputs{}
	var errs []error

	if t, err := readTable(filepath.Join(dir, FileChart)); err != nil {
		errs = append(errs, &MissingTableError{Table: FileChart, Err: err})
	} else if colErrs := t.require(FileChart, "account_id", "account_name", "account_type", "normal_side"); len(colErrs) > 0 {
		errs = append(errs, colErrs...)
	} else {
		inputs.Chart = parseChart(t)
	}

	if t, err := readTable(filepath.Join(dir, FileLedgerLines)); err != nil {
		errs = append(errs, &MissingTableError{Table: FileLedgerLines, Err: err})
	} else {
		colErrs := t.require(FileLedgerLines, "txn_id", "date", "doc_id", "description", "account_id")
		if !t.hasAll("debit", "credit") && !t.hasAll("dc", "amount") {
			colErrs = append(colErrs,
				&MissingColumnError{Table: FileLedgerLines, Column: "debit"},
				&MissingColumnError{Table: FileLedgerLines, Column: "credit"})
		}
		if len(colErrs) > 0 {
			errs = append(errs, colErrs...)
		} else {
			inputs.LedgerLines = parseLedgerLines(t)
			inputs.BadAmounts += t.badAmounts
		}
	}

	if t, err := readTable(filepath.Join(dir, FileBankLines)); err != nil {
		errs = append(errs, &MissingTableError{Table: FileBankLines, Err: err})
	} else if colErrs := t.require(FileBankLines, "bank_txn_id", "posted_date", "description", "amount", "gl_txn_id", "month"); len(colErrs) > 0 {
		errs = append(errs, colErrs...)
	} else {
		inputs.BankLines, inputs.BankBadDates = parseBankLines(t)
		inputs.BadAmounts += t.badAmounts
	}

	if t, err := readTable(filepath.Join(dir, FileAREvents)); err != nil {
		errs = append(errs, &MissingTableError{Table: FileAREvents, Err: err})
	} else if colErrs := t.require(FileAREvents, "month", "txn_id", "date", "customer", "invoice_id", "event_type", "amount", "ar_delta", "cash_received"); len(colErrs) > 0 {
		errs = append(errs, colErrs...)
	} else {
		inputs.AREvents, inputs.ARBadDates = parseAREvents(t)
		inputs.BadAmounts += t.badAmounts
	}

	if t, err := readTable(filepath.Join(dir, FileTrialBalance)); err != nil {
		errs = append(errs, &MissingTableError{Table: FileTrialBalance, Err: err})
	} else if colErrs := t.require(FileTrialBalance, "month", "account_id", "account_name", "account_type", "normal_side", "debit", "credit", "ending_side", "ending_balance"); len(colErrs) > 0 {
		errs = append(errs, colErrs...)
	} else {
		inputs.TrialBalance = parseTrialBalance(t)
		inputs.BadAmounts += t.badAmounts
	}

	if len(errs) > 0 {
		return nil, &InputErrors{Errors: errs}
	}
	return inputs, nil
}

// table is a parsed CSV file: a header index plus the data rows. badAmounts
// accumulates the malformed amount cells seen while parsing.
type table struct {
	columns    map[string]int
	rows       [][]string
	badAmounts int
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	t := &table{columns: make(map[string]int, len(records[0]))}
	for i, name := range records[0] {
		t.columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	t.rows = records[1:]
	return t, nil
}

func (t *table) require(name string, columns ...string) []error {
	var errs []error
	for _, col := range columns {
		if _, ok := t.columns[col]; !ok {
			errs = append(errs, &MissingColumnError{Table: name, Column: col})
		}
	}
	return errs
}

func (t *table) hasAll(columns ...string) bool {
	for _, col := range columns {
		if _, ok := t.columns[col]; !ok {
			return false
		}
	}
	return true
}

// get returns a cell by column name, or "" when the row is short or the
// column absent.
func (t *table) get(row []string, column string) string {
	idx, ok := t.columns[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// amount parses a decimal cell; blank or malformed values become zero, the
// neutral default for monetary columns. Malformed (non-blank) cells are
// counted so the defect leaves a trace in the quality metrics.
func (t *table) amount(row []string, column string) decimal.Decimal {
	raw := t.get(row, column)
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.badAmounts++
		return decimal.Zero
	}
	return d
}

func parseChart(t *table) *gl.Chart {
	accounts := make([]gl.Account, 0, len(t.rows))
	for _, row := range t.rows {
		accounts = append(accounts, gl.Account{
			ID:         t.get(row, "account_id"),
			Name:       t.get(row, "account_name"),
			Type:       gl.AccountType(t.get(row, "account_type")),
			NormalSide: gl.NormalSide(t.get(row, "normal_side")),
		})
	}
	return gl.NewChart(accounts)
}

func parseLedgerLines(t *table) []gl.LedgerLine {
	lines := make([]gl.LedgerLine, 0, len(t.rows))
	for _, row := range t.rows {
		lines = append(lines, gl.LedgerLine{
			TxnID:       t.get(row, "txn_id"),
			Date:        t.get(row, "date"),
			DocID:       t.get(row, "doc_id"),
			Description: t.get(row, "description"),
			AccountID:   t.get(row, "account_id"),
			AccountName: t.get(row, "account_name"),
			AccountType: t.get(row, "account_type"),
			NormalSide:  t.get(row, "normal_side"),
			Debit:       t.amount(row, "debit"),
			Credit:      t.amount(row, "credit"),
			DC:          t.get(row, "dc"),
			Amount:      t.amount(row, "amount"),
		})
	}
	return lines
}

func parseBankLines(t *table) ([]recon.BankLine, int) {
	lines := make([]recon.BankLine, 0, len(t.rows))
	badDates := 0
	for _, row := range t.rows {
		posted, err := time.Parse(gl.DateLayout, t.get(row, "posted_date"))
		if err != nil {
			badDates++
		}
		lines = append(lines, recon.BankLine{
			BankTxnID:   t.get(row, "bank_txn_id"),
			PostedDate:  posted,
			Description: t.get(row, "description"),
			Amount:      t.amount(row, "amount"),
			GLTxnID:     t.get(row, "gl_txn_id"),
			Month:       t.get(row, "month"),
		})
	}
	return lines, badDates
}

func parseAREvents(t *table) ([]ar.Event, int) {
	events := make([]ar.Event, 0, len(t.rows))
	badDates := 0
	for _, row := range t.rows {
		date, err := time.Parse(gl.DateLayout, t.get(row, "date"))
		if err != nil {
			badDates++
		}
		events = append(events, ar.Event{
			Month:        t.get(row, "month"),
			TxnID:        t.get(row, "txn_id"),
			Date:         date,
			Customer:     t.get(row, "customer"),
			InvoiceID:    t.get(row, "invoice_id"),
			Type:         ar.EventType(strings.ToLower(t.get(row, "event_type"))),
			Amount:       t.amount(row, "amount"),
			ARDelta:      t.amount(row, "ar_delta"),
			CashReceived: t.amount(row, "cash_received"),
		})
	}
	return events, badDates
}

func parseTrialBalance(t *table) []TrialBalanceRow {
	rows := make([]TrialBalanceRow, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, TrialBalanceRow{
			Month:         t.get(row, "month"),
			AccountID:     t.get(row, "account_id"),
			AccountName:   t.get(row, "account_name"),
			AccountType:   t.get(row, "account_type"),
			NormalSide:    t.get(row, "normal_side"),
			Debit:         t.amount(row, "debit"),
			Credit:        t.amount(row, "credit"),
			EndingSide:    t.get(row, "ending_side"),
			EndingBalance: t.amount(row, "ending_balance"),
		})
	}
	return rows
}
