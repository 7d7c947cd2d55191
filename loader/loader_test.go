package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

const (
	chartCSV = `account_id,account_name,account_type,normal_side
1000,Cash,Asset,Debit
1100,Accounts Receivable,Asset,Debit
4000,Sales Revenue,Revenue,Credit
`
	ledgerCSV = `txn_id,date,doc_id,description,account_id,debit,credit
T1,2024-01-01,,Invoice,1100,100,
T1,2024-01-01,,Invoice,4000,,100
`
	bankCSV = `bank_txn_id,posted_date,description,amount,gl_txn_id,month
B1,2024-01-02,Deposit,100,T1,2024-01
`
	arCSV = `month,txn_id,date,customer,invoice_id,event_type,amount,ar_delta,cash_received
2024-01,T1,2024-01-01,acme,I1,Invoice,100,100,0
`
	tbCSV = `month,account_id,account_name,account_type,normal_side,debit,credit,ending_side,ending_balance
2024-01,1100,Accounts Receivable,Asset,Debit,100,0,Debit,100
`
)

func writeDataDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
		assert.NoError(t, err)
	}
	return dir
}

func fullDataDir(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		FileChart:        chartCSV,
		FileLedgerLines:  ledgerCSV,
		FileBankLines:    bankCSV,
		FileAREvents:     arCSV,
		FileTrialBalance: tbCSV,
	}
}

// TestLoad_AllTables verifies a complete data directory loads every table.
func TestLoad_AllTables(t *testing.T) {
	dir := writeDataDir(t, fullDataDir(t))

	inputs, err := Load(dir)
	assert.NoError(t, err)

	assert.Equal(t, 3, len(inputs.Chart.Accounts()))
	assert.Equal(t, 2, len(inputs.LedgerLines))
	assert.Equal(t, 1, len(inputs.BankLines))
	assert.Equal(t, 1, len(inputs.AREvents))
	assert.Equal(t, 1, len(inputs.TrialBalance))
	assert.Equal(t, 0, inputs.BankBadDates)

	assert.True(t, inputs.LedgerLines[0].Debit.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "acme", inputs.AREvents[0].Customer)
	// Event type is normalized to lower case on the way in.
	assert.Equal(t, "invoice", string(inputs.AREvents[0].Type))
}

// TestLoad_AggregatesAllPreconditionErrors verifies a missing table and a
// missing column in another table are reported together in one error.
func TestLoad_AggregatesAllPreconditionErrors(t *testing.T) {
	files := fullDataDir(t)
	delete(files, FileBankLines)
	files[FileChart] = "account_id,account_name\n1000,Cash\n"
	dir := writeDataDir(t, files)

	_, err := Load(dir)
	assert.Error(t, err)

	var inputErrs *InputErrors
	assert.True(t, errors.As(err, &inputErrs))
	assert.Equal(t, 3, len(inputErrs.Errors))

	var missingTable *MissingTableError
	assert.True(t, errors.As(err, &missingTable))
	assert.Equal(t, FileBankLines, missingTable.Table)

	var missingCol *MissingColumnError
	assert.True(t, errors.As(err, &missingCol))
	assert.Equal(t, FileChart, missingCol.Table)
}

// TestLoad_LedgerDCVariant verifies the (dc, amount) ledger layout is
// accepted in place of explicit debit and credit columns.
func TestLoad_LedgerDCVariant(t *testing.T) {
	files := fullDataDir(t)
	files[FileLedgerLines] = `txn_id,date,doc_id,description,account_id,dc,amount
T1,2024-01-01,,Invoice,1100,D,100
T1,2024-01-01,,Invoice,4000,C,100
`
	dir := writeDataDir(t, files)

	inputs, err := Load(dir)
	assert.NoError(t, err)

	assert.Equal(t, "D", inputs.LedgerLines[0].DC)
	assert.True(t, inputs.LedgerLines[0].Amount.Equal(decimal.NewFromInt(100)))
}

// TestLoad_LedgerMissingBothAmountLayouts verifies a ledger table with
// neither layout is a precondition violation.
func TestLoad_LedgerMissingBothAmountLayouts(t *testing.T) {
	files := fullDataDir(t)
	files[FileLedgerLines] = "txn_id,date,doc_id,description,account_id\nT1,2024-01-01,,x,1100\n"
	dir := writeDataDir(t, files)

	_, err := Load(dir)
	assert.Error(t, err)

	var inputErrs *InputErrors
	assert.True(t, errors.As(err, &inputErrs))
	assert.Equal(t, 2, len(inputErrs.Errors))
}

// TestLoad_MalformedValuesAreNeutral verifies bad amounts become zero and
// bad bank dates are counted rather than raised.
func TestLoad_MalformedValuesAreNeutral(t *testing.T) {
	files := fullDataDir(t)
	files[FileBankLines] = `bank_txn_id,posted_date,description,amount,gl_txn_id,month
B1,not-a-date,Deposit,oops,T1,2024-01
`
	dir := writeDataDir(t, files)

	inputs, err := Load(dir)
	assert.NoError(t, err)

	assert.Equal(t, 1, inputs.BankBadDates)
	assert.True(t, inputs.BankLines[0].PostedDate.IsZero())
	assert.True(t, inputs.BankLines[0].Amount.IsZero())
	assert.Equal(t, 1, inputs.BadAmounts)
}

// TestLoad_ARMalformedCellsLeaveATrace verifies a zeroed AR date and amount
// are both counted, not just neutralized.
func TestLoad_ARMalformedCellsLeaveATrace(t *testing.T) {
	files := fullDataDir(t)
	files[FileAREvents] = `month,txn_id,date,customer,invoice_id,event_type,amount,ar_delta,cash_received
2024-01,T1,not-a-date,acme,I1,invoice,oops,100,0
`
	dir := writeDataDir(t, files)

	inputs, err := Load(dir)
	assert.NoError(t, err)

	assert.True(t, inputs.AREvents[0].Date.IsZero())
	assert.True(t, inputs.AREvents[0].Amount.IsZero())
	assert.Equal(t, 1, inputs.ARBadDates)
	assert.Equal(t, 1, inputs.BadAmounts)
	assert.Equal(t, 0, inputs.BankBadDates)
}

// TestLoad_BlankCellsAreNotDefects verifies legitimate empties never inflate
// the malformed-cell counters.
func TestLoad_BlankCellsAreNotDefects(t *testing.T) {
	dir := writeDataDir(t, fullDataDir(t))

	inputs, err := Load(dir)
	assert.NoError(t, err)

	// The ledger fixture leaves one of debit/credit blank on every row.
	assert.Equal(t, 0, inputs.BadAmounts)
	assert.Equal(t, 0, inputs.ARBadDates)
}

// TestLoad_HeaderNormalization verifies headers are matched after trimming
// and lowercasing.
func TestLoad_HeaderNormalization(t *testing.T) {
	files := fullDataDir(t)
	files[FileChart] = "Account_ID , ACCOUNT_NAME ,account_type,normal_side\n1000,Cash,Asset,Debit\n"
	dir := writeDataDir(t, files)

	inputs, err := Load(dir)
	assert.NoError(t, err)

	acct, ok := inputs.Chart.Lookup("1000")
	assert.True(t, ok)
	assert.Equal(t, "Cash", acct.Name)
}
