package gl

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testChart() *Chart {
	return NewChart([]Account{
		{ID: "1000", Name: "Cash", Type: AccountTypeAsset, NormalSide: SideDebit},
		{ID: "1100", Name: "Accounts Receivable", Type: AccountTypeAsset, NormalSide: SideDebit},
		{ID: "4000", Name: "Sales Revenue", Type: AccountTypeRevenue, NormalSide: SideCredit},
	})
}

// TestNormalize_AssignsStableLineIdentity verifies that lines are sorted by
// (date, txn id, account id) and numbered 1..k with gl line ids derived from
// the numbering.
func TestNormalize_AssignsStableLineIdentity(t *testing.T) {
	lines := []LedgerLine{
		{TxnID: "T2", Date: "2024-01-05", AccountID: "4000", Credit: amount("50")},
		{TxnID: "T1", Date: "2024-01-01", AccountID: "1100", Debit: amount("100")},
		{TxnID: "T2", Date: "2024-01-05", AccountID: "1100", Debit: amount("50")},
		{TxnID: "T1", Date: "2024-01-01", AccountID: "4000", Credit: amount("100")},
	}

	table := Normalize(lines, testChart())

	assert.Equal(t, 4, len(table.Lines))
	assert.Equal(t, "T1", table.Lines[0].TxnID)
	assert.Equal(t, "1100", table.Lines[0].AccountID)
	assert.Equal(t, 1, table.Lines[0].LineNo)
	assert.Equal(t, "T1-1", table.Lines[0].GLLineID)
	assert.Equal(t, "T2-4", table.Lines[3].GLLineID)
}

// TestNormalize_Idempotent verifies that two runs over identical input
// yield identical tables.
func TestNormalize_Idempotent(t *testing.T) {
	lines := []LedgerLine{
		{TxnID: "T1", Date: "2024-01-01", AccountID: "1100", Debit: amount("100")},
		{TxnID: "T1", Date: "2024-01-01", AccountID: "4000", Credit: amount("100")},
		{Date: "2024-01-02", AccountID: "1000", DC: "D", Amount: amount("25")},
	}

	first := Normalize(lines, testChart())
	second := Normalize(lines, testChart())

	assert.Equal(t, first.Lines, second.Lines)
	assert.Equal(t, first.Quality, second.Quality)
}

// TestNormalize_SignedAmounts verifies that signed amounts flip for
// credit-normal accounts so increases are always positive.
func TestNormalize_SignedAmounts(t *testing.T) {
	lines := []LedgerLine{
		{TxnID: "T1", Date: "2024-01-01", AccountID: "1100", Debit: amount("100")},
		{TxnID: "T1", Date: "2024-01-01", AccountID: "4000", Credit: amount("100")},
	}

	table := Normalize(lines, testChart())

	receivable := table.Lines[0]
	assert.Equal(t, SideDebit, receivable.NormalSide)
	assert.True(t, receivable.SignedAmount.Equal(amount("100")))

	revenue := table.Lines[1]
	assert.Equal(t, SideCredit, revenue.NormalSide)
	assert.True(t, revenue.RawAmount.Equal(amount("-100")))
	assert.True(t, revenue.SignedAmount.Equal(amount("100")))
}

// TestNormalize_DCVariant verifies that the minimal (dc, amount) layout is
// materialized into debit/credit columns before signing.
func TestNormalize_DCVariant(t *testing.T) {
	lines := []LedgerLine{
		{TxnID: "T1", Date: "2024-01-01", AccountID: "1000", DC: "D", Amount: amount("75")},
		{TxnID: "T1", Date: "2024-01-01", AccountID: "4000", DC: "C", Amount: amount("75")},
	}

	table := Normalize(lines, testChart())

	assert.True(t, table.Lines[0].Debit.Equal(amount("75")))
	assert.True(t, table.Lines[0].Credit.IsZero())
	assert.True(t, table.Lines[1].Credit.Equal(amount("75")))
	assert.Equal(t, 0, table.Quality.UnbalancedTxns)
}

// TestNormalize_TxnIDFallback verifies the fallback chain: txn id, then doc
// id, then a generated sequence.
func TestNormalize_TxnIDFallback(t *testing.T) {
	lines := []LedgerLine{
		{Date: "2024-01-01", DocID: "DOC-9", AccountID: "1000", Debit: amount("10")},
		{Date: "2024-01-02", AccountID: "1000", Debit: amount("20")},
		{Date: "2024-01-03", AccountID: "1000", Debit: amount("30")},
	}

	table := Normalize(lines, testChart())

	assert.Equal(t, "DOC-9", table.Lines[0].TxnID)
	assert.Equal(t, "auto-0001", table.Lines[1].TxnID)
	assert.Equal(t, "auto-0002", table.Lines[2].TxnID)
}

// TestNormalize_UnbalancedTxnFlaggedNotRaised verifies that a transaction
// violating the double-entry invariant surfaces as a quality metric instead
// of an error.
func TestNormalize_UnbalancedTxnFlaggedNotRaised(t *testing.T) {
	lines := []LedgerLine{
		{TxnID: "T1", Date: "2024-01-01", AccountID: "1100", Debit: amount("100")},
		{TxnID: "T1", Date: "2024-01-01", AccountID: "4000", Credit: amount("90")},
	}

	table := Normalize(lines, testChart())

	assert.Equal(t, 1, table.Quality.UnbalancedTxns)
	assert.False(t, table.Balanced())
	assert.False(t, table.NetZero())
	assert.True(t, table.Quality.NetRawAmount.Equal(amount("10")))
}

// TestNormalize_QualityCounters verifies bad dates and unresolved accounts
// are counted while the lines are still kept.
func TestNormalize_QualityCounters(t *testing.T) {
	lines := []LedgerLine{
		{TxnID: "T1", Date: "not-a-date", AccountID: "1000", Debit: amount("10")},
		{TxnID: "T1", Date: "2024-01-01", AccountID: "9999", Credit: amount("10")},
	}

	table := Normalize(lines, testChart())

	assert.Equal(t, 2, len(table.Lines))
	assert.Equal(t, 1, table.Quality.BadDates)
	assert.Equal(t, 1, table.Quality.UnresolvedAccounts)

	// The bad date sorts first as the zero time.
	assert.True(t, table.Lines[0].Date.IsZero())
}

// TestNormalize_LineMetadataWinsOverChart verifies the coalesce policy:
// metadata already on the line takes precedence over the chart join.
func TestNormalize_LineMetadataWinsOverChart(t *testing.T) {
	lines := []LedgerLine{
		{TxnID: "T1", Date: "2024-01-01", AccountID: "4000", AccountName: "Service Revenue", Credit: amount("10")},
		{TxnID: "T1", Date: "2024-01-01", AccountID: "1000", Debit: amount("10")},
	}

	table := Normalize(lines, testChart())

	// Sorted by account id: 1000 first, then 4000.
	assert.Equal(t, "Cash", table.Lines[0].AccountName)
	assert.Equal(t, "Service Revenue", table.Lines[1].AccountName)
	assert.Equal(t, AccountTypeRevenue, table.Lines[1].AccountType)
}

// TestNormalize_InfersMissingNormalSide verifies inference from the account
// type label when neither the line nor the chart carries a side.
func TestNormalize_InfersMissingNormalSide(t *testing.T) {
	chart := NewChart([]Account{
		{ID: "2000", Name: "Wages Payable", Type: "Current Liability"},
	})
	lines := []LedgerLine{
		{TxnID: "T1", Date: "2024-01-01", AccountID: "2000", Credit: amount("40")},
	}

	table := Normalize(lines, chart)

	assert.Equal(t, SideCredit, table.Lines[0].NormalSide)
	assert.True(t, table.Lines[0].SignedAmount.Equal(amount("40")))
}
