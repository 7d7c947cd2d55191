package rollforward

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

func series(pairs map[string]string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(pairs))
	for k, v := range pairs {
		out[k] = amount(v)
	}
	return out
}

// TestTieOut_Passes verifies a clean three-period rollforward ties within
// tolerance with chained beginning balances.
func TestTieOut_Passes(t *testing.T) {
	ending := series(map[string]string{
		"2024-01": "100",
		"2024-02": "150",
		"2024-03": "120",
	})
	activity := series(map[string]string{
		"2024-01": "100",
		"2024-02": "50",
		"2024-03": "-30",
	})

	result := TieOut(ending, activity, WithName("ar"))

	assert.True(t, result.Passed)
	assert.Equal(t, "ar", result.Name)
	assert.True(t, result.MaxDiff.IsZero())

	assert.Equal(t, 3, len(result.Rows))
	assert.True(t, result.Rows[0].Begin.IsZero())
	assert.True(t, result.Rows[1].Begin.Equal(amount("100")))
	assert.True(t, result.Rows[2].Begin.Equal(amount("150")))
	assert.True(t, result.Rows[2].CalcEnd.Equal(amount("120")))
}

// TestTieOut_ReportsLargestBreak verifies a failing tie reports the largest
// per-period difference.
func TestTieOut_ReportsLargestBreak(t *testing.T) {
	ending := series(map[string]string{
		"2024-01": "100",
		"2024-02": "140",
	})
	activity := series(map[string]string{
		"2024-01": "100",
		"2024-02": "30",
	})

	result := TieOut(ending, activity)

	assert.False(t, result.Passed)
	assert.True(t, result.MaxDiff.Equal(amount("10")))
	assert.True(t, result.Rows[1].Diff.Equal(amount("10")))
}

// TestTieOut_UnionsAndZeroFills verifies periods present in only one series
// still appear, with the missing side treated as zero.
func TestTieOut_UnionsAndZeroFills(t *testing.T) {
	ending := series(map[string]string{"2024-01": "100"})
	activity := series(map[string]string{
		"2024-01": "100",
		"2024-02": "25",
	})

	result := TieOut(ending, activity)

	assert.Equal(t, 2, len(result.Rows))
	assert.Equal(t, "2024-02", result.Rows[1].Period)
	assert.True(t, result.Rows[1].End.IsZero())
	// begin 100 + delta 25 against a zero reported ending.
	assert.False(t, result.Passed)
	assert.True(t, result.MaxDiff.Equal(amount("125")))
}

// TestTieOut_ToleranceBoundaryInclusive verifies a difference exactly at the
// tolerance still passes.
func TestTieOut_ToleranceBoundaryInclusive(t *testing.T) {
	ending := series(map[string]string{"2024-01": "100.5"})
	activity := series(map[string]string{"2024-01": "100"})

	result := TieOut(ending, activity, WithTolerance(amount("0.5")))
	assert.True(t, result.Passed)

	strict := TieOut(ending, activity, WithTolerance(amount("0.4")))
	assert.False(t, strict.Passed)
}

// TestTieOut_Empty verifies an empty tie-out passes vacuously.
func TestTieOut_Empty(t *testing.T) {
	result := TieOut(nil, nil)

	assert.True(t, result.Passed)
	assert.Equal(t, 0, len(result.Rows))
}
