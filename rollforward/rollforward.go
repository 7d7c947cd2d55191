// Package rollforward provides the generic begin + activity = end tie-out
// used to validate subledger balances against the ledger of record.
//
// The same primitive serves every payable and receivable rollforward: feed
// it an ending-balance series and an activity-delta series keyed by period
// and it reports, period by period, whether the balances roll.
package rollforward

import (
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultTolerance is the balance tolerance class: the largest per-period
// difference a passing tie-out may carry.
var DefaultTolerance = decimal.New(1, -6)

// Row is one period of a rollforward: the carried-in beginning balance, the
// period activity, the reported ending balance, and the computed tie.
type Row struct {
	Period  string
	Begin   decimal.Decimal
	Delta   decimal.Decimal
	End     decimal.Decimal
	CalcEnd decimal.Decimal
	Diff    decimal.Decimal
}

// Result is the outcome of a tie-out. Passed and MaxDiff are the only
// fields consumers need to treat the rollforward as controls evidence; the
// rows carry the full workings for reporting.
type Result struct {
	Name      string
	Rows      []Row
	MaxDiff   decimal.Decimal
	Tolerance decimal.Decimal
	Passed    bool
}

// Option configures a tie-out.
type Option func(*config)

type config struct {
	name      string
	tolerance decimal.Decimal
}

// WithName labels the result with the subledger being reconciled.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithTolerance overrides DefaultTolerance.
func WithTolerance(tolerance decimal.Decimal) Option {
	return func(c *config) { c.tolerance = tolerance }
}

// TieOut reconciles an ending-balance series against an activity-delta
// series. The period keys of both series are unioned and sorted; missing
// values are treated as zero. The first period begins at zero and each
// later period begins at the prior period's reported ending balance. The
// tie passes when no period's |begin + delta − end| exceeds the tolerance.
func TieOut(ending, activity map[string]decimal.Decimal, opts ...Option) *Result {
	cfg := config{tolerance: DefaultTolerance}
	for _, opt := range opts {
		opt(&cfg)
	}

	seen := make(map[string]bool, len(ending)+len(activity))
	var periods []string
	for p := range ending {
		if !seen[p] {
			seen[p] = true
			periods = append(periods, p)
		}
	}
	for p := range activity {
		if !seen[p] {
			seen[p] = true
			periods = append(periods, p)
		}
	}
	sort.Strings(periods)

	result := &Result{
		Name:      cfg.name,
		Rows:      make([]Row, 0, len(periods)),
		MaxDiff:   decimal.Zero,
		Tolerance: cfg.tolerance,
	}

	begin := decimal.Zero
	for _, period := range periods {
		end := ending[period]
		delta := activity[period]

		calcEnd := begin.Add(delta)
		diff := calcEnd.Sub(end).Abs()

		result.Rows = append(result.Rows, Row{
			Period:  period,
			Begin:   begin,
			Delta:   delta,
			End:     end,
			CalcEnd: calcEnd,
			Diff:    diff,
		})

		if diff.GreaterThan(result.MaxDiff) {
			result.MaxDiff = diff
		}
		begin = end
	}

	result.Passed = result.MaxDiff.LessThanOrEqual(cfg.tolerance)
	return result
}
