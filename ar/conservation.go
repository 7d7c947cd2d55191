package ar

import "github.com/shopspring/decimal"

// Conserved verifies that the allocation neither created nor lost money.
// Two identities must hold per customer, within SettlementTolerance:
//
//   - invoiced total == applied total + remaining balance of open invoices
//   - collected total == applied total + unapplied collections
//
// Together these guarantee every invoiced and collected cent is accounted
// for by exactly one of: a payment slice, an open invoice, or the
// unapplied-collections diagnostic.
func Conserved(events []Event, res *Result) bool {
	invoiced := make(map[string]decimal.Decimal)
	collected := make(map[string]decimal.Decimal)
	for _, ev := range events {
		switch ev.Type {
		case EventInvoice:
			invoiced[ev.Customer] = invoiced[ev.Customer].Add(ev.Amount)
		case EventCollection:
			collected[ev.Customer] = collected[ev.Customer].Add(ev.Amount)
		}
	}

	applied := make(map[string]decimal.Decimal)
	for _, s := range res.Slices {
		applied[s.Customer] = applied[s.Customer].Add(s.AmountApplied)
	}

	open := make(map[string]decimal.Decimal)
	for _, inv := range res.OpenInvoices {
		open[inv.Customer] = open[inv.Customer].Add(inv.Remaining)
	}

	for customer, total := range invoiced {
		settled := applied[customer].Add(open[customer])
		if total.Sub(settled).Abs().GreaterThan(SettlementTolerance) {
			return false
		}
	}
	for customer, total := range collected {
		accounted := applied[customer].Add(res.UnappliedFor(customer))
		if total.Sub(accounted).Abs().GreaterThan(SettlementTolerance) {
			return false
		}
	}
	return true
}
