// Package ar replays accounts-receivable event streams through a FIFO
// allocation engine.
//
// Collections are applied to a customer's oldest open invoices first, one
// payment slice per partial or full allocation. Each customer's stream is
// fully independent, so the matcher fans out one goroutine per customer and
// stitches the results back together in sorted customer order to keep the
// output deterministic.
package ar

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementTolerance decides when an invoice counts as fully paid and when
// leftover collection cash is worth tracking. Comparisons never use exact
// equality.
var SettlementTolerance = decimal.New(1, -9)

// EventType distinguishes the two kinds of AR events.
type EventType string

const (
	EventInvoice    EventType = "invoice"
	EventCollection EventType = "collection"
)

// Event is one row of the AR event stream.
type Event struct {
	Month        string
	TxnID        string
	Date         time.Time
	Customer     string
	InvoiceID    string
	Type         EventType
	Amount       decimal.Decimal
	ARDelta      decimal.Decimal
	CashReceived decimal.Decimal
}

// invoice is an open receivable inside a customer's FIFO queue. It is
// mutated only by that customer's processing pass and discarded afterwards.
type invoice struct {
	id        string
	date      time.Time
	remaining decimal.Decimal
}

// PaymentSlice records one allocation of collection cash against an
// invoice. Immutable.
type PaymentSlice struct {
	Customer        string
	InvoiceID       string
	InvoiceDate     time.Time
	PaymentDate     time.Time
	AmountApplied   decimal.Decimal
	DaysOutstanding int
}

// OpenInvoice is a diagnostic for an invoice still open when its customer's
// stream ended. Age is measured against the customer's last observed event
// date, never the wall clock, so historical runs stay reproducible.
type OpenInvoice struct {
	Customer    string
	InvoiceID   string
	InvoiceDate time.Time
	Remaining   decimal.Decimal
	AgeDays     int
}

// Result aggregates the slices and diagnostics of a matching run.
type Result struct {
	Slices       []PaymentSlice
	OpenInvoices []OpenInvoice

	// UnappliedByCustomer holds collection cash that arrived with no open
	// invoice to absorb it. Overpayments are first-class data, not errors.
	UnappliedByCustomer map[string]decimal.Decimal
	UnappliedTotal      decimal.Decimal
}

// UnappliedFor returns a customer's contribution to the unapplied total.
func (r *Result) UnappliedFor(customer string) decimal.Decimal {
	if d, ok := r.UnappliedByCustomer[customer]; ok {
		return d
	}
	return decimal.Zero
}

// OpenRemaining returns the total remaining balance across all open
// invoices.
func (r *Result) OpenRemaining() decimal.Decimal {
	total := decimal.Zero
	for _, inv := range r.OpenInvoices {
		total = total.Add(inv.Remaining)
	}
	return total
}

// customerResult is the output of one customer's pass.
type customerResult struct {
	slices    []PaymentSlice
	open      []OpenInvoice
	unapplied decimal.Decimal
}

// Match replays the event stream and returns all payment slices plus
// end-of-stream diagnostics.
//
// Events are grouped by customer and each group is processed on its own
// goroutine; there is no shared state across customers. Within a customer,
// events are stable-sorted by date so date ties keep their original arrival
// order, which makes the allocation fully deterministic.
func Match(events []Event) *Result {
	byCustomer := make(map[string][]Event)
	var customers []string
	for _, ev := range events {
		if _, seen := byCustomer[ev.Customer]; !seen {
			customers = append(customers, ev.Customer)
		}
		byCustomer[ev.Customer] = append(byCustomer[ev.Customer], ev)
	}
	sort.Strings(customers)

	results := make([]customerResult, len(customers))
	var wg sync.WaitGroup
	for i, customer := range customers {
		wg.Add(1)
		go func(i int, stream []Event) {
			defer wg.Done()
			results[i] = matchCustomer(stream)
		}(i, byCustomer[customer])
	}
	wg.Wait()

	out := &Result{UnappliedByCustomer: make(map[string]decimal.Decimal)}
	for i, customer := range customers {
		res := results[i]
		out.Slices = append(out.Slices, res.slices...)
		out.OpenInvoices = append(out.OpenInvoices, res.open...)
		if res.unapplied.GreaterThan(SettlementTolerance) {
			out.UnappliedByCustomer[customer] = res.unapplied
			out.UnappliedTotal = out.UnappliedTotal.Add(res.unapplied)
		}
	}
	return out
}

// matchCustomer runs the FIFO allocation for a single customer's stream.
// The queue lives and dies inside this function.
func matchCustomer(stream []Event) customerResult {
	events := make([]Event, len(stream))
	copy(events, stream)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})

	var res customerResult
	var queue []*invoice
	var lastDate time.Time
	res.unapplied = decimal.Zero

	for _, ev := range events {
		if ev.Date.After(lastDate) {
			lastDate = ev.Date
		}

		switch ev.Type {
		case EventInvoice:
			queue = append(queue, &invoice{
				id:        ev.InvoiceID,
				date:      ev.Date,
				remaining: ev.Amount,
			})

		case EventCollection:
			remaining := ev.Amount
			for remaining.GreaterThan(SettlementTolerance) && len(queue) > 0 {
				head := queue[0]
				applied := decimal.Min(head.remaining, remaining)

				res.slices = append(res.slices, PaymentSlice{
					Customer:        ev.Customer,
					InvoiceID:       head.id,
					InvoiceDate:     head.date,
					PaymentDate:     ev.Date,
					AmountApplied:   applied,
					DaysOutstanding: daysBetween(head.date, ev.Date),
				})

				head.remaining = head.remaining.Sub(applied)
				remaining = remaining.Sub(applied)
				if head.remaining.LessThanOrEqual(SettlementTolerance) {
					queue = queue[1:]
				}
			}
			if remaining.GreaterThan(SettlementTolerance) {
				res.unapplied = res.unapplied.Add(remaining)
			}
		}
	}

	for _, inv := range queue {
		res.open = append(res.open, OpenInvoice{
			Customer:    stream[0].Customer,
			InvoiceID:   inv.id,
			InvoiceDate: inv.date,
			Remaining:   inv.remaining,
			AgeDays:     daysBetween(inv.date, lastDate),
		})
	}

	return res
}

// CashMismatch flags a collection event whose reported cash received
// disagrees with the collection amount. Like every other data-quality
// finding it is surfaced for review, never raised.
type CashMismatch struct {
	Month        string
	TxnID        string
	Customer     string
	Amount       decimal.Decimal
	CashReceived decimal.Decimal
}

// CashMismatches cross-checks each collection event's cash_received column
// against its amount, within SettlementTolerance. The two columns state the
// same fact from different source systems, so any disagreement is a feed
// defect worth a metric.
func CashMismatches(events []Event) []CashMismatch {
	var out []CashMismatch
	for _, ev := range events {
		if ev.Type != EventCollection {
			continue
		}
		if ev.Amount.Sub(ev.CashReceived).Abs().LessThanOrEqual(SettlementTolerance) {
			continue
		}
		out = append(out, CashMismatch{
			Month:        ev.Month,
			TxnID:        ev.TxnID,
			Customer:     ev.Customer,
			Amount:       ev.Amount,
			CashReceived: ev.CashReceived,
		})
	}
	return out
}

// DeltasByMonth sums the AR balance deltas per month. The rollforward
// tie-out consumes this as its activity series.
func DeltasByMonth(events []Event) map[string]decimal.Decimal {
	deltas := make(map[string]decimal.Decimal)
	for _, ev := range events {
		month := ev.Month
		if month == "" && !ev.Date.IsZero() {
			month = ev.Date.Format("2006-01")
		}
		deltas[month] = deltas[month].Add(ev.ARDelta)
	}
	return deltas
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}
