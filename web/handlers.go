package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avandermeer/tieout"
	"github.com/avandermeer/tieout/rollforward"
)

// ExceptionResponse is the JSON shape of one reconciliation exception.
type ExceptionResponse struct {
	Type       string           `json:"type"`
	Month      string           `json:"month"`
	BankTxnID  string           `json:"bank_txn_id,omitempty"`
	GLTxnID    string           `json:"gl_txn_id,omitempty"`
	BankAmount *decimal.Decimal `json:"bank_amount,omitempty"`
	GLAmount   *decimal.Decimal `json:"gl_amount,omitempty"`
	Details    string           `json:"details"`
}

// MatchResponse is the JSON shape of one joined bank line.
type MatchResponse struct {
	BankTxnID  string           `json:"bank_txn_id"`
	PostedDate string           `json:"posted_date"`
	Amount     decimal.Decimal  `json:"amount"`
	GLTxnID    string           `json:"gl_txn_id,omitempty"`
	CashAmount *decimal.Decimal `json:"cash_amount,omitempty"`
	IsMatched  bool             `json:"is_matched"`
}

// SliceResponse is the JSON shape of one payment slice.
type SliceResponse struct {
	Customer        string          `json:"customer"`
	InvoiceID       string          `json:"invoice_id"`
	InvoiceDate     string          `json:"invoice_date"`
	PaymentDate     string          `json:"payment_date"`
	AmountApplied   decimal.Decimal `json:"amount_applied"`
	DaysOutstanding int             `json:"days_outstanding"`
}

// RollforwardResponse is the JSON shape of a tie-out result.
type RollforwardResponse struct {
	Name    string            `json:"name"`
	Passed  bool              `json:"passed"`
	MaxDiff decimal.Decimal   `json:"max_diff"`
	Rows    []rollforward.Row `json:"rows"`
}

func (s *Server) snapshot() *tieout.Results {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.snapshot().Summary)
}

func (s *Server) handleExceptions(w http.ResponseWriter, r *http.Request) {
	results := s.snapshot()
	out := make([]ExceptionResponse, 0, len(results.Bank.Exceptions))
	for _, e := range results.Bank.Exceptions {
		out = append(out, ExceptionResponse{
			Type:       string(e.Type),
			Month:      e.Month,
			BankTxnID:  e.BankTxnID,
			GLTxnID:    e.GLTxnID,
			BankAmount: nullable(e.BankAmount),
			GLAmount:   nullable(e.GLAmount),
			Details:    e.Details,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	results := s.snapshot()
	out := make([]MatchResponse, 0, len(results.Bank.Matches))
	for _, m := range results.Bank.Matches {
		resp := MatchResponse{
			BankTxnID:  m.Bank.BankTxnID,
			PostedDate: formatDate(m.Bank.PostedDate),
			Amount:     m.Bank.Amount,
			GLTxnID:    m.Bank.GLTxnID,
			IsMatched:  m.IsMatched,
		}
		if m.Cash != nil {
			amount := m.Cash.NetAmount
			resp.CashAmount = &amount
		}
		out = append(out, resp)
	}
	writeJSON(w, out)
}

func (s *Server) handleSlices(w http.ResponseWriter, r *http.Request) {
	results := s.snapshot()
	out := make([]SliceResponse, 0, len(results.AR.Slices))
	for _, slice := range results.AR.Slices {
		out = append(out, SliceResponse{
			Customer:        slice.Customer,
			InvoiceID:       slice.InvoiceID,
			InvoiceDate:     formatDate(slice.InvoiceDate),
			PaymentDate:     formatDate(slice.PaymentDate),
			AmountApplied:   slice.AmountApplied,
			DaysOutstanding: slice.DaysOutstanding,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleRollforward(w http.ResponseWriter, r *http.Request) {
	results := s.snapshot()
	writeJSON(w, RollforwardResponse{
		Name:    results.ARRollforward.Name,
		Passed:  results.ARRollforward.Passed,
		MaxDiff: results.ARRollforward.MaxDiff,
		Rows:    results.ARRollforward.Rows,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func nullable(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	value := d.Decimal
	return &value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
