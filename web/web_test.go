package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/avandermeer/tieout"
	"github.com/avandermeer/tieout/loader"
)

func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		loader.FileChart: `account_id,account_name,account_type,normal_side
1000,Operating Cash,Asset,Debit
1100,Accounts Receivable,Asset,Debit
4000,Sales Revenue,Revenue,Credit
`,
		loader.FileLedgerLines: `txn_id,date,doc_id,description,account_id,debit,credit
T1,2024-01-05,,Invoice,1100,100,
T1,2024-01-05,,Invoice,4000,,100
T2,2024-01-20,,Collection,1000,100,
T2,2024-01-20,,Collection,1100,,100
`,
		loader.FileBankLines: `bank_txn_id,posted_date,description,amount,gl_txn_id,month
B1,2024-01-21,Deposit,100,T2,2024-01
B2,2024-01-25,Stray,55,,2024-01
`,
		loader.FileAREvents: `month,txn_id,date,customer,invoice_id,event_type,amount,ar_delta,cash_received
2024-01,T1,2024-01-05,acme,I1,invoice,100,100,0
2024-01,T2,2024-01-20,acme,,collection,100,-100,100
`,
		loader.FileTrialBalance: `month,account_id,account_name,account_type,normal_side,debit,credit,ending_side,ending_balance
2024-01,1100,Accounts Receivable,Asset,Debit,100,100,Debit,0
`,
	}
	for name, content := range files {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func testServer(t *testing.T) *Server {
	t.Helper()
	s := New(0, writeDataDir(t))
	assert.NoError(t, s.reload(context.Background()))
	return s
}

func getJSON(t *testing.T, s *Server, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.router().ServeHTTP(rec, req)
	if out != nil {
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

// TestServer_Summary verifies the summary endpoint serves the run's checks.
func TestServer_Summary(t *testing.T) {
	s := testServer(t)

	var body map[string]any
	rec := getJSON(t, s, "/api/summary", &body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	checks, ok := body["checks"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, true, checks["transactions_balanced"])
	// The stray bank line keeps the rec dirty.
	assert.Equal(t, false, checks["bank_rec_clean"])
}

// TestServer_Exceptions verifies the stray bank line surfaces as an
// unmatched item with omitted null amounts.
func TestServer_Exceptions(t *testing.T) {
	s := testServer(t)

	var body []ExceptionResponse
	rec := getJSON(t, s, "/api/exceptions", &body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, len(body))
	assert.Equal(t, "bank_unmatched_item", body[0].Type)
	assert.Equal(t, "B2", body[0].BankTxnID)
	assert.Zero(t, body[0].GLAmount)
}

// TestServer_Matches verifies joined and unjoined bank lines both appear.
func TestServer_Matches(t *testing.T) {
	s := testServer(t)

	var body []MatchResponse
	getJSON(t, s, "/api/matches", &body)

	assert.Equal(t, 2, len(body))
	assert.True(t, body[0].IsMatched)
	assert.NotZero(t, body[0].CashAmount)
	assert.False(t, body[1].IsMatched)
	assert.Zero(t, body[1].CashAmount)
}

// TestServer_Slices verifies the payment slice projection.
func TestServer_Slices(t *testing.T) {
	s := testServer(t)

	var body []SliceResponse
	getJSON(t, s, "/api/slices", &body)

	assert.Equal(t, 1, len(body))
	assert.Equal(t, "acme", body[0].Customer)
	assert.Equal(t, "I1", body[0].InvoiceID)
	assert.Equal(t, "2024-01-05", body[0].InvoiceDate)
	assert.Equal(t, 15, body[0].DaysOutstanding)
}

// TestServer_Rollforward verifies the tie-out endpoint.
func TestServer_Rollforward(t *testing.T) {
	s := testServer(t)

	var body RollforwardResponse
	getJSON(t, s, "/api/rollforward", &body)

	assert.Equal(t, "accounts_receivable", body.Name)
	assert.True(t, body.Passed)
	assert.Equal(t, 1, len(body.Rows))
}

// TestServer_Reload verifies a reload over changed inputs swaps the served
// results.
func TestServer_Reload(t *testing.T) {
	s := testServer(t)

	// Drop the stray bank line; the rec should come back clean.
	clean := `bank_txn_id,posted_date,description,amount,gl_txn_id,month
B1,2024-01-21,Deposit,100,T2,2024-01
`
	assert.NoError(t, os.WriteFile(filepath.Join(s.dataDir, loader.FileBankLines), []byte(clean), 0o644))
	assert.NoError(t, s.reload(context.Background()))

	var body []ExceptionResponse
	getJSON(t, s, "/api/exceptions", &body)
	assert.Equal(t, 0, len(body))
}

// TestServer_Options verifies pipeline options pass through to the run.
func TestServer_Options(t *testing.T) {
	s := New(0, writeDataDir(t))
	s.Options = tieout.Options{CashAccountID: "1000"}
	assert.NoError(t, s.reload(context.Background()))

	var body map[string]any
	getJSON(t, s, "/api/summary", &body)
	metrics, ok := body["metrics"].(map[string]any)
	assert.True(t, ok)
	assert.Equal[any](t, float64(1), metrics["cash_transactions"])
}
