package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"

	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/log"
)

type recorded struct {
	method string
	path   string
	query  string
	body   string
}

func fakeSheets(t *testing.T, status int) (*httptest.Server, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{r.Method, r.URL.Path, r.URL.RawQuery, string(b)})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = io.WriteString(w, `{"error":{"code":403,"message":"denied"}}`)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func testClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	if cfg.SpreadsheetID == "" {
		cfg.SpreadsheetID = "sheet-123"
	}
	c, err := New(context.Background(), cfg, log.Discard(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, log.Discard())
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "x"}, log.Discard())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "x", ServiceAccountFile: "/nonexistent/sa.json"}, log.Discard())
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMirror_ClearsThenWrites(t *testing.T) {
	srv, reqs := fakeSheets(t, http.StatusOK)
	c := testClient(t, srv, Config{SheetName: "My Ledger"})

	txs := []core.Transaction{
		{ID: 1, Title: "=SUM(A1)", Amount: core.Money{Cents: 1250}, Type: core.Expense, Category: "Food", Date: core.NewDate(2024, 1, 5)},
		{ID: 2, Title: "Salary", Amount: core.Money{Cents: 600000}, Type: core.Income, Category: "Salary"},
	}
	if err := c.Mirror(context.Background(), txs); err != nil {
		t.Fatal(err)
	}

	if len(*reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d: %+v", len(*reqs), *reqs)
	}
	clear, update := (*reqs)[0], (*reqs)[1]
	if clear.method != http.MethodPost || !strings.HasSuffix(clear.path, ":clear") || !strings.Contains(clear.path, "sheet-123") {
		t.Fatalf("unexpected clear request %+v", clear)
	}
	if !strings.Contains(clear.path, "'My Ledger'!A:F") {
		t.Fatalf("sheet name not quoted: %s", clear.path)
	}
	if update.method != http.MethodPut || !strings.Contains(update.query, "valueInputOption=RAW") {
		t.Fatalf("unexpected update request %+v", update)
	}

	var body struct {
		Values [][]any `json:"values"`
	}
	if err := json.Unmarshal([]byte(update.body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Values) != 3 || body.Values[0][0] != "Title" {
		t.Fatalf("unexpected values %v", body.Values)
	}
	if body.Values[1][0] != "=SUM(A1)" || body.Values[1][1] != 12.5 {
		t.Fatalf("unexpected first row %v", body.Values[1])
	}
	if body.Values[2][4] != "N/A" {
		t.Fatalf("missing date should render N/A, got %v", body.Values[2][4])
	}
}

func TestMirror_PropagatesAPIError(t *testing.T) {
	srv, reqs := fakeSheets(t, http.StatusForbidden)
	c := testClient(t, srv, Config{})
	err := c.Mirror(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "clear Transactions!A:F") {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*reqs) != 1 {
		t.Fatalf("update must not run after a failed clear")
	}
}

func TestRows(t *testing.T) {
	txs := []core.Transaction{{ID: 1, Title: "t", Amount: core.Money{Cents: 5}, Type: core.Expense, Category: "Food", Date: core.NewDate(2024, 2, 1), PaymentMethod: "card"}}
	got := rows(txs, export.CSVOptions{PaymentMethod: true})
	if len(got) != 2 || len(got[0]) != 6 || got[1][5] != "card" || got[1][1] != 0.05 {
		t.Fatalf("unexpected rows %v", got)
	}
}

func TestA1(t *testing.T) {
	tests := map[string]string{
		"Transactions": "Transactions!A1",
		"2024 Ledger":  "'2024 Ledger'!A1",
		"Bob's":        "'Bob''s'!A1",
	}
	for sheet, want := range tests {
		if got := a1(sheet, "A1"); got != want {
			t.Errorf("a1(%q) = %q, want %q", sheet, got, want)
		}
	}
}
