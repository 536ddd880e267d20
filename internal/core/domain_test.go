package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 1, 5))
	if err != nil || string(b) != `"2024-01-05"` {
		t.Fatalf("marshal: %s %v", b, err)
	}

	var d Date
	if err := json.Unmarshal([]byte(`"2024-03-09T10:11:12.000Z"`), &d); err != nil {
		t.Fatalf("unmarshal timestamp: %v", err)
	}
	if d != NewDate(2024, 3, 9) {
		t.Fatalf("expected 2024-03-09, got %v", d)
	}
	if err := json.Unmarshal([]byte(`"not a date"`), &d); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		ID:       1704412800000,
		Title:    "Coffee",
		Amount:   Money{Cents: 5000},
		Type:     Expense,
		Category: "Food",
		Date:     NewDate(2024, 1, 5),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{ID: 0, Title: "a", Amount: Money{Cents: 1}, Type: Expense, Category: "c", Date: NewDate(2024, 1, 1)},
		{ID: 1, Title: " ", Amount: Money{Cents: 1}, Type: Expense, Category: "c", Date: NewDate(2024, 1, 1)},
		{ID: 1, Title: "a", Amount: Money{Cents: 0}, Type: Expense, Category: "c", Date: NewDate(2024, 1, 1)},
		{ID: 1, Title: "a", Amount: Money{Cents: 1}, Type: "transfer", Category: "c", Date: NewDate(2024, 1, 1)},
		{ID: 1, Title: "a", Amount: Money{Cents: 1}, Type: Income, Category: "", Date: NewDate(2024, 1, 1)},
		{ID: 1, Title: "a", Amount: Money{Cents: 1}, Type: Income, Category: "c"},
	}
	for i, tx := range bads {
		err := tx.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected ErrValidation, got %v", i, err)
		}
	}
}

func TestNewTransaction(t *testing.T) {
	now := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)

	tx, err := NewTransaction(Input{Title: " Coffee ", Amount: "50", Type: "expense", Category: "food"}, DefaultRules(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.ID != now.UnixMilli() {
		t.Errorf("id = %d, want %d", tx.ID, now.UnixMilli())
	}
	if tx.Title != "Coffee" || tx.Category != "Food" || tx.Type != Expense {
		t.Errorf("unexpected record: %+v", tx)
	}
	if tx.Amount != (Money{Cents: 5000}) {
		t.Errorf("amount = %v", tx.Amount)
	}
	if tx.Date != NewDate(2024, 1, 5) || tx.Month() != 0 {
		t.Errorf("date = %v month = %d", tx.Date, tx.Month())
	}

	income, err := NewTransaction(Input{Title: "Salary", Amount: "6000", Type: "income"}, DefaultRules(), now)
	if err != nil {
		t.Fatalf("quick-add income: %v", err)
	}
	if income.Category != CategoryOther {
		t.Errorf("income category = %q, want Other", income.Category)
	}

	dated, err := NewTransaction(Input{Title: "Rent", Amount: "900", Category: "Rent", Date: "2023-11-30"}, DefaultRules(), now)
	if err != nil {
		t.Fatalf("dated: %v", err)
	}
	if dated.Month() != 10 || dated.Type != Expense {
		t.Errorf("dated month = %d type = %s", dated.Month(), dated.Type)
	}
}

func TestNewTransactionCollectsProblems(t *testing.T) {
	now := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		in    Input
		wants []error
	}{
		{"empty title", Input{Title: "", Amount: "5", Category: "Food"}, []error{ErrEmptyTitle}},
		{"long title", Input{Title: strings.Repeat("x", 51), Amount: "5", Category: "Food"}, []error{ErrTitleTooLong}},
		{"bad amount", Input{Title: "a", Amount: "abc", Category: "Food"}, []error{ErrInvalidAmount}},
		{"minimum is exclusive", Input{Title: "a", Amount: "0.01", Category: "Food"}, []error{ErrAmountTooSmall}},
		{"bad type", Input{Title: "a", Amount: "5", Type: "gift", Category: "Food"}, []error{ErrInvalidType}},
		{"missing expense category", Input{Title: "a", Amount: "5", Type: "expense"}, []error{ErrEmptyCategory}},
		{"unknown category", Input{Title: "a", Amount: "5", Category: "Pets"}, []error{ErrUnknownCategory}},
		{"bad date", Input{Title: "a", Amount: "5", Category: "Food", Date: "05/01/2024"}, []error{ErrInvalidDate}},
		{"everything", Input{Amount: "-1"}, []error{ErrEmptyTitle, ErrInvalidAmount, ErrEmptyCategory}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTransaction(tc.in, DefaultRules(), now)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if len(verr.Problems) != len(tc.wants) {
				t.Fatalf("problems = %v, want %d", verr.Messages(), len(tc.wants))
			}
			for _, want := range tc.wants {
				if !errors.Is(err, want) {
					t.Errorf("expected %v in %v", want, err)
				}
			}
		})
	}
}

func TestTransactionJSONDerivesMonth(t *testing.T) {
	tx := Transaction{ID: 7, Title: "Train", Amount: Money{Cents: 1250}, Type: Expense, Category: "Travel", Date: NewDate(2024, 6, 2)}
	b, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":7,"title":"Train","amount":12.5,"type":"expense","category":"Travel","date":"2024-06-02","month":5}`
	if string(b) != want {
		t.Fatalf("got  %s\nwant %s", b, want)
	}

	// A stale cached month must not survive decoding.
	var back Transaction
	if err := json.Unmarshal([]byte(`{"id":7,"title":"Train","amount":12.5,"type":"expense","category":"Travel","date":"2024-06-02","month":0}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != tx || back.Month() != 5 {
		t.Fatalf("round trip mismatch: %+v month=%d", back, back.Month())
	}
}

func TestTransactionWithoutDateHasNoMonth(t *testing.T) {
	var tx Transaction
	if err := json.Unmarshal([]byte(`{"id":3,"title":"cash","amount":4,"type":"expense","category":"Food","month":6}`), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.Month() != -1 {
		t.Fatalf("month = %d, want -1", tx.Month())
	}
	b, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), `"month"`) {
		t.Fatalf("dateless record should not carry a month: %s", b)
	}
}

func TestValidateAllReportsIndices(t *testing.T) {
	ok := Transaction{ID: 1, Title: "a", Amount: Money{Cents: 100}, Type: Income, Category: "Salary", Date: NewDate(2024, 1, 1)}
	dup := ok
	bad := ok
	bad.ID = 3
	bad.Amount = Money{}

	errs := ValidateAll([]Transaction{ok, dup, bad})
	if len(errs) != 2 || errs[0].Index != 1 || errs[1].Index != 2 {
		t.Fatalf("unexpected record errors: %v", errs)
	}
	if !errors.Is(errs[0].Err, ErrDuplicateID) {
		t.Fatalf("expected duplicate id, got %v", errs[0].Err)
	}
}
