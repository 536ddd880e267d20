package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/filter"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, e amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventKind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

var fixedNow = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T, opts ...Option) (*TransactionService, *ledger.Store, *recordingPublisher) {
	t.Helper()
	store := ledger.New(storage.NewMemorySlot(), ledger.DefaultKey, ledger.WithLogger(log.Discard()))
	store.Load(context.Background())
	pub := &recordingPublisher{}
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithPublisher(pub),
		WithLogger(log.Discard()),
	}
	return NewTransactionService(store, append(base, opts...)...), store, pub
}

func TestCreate(t *testing.T) {
	svc, store, pub := newService(t)
	ctx := context.Background()

	tx, err := svc.Create(ctx, core.Input{Title: "Coffee", Amount: "50", Type: "expense", Category: "Food", Date: "2024-01-05"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tx.ID != fixedNow.UnixMilli() || tx.Month() != 0 {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if store.Len() != 1 {
		t.Fatalf("store has %d records", store.Len())
	}
	if k := pub.kinds(); len(k) != 1 || k[0] != amqp.KindTransactionAdded {
		t.Fatalf("events = %v", k)
	}
	if pub.events[0].ID != tx.ID || pub.events[0].Revision != store.Revision() || pub.events[0].Count != 1 {
		t.Fatalf("unexpected event %+v", pub.events[0])
	}
}

func TestCreateSameMillisecondGetsDistinctIDs(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	in := core.Input{Title: "Coffee", Amount: "2", Category: "Food"}

	a, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == b.ID {
		t.Fatalf("ids collide: %d", a.ID)
	}
}

func TestCreateConcurrentSameMillisecond(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	in := core.Input{Title: "Coffee", Amount: "2", Category: "Food"}

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Create(ctx, in); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create failed: %v", err)
	}
	if store.Len() != n {
		t.Fatalf("expected %d records, got %d", n, store.Len())
	}
}

func TestCreateValidation(t *testing.T) {
	svc, store, pub := newService(t)

	_, err := svc.Create(context.Background(), core.Input{Title: "", Amount: "abc", Type: "expense"})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, want := range []error{core.ErrEmptyTitle, core.ErrInvalidAmount, core.ErrEmptyCategory} {
		if !errors.Is(err, want) {
			t.Errorf("missing %v in %v", want, err)
		}
	}
	if store.Len() != 0 || len(pub.kinds()) != 0 {
		t.Fatalf("rejected input must not change state or publish")
	}
}

func TestCreateQuickAddIncome(t *testing.T) {
	svc, _, _ := newService(t)
	tx, err := svc.Create(context.Background(), core.Input{Title: "Gift", Amount: "20", Type: "income"})
	if err != nil {
		t.Fatal(err)
	}
	if tx.Category != core.CategoryOther || tx.Date != core.DateOf(fixedNow) {
		t.Fatalf("unexpected defaults %+v", tx)
	}
}

func TestPublishFailureDoesNotFailCreate(t *testing.T) {
	svc, store, pub := newService(t)
	pub.err = errors.New("broker down")

	if _, err := svc.Create(context.Background(), core.Input{Title: "Coffee", Amount: "5", Category: "Food"}); err != nil {
		t.Fatalf("Create should succeed when publishing fails: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("transaction should be stored")
	}
}

func TestNoPublisher(t *testing.T) {
	store := ledger.New(storage.NewMemorySlot(), ledger.DefaultKey, ledger.WithLogger(log.Discard()))
	svc := NewTransactionService(store, WithLogger(log.Discard()))
	if _, err := svc.Create(context.Background(), core.Input{Title: "Coffee", Amount: "5", Category: "Food"}); err != nil {
		t.Fatal(err)
	}
}

func TestDelete(t *testing.T) {
	svc, store, pub := newService(t)
	ctx := context.Background()
	tx, err := svc.Create(ctx, core.Input{Title: "Coffee", Amount: "5", Category: "Food"})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, tx.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("transaction not removed")
	}
	if err := svc.Delete(ctx, tx.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	k := pub.kinds()
	if len(k) != 2 || k[1] != amqp.KindTransactionRemoved {
		t.Fatalf("events = %v", k)
	}
}

func TestImportAndBackup(t *testing.T) {
	svc, store, pub := newService(t)
	ctx := context.Background()
	for _, title := range []string{"Coffee", "Lunch"} {
		if _, err := svc.Create(ctx, core.Input{Title: title, Amount: "5", Category: "Food"}); err != nil {
			t.Fatal(err)
		}
	}
	before := store.All()

	data, name, err := svc.Backup(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if name != "finance_backup_2024-01-10.json" {
		t.Fatalf("filename = %q", name)
	}

	if err := svc.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	n, err := svc.Import(ctx, data)
	if err != nil || n != 2 {
		t.Fatalf("Import = %d, %v", n, err)
	}
	after := store.All()
	if len(after) != len(before) || after[0] != before[0] || after[1] != before[1] {
		t.Fatalf("import did not restore the ledger:\n%+v\n%+v", after, before)
	}

	want := []amqp.EventKind{amqp.KindTransactionAdded, amqp.KindTransactionAdded, amqp.KindLedgerReset, amqp.KindLedgerReplaced}
	got := pub.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestImportRejectsAndKeepsState(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
		doc    string
	}{
		{"missing transactions", true, `{"version":"1.0"}`},
		{"strict invalid record", true, `{"transactions":[{"id":1,"title":"","amount":5,"type":"expense","category":"Food","date":"2024-01-01"}]}`},
		{"lenient duplicate ids", false, `{"transactions":[
			{"id":1,"title":"a","amount":5,"type":"expense","category":"Food","date":"2024-01-01"},
			{"id":1,"title":"b","amount":5,"type":"expense","category":"Food","date":"2024-01-01"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newService(t, WithStrictImport(tt.strict))
			ctx := context.Background()
			if _, err := svc.Create(ctx, core.Input{Title: "Keep", Amount: "5", Category: "Food"}); err != nil {
				t.Fatal(err)
			}
			rev := store.Revision()

			_, err := svc.Import(ctx, []byte(tt.doc))
			if !errors.Is(err, export.ErrFormat) {
				t.Fatalf("expected format error, got %v", err)
			}
			if store.Len() != 1 || store.Revision() != rev {
				t.Fatalf("store changed after rejected import")
			}
		})
	}
}

func TestExportCSV(t *testing.T) {
	svc, _, _ := newService(t, WithCSVOptions(export.CSVOptions{PaymentMethod: true}))
	ctx := context.Background()

	if _, _, err := svc.ExportCSV(ctx); !errors.Is(err, export.ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
	if _, err := svc.Create(ctx, core.Input{Title: "Coffee", Amount: "50", Category: "Food", Date: "2024-01-05", PaymentMethod: "card"}); err != nil {
		t.Fatal(err)
	}
	data, name, err := svc.ExportCSV(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if name != "transactions_2024-01-10.csv" {
		t.Fatalf("filename = %q", name)
	}
	if !strings.Contains(string(data), `"Coffee","50.00","expense","Food","2024-01-05","card"`) {
		t.Fatalf("unexpected csv:\n%s", data)
	}
}

func TestSummaryAndList(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	inputs := []core.Input{
		{Title: "Coffee", Amount: "50", Type: "expense", Category: "Food", Date: "2024-01-05"},
		{Title: "Salary", Amount: "600", Type: "income", Category: "Salary", Date: "2024-01-01"},
		{Title: "Train", Amount: "12.50", Type: "expense", Category: "Travel", Date: "2024-01-09"},
	}
	for _, in := range inputs {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	s := svc.Summary(ctx, 0)
	if s.Totals.Expense.Cents != 6250 || s.Totals.Balance.Cents != 53750 || s.RangeDays != DefaultRangeDays {
		t.Fatalf("unexpected summary %+v", s)
	}

	p, err := svc.List(ctx, filter.Criteria{Type: "expense"}, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalPages != 2 || len(p.Items) != 1 || p.Items[0].Title != "Train" {
		t.Fatalf("unexpected page %+v", p)
	}
	if _, err := svc.List(ctx, filter.Criteria{}, 9, 10); !errors.Is(err, filter.ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}

	d := svc.Daily(ctx, 7)
	if len(d.Days) != 7 || d.Days[6] != core.DateOf(fixedNow) || d.Expense[5].Cents != 1250 {
		t.Fatalf("unexpected daily series %+v", d)
	}
}

func TestMirrorToSheets(t *testing.T) {
	svc, _, _ := newService(t)
	if err := svc.MirrorToSheets(context.Background()); !errors.Is(err, ErrMirrorDisabled) {
		t.Fatalf("expected ErrMirrorDisabled, got %v", err)
	}

	m := memory.New()
	svc, _, _ = newService(t, WithMirror(m))
	ctx := context.Background()
	if _, err := svc.Create(ctx, core.Input{Title: "Coffee", Amount: "5", Category: "Food"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.MirrorToSheets(ctx); err != nil {
		t.Fatal(err)
	}
	if len(m.Rows()) != 1 {
		t.Fatalf("mirror rows = %d", len(m.Rows()))
	}
}
