package report

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"fintrack/internal/core"
)

func tx(id int64, typ core.Type, cents int64, cat core.Category, y, m, d int) core.Transaction {
	return core.Transaction{
		ID:       id,
		Title:    "t",
		Amount:   core.Money{Cents: cents},
		Type:     typ,
		Category: cat,
		Date:     core.NewDate(y, m, d),
	}
}

func randomLedger(r *rand.Rand, n int) []core.Transaction {
	cats := core.DefaultCategories
	out := make([]core.Transaction, n)
	for i := range out {
		typ := core.Expense
		if r.Intn(3) == 0 {
			typ = core.Income
		}
		out[i] = tx(int64(i+1), typ, int64(1+r.Intn(100000)), cats[r.Intn(len(cats))], 2024, 1+r.Intn(12), 1+r.Intn(28))
	}
	return out
}

func TestCoffeeScenario(t *testing.T) {
	txs := []core.Transaction{tx(1, core.Expense, 5000, "Food", 2024, 1, 5)}

	totals := ComputeTotals(txs)
	want := Totals{Income: core.Money{}, Expense: core.Money{Cents: 5000}, Balance: core.Money{Cents: -5000}}
	if totals != want {
		t.Fatalf("totals = %+v, want %+v", totals, want)
	}

	cats := CategoryExpenses(txs).Map()
	if len(cats) != 1 || cats["Food"] != (core.Money{Cents: 5000}) {
		t.Fatalf("categories = %v", cats)
	}

	if m := MonthlyExpenses(txs); m[0] != (core.Money{Cents: 5000}) {
		t.Fatalf("monthly[0] = %v", m[0])
	}
}

func TestTotalsProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		txs := randomLedger(r, r.Intn(40))
		totals := ComputeTotals(txs)
		if totals.Balance != totals.Income.Sub(totals.Expense) {
			t.Fatalf("balance %v != income %v - expense %v", totals.Balance, totals.Income, totals.Expense)
		}

		cats := CategoryExpenses(txs)
		for _, ca := range cats {
			if ca.Amount.IsZero() {
				t.Fatalf("zero-valued category %q present", ca.Name)
			}
		}
		if cats.Sum() != totals.Expense {
			t.Fatalf("category sum %v != expense %v", cats.Sum(), totals.Expense)
		}

		months := MonthlyExpenses(txs)
		var sum core.Money
		for _, m := range months {
			sum = sum.Add(m)
		}
		if sum != totals.Expense {
			t.Fatalf("monthly sum %v != expense %v", sum, totals.Expense)
		}
	}
}

func TestCategoryExpensesOrder(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Expense, 100, "Travel", 2024, 1, 1),
		tx(2, core.Income, 900, "Salary", 2024, 1, 1),
		tx(3, core.Expense, 200, "Food", 2024, 1, 2),
		tx(4, core.Expense, 300, "Travel", 2024, 1, 3),
	}
	cats := CategoryExpenses(txs)
	if len(cats) != 2 || cats[0].Name != "Travel" || cats[1].Name != "Food" {
		t.Fatalf("unexpected order: %v", cats)
	}
	if cats[0].Amount.Cents != 400 {
		t.Fatalf("travel = %d", cats[0].Amount.Cents)
	}
}

func TestMonthlyExpensesConflatesYears(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Expense, 100, "Food", 2023, 3, 1),
		tx(2, core.Expense, 200, "Food", 2024, 3, 1),
		tx(3, core.Income, 999, "Salary", 2024, 3, 1),
	}
	if got := MonthlyExpenses(txs)[2].Cents; got != 300 {
		t.Fatalf("march (all years) = %d, want 300", got)
	}
	if got := MonthlyExpensesForYear(txs, 2024)[2].Cents; got != 200 {
		t.Fatalf("march 2024 = %d, want 200", got)
	}
}

func TestMonthlyExpensesSkipsDatelessRecords(t *testing.T) {
	var undated core.Transaction
	if err := json.Unmarshal([]byte(`{"id":9,"title":"cash","amount":40,"type":"expense","category":"Food","month":6}`), &undated); err != nil {
		t.Fatal(err)
	}
	txs := []core.Transaction{undated, tx(1, core.Expense, 100, "Food", 2024, 7, 3)}

	monthly := MonthlyExpenses(txs)
	if monthly[0].Cents != 0 {
		t.Fatalf("dateless expense counted under january: %d", monthly[0].Cents)
	}
	if monthly[6].Cents != 100 {
		t.Fatalf("july = %d, want 100", monthly[6].Cents)
	}
	if got := MonthlyExpensesForYear(txs, 1); got[0].Cents != 0 {
		t.Fatalf("dateless expense counted for year 1: %d", got[0].Cents)
	}
}

func TestDaily(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Expense, 100, "Food", 2024, 2, 28),
		tx(2, core.Income, 500, "Salary", 2024, 3, 1),
		tx(3, core.Expense, 50, "Food", 2024, 3, 1),
		tx(4, core.Expense, 70, "Food", 2024, 3, 3), // outside window
	}
	s := Daily(txs, core.NewDate(2024, 2, 28), 3)
	if len(s.Days) != 3 || len(s.Income) != 3 || len(s.Expense) != 3 {
		t.Fatalf("unexpected lengths: %+v", s)
	}
	if s.Days[1] != core.NewDate(2024, 2, 29) || s.Days[2] != core.NewDate(2024, 3, 1) {
		t.Fatalf("unexpected days: %v", s.Days)
	}
	wantExpense := []int64{100, 0, 50}
	wantIncome := []int64{0, 0, 500}
	for i := range s.Days {
		if s.Expense[i].Cents != wantExpense[i] || s.Income[i].Cents != wantIncome[i] {
			t.Fatalf("day %d: income=%d expense=%d", i, s.Income[i].Cents, s.Expense[i].Cents)
		}
	}

	if empty := Daily(nil, core.NewDate(2024, 1, 1), 0); len(empty.Days) != 0 {
		t.Fatalf("expected empty series")
	}
}

func TestTopCategory(t *testing.T) {
	cat, amount := TopCategory([]core.Transaction{tx(1, core.Income, 600000, "Salary", 2024, 1, 1)})
	if cat != core.CategoryOther || !amount.IsZero() {
		t.Fatalf("sentinel = (%s, %v), want (Other, 0)", cat, amount)
	}

	txs := []core.Transaction{
		tx(1, core.Expense, 300, "Rent", 2024, 1, 1),
		tx(2, core.Expense, 300, "Food", 2024, 1, 1),
		tx(3, core.Expense, 100, "Travel", 2024, 1, 1),
	}
	cat, amount = TopCategory(txs)
	if cat != "Rent" || amount.Cents != 300 {
		t.Fatalf("tie should go to first encountered, got (%s, %d)", cat, amount.Cents)
	}
}

func TestMostActiveWeekday(t *testing.T) {
	if wd, n := MostActiveWeekday(nil); wd != time.Sunday || n != 0 {
		t.Fatalf("empty = (%v, %d)", wd, n)
	}
	txs := []core.Transaction{
		tx(1, core.Expense, 1, "Food", 2024, 1, 3),   // Wednesday
		tx(2, core.Income, 1, "Salary", 2024, 1, 1),  // Monday
		tx(3, core.Expense, 1, "Food", 2024, 1, 10),  // Wednesday
		tx(4, core.Expense, 1, "Food", 2024, 1, 8),   // Monday
		tx(5, core.Expense, 1, "Travel", 2024, 1, 6), // Saturday
	}
	wd, n := MostActiveWeekday(txs)
	if wd != time.Wednesday || n != 2 {
		t.Fatalf("got (%v, %d), want (Wednesday, 2)", wd, n)
	}
}

func TestSavingsRate(t *testing.T) {
	if got := SavingsRate([]core.Transaction{tx(1, core.Expense, 100, "Food", 2024, 1, 1)}); got != 0 {
		t.Fatalf("no income should give 0, got %v", got)
	}
	txs := []core.Transaction{
		tx(1, core.Income, 10000, "Salary", 2024, 1, 1),
		tx(2, core.Expense, 2500, "Food", 2024, 1, 1),
	}
	if got := SavingsRate(txs); got != 75 {
		t.Fatalf("savings rate = %v, want 75", got)
	}
}

func TestAverageDailyExpense(t *testing.T) {
	today := core.NewDate(2024, 1, 31)
	txs := []core.Transaction{
		tx(1, core.Expense, 3000, "Food", 2024, 1, 30),
		tx(2, core.Expense, 1000, "Food", 2024, 1, 1), // exactly today-30
		tx(3, core.Expense, 9900, "Food", 2023, 12, 31),
		tx(4, core.Income, 5000, "Salary", 2024, 1, 20),
	}
	got := AverageDailyExpense(txs, 30, today)
	if got.Cents != 133 { // 40.00 / 30 = 1.333
		t.Fatalf("average = %d cents, want 133", got.Cents)
	}
	if got := AverageDailyExpense(txs, 0, today); !got.IsZero() {
		t.Fatalf("zero range should give 0, got %v", got)
	}
}

func TestSummarize(t *testing.T) {
	txs := []core.Transaction{
		tx(1, core.Income, 600000, "Salary", 2024, 1, 1),
		tx(2, core.Expense, 5000, "Food", 2024, 1, 5),
	}
	s := Summarize(txs, core.NewDate(2024, 1, 10), 30)
	if s.Count != 2 || s.TopCategory != "Food" || s.Totals.Balance.Cents != 595000 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.Monthly[0].Cents != 5000 || s.RangeDays != 30 {
		t.Fatalf("unexpected monthly/range: %+v", s)
	}
}
