// Package report computes aggregates over transaction lists.
//
// Every function is pure: it reads the slice it is given and never retains
// or mutates it. Sums are kept in cents; rounding to two decimals is a
// presentation concern.
package report

import (
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Totals holds income, expense and their difference.
type Totals struct {
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Balance core.Money `json:"balance"`
}

// CategoryTotals lists expense sums per category in first-encountered order.
type CategoryTotals []core.CategoryAmount

// DailySeries holds parallel per-day sums starting at Days[0].
type DailySeries struct {
	Days    []core.Date  `json:"days"`
	Income  []core.Money `json:"income"`
	Expense []core.Money `json:"expense"`
}

// Summary bundles every dashboard figure for one snapshot of the ledger.
type Summary struct {
	Count               int            `json:"count"`
	Totals              Totals         `json:"totals"`
	Categories          CategoryTotals `json:"categories"`
	Monthly             [12]core.Money `json:"monthly"`
	TopCategory         core.Category  `json:"topCategory"`
	TopCategoryAmount   core.Money     `json:"topCategoryAmount"`
	MostActiveWeekday   time.Weekday   `json:"mostActiveWeekday"`
	MostActiveCount     int            `json:"mostActiveCount"`
	SavingsRate         float64        `json:"savingsRate"`
	AverageDailyExpense core.Money     `json:"averageDailyExpense"`
	RangeDays           int            `json:"rangeDays"`
}

// ComputeTotals sums amounts by type.
func ComputeTotals(txs []core.Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			t.Income = t.Income.Add(tx.Amount)
		case core.Expense:
			t.Expense = t.Expense.Add(tx.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// CategoryExpenses sums expenses per category. Categories without expenses
// are absent rather than zero-valued.
func CategoryExpenses(txs []core.Transaction) CategoryTotals {
	index := make(map[core.Category]int)
	var out CategoryTotals
	for _, tx := range txs {
		if tx.Type != core.Expense || tx.Amount.IsZero() {
			continue
		}
		i, ok := index[tx.Category]
		if !ok {
			i = len(out)
			index[tx.Category] = i
			out = append(out, core.CategoryAmount{Name: tx.Category})
		}
		out[i].Amount = out[i].Amount.Add(tx.Amount)
	}
	return out
}

// Map returns the category→sum mapping.
func (c CategoryTotals) Map() map[core.Category]core.Money {
	m := make(map[core.Category]core.Money, len(c))
	for _, ca := range c {
		m[ca.Name] = ca.Amount
	}
	return m
}

// Sum returns the total over all categories.
func (c CategoryTotals) Sum() core.Money {
	var total core.Money
	for _, ca := range c {
		total = total.Add(ca.Amount)
	}
	return total
}

// MonthlyExpenses sums expenses by zero-based month index. Years are
// conflated: January 2023 and January 2024 share slot 0. Records without a
// date belong to no month and are left out.
func MonthlyExpenses(txs []core.Transaction) [12]core.Money {
	var months [12]core.Money
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		m := tx.Month()
		if m < 0 || m > 11 {
			continue
		}
		months[m] = months[m].Add(tx.Amount)
	}
	return months
}

// MonthlyExpensesForYear is MonthlyExpenses restricted to one calendar year.
func MonthlyExpensesForYear(txs []core.Transaction, year int) [12]core.Money {
	var months [12]core.Money
	for _, tx := range txs {
		if tx.Type != core.Expense || tx.Date.IsZero() || tx.Date.Year() != year {
			continue
		}
		months[tx.Month()] = months[tx.Month()].Add(tx.Amount)
	}
	return months
}

// Daily returns one zero-filled income/expense entry per calendar day in
// [start, start+days).
func Daily(txs []core.Transaction, start core.Date, days int) DailySeries {
	if days < 0 {
		days = 0
	}
	s := DailySeries{
		Days:    make([]core.Date, days),
		Income:  make([]core.Money, days),
		Expense: make([]core.Money, days),
	}
	start = core.DateOf(start.Time)
	index := make(map[core.Date]int, days)
	for i := 0; i < days; i++ {
		d := start.AddDays(i)
		s.Days[i] = d
		index[d] = i
	}
	for _, tx := range txs {
		i, ok := index[tx.Date]
		if !ok {
			continue
		}
		switch tx.Type {
		case core.Income:
			s.Income[i] = s.Income[i].Add(tx.Amount)
		case core.Expense:
			s.Expense[i] = s.Expense[i].Add(tx.Amount)
		}
	}
	return s
}

// TopCategory returns the category with the largest expense sum. Ties go to
// the category encountered first; without expenses it returns ("Other", 0).
func TopCategory(txs []core.Transaction) (core.Category, core.Money) {
	top := core.CategoryAmount{Name: core.CategoryOther}
	for _, ca := range CategoryExpenses(txs) {
		if ca.Amount.Cents > top.Amount.Cents {
			top = ca
		}
	}
	return top.Name, top.Amount
}

// MostActiveWeekday returns the weekday with the most transactions of any
// type. Ties go to the weekday encountered first; an empty list yields
// (Sunday, 0).
func MostActiveWeekday(txs []core.Transaction) (time.Weekday, int) {
	var counts [7]int
	var order []time.Weekday
	for _, tx := range txs {
		if tx.Date.IsZero() {
			continue
		}
		wd := tx.Date.Weekday()
		if counts[wd] == 0 {
			order = append(order, wd)
		}
		counts[wd]++
	}
	best, bestCount := time.Sunday, 0
	for _, wd := range order {
		if counts[wd] > bestCount {
			best, bestCount = wd, counts[wd]
		}
	}
	return best, bestCount
}

// SavingsRate returns (income-expense)/income*100, or 0 without income.
func SavingsRate(txs []core.Transaction) float64 {
	t := ComputeTotals(txs)
	if t.Income.Cents == 0 {
		return 0
	}
	return float64(t.Balance.Cents) / float64(t.Income.Cents) * 100
}

// AverageDailyExpense divides the expense total of the trailing window
// (date >= today-rangeDays) by rangeDays, however many days had entries.
func AverageDailyExpense(txs []core.Transaction, rangeDays int, today core.Date) core.Money {
	if rangeDays <= 0 {
		return core.Money{}
	}
	cutoff := core.DateOf(today.Time).AddDays(-rangeDays)
	var total core.Money
	for _, tx := range txs {
		if tx.Type != core.Expense || tx.Date.Before(cutoff.Time) {
			continue
		}
		total = total.Add(tx.Amount)
	}
	avg := total.Decimal().Div(decimal.NewFromInt(int64(rangeDays)))
	return core.MoneyFromDecimal(avg)
}

// Summarize computes every dashboard figure for txs.
func Summarize(txs []core.Transaction, today core.Date, rangeDays int) Summary {
	top, topAmount := TopCategory(txs)
	wd, wdCount := MostActiveWeekday(txs)
	return Summary{
		Count:               len(txs),
		Totals:              ComputeTotals(txs),
		Categories:          CategoryExpenses(txs),
		Monthly:             MonthlyExpenses(txs),
		TopCategory:         top,
		TopCategoryAmount:   topAmount,
		MostActiveWeekday:   wd,
		MostActiveCount:     wdCount,
		SavingsRate:         SavingsRate(txs),
		AverageDailyExpense: AverageDailyExpense(txs, rangeDays, today),
		RangeDays:           rangeDays,
	}
}
