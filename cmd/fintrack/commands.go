package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/chart"
	"fintrack/internal/core"
	"fintrack/internal/filter"
	"fintrack/internal/report"
	"fintrack/internal/theme"
)

func runAdd(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("add", "add --title TITLE --amount AMOUNT [flags]")
	var in core.Input
	fs.StringVarP(&in.Title, "title", "t", "", "description of the transaction")
	fs.StringVarP(&in.Amount, "amount", "a", "", "positive decimal amount, e.g. 12.50")
	fs.StringVar(&in.Type, "type", "expense", "income or expense")
	fs.StringVarP(&in.Category, "category", "c", "", "category ("+a.categoryNames()+")")
	fs.StringVarP(&in.Date, "date", "d", "", "date as YYYY-MM-DD (default today)")
	fs.StringVar(&in.PaymentMethod, "payment-method", "", "optional payment method")
	income := fs.Bool("income", false, "shorthand for --type income")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *income {
		in.Type = string(core.Income)
	}
	if in.Date == "" {
		in.Date = core.DateOf(time.Now()).String()
	}

	tx, err := a.svc.Create(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "added %d: %s %s %s (%s, %s)\n",
		tx.ID, tx.Type, tx.Amount.Format(a.cfg.CurrencySymbol), tx.Title, tx.Category, tx.Date)
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("list", "list [flags]")
	var c filter.Criteria
	fs.StringVar(&c.Type, "type", "", "only income or expense")
	fs.StringVarP(&c.Category, "category", "c", "", "only this category")
	fs.StringVarP(&c.Date, "date", "d", "", "only this date (YYYY-MM-DD)")
	fs.StringVarP(&c.Text, "search", "q", "", "case-insensitive text in title or category")
	page := fs.IntP("page", "p", 1, "page number")
	size := fs.Int("size", a.cfg.PageSize, "transactions per page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := a.svc.List(ctx, c, *page, *size)
	if err != nil {
		return err
	}
	if p.TotalItems == 0 {
		fmt.Fprintln(a.stdout, "no transactions")
		return nil
	}

	table := tablewriter.NewWriter(a.stdout)
	table.SetHeader([]string{"ID", "Date", "Type", "Category", "Title", "Amount"})
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT,
	})
	for _, tx := range p.Items {
		amount := tx.Amount.Format(a.cfg.CurrencySymbol)
		if tx.Type == core.Expense {
			amount = "-" + amount
		}
		table.Append([]string{
			strconv.FormatInt(tx.ID, 10), tx.Date.String(), tx.Type.String(),
			tx.Category.String(), tx.Title, amount,
		})
	}
	table.Render()
	fmt.Fprintf(a.stdout, "page %d of %d (%d transactions)\n", p.Number, p.TotalPages, p.TotalItems)
	return nil
}

func runRemove(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("rm", "rm ID...")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usageError("at least one transaction id is required")
	}
	for _, arg := range fs.Args() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return usageError("invalid id %q", arg)
		}
		if err := a.svc.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "deleted %d\n", id)
	}
	return nil
}

func runSummary(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("summary", "summary [--range DAYS]")
	rangeDays := fs.Int("range", a.cfg.AverageRangeDays, "days averaged for the daily expense")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rangeDays < 1 {
		return usageError("--range must be positive")
	}

	s := a.svc.Summary(ctx, *rangeDays)
	cur := a.cfg.CurrencySymbol

	table := tablewriter.NewWriter(a.stdout)
	table.SetHeader([]string{"Figure", "Value"})
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.AppendBulk([][]string{
		{"Transactions", strconv.Itoa(s.Count)},
		{"Income", s.Totals.Income.Format(cur)},
		{"Expenses", s.Totals.Expense.Format(cur)},
		{"Balance", s.Totals.Balance.Format(cur)},
		{"Savings rate", fmt.Sprintf("%.1f%%", s.SavingsRate)},
		{fmt.Sprintf("Avg daily expense (%dd)", s.RangeDays), s.AverageDailyExpense.Format(cur)},
		{"Top category", topCategory(s, cur)},
		{"Most active day", mostActiveDay(s)},
	})
	table.Render()

	if len(s.Categories) > 0 {
		cats := tablewriter.NewWriter(a.stdout)
		cats.SetHeader([]string{"Category", "Expenses"})
		cats.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
		for _, ca := range s.Categories {
			cats.Append([]string{ca.Name.String(), ca.Amount.Format(cur)})
		}
		cats.Render()
	}
	return nil
}

func topCategory(s report.Summary, cur string) string {
	if s.TopCategory == "" {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", s.TopCategory, s.TopCategoryAmount.Format(cur))
}

func mostActiveDay(s report.Summary) string {
	if s.MostActiveCount == 0 {
		return "-"
	}
	return fmt.Sprintf("%s (%d)", s.MostActiveWeekday, s.MostActiveCount)
}

var chartKinds = []string{"category", "monthly", "daily"}

// runChart renders one chart, or all three concurrently with "all".
func runChart(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("chart", "chart category|monthly|daily|all [flags]")
	formatFlag := fs.StringP("format", "f", "png", "png or svg")
	out := fs.StringP("out", "o", "", "output file (default <kind>.<format>; - for stdout)")
	days := fs.Int("days", 7, "days shown by the daily chart")
	year := fs.Int("year", 0, "restrict the monthly chart to one year")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("exactly one chart kind is required")
	}
	format, err := chart.ParseFormat(*formatFlag)
	if err != nil {
		return usageError("%v", err)
	}
	if *days < 2 {
		return usageError("--days must be at least 2")
	}

	kinds := []string{fs.Arg(0)}
	if fs.Arg(0) == "all" {
		if *out != "" {
			return usageError("--out cannot be combined with all")
		}
		kinds = chartKinds
	}

	txs, _ := a.svc.Snapshot()
	summary := a.svc.Summary(ctx, 0)
	daily := a.svc.Daily(ctx, *days)
	opts := chart.Options{Currency: a.cfg.CurrencySymbol}

	images := make([][]byte, len(kinds))
	g, _ := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			var buf bytes.Buffer
			var err error
			switch kind {
			case "category":
				err = chart.CategoryPie(&buf, summary.Categories, format, opts)
			case "monthly":
				months := summary.Monthly
				if *year > 0 {
					months = report.MonthlyExpensesForYear(txs, *year)
				}
				err = chart.MonthlyBar(&buf, months, format, opts)
			case "daily":
				err = chart.DailyLines(&buf, daily, format, opts)
			default:
				return usageError("unknown chart %q (want %s or all)", kind, strings.Join(chartKinds, ", "))
			}
			if err != nil {
				return fmt.Errorf("%s chart: %w", kind, err)
			}
			images[i] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, kind := range kinds {
		path := *out
		if path == "" {
			path = kind + "." + string(format)
		}
		if err := a.writeOutput(path, images[i]); err != nil {
			return err
		}
	}
	return nil
}

func runExport(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("export", "export [--out FILE] [--sheets]")
	out := fs.StringP("out", "o", "", "output file (default transactions_<date>.csv; - for stdout)")
	toSheets := fs.Bool("sheets", false, "mirror the ledger to the configured Google spreadsheet instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *toSheets {
		if !a.res.SheetsConfigured {
			return fmt.Errorf("google sheets is not configured: set GOOGLE_SPREADSHEET_ID")
		}
		if err := a.svc.MirrorToSheets(ctx); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "mirrored %d transactions to spreadsheet %s\n",
			len(a.res.Ledger.All()), a.cfg.GoogleSpreadsheetID)
		return nil
	}

	data, filename, err := a.svc.ExportCSV(ctx)
	if err != nil {
		return err
	}
	if *out != "" {
		filename = *out
	}
	return a.writeOutput(filename, data)
}

func runBackup(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("backup", "backup [--out FILE]")
	out := fs.StringP("out", "o", "", "output file (default finance_backup_<date>.json; - for stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, filename, err := a.svc.Backup(ctx)
	if err != nil {
		return err
	}
	if *out != "" {
		filename = *out
	}
	return a.writeOutput(filename, data)
}

func runImport(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("import", "import FILE")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("a backup file is required")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	n, err := a.svc.Import(ctx, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "imported %d transactions\n", n)
	return nil
}

func runReset(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("reset", "reset --yes")
	yes := fs.Bool("yes", false, "confirm deleting every transaction")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return usageError("refusing to delete all data without --yes")
	}
	if err := a.svc.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "all transactions deleted")
	return nil
}

func runTheme(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("theme", "theme [toggle|light|dark]")
	if err := fs.Parse(args); err != nil {
		return err
	}
	store := a.res.Theme

	switch fs.Arg(0) {
	case "":
		fmt.Fprintln(a.stdout, store.Load(ctx))
		return nil
	case "toggle":
		t, err := store.Toggle(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, t)
		return nil
	default:
		t, err := theme.Parse(fs.Arg(0))
		if err != nil {
			return usageError("%v", err)
		}
		if err := store.Save(ctx, t); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, t)
		return nil
	}
}
