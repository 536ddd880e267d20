// Package chart renders the dashboard charts: the expense breakdown by
// category, expenses per month and the daily income/expense trend.
package chart

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"fintrack/internal/core"
	"fintrack/internal/report"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no expense data")

type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ParseFormat accepts png or svg; empty means png.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return PNG, nil
	case PNG, SVG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported chart format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) provider() chart.RendererProvider {
	if f == SVG {
		return chart.SVG
	}
	return chart.PNG
}

var (
	piePalette = []drawing.Color{
		drawing.ColorFromHex("FF6B6B"),
		drawing.ColorFromHex("4ECDC4"),
		drawing.ColorFromHex("45B7D1"),
		drawing.ColorFromHex("FFA07A"),
		drawing.ColorFromHex("98D8C8"),
		drawing.ColorFromHex("F7DC6F"),
		drawing.ColorFromHex("BB8FCE"),
		drawing.ColorFromHex("85C1E2"),
	}
	incomeColor  = drawing.ColorFromHex("00E676")
	expenseColor = drawing.ColorFromHex("FF6B6B")
)

// Options sets the canvas size and the currency symbol used on axes.
type Options struct {
	Width    int
	Height   int
	Currency string
}

func (o Options) size(w, h int) (int, int) {
	if o.Width > 0 {
		w = o.Width
	}
	if o.Height > 0 {
		h = o.Height
	}
	return w, h
}

func (o Options) moneyFormatter() chart.ValueFormatter {
	return func(v interface{}) string {
		if f, ok := v.(float64); ok {
			return fmt.Sprintf("%s%.0f", o.Currency, f)
		}
		return ""
	}
}

// CategoryPie renders one slice per category.
func CategoryPie(w io.Writer, cats report.CategoryTotals, format Format, opts Options) error {
	values := make([]chart.Value, 0, len(cats))
	for i, ca := range cats {
		if ca.Amount.Cents <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: ca.Name.String(),
			Value: ca.Amount.Float(),
			Style: chart.Style{
				FillColor:   piePalette[i%len(piePalette)],
				StrokeColor: drawing.ColorWhite,
			},
		})
	}
	if len(values) == 0 {
		return ErrNoData
	}

	width, height := opts.size(512, 512)
	pie := chart.PieChart{
		Title:  "Expenses by Category",
		Width:  width,
		Height: height,
		Values: values,
	}
	if err := pie.Render(format.provider(), w); err != nil {
		return fmt.Errorf("render category chart: %w", err)
	}
	return nil
}

// MonthlyBar renders twelve bars labelled Jan..Dec.
func MonthlyBar(w io.Writer, months [12]core.Money, format Format, opts Options) error {
	bars := make([]chart.Value, len(months))
	var max float64
	for i, m := range months {
		v := m.Float()
		if v > max {
			max = v
		}
		bars[i] = chart.Value{
			Label: core.MonthLabels[i],
			Value: v,
			Style: chart.Style{
				FillColor:   incomeColor.WithAlpha(178),
				StrokeColor: incomeColor,
				StrokeWidth: 1,
			},
		}
	}

	width, height := opts.size(900, 400)
	bc := chart.BarChart{
		Title: "Monthly Expenses",
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		Width:    width,
		Height:   height,
		BarWidth: 50,
		Bars:     bars,
	}
	bc.YAxis.ValueFormatter = opts.moneyFormatter()
	if max == 0 {
		bc.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: 1}
	}
	if err := bc.Render(format.provider(), w); err != nil {
		return fmt.Errorf("render monthly chart: %w", err)
	}
	return nil
}

// DailyLines renders income and expense lines over the series days. At
// least two days are needed to draw a line.
func DailyLines(w io.Writer, s report.DailySeries, format Format, opts Options) error {
	if len(s.Days) < 2 {
		return ErrNoData
	}
	xs := make([]time.Time, len(s.Days))
	income := make([]float64, len(s.Days))
	expense := make([]float64, len(s.Days))
	var max float64
	for i, d := range s.Days {
		xs[i] = d.Time
		income[i] = s.Income[i].Float()
		expense[i] = s.Expense[i].Float()
		if income[i] > max {
			max = income[i]
		}
		if expense[i] > max {
			max = expense[i]
		}
	}

	width, height := opts.size(900, 400)
	graph := chart.Chart{
		Title:  "Daily Activity",
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		YAxis: chart.YAxis{ValueFormatter: opts.moneyFormatter()},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Income",
				XValues: xs,
				YValues: income,
				Style:   chart.Style{StrokeColor: incomeColor, StrokeWidth: 2},
			},
			chart.TimeSeries{
				Name:    "Expense",
				XValues: xs,
				YValues: expense,
				Style:   chart.Style{StrokeColor: expenseColor, StrokeWidth: 2},
			},
		},
	}
	if max == 0 {
		graph.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: 1}
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(format.provider(), w); err != nil {
		return fmt.Errorf("render daily chart: %w", err)
	}
	return nil
}
