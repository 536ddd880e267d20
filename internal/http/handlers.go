package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/chart"
	"fintrack/internal/core"
	"fintrack/internal/filter"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/theme"
)

const (
	defaultDailyDays = 7
	maxDailyDays     = 366
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":   "ok",
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"requests": atomic.LoadInt64(&s.requests),
	}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	txs, rev := s.svc.Snapshot()
	hits, misses := s.charts.Stats()
	NewResponse().JSON(map[string]any{
		"status":       "ready",
		"transactions": len(txs),
		"revision":     rev,
		"chartCache":   map[string]any{"size": s.charts.Size(), "hits": hits, "misses": misses},
		"security": map[string]any{
			"rateLimitHits":      atomic.LoadInt64(&s.security.rateLimitHits),
			"suspiciousRequests": atomic.LoadInt64(&s.security.suspiciousRequests),
			"activeClients":      s.rateLimiter.activeClients(),
		},
	}).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params, err := ParsePageParams(query, s.pageSize)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	page, err := s.svc.List(r.Context(), filter.ParseCriteria(query.Get), params.Page, params.Size)
	if err != nil {
		ErrorFrom(err).Write(w)
		return
	}
	NewResponse().JSON(page).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	tx, err := s.svc.Create(r.Context(), parser.Input())
	if err != nil {
		s.logFailure(r, "Failed to create transaction", err, log.OpCreate)
		ErrorFrom(err).Write(w)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		BadRequestError("invalid transaction id").Write(w)
		return
	}
	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.logFailure(r, "Failed to delete transaction", err, log.OpDelete)
		ErrorFrom(err).Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats := s.svc.Rules().Categories
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.String()
	}
	NewResponse().JSON(map[string][]string{"categories": names}).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rangeDays, err := ParseIntParam(r.URL.Query(), "range", 0)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	NewResponse().JSON(s.svc.Summary(r.Context(), rangeDays)).Write(w)
}

// handleChart serves chart data as JSON or the rendered image. Images are
// cached per ledger revision so repeated dashboard loads skip rendering.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	query := r.URL.Query()

	days, err := ParseIntParam(query, "days", defaultDailyDays)
	if err != nil || days > maxDailyDays {
		BadRequestError("invalid days: must be between 1 and 366").Write(w)
		return
	}
	year, err := ParseIntParam(query, "year", 0)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	_, rev := s.svc.Snapshot()
	data, ok := s.chartData(r, kind, days, year)
	if !ok {
		NotFoundError("unknown chart " + strconv.Quote(kind)).Write(w)
		return
	}

	if query.Get("format") == "json" {
		NewResponse().JSON(data).Write(w)
		return
	}
	format, err := chart.ParseFormat(query.Get("format"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	key := cache.ChartKey(kind, string(format), rev, days, year)
	rendered, err := s.charts.GetOrCompute(key, func() (cache.Rendered, error) {
		var buf bytes.Buffer
		if err := s.renderChart(&buf, data, format); err != nil {
			return cache.Rendered{}, err
		}
		return cache.Rendered{ContentType: format.ContentType(), Body: buf.Bytes()}, nil
	})
	if err != nil {
		if !errors.Is(err, chart.ErrNoData) {
			s.logFailure(r, "Failed to render chart", err, log.OpRender)
		}
		ErrorFrom(err).Write(w)
		return
	}
	NewResponse().
		Header("Cache-Control", "no-cache").
		Body(rendered.ContentType, rendered.Body).
		Write(w)
}

func (s *Server) chartData(r *http.Request, kind string, days, year int) (any, bool) {
	switch kind {
	case "category":
		return s.svc.Summary(r.Context(), 0).Categories, true
	case "monthly":
		if year > 0 {
			txs, _ := s.svc.Snapshot()
			return report.MonthlyExpensesForYear(txs, year), true
		}
		return s.svc.Summary(r.Context(), 0).Monthly, true
	case "daily":
		return s.svc.Daily(r.Context(), days), true
	default:
		return nil, false
	}
}

func (s *Server) renderChart(buf *bytes.Buffer, data any, format chart.Format) error {
	switch d := data.(type) {
	case report.CategoryTotals:
		return chart.CategoryPie(buf, d, format, s.chartOpts)
	case report.DailySeries:
		return chart.DailyLines(buf, d, format, s.chartOpts)
	case [12]core.Money:
		return chart.MonthlyBar(buf, d, format, s.chartOpts)
	default:
		return fmt.Errorf("no renderer for %T", data)
	}
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	data, filename, err := s.svc.ExportCSV(r.Context())
	if err != nil {
		ErrorFrom(err).Write(w)
		return
	}
	NewResponse().Attachment(filename, "text/csv; charset=utf-8", data).Write(w)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	data, filename, err := s.svc.Backup(r.Context())
	if err != nil {
		s.logFailure(r, "Failed to create backup", err, log.OpBackup)
		ErrorFrom(err).Write(w)
		return
	}
	NewResponse().Attachment(filename, "application/json", data).Write(w)
}

// handleImport replaces the ledger with a backup document posted as the
// raw body or as the "file" field of a multipart form.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := readUpload(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	n, err := s.svc.Import(r.Context(), data)
	if err != nil {
		s.logFailure(r, "Failed to import backup", err, log.OpImport)
		ErrorFrom(err).Write(w)
		return
	}
	NewResponse().JSON(map[string]int{"imported": n}).Write(w)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reset(r.Context()); err != nil {
		s.logFailure(r, "Failed to reset ledger", err, log.OpReset)
		ErrorFrom(err).Write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type themeBody struct {
	Theme theme.Theme `json:"theme"`
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(themeBody{Theme: s.themes.Load(r.Context())}).Write(w)
}

func (s *Server) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	t, err := theme.Parse(parser.Get("theme"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.themes.Save(r.Context(), t); err != nil {
		ErrorFrom(err).Write(w)
		return
	}
	NewResponse().JSON(themeBody{Theme: t}).Write(w)
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	t, err := s.themes.Toggle(r.Context())
	if err != nil {
		ErrorFrom(err).Write(w)
		return
	}
	NewResponse().JSON(themeBody{Theme: t}).Write(w)
}

// logFailure logs server-side failures; client mistakes stay at debug.
func (s *Server) logFailure(r *http.Request, msg string, err error, op string) {
	if statusFor(err) >= http.StatusInternalServerError {
		s.events.LogError(r.Context(), msg, err, log.ComponentHTTP, op,
			log.NewFields().WithRequestID(requestIDOf(r)))
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), msg, log.FieldError, err, log.FieldOperation, op)
}
