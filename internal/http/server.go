// Package http serves the ledger as a JSON API: transactions, dashboard
// figures, rendered charts, CSV export, backup/import and the theme.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/chart"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/theme"
)

// Options tunes the server. Zero values take defaults.
type Options struct {
	PageSize          int
	Currency          string
	RequestsPerMinute int
	ChartCacheSize    int
	ChartCacheTTL     time.Duration
	Logger            *log.Logger
}

type Server struct {
	http.Server
	svc    *services.TransactionService
	themes *theme.Store
	logger *log.Logger
	events *log.StructuredLogger

	pageSize  int
	chartOpts chart.Options

	rateLimiter *rateLimiter
	security    *securityMetrics

	// Rendered charts keyed by ledger revision.
	charts       *cache.LRUCache[cache.Rendered]
	cacheManager *cache.Manager
	stopCache    context.CancelFunc

	started      time.Time
	requests     int64
	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run server.
func NewServer(addr string, svc *services.TransactionService, themes *theme.Store, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.PageSize <= 0 {
		opts.PageSize = services.DefaultPageSize
	}
	if opts.ChartCacheSize <= 0 {
		opts.ChartCacheSize = 64
	}
	if opts.ChartCacheTTL <= 0 {
		opts.ChartCacheTTL = 5 * time.Minute
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:          svc,
		themes:       themes,
		logger:       logger,
		events:       log.NewStructuredLogger(logger),
		pageSize:     opts.PageSize,
		chartOpts:    chart.Options{Currency: opts.Currency},
		rateLimiter:  newRateLimiter(opts.RequestsPerMinute),
		security:     &securityMetrics{},
		charts:       cache.NewLRUCache[cache.Rendered](opts.ChartCacheSize, opts.ChartCacheTTL),
		cacheManager: cache.NewManager(opts.Logger),
		started:      time.Now(),
	}

	s.cacheManager.Register(s.charts)
	ctx, cancel := context.WithCancel(context.Background())
	s.stopCache = cancel
	s.cacheManager.Start(ctx, 10*time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/charts/{kind}", s.handleChart)
	mux.HandleFunc("GET /api/export/csv", s.handleExportCSV)
	mux.HandleFunc("GET /api/backup", s.handleBackup)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/theme", s.handleGetTheme)
	mux.HandleFunc("PUT /api/theme", s.handlePutTheme)
	mux.HandleFunc("POST /api/theme/toggle", s.handleToggleTheme)

	s.Handler = log.Middleware(logger)(s.withMiddleware(log.RequestIDMiddleware(requestIDOf)(mux)))
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.stopCache()
		s.cacheManager.Wait()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, rate limiting of mutating requests
// and request logging.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := requestIDOf(r)
		if requestID == "" {
			requestID = generateRequestID()
			r.Header.Set(requestIDHeader, requestID)
		}
		atomic.AddInt64(&s.requests, 1)

		ctx := r.Context()
		reqLogger := log.FromContext(ctx).With(log.FieldRequestID, requestID)
		w.Header().Set(requestIDHeader, requestID)
		setSecurityHeaders(w, r)

		if detectSuspiciousRequest(r, s.security) {
			reqLogger.WarnContext(ctx, "Suspicious request detected",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldComponent, log.ComponentSecurity)
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.rateLimiter.allow(clientIP, s.security) {
			reqLogger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldComponent, log.ComponentRateLimit)
			w.Header().Set("Retry-After", "60")
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
			return
		}

		s.events.LogHTTPStart(ctx, r, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		s.events.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

const requestIDHeader = "X-Request-ID"

// requestIDOf returns the caller's request id when it is a plausible token.
func requestIDOf(r *http.Request) string {
	id := r.Header.Get(requestIDHeader)
	if len(id) == 0 || len(id) > 64 || strings.ContainsFunc(id, func(c rune) bool {
		return c <= ' ' || c > '~'
	}) {
		return ""
	}
	return id
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
