// Package services orchestrates validation, the ledger store, change
// events and the spreadsheet mirror.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/filter"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/sheets"
)

var (
	ErrNotFound       = errors.New("transaction not found")
	ErrMirrorDisabled = errors.New("spreadsheet mirror not configured")
)

const (
	DefaultRangeDays = 30
	DefaultPageSize  = 10

	// Two submissions within the same millisecond would share an id.
	maxIDCollisionSkew = 1000
)

// Publisher announces committed ledger changes.
type Publisher interface {
	PublishEvent(ctx context.Context, e amqp.LedgerEvent) error
}

// TransactionService is the single entry point for ledger mutations.
type TransactionService struct {
	store     *ledger.Store
	publisher Publisher
	mirror    sheets.Mirror
	rules     core.Rules
	csv       export.CSVOptions
	strict    bool
	rangeDays int
	now       func() time.Time
	logger    *log.Logger
	events    *log.StructuredLogger
}

type Option func(*TransactionService)

// WithClock replaces time.Now; ids and default dates derive from it.
func WithClock(now func() time.Time) Option {
	return func(s *TransactionService) { s.now = now }
}

func WithPublisher(p Publisher) Option {
	return func(s *TransactionService) { s.publisher = p }
}

func WithMirror(m sheets.Mirror) Option {
	return func(s *TransactionService) { s.mirror = m }
}

func WithRules(r core.Rules) Option {
	return func(s *TransactionService) { s.rules = r }
}

func WithCSVOptions(o export.CSVOptions) Option {
	return func(s *TransactionService) { s.csv = o }
}

// WithStrictImport selects validated (true) or as-decoded (false) imports.
// Even lenient imports must satisfy the store invariants.
func WithStrictImport(strict bool) Option {
	return func(s *TransactionService) { s.strict = strict }
}

func WithRangeDays(days int) Option {
	return func(s *TransactionService) {
		if days > 0 {
			s.rangeDays = days
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *TransactionService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewTransactionService(store *ledger.Store, opts ...Option) *TransactionService {
	s := &TransactionService{
		store:     store,
		rules:     core.DefaultRules(),
		strict:    true,
		rangeDays: DefaultRangeDays,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentService)
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// Rules returns the form rules in force.
func (s *TransactionService) Rules() core.Rules {
	return s.rules
}

// Create validates form input and appends the resulting transaction. Every
// validation problem is reported at once in a *core.ValidationError.
func (s *TransactionService) Create(ctx context.Context, in core.Input) (core.Transaction, error) {
	now := s.now()
	tx, err := core.NewTransaction(in, s.rules, now)
	if err != nil {
		return core.Transaction{}, err
	}

	tx, err = s.store.AddFresh(ctx, tx, maxIDCollisionSkew)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.events.LogTransactionCreated(ctx, tx.ID, tx.Title, tx.Amount.Cents, tx.Type.String(), tx.Category.String(), s.store.Revision())
	s.publish(ctx, amqp.KindTransactionAdded, tx.ID)
	return tx, nil
}

// Delete removes the transaction with id. ErrNotFound is returned for an
// absent id; the ledger is not touched in that case.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	removed, err := s.store.Remove(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if !removed {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.logger.InfoContext(ctx, "Transaction deleted", log.FieldTransactionID, id, log.FieldOperation, log.OpDelete)
	s.publish(ctx, amqp.KindTransactionRemoved, id)
	return nil
}

// Import replaces the ledger with the transactions of a JSON backup and
// returns how many were imported. Nothing changes on error.
func (s *TransactionService) Import(ctx context.Context, data []byte) (int, error) {
	parse := export.FromJSONBackup
	if s.strict {
		parse = export.FromJSONBackupStrict
	}
	txs, err := parse(data)
	if err != nil {
		s.logger.WarnContext(ctx, "Backup rejected", log.FieldOperation, log.OpImport, log.FieldError, err)
		return 0, err
	}

	if err := s.store.ReplaceAll(ctx, txs); err != nil {
		var re *core.RecordsError
		if errors.As(err, &re) {
			return 0, &export.FormatError{Reason: "invalid records", Indices: re.Indices(), Err: err}
		}
		return 0, fmt.Errorf("import: %w", err)
	}

	s.logger.InfoContext(ctx, "Backup imported", log.FieldOperation, log.OpImport, log.FieldCount, len(txs))
	s.publish(ctx, amqp.KindLedgerReplaced, 0)
	return len(txs), nil
}

// Reset wipes the ledger.
func (s *TransactionService) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.logger.InfoContext(ctx, "Ledger reset", log.FieldOperation, log.OpReset)
	s.publish(ctx, amqp.KindLedgerReset, 0)
	return nil
}

// ExportCSV renders the ledger as CSV and names the file after today.
func (s *TransactionService) ExportCSV(ctx context.Context) ([]byte, string, error) {
	data, err := export.ToCSV(s.store.All(), s.csv)
	if err != nil {
		return nil, "", err
	}
	return data, export.CSVFilename(s.now()), nil
}

// Backup renders the ledger as a JSON backup document.
func (s *TransactionService) Backup(ctx context.Context) ([]byte, string, error) {
	now := s.now()
	data, err := export.ToJSONBackup(s.store.All(), now).Marshal()
	if err != nil {
		return nil, "", fmt.Errorf("backup: %w", err)
	}
	s.logger.InfoContext(ctx, "Backup created", log.FieldOperation, log.OpBackup, log.FieldCount, s.store.Len())
	return data, export.BackupFilename(now), nil
}

// Summary computes the dashboard figures. rangeDays <= 0 selects the
// configured averaging window.
func (s *TransactionService) Summary(ctx context.Context, rangeDays int) report.Summary {
	if rangeDays <= 0 {
		rangeDays = s.rangeDays
	}
	return report.Summarize(s.store.All(), core.DateOf(s.now()), rangeDays)
}

// Daily returns per-day sums for the last days days, today included.
func (s *TransactionService) Daily(ctx context.Context, days int) report.DailySeries {
	if days <= 0 {
		days = 7
	}
	start := core.DateOf(s.now()).AddDays(-(days - 1))
	return report.Daily(s.store.All(), start, days)
}

// List filters the ledger, orders it newest first and returns one page.
func (s *TransactionService) List(ctx context.Context, c filter.Criteria, page, size int) (filter.Page, error) {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}
	txs := filter.NewestFirst(filter.Apply(s.store.All(), c))
	return filter.Paginate(txs, size, page)
}

// Snapshot returns the ledger and its revision.
func (s *TransactionService) Snapshot() ([]core.Transaction, uint64) {
	return s.store.Snapshot()
}

// MirrorToSheets pushes the whole ledger to the configured spreadsheet.
func (s *TransactionService) MirrorToSheets(ctx context.Context) error {
	if s.mirror == nil {
		return ErrMirrorDisabled
	}
	if err := s.mirror.Mirror(ctx, s.store.All()); err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	return nil
}

// publish is best-effort: the change is already durable.
func (s *TransactionService) publish(ctx context.Context, kind amqp.EventKind, id int64) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping event", log.FieldEventKind, kind)
		return
	}
	txs, rev := s.store.Snapshot()
	e := amqp.NewLedgerEvent(kind, id, rev, len(txs))
	if err := s.publisher.PublishEvent(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventKind, kind, log.FieldTransactionID, id, log.FieldError, err)
	}
}
