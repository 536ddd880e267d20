package backend

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/services"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
	"fintrack/internal/theme"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend opens the slot, loads the ledger and wires the optional
// publisher and mirror.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	slot, err := f.createSlot(config)
	if err != nil {
		return nil, err
	}

	store := ledger.New(slot, config.storageKey(), ledger.WithLogger(f.logger))
	store.Load(ctx)

	res := &BackendResult{
		Slot:   slot,
		Ledger: store,
		Theme:  theme.NewStore(slot, config.themeKey()),
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			res.Publisher = client
		}
	}

	if config.GoogleSpreadsheetID != "" {
		mirror, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:      config.GoogleSpreadsheetID,
			SheetName:          config.GoogleSheetName,
			ServiceAccountFile: config.GoogleServiceAccountFile,
			ServiceAccountJSON: config.GoogleServiceAccountJSON,
			PaymentMethod:      config.SheetsPaymentMethod,
		}, f.logger)
		if err != nil {
			res.close()
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		res.Mirror = mirror
		res.SheetsConfigured = true
	} else {
		res.Mirror = memory.New()
	}

	res.Cleanup = res.close

	f.logger.InfoContext(ctx, "Initialized backend",
		"type", config.Type,
		log.FieldCount, store.Len(),
		"amqp_enabled", res.Publisher != nil,
		"sheets_enabled", res.SheetsConfigured)

	return res, nil
}

func (f *DefaultFactory) createSlot(config Config) (storage.Slot, error) {
	switch config.Type {
	case MemoryBackend:
		return storage.NewMemorySlot(), nil
	case FileBackend:
		slot, err := storage.NewFileSlot(config.DataDirectory)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file slot: %w", err)
		}
		return slot, nil
	case SQLiteBackend:
		slot, err := storage.NewSQLiteSlot(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite slot: %w", err)
		}
		return slot, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (r *BackendResult) close() error {
	var errs []error
	if r.Publisher != nil {
		errs = append(errs, r.Publisher.Close())
	}
	if r.Slot != nil {
		errs = append(errs, r.Slot.Close())
	}
	return errors.Join(errs...)
}

// NewService builds the transaction service on top of a backend using the
// application settings.
func NewService(res *BackendResult, appConfig *config.Config, logger *log.Logger) (*services.TransactionService, error) {
	rules, err := appConfig.Rules()
	if err != nil {
		return nil, err
	}
	opts := []services.Option{
		services.WithRules(rules),
		services.WithCSVOptions(appConfig.CSVOptions()),
		services.WithStrictImport(appConfig.ImportStrict),
		services.WithRangeDays(appConfig.AverageRangeDays),
		services.WithMirror(res.Mirror),
		services.WithLogger(logger),
	}
	if res.Publisher != nil {
		opts = append(opts, services.WithPublisher(res.Publisher))
	}
	return services.NewTransactionService(res.Ledger, opts...), nil
}
