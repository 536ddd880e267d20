package backend

import (
	"context"

	"fintrack/internal/amqp"
	"fintrack/internal/ledger"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
	"fintrack/internal/theme"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult bundles everything a command needs to serve the ledger.
// Publisher is nil when AMQP is disabled or unreachable; Mirror falls back
// to an in-memory mirror when no spreadsheet is configured.
type BackendResult struct {
	Slot      storage.Slot
	Ledger    *ledger.Store
	Theme     *theme.Store
	Publisher *amqp.Client
	Mirror    sheets.Mirror
	// SheetsConfigured reports whether Mirror writes to Google Sheets.
	SheetsConfigured bool
	Cleanup          CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	StorageKey string
	ThemeKey   string

	// File specific
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// AMQP is optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	SheetsPaymentMethod      bool
}

// BackendType names the persistence slot implementation.
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, FileBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
