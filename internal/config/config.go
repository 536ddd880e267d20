package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/export"
)

type Config struct {
	// HTTP Server
	Port string

	// Persistence slot
	DataBackend  string
	DataDir      string
	SQLiteDBPath string
	StorageKey   string
	ThemeKey     string

	// Form rules
	Categories     []string
	MaxTitleLength int
	MinAmount      string

	// Presentation
	PageSize         int
	AverageRangeDays int
	CurrencySymbol   string
	CSVBOM           bool
	CSVPaymentMethod bool
	ImportStrict     bool

	// AMQP (disabled when the URL is empty)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror (disabled when the spreadsheet id is empty)
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Worker
	MirrorInterval   time.Duration
	MirrorMaxRetries int

	LogLevel string
}

func Load() *Config {
	categories := make([]string, len(core.DefaultCategories))
	for i, c := range core.DefaultCategories {
		categories[i] = c.String()
	}

	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "file"),
		DataDir:      getEnv("DATA_DIR", "./data"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		StorageKey:   getEnv("STORAGE_KEY", "financeTransactions"),
		ThemeKey:     getEnv("THEME_KEY", "financeTheme"),

		Categories:     getEnvList("CATEGORIES", categories),
		MaxTitleLength: getEnvInt("MAX_TITLE_LENGTH", 50),
		MinAmount:      getEnv("MIN_AMOUNT", "0.01"),

		PageSize:         getEnvInt("PAGE_SIZE", 10),
		AverageRangeDays: getEnvInt("AVERAGE_RANGE_DAYS", 30),
		CurrencySymbol:   getEnv("CURRENCY_SYMBOL", "$"),
		CSVBOM:           getEnvBool("CSV_BOM", false),
		CSVPaymentMethod: getEnvBool("CSV_PAYMENT_METHOD", false),
		ImportStrict:     getEnvBool("IMPORT_STRICT", true),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		MirrorInterval:   getEnvDuration("MIRROR_INTERVAL", 10*time.Second),
		MirrorMaxRetries: getEnvInt("MIRROR_MAX_RETRIES", 3),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// AMQPEnabled reports whether change events are published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// SheetsEnabled reports whether the Google Sheets mirror is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Rules builds the form rules. Call Validate first; an unparsable
// minimum amount is reported here too.
func (c *Config) Rules() (core.Rules, error) {
	cents, err := core.ParseDecimalToCents(c.MinAmount)
	if err != nil {
		return core.Rules{}, fmt.Errorf("invalid MIN_AMOUNT %q: %w", c.MinAmount, err)
	}
	cats := make([]core.Category, 0, len(c.Categories))
	for _, name := range c.Categories {
		cats = append(cats, core.Category(name))
	}
	return core.Rules{
		MaxTitleLength: c.MaxTitleLength,
		MinAmount:      core.Money{Cents: cents},
		Categories:     cats,
	}, nil
}

func (c *Config) CSVOptions() export.CSVOptions {
	return export.CSVOptions{BOM: c.CSVBOM, PaymentMethod: c.CSVPaymentMethod}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "file", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "file":
		if c.DataDir == "" {
			errors = append(errors, "data directory cannot be empty when using file backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.StorageKey == "" || c.ThemeKey == "" {
		errors = append(errors, "storage and theme keys cannot be empty")
	} else if c.StorageKey == c.ThemeKey {
		errors = append(errors, fmt.Sprintf("storage key and theme key must differ, both are '%s'", c.StorageKey))
	}

	// Validate form rules
	if len(c.Categories) == 0 {
		errors = append(errors, "at least one category is required")
	}
	if c.MaxTitleLength < 1 {
		errors = append(errors, fmt.Sprintf("invalid max title length %d: must be at least 1", c.MaxTitleLength))
	}
	if _, err := core.ParseDecimalToCents(c.MinAmount); err != nil {
		errors = append(errors, fmt.Sprintf("invalid minimum amount '%s': must be a positive decimal", c.MinAmount))
	}

	if c.PageSize < 1 || c.PageSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 1000", c.PageSize))
	}
	if c.AverageRangeDays < 1 {
		errors = append(errors, fmt.Sprintf("invalid average range %d: must be at least 1 day", c.AverageRangeDays))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate Google Sheets configuration if a spreadsheet is set
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for the sheets mirror")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate worker configuration
	if c.MirrorInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid mirror interval %v: must be at least 1 second", c.MirrorInterval))
	} else if c.MirrorInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid mirror interval %v: must be at most 24 hours", c.MirrorInterval))
	}
	if c.MirrorMaxRetries < 1 {
		errors = append(errors, fmt.Sprintf("invalid mirror max retries %d: must be at least 1", c.MirrorMaxRetries))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
