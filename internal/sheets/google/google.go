package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/log"
	ports "fintrack/internal/sheets"
)

// DefaultSheetName is the tab written when no name is configured.
const DefaultSheetName = "Transactions"

var _ ports.Mirror = (*Client)(nil)

// Config selects the spreadsheet and the service account credentials.
// Inline JSON wins over the file; without either, GOOGLE_APPLICATION_CREDENTIALS
// is consulted.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	PaymentMethod      bool
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	paymentMethod bool
	logger        *log.Logger
}

// New creates a Sheets client. Extra client options replace the
// credential lookup, which lets tests point the client at a local server.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentSheets)

	if len(opts) == 0 {
		credOpts, err := credentialOptions(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = credOpts
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created successfully",
		"spreadsheet_id", spreadsheetID, "sheet", sheetName)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		paymentMethod: cfg.PaymentMethod,
		logger:        logger,
	}, nil
}

// credentialOptions resolves service account credentials.
func credentialOptions(ctx context.Context, cfg Config, logger *log.Logger) ([]goption.ClientOption, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// Mirror clears the tab and writes a header plus one row per transaction.
func (c *Client) Mirror(ctx context.Context, txs []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := a1(c.sheetName, "A:F")
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	values := rows(txs, export.CSVOptions{PaymentMethod: c.paymentMethod})
	writeRange := a1(c.sheetName, "A1")
	// RAW keeps titles such as "=SUM(...)" from being evaluated.
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", writeRange, err)
	}

	c.logger.InfoContext(ctx, "Ledger mirrored to Google Sheets",
		log.FieldOperation, log.OpMirror, log.FieldCount, len(txs), "sheet", c.sheetName)
	return nil
}

// rows lays transactions out like the CSV export; amounts stay numeric.
func rows(txs []core.Transaction, opts export.CSVOptions) [][]any {
	header := export.Header(opts)
	out := make([][]any, 0, len(txs)+1)
	out = append(out, toAny(header))
	for _, tx := range txs {
		row := toAny(export.Row(tx, opts))
		row[1] = tx.Amount.Float()
		out = append(out, row)
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// a1 builds an A1 range, quoting sheet names that need it.
func a1(sheet, cells string) string {
	if strings.ContainsAny(sheet, " '!") {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return sheet + "!" + cells
}
