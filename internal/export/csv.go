// Package export renders the ledger as CSV and as a JSON backup document,
// and parses backups back into transactions.
package export

import (
	"bytes"
	"errors"
	"strings"
	"time"

	"fintrack/internal/core"
)

// ErrNothingToExport is returned when an export is requested for an empty list.
var ErrNothingToExport = errors.New("no transactions to export")

const missingDate = "N/A"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions tunes the CSV layout.
type CSVOptions struct {
	// BOM prefixes the output with a UTF-8 byte order mark for spreadsheet apps.
	BOM bool
	// PaymentMethod appends a PaymentMethod column.
	PaymentMethod bool
}

// Header returns the CSV header columns for opts.
func Header(opts CSVOptions) []string {
	h := []string{"Title", "Amount", "Type", "Category", "Date"}
	if opts.PaymentMethod {
		h = append(h, "PaymentMethod")
	}
	return h
}

// Row returns the display cells of one transaction, unquoted.
func Row(tx core.Transaction, opts CSVOptions) []string {
	date := tx.Date.String()
	if date == "" {
		date = missingDate
	}
	row := []string{tx.Title, tx.Amount.StringFixed(), tx.Type.String(), tx.Category.String(), date}
	if opts.PaymentMethod {
		row = append(row, tx.PaymentMethod)
	}
	return row
}

// ToCSV writes a header line followed by one line per transaction. Every data
// field is quoted and embedded quotes are doubled.
func ToCSV(txs []core.Transaction, opts CSVOptions) ([]byte, error) {
	if len(txs) == 0 {
		return nil, ErrNothingToExport
	}
	var buf bytes.Buffer
	if opts.BOM {
		buf.Write(utf8BOM)
	}
	buf.WriteString(strings.Join(Header(opts), ","))
	buf.WriteByte('\n')
	for _, tx := range txs {
		for i, cell := range Row(tx, opts) {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('"')
			buf.WriteString(strings.ReplaceAll(cell, `"`, `""`))
			buf.WriteByte('"')
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// CSVFilename names a CSV export taken at now.
func CSVFilename(now time.Time) string {
	return "transactions_" + now.UTC().Format(core.DateLayout) + ".csv"
}

// BackupFilename names a JSON backup taken at now.
func BackupFilename(now time.Time) string {
	return "finance_backup_" + now.UTC().Format(core.DateLayout) + ".json"
}
