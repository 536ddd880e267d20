package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// BackupVersion tags every backup document.
const BackupVersion = "1.0"

// ErrFormat marks every *FormatError.
var ErrFormat = errors.New("invalid backup format")

// FormatError reports a backup document that cannot be imported. Indices
// lists offending record positions when the problem is per record.
type FormatError struct {
	Reason  string
	Indices []int
	Err     error
}

func (e *FormatError) Error() string {
	msg := "invalid backup format: " + e.Reason
	if len(e.Indices) > 0 {
		msg += fmt.Sprintf(" (records %v)", e.Indices)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFormat, e.Err}
	}
	return []error{ErrFormat}
}

// Backup is the JSON backup document.
type Backup struct {
	Transactions []core.Transaction `json:"transactions"`
	ExportDate   time.Time          `json:"exportDate"`
	Version      string             `json:"version"`
}

// ToJSONBackup snapshots txs into a backup document dated now.
func ToJSONBackup(txs []core.Transaction, now time.Time) Backup {
	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	return Backup{
		Transactions: out,
		ExportDate:   now.UTC(),
		Version:      BackupVersion,
	}
}

// Marshal encodes the backup with two-space indentation.
func (b Backup) Marshal() ([]byte, error) {
	if b.Transactions == nil {
		b.Transactions = []core.Transaction{}
	}
	return json.MarshalIndent(b, "", "  ")
}

// FromJSONBackup extracts the transactions of a backup document. The
// document must be an object whose transactions field is an array; the
// records are returned as decoded, without validation.
func FromJSONBackup(data []byte) ([]core.Transaction, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Reason: "document is not a JSON object", Err: err}
	}
	raw, ok := doc["transactions"]
	if !ok {
		return nil, &FormatError{Reason: "missing transactions field"}
	}

	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil || records == nil {
		return nil, &FormatError{Reason: "transactions is not an array"}
	}

	txs := make([]core.Transaction, len(records))
	var bad []int
	var first error
	for i, r := range records {
		if err := json.Unmarshal(r, &txs[i]); err != nil {
			bad = append(bad, i)
			if first == nil {
				first = err
			}
		}
	}
	if len(bad) > 0 {
		return nil, &FormatError{Reason: "undecodable records", Indices: bad, Err: first}
	}
	return txs, nil
}

// FromJSONBackupStrict is FromJSONBackup followed by validation of every
// record and of id uniqueness.
func FromJSONBackupStrict(data []byte) ([]core.Transaction, error) {
	txs, err := FromJSONBackup(data)
	if err != nil {
		return nil, err
	}
	if err := core.CheckAll(txs); err != nil {
		var re *core.RecordsError
		if errors.As(err, &re) {
			return nil, &FormatError{Reason: "invalid records", Indices: re.Indices(), Err: err}
		}
		return nil, err
	}
	return txs, nil
}
