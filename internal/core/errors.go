package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation marks every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError collects every problem found in one record or form
// submission. errors.Is matches ErrValidation and each individual problem.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	return append([]error{ErrValidation}, e.Problems...)
}

// Messages returns the problems as user-facing strings.
func (e *ValidationError) Messages() []string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return msgs
}

// RecordError reports an invalid record by its position in a list.
type RecordError struct {
	Index int
	Err   error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

// ValidateAll checks every record and the id uniqueness invariant.
func ValidateAll(txs []Transaction) []RecordError {
	var out []RecordError
	seen := make(map[int64]int, len(txs))
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			out = append(out, RecordError{Index: i, Err: err})
			continue
		}
		if first, ok := seen[tx.ID]; ok {
			out = append(out, RecordError{Index: i, Err: fmt.Errorf("%w: %d also at index %d", ErrDuplicateID, tx.ID, first)})
			continue
		}
		seen[tx.ID] = i
	}
	return out
}

// RecordsError aggregates the invalid records of a bulk operation.
type RecordsError struct {
	Records []RecordError
}

func (e *RecordsError) Error() string {
	if len(e.Records) == 1 {
		return "invalid record: " + e.Records[0].Error()
	}
	return fmt.Sprintf("%d invalid records, first: %v", len(e.Records), e.Records[0])
}

func (e *RecordsError) Unwrap() error {
	return ErrValidation
}

// Indices returns the positions of the offending records.
func (e *RecordsError) Indices() []int {
	out := make([]int, len(e.Records))
	for i, r := range e.Records {
		out[i] = r.Index
	}
	return out
}

// CheckAll is ValidateAll folded into a single error, or nil.
func CheckAll(txs []Transaction) error {
	if bad := ValidateAll(txs); len(bad) > 0 {
		return &RecordsError{Records: bad}
	}
	return nil
}
