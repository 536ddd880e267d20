// Package memory is an in-process sheets.Mirror used when no spreadsheet
// is configured and in tests.
package memory

import (
	"context"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

var _ sheets.Mirror = (*Mirror)(nil)

type Mirror struct {
	mu    sync.Mutex
	rows  []core.Transaction
	calls int
	err   error
}

func New() *Mirror {
	return &Mirror{}
}

// FailWith makes subsequent Mirror calls return err (nil restores success).
func (m *Mirror) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Mirror replaces the stored snapshot with a copy of txs.
func (m *Mirror) Mirror(ctx context.Context, txs []core.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.rows = append([]core.Transaction(nil), txs...)
	return nil
}

// Rows returns the last mirrored snapshot.
func (m *Mirror) Rows() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Transaction(nil), m.rows...)
}

// Calls counts Mirror invocations, failed ones included.
func (m *Mirror) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
