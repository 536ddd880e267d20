// Package sheets defines the spreadsheet mirror port. Adapters live in
// subpackages.
package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Mirror overwrites a spreadsheet with the full transaction list. It is a
// one-way export: nothing is ever read back into the ledger.
type Mirror interface {
	Mirror(ctx context.Context, txs []core.Transaction) error
}

// MirrorFunc adapts a function to Mirror.
type MirrorFunc func(ctx context.Context, txs []core.Transaction) error

func (f MirrorFunc) Mirror(ctx context.Context, txs []core.Transaction) error {
	return f(ctx, txs)
}
