// Package storage provides the key-value persistence slots the ledger and
// the theme preference are written to.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrQuotaExceeded is returned when a write would exceed the slot capacity.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrEmptyKey      = errors.New("storage key is empty")
	ErrClosed        = errors.New("storage slot closed")
)

// Slot is a string-keyed blob store. Get reports ok=false for a missing key.
type Slot interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
