// Package ledger holds the authoritative in-memory transaction list and
// keeps it in step with a persistence slot.
//
// Every mutation is copy-on-write: the next list is built and persisted
// first and only then swapped in, so a failed write leaves the observable
// state equal to the last durable state.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// DefaultKey is the slot key the transaction list is stored under.
const DefaultKey = "financeTransactions"

// ErrPersistence marks every *PersistenceError.
var ErrPersistence = errors.New("persistence failed")

// PersistenceError reports a failed slot write. The store is unchanged.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: persist %s: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// Store is safe for concurrent use. Writers are serialised.
type Store struct {
	mu       sync.RWMutex
	slot     storage.Slot
	key      string
	txs      []core.Transaction
	revision uint64
	logger   *log.Logger
}

type Option func(*Store)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentLedger)
		}
	}
}

// New returns an empty store bound to key in slot. Call Load to read the
// persisted list.
func New(slot storage.Slot, key string, opts ...Option) *Store {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{slot: slot, key: key, txs: []core.Transaction{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger)
	}
	return s
}

// Load replaces the in-memory list with the persisted one. Missing or
// malformed data yields an empty list and a warning; Load never fails.
func (s *Store) Load(ctx context.Context) {
	txs := s.read(ctx)

	s.mu.Lock()
	s.txs = txs
	s.revision++
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Ledger loaded", log.FieldKey, s.key, log.FieldCount, len(txs))
}

func (s *Store) read(ctx context.Context) []core.Transaction {
	raw, ok, err := s.slot.Get(ctx, s.key)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read persisted ledger, starting empty",
			log.FieldKey, s.key, log.FieldError, err)
		return []core.Transaction{}
	}
	if !ok || len(raw) == 0 {
		return []core.Transaction{}
	}
	var txs []core.Transaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		s.logger.WarnContext(ctx, "Malformed persisted ledger, starting empty",
			log.FieldKey, s.key, log.FieldError, err)
		return []core.Transaction{}
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs
}

// commit persists next and swaps it in. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, op string, next []core.Transaction) error {
	b, err := json.Marshal(next)
	if err != nil {
		return &PersistenceError{Op: op, Key: s.key, Err: err}
	}
	if err := s.slot.Set(ctx, s.key, b); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist ledger",
			log.FieldOperation, op, log.FieldKey, s.key, log.FieldError, err)
		return &PersistenceError{Op: op, Key: s.key, Err: err}
	}
	s.txs = next
	s.revision++
	return nil
}

// Add appends tx. A duplicate id is rejected with core.ErrDuplicateID.
func (s *Store) Add(ctx context.Context, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.txs {
		if existing.ID == tx.ID {
			return fmt.Errorf("%w: %d", core.ErrDuplicateID, tx.ID)
		}
	}
	next := make([]core.Transaction, len(s.txs), len(s.txs)+1)
	copy(next, s.txs)
	next = append(next, tx)
	return s.commit(ctx, "add", next)
}

// AddFresh appends tx, first bumping its id past any id already taken.
// The check and the append share the write lock, so concurrent callers
// deriving ids from the same clock reading get distinct ids. At most
// maxSkew bumps are tried before core.ErrDuplicateID is returned.
func (s *Store) AddFresh(ctx context.Context, tx core.Transaction, maxSkew int) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[int64]struct{}, len(s.txs))
	for _, existing := range s.txs {
		taken[existing.ID] = struct{}{}
	}
	base := tx.ID
	for {
		if _, ok := taken[tx.ID]; !ok {
			break
		}
		if tx.ID-base >= int64(maxSkew) {
			return core.Transaction{}, fmt.Errorf("%w: %d", core.ErrDuplicateID, base)
		}
		tx.ID++
	}

	next := make([]core.Transaction, len(s.txs), len(s.txs)+1)
	copy(next, s.txs)
	next = append(next, tx)
	if err := s.commit(ctx, "add", next); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// Remove drops every entry with id. An absent id is a no-op: nothing is
// written and removed is false.
func (s *Store) Remove(ctx context.Context, id int64) (removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if tx.ID != id {
			next = append(next, tx)
		}
	}
	if len(next) == len(s.txs) {
		return false, nil
	}
	if err := s.commit(ctx, "remove", next); err != nil {
		return false, err
	}
	return true, nil
}

// ReplaceAll validates txs and substitutes them for the whole list. A
// *core.RecordsError lists the offending indices; nothing changes on failure.
func (s *Store) ReplaceAll(ctx context.Context, txs []core.Transaction) error {
	if err := core.CheckAll(txs); err != nil {
		return err
	}
	next := make([]core.Transaction, len(txs))
	copy(next, txs)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, "replace", next)
}

// Reset empties the list.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, "reset", []core.Transaction{})
}

// All returns a copy of the list in insertion order.
func (s *Store) All() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Transaction, len(s.txs))
	copy(out, s.txs)
	return out
}

// Get returns the first transaction with id.
func (s *Store) Get(id int64) (core.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.txs {
		if tx.ID == id {
			return tx, true
		}
	}
	return core.Transaction{}, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

// Revision increases on every successful load or commit.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Snapshot returns a copy of the list together with its revision.
func (s *Store) Snapshot() ([]core.Transaction, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Transaction, len(s.txs))
	copy(out, s.txs)
	return out, s.revision
}
