package storage

import (
	"context"
	"sync"
)

// MemorySlot keeps values in process memory. A positive quota bounds the
// total size of all stored values, which makes write failures reproducible.
type MemorySlot struct {
	mu     sync.Mutex
	items  map[string][]byte
	quota  int
	closed bool
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{items: make(map[string][]byte)}
}

// WithQuota limits the combined size of stored values to n bytes (0 = no limit).
func (s *MemorySlot) WithQuota(n int) *MemorySlot {
	s.mu.Lock()
	s.quota = n
	s.mu.Unlock()
	return s
}

func (s *MemorySlot) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	v, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemorySlot) Set(_ context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.quota > 0 {
		used := len(value)
		for k, v := range s.items {
			if k != key {
				used += len(v)
			}
		}
		if used > s.quota {
			return ErrQuotaExceeded
		}
	}
	s.items[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemorySlot) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.items, key)
	return nil
}

func (s *MemorySlot) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
