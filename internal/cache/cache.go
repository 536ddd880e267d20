// Package cache holds rendered chart images keyed by ledger revision.
//
// A revision bump makes every older key unreachable; the TTL and the size
// bound take care of evicting them.
package cache

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Rendered is a cached HTTP payload.
type Rendered struct {
	ContentType string
	Body        []byte
}

// ChartKey builds the cache key of one chart rendering of one ledger revision.
func ChartKey(kind, format string, revision uint64, params ...any) string {
	key := fmt.Sprintf("%s:%s:r%d", kind, format, revision)
	for _, p := range params {
		key += fmt.Sprintf(":%v", p)
	}
	return key
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically purges expired entries of the registered caches.
type Manager struct {
	caches []Cleaner
	logger *log.Logger
	done   chan struct{}
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Manager{logger: logger.WithComponent(log.ComponentCache)}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(cache Cleaner) {
	m.caches = append(m.caches, cache)
}

// Start runs the cleanup loop until ctx is cancelled. Wait blocks until it
// has returned.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	m.done = make(chan struct{})
	go m.cleanup(ctx, interval)
}

func (m *Manager) cleanup(ctx context.Context, interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := m.CleanAll()
			if cleaned > 0 {
				m.logger.Debug("Expired cache entries removed", log.FieldCount, cleaned)
			}
		case <-ctx.Done():
			return
		}
	}
}

// CleanAll purges every registered cache once.
func (m *Manager) CleanAll() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

func (m *Manager) Wait() {
	if m.done != nil {
		<-m.done
	}
}
