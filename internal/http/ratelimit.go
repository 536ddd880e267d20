package http

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRequestsPerMinute bounds mutating requests per client IP.
const DefaultRequestsPerMinute = 60

const (
	rateWindow      = time.Minute
	rateIdleExpiry  = 10 * time.Minute
	rateSweepPeriod = 5 * time.Minute
)

// rateLimiter counts requests per client IP in fixed one-minute windows.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	now     func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

type window struct {
	start time.Time
	count int
	seen  time.Time
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	rl := &rateLimiter{
		windows: make(map[string]*window),
		limit:   requestsPerMinute,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// allow records a request from ip and reports whether it fits the window.
// Rejections are counted in metrics.
func (rl *rateLimiter) allow(ip string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[ip]
	if !ok || now.Sub(w.start) >= rateWindow {
		w = &window{start: now}
		rl.windows[ip] = w
	}
	w.seen = now
	if w.count >= rl.limit {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	w.count++
	return true
}

func (rl *rateLimiter) sweepLoop() {
	ticker := time.NewTicker(rateSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.done:
			return
		}
	}
}

// sweep forgets clients idle for longer than rateIdleExpiry.
func (rl *rateLimiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rateIdleExpiry)
	removed := 0
	for ip, w := range rl.windows {
		if w.seen.Before(cutoff) {
			delete(rl.windows, ip)
			removed++
		}
	}
	return removed
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *rateLimiter) activeClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}
