// Package ratelimit bounds per-client request rates with a fixed window.
// Counters reset wholesale when the window expires; the limiter trades
// burst precision for zero allocation on the hot path.
package ratelimit

import (
	"sync"
	"time"
)

// Limit configures a limiter. Zero values mean unlimited.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

// Enabled reports whether the limit actually constrains anything.
func (l Limit) Enabled() bool {
	return l.MaxRequests > 0 && l.Window > 0
}

// Limiter tracks request counts per client key within the current window.
// Safe for concurrent use. A nil Limiter allows everything.
type Limiter struct {
	limit Limit

	mu          sync.Mutex
	counts      map[string]int
	windowStart time.Time
}

// New creates a Limiter, or nil when the limit is disabled so callers can
// skip the middleware entirely.
func New(limit Limit) *Limiter {
	if !limit.Enabled() {
		return nil
	}
	return &Limiter{
		limit:  limit,
		counts: make(map[string]int),
	}
}

// Allow records one request for the client and reports whether it fits in
// the current window.
func (l *Limiter) Allow(client string, now time.Time) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.windowStart) >= l.limit.Window {
		l.counts = make(map[string]int)
		l.windowStart = now
	}
	if l.counts[client] >= l.limit.MaxRequests {
		return false
	}
	l.counts[client]++
	return true
}
