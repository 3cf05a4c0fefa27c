// Package ratelimit enforces per-user, per-mode query quotas over a
// rolling window. State is process-local and resettable by admin action.
package ratelimit

import (
	"sync"
	"time"

	"github.com/veritas-legal/research-cli/internal/model"
	"github.com/veritas-legal/research-cli/internal/resilience"
)

// Limits configures the per-window request allowance for each mode.
type Limits struct {
	FastPerWindow int
	DeepPerWindow int
	Window        time.Duration
}

// DefaultLimits returns the stock allowances: deep queries hit scraped
// sources and verification, so they get a much smaller budget.
func DefaultLimits() Limits {
	return Limits{
		FastPerWindow: 60,
		DeepPerWindow: 10,
		Window:        time.Hour,
	}
}

type bucketKey struct {
	userID string
	mode   model.Mode
}

type bucket struct {
	windowStart time.Time
	count       int
}

// Limiter tracks request counts per (user, mode) key.
type Limiter struct {
	mu      sync.Mutex
	limits  Limits
	buckets map[bucketKey]*bucket
	now     func() time.Time
}

// New creates a Limiter with the given limits.
func New(limits Limits) *Limiter {
	if limits.Window <= 0 {
		limits.Window = time.Hour
	}
	return &Limiter{
		limits:  limits,
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}
}

// NewWithClock creates a Limiter with an injected clock for tests.
func NewWithClock(limits Limits, now func() time.Time) *Limiter {
	l := New(limits)
	l.now = now
	return l
}

// Allow consumes one request slot for (userID, mode). It returns a
// RateLimitError when the window allowance is exhausted; the caller must
// not issue any downstream call in that case.
func (l *Limiter) Allow(userID string, mode model.Mode) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucketLocked(userID, mode)
	if b.count >= l.limitFor(mode) {
		return &resilience.RateLimitError{
			UserID:     userID,
			Mode:       string(mode),
			RetryAfter: b.windowStart.Add(l.limits.Window).Sub(l.now()),
		}
	}
	b.count++
	return nil
}

// Remaining reports how many requests (userID, mode) has left in the
// current window.
func (l *Limiter) Remaining(userID string, mode model.Mode) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucketLocked(userID, mode)
	rem := l.limitFor(mode) - b.count
	if rem < 0 {
		rem = 0
	}
	return rem
}

// Reset clears all counters for a user across modes, immediately
// restoring full capacity.
func (l *Limiter) Reset(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k := range l.buckets {
		if k.userID == userID {
			delete(l.buckets, k)
		}
	}
}

// ResetAll clears every counter.
func (l *Limiter) ResetAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[bucketKey]*bucket)
}

// bucketLocked returns the live bucket for the key, rolling the window
// forward when it has elapsed. Caller holds l.mu.
func (l *Limiter) bucketLocked(userID string, mode model.Mode) *bucket {
	k := bucketKey{userID: userID, mode: mode}
	now := l.now()

	b, ok := l.buckets[k]
	if !ok || now.Sub(b.windowStart) >= l.limits.Window {
		b = &bucket{windowStart: now}
		l.buckets[k] = b
	}
	return b
}

func (l *Limiter) limitFor(mode model.Mode) int {
	if mode == model.ModeDeep {
		return l.limits.DeepPerWindow
	}
	return l.limits.FastPerWindow
}
