package fetcher

import (
	"context"
	"sync"
	"time"
)

// IntervalGate enforces a minimum spacing between requests process-wide.
// It is a leaky bucket of size one: a caller may proceed only when the
// configured interval has elapsed since the previous caller was released.
//
// The clock and sleep functions are injectable so tests can run without
// real waiting. The mutex guards only the last-release bookkeeping; the
// blocking sleep happens outside the lock, scoped to the calling goroutine.
type IntervalGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewIntervalGate creates a gate with the given minimum interval.
func NewIntervalGate(interval time.Duration) *IntervalGate {
	return &IntervalGate{
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// NewIntervalGateWithClock creates a gate with injected time functions.
func NewIntervalGateWithClock(interval time.Duration, now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *IntervalGate {
	return &IntervalGate{interval: interval, now: now, sleep: sleep}
}

// Wait blocks the calling goroutine until its reserved slot arrives, or the
// context is cancelled. Slots are claimed atomically, so concurrent callers
// are serialized at interval spacing even though they sleep independently.
func (g *IntervalGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	now := g.now()
	slot := g.last.Add(g.interval)
	if slot.Before(now) {
		slot = now
	}
	g.last = slot
	g.mu.Unlock()

	if wait := slot.Sub(now); wait > 0 {
		return g.sleep(ctx, wait)
	}
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
