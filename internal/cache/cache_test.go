package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *tickClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCache(ttl time.Duration, maxEntries int, clock *tickClock) *Cache[string] {
	return NewWithClock[string](Config{
		Name:          "test",
		Purpose:       "unit tests",
		TTL:           ttl,
		MaxEntries:    maxEntries,
		SavingsPerHit: 0.05,
	}, clock.now)
}

func TestGetPutHitMiss(t *testing.T) {
	clock := &tickClock{t: time.Unix(1000, 0)}
	c := newTestCache(time.Hour, 10, clock)

	_, ok := c.Get("q1")
	assert.False(t, ok)

	c.Put("q1", "result", 0)
	got, ok := c.Get("q1")
	require.True(t, ok)
	assert.Equal(t, "result", got)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.InDelta(t, 0.5, s.HitRate, 1e-9)
	assert.InDelta(t, 0.05, s.EstimatedSavings, 1e-9)
}

func TestTTLExpiry(t *testing.T) {
	clock := &tickClock{t: time.Unix(1000, 0)}
	c := newTestCache(time.Hour, 10, clock)

	c.Put("q", "v", 0)
	clock.advance(59 * time.Minute)
	_, ok := c.Get("q")
	assert.True(t, ok)

	clock.advance(2 * time.Minute)
	_, ok = c.Get("q")
	assert.False(t, ok)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Evictions)
}

func TestPerEntryTTLOverride(t *testing.T) {
	clock := &tickClock{t: time.Unix(1000, 0)}
	c := newTestCache(time.Hour, 10, clock)

	c.Put("short", "v", time.Minute)
	clock.advance(2 * time.Minute)
	_, ok := c.Get("short")
	assert.False(t, ok)
}

func TestLRUEviction(t *testing.T) {
	clock := &tickClock{t: time.Unix(1000, 0)}
	c := newTestCache(time.Hour, 3, clock)

	c.Put("a", "1", 0)
	c.Put("b", "2", 0)
	c.Put("c", "3", 0)

	// Touch "a" so "b" is the least recently used.
	_, _ = c.Get("a")
	c.Put("d", "4", 0)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, c.Len())
}

func TestSweep(t *testing.T) {
	clock := &tickClock{t: time.Unix(1000, 0)}
	c := newTestCache(time.Minute, 10, clock)

	c.Put("a", "1", 0)
	c.Put("b", "2", 0)
	c.Put("c", "3", time.Hour)

	clock.advance(5 * time.Minute)
	removed := c.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())
}

func TestRecordLoad(t *testing.T) {
	clock := &tickClock{t: time.Unix(1000, 0)}
	c := newTestCache(time.Hour, 10, clock)

	c.RecordLoad(100 * time.Millisecond)
	c.RecordLoad(300 * time.Millisecond)

	assert.InDelta(t, 200, c.Stats().AvgLoadMillis, 1e-9)
}

func TestClearPreservesCounters(t *testing.T) {
	clock := &tickClock{t: time.Unix(1000, 0)}
	c := newTestCache(time.Hour, 10, clock)

	c.Put("a", "1", 0)
	_, _ = c.Get("a")
	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestConcurrentAccess(t *testing.T) {
	clock := &tickClock{t: time.Unix(1000, 0)}
	c := newTestCache(time.Hour, 100, clock)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				key := fmt.Sprintf("k%d", (i*100+j)%50)
				c.Put(key, "v", 0)
				_, _ = c.Get(key)
			}
		}()
	}
	wg.Wait()

	s := c.Stats()
	assert.Equal(t, int64(800), s.Hits+s.Misses)
}

func TestManager(t *testing.T) {
	clock := &tickClock{t: time.Unix(1000, 0)}
	m := NewManager()

	results := NewWithClock[string](Config{Name: "results", TTL: time.Hour, MaxEntries: 10}, clock.now)
	docs := NewWithClock[string](Config{Name: "documents", TTL: 0, MaxEntries: 10}, clock.now)
	m.Register(results)
	m.Register(docs)

	results.Put("q", "v", 0)
	docs.Put("u", "v", 0)

	stats := m.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "documents", stats[0].Name)
	assert.Equal(t, "results", stats[1].Name)

	require.True(t, m.Clear("results"))
	assert.Equal(t, 0, results.Len())
	assert.Equal(t, 1, docs.Len())

	assert.False(t, m.Clear("nope"))

	m.ClearAll()
	assert.Equal(t, 0, docs.Len())

	configs := m.Configs()
	require.Len(t, configs, 2)
	assert.Equal(t, "documents", configs[0].Name)
}
