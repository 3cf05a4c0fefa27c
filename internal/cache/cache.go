// Package cache provides named in-memory TTL caches with hit/miss
// accounting and estimated cost savings. All state is process-local and
// cleared on restart by design.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config is the static description of one cache.
type Config struct {
	Name          string        `json:"name"`
	Purpose       string        `json:"purpose"`
	TTL           time.Duration `json:"ttl"`
	MaxEntries    int           `json:"max_entries"`
	SavingsPerHit float64       `json:"savings_per_hit_usd"`
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Name             string  `json:"name"`
	Entries          int     `json:"entries"`
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	Evictions        int64   `json:"evictions"`
	HitRate          float64 `json:"hit_rate"`
	AvgLoadMillis    float64 `json:"avg_load_millis"`
	EstimatedSavings float64 `json:"estimated_savings_usd"`
}

type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
	ttl        time.Duration
	elem       *list.Element
}

// Cache is a TTL cache with an LRU bound. Entries are read-only after
// insertion aside from counter bookkeeping and eviction.
type Cache[V any] struct {
	mu  sync.Mutex
	cfg Config

	entries map[string]*entry[V]
	order   *list.List // LRU order, front = most recent

	hits      int64
	misses    int64
	evictions int64

	loadCount  int64
	loadMillis float64

	now func() time.Time
}

// New creates a cache with the given configuration.
func New[V any](cfg Config) *Cache[V] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	return &Cache[V]{
		cfg:     cfg,
		entries: make(map[string]*entry[V]),
		order:   list.New(),
		now:     time.Now,
	}
}

// NewWithClock creates a cache with an injected clock for tests.
func NewWithClock[V any](cfg Config, now func() time.Time) *Cache[V] {
	c := New[V](cfg)
	c.now = now
	return c
}

// Get returns the cached value for key and whether it was present and
// fresh. Expired entries count as misses and are evicted on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.expired(e) {
		c.removeLocked(e)
		c.evictions++
		c.misses++
		return zero, false
	}

	c.hits++
	c.order.MoveToFront(e.elem)
	return e.value, true
}

// Put inserts a value with the given TTL; ttl <= 0 uses the cache default.
// Inserting over capacity evicts the least recently used entry.
func (c *Cache[V]) Put(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeLocked(e)
	}

	e := &entry[V]{key: key, value: value, insertedAt: c.now(), ttl: ttl}
	e.elem = c.order.PushFront(e)
	c.entries[key] = e

	for len(c.entries) > c.cfg.MaxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*entry[V]))
		c.evictions++
	}
}

// RecordLoad tracks how long a cache miss took to compute, feeding the
// average-load-time statistic.
func (c *Cache[V]) RecordLoad(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadCount++
	c.loadMillis += float64(d.Milliseconds())
}

// Sweep evicts all expired entries and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, e := range c.entries {
		if c.expired(e) {
			c.removeLocked(e)
			c.evictions++
			removed++
		}
	}
	return removed
}

// Clear drops all entries. Counters are preserved; only an explicit admin
// reset or process restart zeroes them.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V])
	c.order.Init()
}

// Len returns the number of live entries, including any not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Config returns the cache's static configuration.
func (c *Cache[V]) Config() Config {
	return c.cfg
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Name:             c.cfg.Name,
		Entries:          len(c.entries),
		Hits:             c.hits,
		Misses:           c.misses,
		Evictions:        c.evictions,
		EstimatedSavings: float64(c.hits) * c.cfg.SavingsPerHit,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	if c.loadCount > 0 {
		s.AvgLoadMillis = c.loadMillis / float64(c.loadCount)
	}
	return s
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return e.ttl > 0 && c.now().Sub(e.insertedAt) > e.ttl
}

func (c *Cache[V]) removeLocked(e *entry[V]) {
	delete(c.entries, e.key)
	c.order.Remove(e.elem)
}
