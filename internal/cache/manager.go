package cache

import (
	"sort"
	"sync"
)

// Instance is the uniform administrative view over caches of any value
// type, as exposed by the Manager.
type Instance interface {
	Stats() Stats
	Config() Config
	Clear()
	Sweep() int
}

// Manager registers named caches and exposes the administration surface:
// per-cache statistics, clear-one, clear-all, and configuration reads.
type Manager struct {
	mu     sync.RWMutex
	caches map[string]Instance
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{caches: make(map[string]Instance)}
}

// Register adds a cache under its configured name. Re-registering a name
// replaces the previous instance.
func (m *Manager) Register(c Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[c.Config().Name] = c
}

// Get returns the named cache instance.
func (m *Manager) Get(name string) (Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.caches[name]
	return c, ok
}

// Stats returns snapshots for all caches, sorted by name.
func (m *Manager) Stats() []Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Stats, 0, len(m.caches))
	for _, c := range m.caches {
		out = append(out, c.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Configs returns the static configuration of all caches, sorted by name.
func (m *Manager) Configs() []Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Config, 0, len(m.caches))
	for _, c := range m.caches {
		out = append(out, c.Config())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clear empties the named cache. Returns false if no such cache exists.
func (m *Manager) Clear(name string) bool {
	m.mu.RLock()
	c, ok := m.caches[name]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	c.Clear()
	return true
}

// ClearAll empties every registered cache.
func (m *Manager) ClearAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.caches {
		c.Clear()
	}
}

// SweepAll evicts expired entries from every cache and returns the total
// number removed.
func (m *Manager) SweepAll() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, c := range m.caches {
		total += c.Sweep()
	}
	return total
}
