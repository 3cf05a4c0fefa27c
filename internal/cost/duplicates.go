package cost

import (
	"sort"
	"sync"
	"time"
)

// DuplicateGroup is a cluster of near-identical queries observed within the
// detector's window. Advisory data for cache-policy tuning, not a gate.
type DuplicateGroup struct {
	Representative string `json:"representative"`
	Count          int    `json:"count"`
	// PotentialSavings estimates what the redundant executions would have
	// saved had they been cache hits.
	PotentialSavings float64 `json:"potentialSavings"`
}

type observed struct {
	text        string
	fingerprint string
	seenAt      time.Time
}

// Detector keeps a rolling in-memory window of query observations and
// groups near-duplicates by fingerprint similarity.
type Detector struct {
	mu         sync.Mutex
	window     time.Duration
	maxEntries int
	threshold  float64
	savings    float64
	entries    []observed
	now        func() time.Time
}

// NewDetector creates a Detector. threshold is the minimum Jaccard
// similarity for two queries to be grouped; savingsPerHit prices each
// redundant execution.
func NewDetector(window time.Duration, maxEntries int, threshold, savingsPerHit float64) *Detector {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	return &Detector{
		window:     window,
		maxEntries: maxEntries,
		threshold:  threshold,
		savings:    savingsPerHit,
		now:        time.Now,
	}
}

// NewDetectorWithClock creates a Detector with an injected clock for tests.
func NewDetectorWithClock(window time.Duration, maxEntries int, threshold, savingsPerHit float64, now func() time.Time) *Detector {
	d := NewDetector(window, maxEntries, threshold, savingsPerHit)
	d.now = now
	return d
}

// Observe records a query and reports whether a near-duplicate already
// exists in the window. Never blocks execution decisions.
func (d *Detector) Observe(text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pruneLocked()

	fp := Fingerprint(text)
	dup := false
	for _, e := range d.entries {
		if e.fingerprint == fp || Similarity(e.text, text) >= d.threshold {
			dup = true
			break
		}
	}

	d.entries = append(d.entries, observed{text: text, fingerprint: fp, seenAt: d.now()})
	if len(d.entries) > d.maxEntries {
		d.entries = d.entries[len(d.entries)-d.maxEntries:]
	}
	return dup
}

// Report groups the current window into duplicate clusters, largest first.
// Groups of one are omitted.
func (d *Detector) Report() []DuplicateGroup {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pruneLocked()

	grouped := make([]bool, len(d.entries))
	var out []DuplicateGroup
	for i, e := range d.entries {
		if grouped[i] {
			continue
		}
		count := 1
		for j := i + 1; j < len(d.entries); j++ {
			if grouped[j] {
				continue
			}
			o := d.entries[j]
			if o.fingerprint == e.fingerprint || Similarity(e.text, o.text) >= d.threshold {
				grouped[j] = true
				count++
			}
		}
		if count > 1 {
			out = append(out, DuplicateGroup{
				Representative:   e.text,
				Count:            count,
				PotentialSavings: float64(count-1) * d.savings,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Representative < out[j].Representative
	})
	return out
}

// Len reports the number of observations currently in the window.
func (d *Detector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pruneLocked()
	return len(d.entries)
}

// pruneLocked drops observations older than the window. Caller holds d.mu.
func (d *Detector) pruneLocked() {
	if d.window <= 0 {
		return
	}
	cutoff := d.now().Add(-d.window)
	i := 0
	for i < len(d.entries) && d.entries[i].seenAt.Before(cutoff) {
		i++
	}
	if i > 0 {
		d.entries = append([]observed(nil), d.entries[i:]...)
	}
}
