// Package fetcher retrieves official documents over HTTP with polite pacing
// and browser-simulated headers, caching successful fetches by URL.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veritas-legal/research-cli/internal/cache"
	"github.com/veritas-legal/research-cli/internal/resilience"
)

// userAgents is the rotation pool for fetch requests. Scraped government
// servers reject obvious non-browser clients.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// maxAttempts bounds retries for transient failures. Each attempt waits on
// the interval gate, so back-to-back retries still pace politely.
const maxAttempts = 3

// FetchError is the typed failure for a document fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// retryable reports whether a fetch failure is worth another attempt.
func retryable(err error) bool {
	fe, ok := err.(*FetchError)
	if !ok {
		return false
	}
	if fe.StatusCode != 0 {
		return resilience.IsTransientHTTPStatus(fe.StatusCode)
	}
	return resilience.IsTransient(fe.Err)
}

// Options configures the Fetcher.
type Options struct {
	MinInterval time.Duration
	Timeout     time.Duration
	// MaxCacheEntries bounds the document cache. Zero means the default.
	MaxCacheEntries int
	// Gate overrides the default interval gate (for tests).
	Gate *IntervalGate
	// HTTPClient overrides the default client (for tests).
	HTTPClient *http.Client
}

// Fetcher downloads documents with a process-wide minimum inter-request
// interval. Successful responses are cached by URL for the process lifetime;
// official rule texts change on a yearly cadence, so no TTL is applied.
// Failed fetches are never cached.
type Fetcher struct {
	client *http.Client
	gate   *IntervalGate
	docs   *cache.Cache[*Document]
}

// Document is a fetched raw document.
type Document struct {
	URL       string
	Data      []byte
	FetchedAt time.Time
}

// New creates a Fetcher with the given options.
func New(opts Options) *Fetcher {
	if opts.MinInterval == 0 {
		opts.MinInterval = 1500 * time.Millisecond
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxCacheEntries == 0 {
		opts.MaxCacheEntries = 512
	}
	gate := opts.Gate
	if gate == nil {
		gate = NewIntervalGate(opts.MinInterval)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	docs := cache.New[*Document](cache.Config{
		Name:       "documents",
		Purpose:    "fetched official documents keyed by URL",
		MaxEntries: opts.MaxCacheEntries,
	})
	return &Fetcher{
		client: client,
		gate:   gate,
		docs:   docs,
	}
}

// Documents exposes the URL cache for registration with a cache manager.
func (f *Fetcher) Documents() *cache.Cache[*Document] {
	return f.docs
}

// Fetch retrieves the document at url, serving from the URL cache when
// possible. Cache hits bypass the interval gate entirely. Transient
// failures (connection resets, 5xx, 408, 429) are retried up to
// maxAttempts times, with every attempt pacing through the gate.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	if doc, ok := f.docs.Get(url); ok {
		zap.L().Debug("fetcher: cache hit", zap.String("url", url))
		return doc, nil
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := f.gate.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: interval wait")
		}

		doc, err := f.fetchOnce(ctx, url)
		if err == nil {
			f.docs.Put(url, doc, 0)
			f.docs.RecordLoad(time.Since(start))
			zap.L().Debug("fetcher: fetched",
				zap.String("url", url),
				zap.Int("bytes", len(doc.Data)),
				zap.Int("attempt", attempt),
			)
			return doc, nil
		}

		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		zap.L().Debug("fetcher: transient failure",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	setBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return &Document{URL: url, Data: data, FetchedAt: time.Now()}, nil
}

// Cached reports whether the URL is present in the document cache.
func (f *Fetcher) Cached(url string) bool {
	_, ok := f.docs.Get(url)
	return ok
}

// CacheSize returns the number of cached documents.
func (f *Fetcher) CacheSize() int {
	return f.docs.Len()
}

// ClearCache drops all cached documents.
func (f *Fetcher) ClearCache() {
	f.docs.Clear()
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[rand.IntN(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.google.com/")
}
