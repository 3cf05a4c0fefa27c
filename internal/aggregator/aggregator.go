// Package aggregator is the cost/cache shell around the retrieval pipeline.
// It runs the per-query state machine: duplicate check, cache lookup, rate
// limiting, mode selection, parallel source fan-out, merge/rank, cache store.
package aggregator

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veritas-legal/research-cli/internal/cache"
	"github.com/veritas-legal/research-cli/internal/cost"
	"github.com/veritas-legal/research-cli/internal/model"
	"github.com/veritas-legal/research-cli/internal/ratelimit"
	"github.com/veritas-legal/research-cli/internal/scorer"
	"github.com/veritas-legal/research-cli/internal/search"
	"github.com/veritas-legal/research-cli/internal/store"
	"github.com/veritas-legal/research-cli/pkg/courtlistener"
	"github.com/veritas-legal/research-cli/pkg/ecfr"
)

// Options configures an Aggregator.
type Options struct {
	// SourceTimeout bounds each source's contribution so one slow source
	// cannot stall the whole query. Defaults to 20s.
	SourceTimeout time.Duration
	// CaseLawTTL shortens the cache lifetime of results that include
	// case-law hits, which go stale faster than regulation text. Zero
	// keeps the results cache default.
	CaseLawTTL time.Duration
	// History is the optional advisory query log. May be nil.
	History store.Store
}

// Aggregator composes the search engine, the structured API clients, and
// the shell state (cache, limiter, predictor, detector).
type Aggregator struct {
	engine     *search.Engine
	caseLaw    courtlistener.Client
	regs       ecfr.Client
	limiter    *ratelimit.Limiter
	predictor  *cost.Predictor
	detector   *cost.Detector
	results    *cache.Cache[model.AggregateResult]
	history    store.Store
	timeout    time.Duration
	caseLawTTL time.Duration
}

// New creates an Aggregator. The results cache must be registered with the
// cache manager by the caller.
func New(
	engine *search.Engine,
	caseLaw courtlistener.Client,
	regs ecfr.Client,
	limiter *ratelimit.Limiter,
	predictor *cost.Predictor,
	detector *cost.Detector,
	results *cache.Cache[model.AggregateResult],
	opts Options,
) *Aggregator {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 20 * time.Second
	}
	return &Aggregator{
		engine:     engine,
		caseLaw:    caseLaw,
		regs:       regs,
		limiter:    limiter,
		predictor:  predictor,
		detector:   detector,
		results:    results,
		history:    opts.History,
		timeout:    opts.SourceTimeout,
		caseLawTTL: opts.CaseLawTTL,
	}
}

// cacheKey derives the results-cache key from the query fingerprint, the
// requested mode, and the filters that change what a source returns.
func cacheKey(q model.Query) string {
	parts := []string{cost.Fingerprint(q.Text), string(q.Mode), q.Jurisdiction}
	parts = append(parts, q.DocumentTypes...)
	if q.StartDate != nil {
		parts = append(parts, q.StartDate.Format("2006-01-02"))
	}
	if q.EndDate != nil {
		parts = append(parts, q.EndDate.Format("2006-01-02"))
	}
	return strings.Join(parts, "|")
}

// Execute runs one query through the shell. The only hard failures are a
// rate-limit rejection (resilience.RateLimitError) and every source failing
// with no cache entry to serve; all other source errors degrade to empty
// contributions recorded in the per-source status list.
func (a *Aggregator) Execute(ctx context.Context, q model.Query) (*model.AggregateResult, error) {
	start := time.Now()
	if q.Mode == "" {
		q.Mode = model.ModeFast
	}

	if a.detector != nil {
		if dup := a.detector.Observe(q.Text); dup {
			zap.L().Debug("near-duplicate query observed", zap.String("query", q.Text))
		}
	}

	key := cacheKey(q)
	if hit, ok := a.results.Get(key); ok {
		hit.CacheHit = true
		hit.Elapsed = time.Since(start)
		a.record(ctx, q, hit.PredictedUSD, true)
		return &hit, nil
	}

	if err := a.limiter.Allow(q.UserID, q.Mode); err != nil {
		return nil, err
	}

	rec := a.predictor.RecommendMode(q.Text, q.Mode)
	pred := a.predictor.Predict(q.Text, rec.Mode)

	results, statuses := a.fanOut(ctx, q, rec.Mode)

	failed := 0
	for _, st := range statuses {
		if !st.OK {
			failed++
		}
	}
	if failed == len(statuses) && len(results) == 0 {
		return nil, eris.Errorf("aggregator: all %d sources failed for query %q", len(statuses), q.Text)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].Title < results[j].Title
	})

	ar := model.AggregateResult{
		Query:        q.Text,
		Mode:         rec.Mode,
		Results:      results,
		Sources:      statuses,
		Rationale:    rec.Rationale,
		PredictedUSD: pred.USD,
		Elapsed:      time.Since(start),
	}

	a.results.Put(key, ar, a.resultTTL(results))
	a.results.RecordLoad(ar.Elapsed)
	a.record(ctx, q, pred.USD, false)

	return &ar, nil
}

// resultTTL picks the cache lifetime for a merged result set. Case-law
// hits get the shorter configured TTL since new opinions land daily.
func (a *Aggregator) resultTTL(results []model.SearchResult) time.Duration {
	if a.caseLawTTL <= 0 {
		return 0
	}
	for _, r := range results {
		if r.Type == model.SourceCaseLaw {
			return a.caseLawTTL
		}
	}
	return 0
}

// fanOut runs the mode's sources in parallel and merges successful subsets.
// Each source gets a bounded timeout; failures become degraded statuses.
func (a *Aggregator) fanOut(ctx context.Context, q model.Query, mode model.Mode) ([]model.SearchResult, []model.SourceStatus) {
	var mu sync.Mutex
	var merged []model.SearchResult
	var statuses []model.SourceStatus

	add := func(st model.SourceStatus, rs []model.SearchResult) {
		mu.Lock()
		defer mu.Unlock()
		merged = append(merged, rs...)
		statuses = append(statuses, st)
	}

	g, gctx := errgroup.WithContext(ctx)

	if mode == model.ModeDeep {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, a.timeout)
			defer cancel()

			rs, errs := a.engine.Search(sctx, q.Text)
			st := model.SourceStatus{Source: "official-documents", Configured: true, OK: true, Results: len(rs)}
			for _, err := range errs {
				zap.L().Warn("official-document source degraded", zap.Error(err))
			}
			if len(rs) == 0 && len(errs) > 0 {
				st.OK = false
				st.Error = errs[0].Error()
			}
			add(st, rs)
			return nil
		})
	}

	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, a.timeout)
		defer cancel()
		add(a.searchCaseLaw(sctx, q))
		return nil
	})

	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, a.timeout)
		defer cancel()
		add(a.searchRegulations(sctx, q))
		return nil
	})

	g.Wait() //nolint:errcheck // workers only report through statuses

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Source < statuses[j].Source })
	return merged, statuses
}

func (a *Aggregator) searchCaseLaw(ctx context.Context, q model.Query) (model.SourceStatus, []model.SearchResult) {
	st := model.SourceStatus{Source: "courtlistener", Configured: a.caseLaw.Status().Configured}
	if !st.Configured {
		// Unconfigured degrades to empty without an error.
		st.OK = true
		return st, nil
	}

	resp, err := a.caseLaw.Search(ctx, q.Text, courtlistener.Filters{
		Jurisdiction: q.Jurisdiction,
		DocTypes:     q.DocumentTypes,
		StartDate:    q.StartDate,
		EndDate:      q.EndDate,
	})
	if err != nil {
		zap.L().Warn("case-law search failed", zap.Error(err))
		st.Error = err.Error()
		return st, nil
	}

	var out []model.SearchResult
	for _, r := range resp.Results {
		sr := model.SearchResult{
			Source:         "CourtListener",
			Type:           model.SourceCaseLaw,
			Title:          r.CaseName,
			Summary:        stripMarkup(r.Snippet),
			RelevanceScore: normalizedScore(r.CaseName+"\n\n"+stripMarkup(r.Snippet), q.Text),
			URL:            r.AbsoluteURL,
			Court:          r.Court,
			Date:           r.DateFiled,
		}
		if len(r.Citations) > 0 {
			sr.Citation = r.Citations[0].String()
		}
		out = append(out, sr)
	}
	st.OK = true
	st.Results = len(out)
	return st, out
}

func (a *Aggregator) searchRegulations(ctx context.Context, q model.Query) (model.SourceStatus, []model.SearchResult) {
	st := model.SourceStatus{Source: "ecfr", Configured: a.regs.Status().Configured}

	resp, err := a.regs.Search(ctx, q.Text)
	if err != nil {
		zap.L().Warn("regulation search failed", zap.Error(err))
		st.Error = err.Error()
		return st, nil
	}

	var out []model.SearchResult
	for _, r := range resp.Results {
		title := r.Headings.Section
		if title == "" {
			title = r.Headings.Part
		}
		if title == "" {
			title = "eCFR Title " + r.Hierarchy.Title
		}
		out = append(out, model.SearchResult{
			Source:         "eCFR",
			Type:           model.SourceRegulation,
			Title:          title,
			Summary:        stripMarkup(r.FullTextExcerpt),
			RelevanceScore: normalizedScore(title+"\n\n"+stripMarkup(r.FullTextExcerpt), q.Text),
			URL:            r.DocumentURL(),
			Date:           r.StartsOn,
		})
	}
	st.OK = true
	st.Results = len(out)
	return st, out
}

// normalizedScore reuses the document heuristic so API hits rank on the
// same 0-100 scale as scraped documents.
func normalizedScore(text, query string) int {
	return scorer.Score(text, query).Score
}

// stripMarkup removes the highlight tags the search APIs embed in snippets.
var markupReplacer = strings.NewReplacer("<mark>", "", "</mark>", "", "<em>", "", "</em>", "", "<strong>", "", "</strong>", "")

func stripMarkup(s string) string {
	return strings.TrimSpace(markupReplacer.Replace(s))
}

// record appends the execution to the advisory history log. Failures are
// logged and ignored; analytics must never fail a query.
func (a *Aggregator) record(ctx context.Context, q model.Query, predictedUSD float64, cacheHit bool) {
	if a.history == nil {
		return
	}
	_, err := a.history.RecordQuery(ctx, store.QueryRecord{
		Fingerprint:  cost.Fingerprint(q.Text),
		Text:         q.Text,
		UserID:       q.UserID,
		Mode:         string(q.Mode),
		PredictedUSD: predictedUSD,
		CacheHit:     cacheHit,
	})
	if err != nil {
		zap.L().Warn("query history write failed", zap.Error(err))
	}
}
