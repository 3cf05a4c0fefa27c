package aggregator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-legal/research-cli/internal/cache"
	"github.com/veritas-legal/research-cli/internal/cost"
	"github.com/veritas-legal/research-cli/internal/fetcher"
	"github.com/veritas-legal/research-cli/internal/model"
	"github.com/veritas-legal/research-cli/internal/ratelimit"
	"github.com/veritas-legal/research-cli/internal/resilience"
	"github.com/veritas-legal/research-cli/internal/router"
	"github.com/veritas-legal/research-cli/internal/search"
	"github.com/veritas-legal/research-cli/pkg/courtlistener"
	"github.com/veritas-legal/research-cli/pkg/ecfr"
)

type fakeCaseLaw struct {
	configured  bool
	calls       int
	lastFilters courtlistener.Filters
	resp        *courtlistener.SearchResponse
	err         error
}

func (f *fakeCaseLaw) Search(ctx context.Context, query string, filters courtlistener.Filters) (*courtlistener.SearchResponse, error) {
	f.calls++
	f.lastFilters = filters
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &courtlistener.SearchResponse{}, nil
}

func (f *fakeCaseLaw) Lookup(ctx context.Context, citation string) (*courtlistener.LookupResult, error) {
	return &courtlistener.LookupResult{}, nil
}

func (f *fakeCaseLaw) Status() courtlistener.Status {
	return courtlistener.Status{Name: "CourtListener", Configured: f.configured}
}

type fakeRegs struct {
	calls int
	resp  *ecfr.SearchResponse
	err   error
}

func (f *fakeRegs) Search(ctx context.Context, query string, opts ...ecfr.SearchOption) (*ecfr.SearchResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &ecfr.SearchResponse{}, nil
}

func (f *fakeRegs) Status() ecfr.Status {
	return ecfr.Status{Name: "eCFR", Configured: true}
}

func caseLawFixture() *courtlistener.SearchResponse {
	return &courtlistener.SearchResponse{
		Count: 2,
		Results: []courtlistener.Result{
			{
				CaseName:    "Miranda v. Arizona",
				Citations:   []courtlistener.Citation{{Volume: 384, Reporter: "U.S.", Page: "436"}},
				Court:       "Supreme Court of the United States",
				DateFiled:   "1966-06-13",
				Snippet:     "custodial interrogation warnings before <mark>criminal</mark> questioning",
				AbsoluteURL: "https://www.courtlistener.com/opinion/107252/miranda-v-arizona/",
			},
			{
				CaseName:    "Strickland v. Washington",
				Court:       "Supreme Court of the United States",
				DateFiled:   "1984-05-14",
				Snippet:     "ineffective assistance of counsel standard",
				AbsoluteURL: "https://www.courtlistener.com/opinion/111170/strickland-v-washington/",
			},
		},
	}
}

func regsFixture() *ecfr.SearchResponse {
	return &ecfr.SearchResponse{
		Results: []ecfr.Result{
			{
				StartsOn:        "2024-01-01",
				Hierarchy:       ecfr.Hierarchy{Title: "28", Section: "28.1"},
				Headings:        ecfr.Headings{Section: "Appointment of counsel"},
				FullTextExcerpt: "procedures governing appointment of counsel in criminal matters",
			},
		},
	}
}

type testShell struct {
	agg     *Aggregator
	caseLaw *fakeCaseLaw
	regs    *fakeRegs
	results *cache.Cache[model.AggregateResult]
	limiter *ratelimit.Limiter
}

func newTestShell(t *testing.T, engine *search.Engine) *testShell {
	t.Helper()

	cl := &fakeCaseLaw{configured: true, resp: caseLawFixture()}
	rg := &fakeRegs{resp: regsFixture()}
	limiter := ratelimit.New(ratelimit.Limits{FastPerWindow: 10, DeepPerWindow: 10, Window: time.Hour})
	predictor := cost.NewPredictor(cost.DefaultRates(), nil)
	detector := cost.NewDetector(time.Hour, 100, 0.6, 0.05)
	results := cache.New[model.AggregateResult](cache.Config{
		Name: "results", Purpose: "aggregated query results", TTL: time.Hour, MaxEntries: 100,
	})

	return &testShell{
		agg:     New(engine, cl, rg, limiter, predictor, detector, results, Options{}),
		caseLaw: cl,
		regs:    rg,
		results: results,
		limiter: limiter,
	}
}

func TestExecuteFastMergesAndRanks(t *testing.T) {
	sh := newTestShell(t, nil)

	ar, err := sh.agg.Execute(context.Background(), model.Query{
		Text: "custodial interrogation warnings", UserID: "alice", Mode: model.ModeFast,
	})
	require.NoError(t, err)

	assert.Equal(t, model.ModeFast, ar.Mode)
	assert.False(t, ar.CacheHit)
	assert.NotEmpty(t, ar.Rationale)
	assert.Greater(t, ar.PredictedUSD, 0.0)
	require.Len(t, ar.Results, 3)

	for i := 1; i < len(ar.Results); i++ {
		assert.GreaterOrEqual(t, ar.Results[i-1].RelevanceScore, ar.Results[i].RelevanceScore)
	}
	for _, r := range ar.Results {
		assert.GreaterOrEqual(t, r.RelevanceScore, 0)
		assert.LessOrEqual(t, r.RelevanceScore, 100)
	}

	require.Len(t, ar.Sources, 2)
	assert.Equal(t, "courtlistener", ar.Sources[0].Source)
	assert.Equal(t, "ecfr", ar.Sources[1].Source)
	assert.True(t, ar.Sources[0].OK)
	assert.True(t, ar.Sources[1].OK)
}

func TestExecuteNormalizesResults(t *testing.T) {
	sh := newTestShell(t, nil)

	ar, err := sh.agg.Execute(context.Background(), model.Query{
		Text: "custodial interrogation", UserID: "alice", Mode: model.ModeFast,
	})
	require.NoError(t, err)

	var miranda, reg *model.SearchResult
	for i := range ar.Results {
		switch ar.Results[i].Title {
		case "Miranda v. Arizona":
			miranda = &ar.Results[i]
		case "Appointment of counsel":
			reg = &ar.Results[i]
		}
	}

	require.NotNil(t, miranda)
	assert.Equal(t, model.SourceCaseLaw, miranda.Type)
	assert.Equal(t, "384 U.S. 436", miranda.Citation)
	assert.NotContains(t, miranda.Summary, "<mark>")
	assert.Equal(t, "1966-06-13", miranda.Date)

	require.NotNil(t, reg)
	assert.Equal(t, model.SourceRegulation, reg.Type)
	assert.Equal(t, "https://www.ecfr.gov/current/title-28/section-28.1", reg.URL)
}

func TestExecuteCacheHitSkipsSources(t *testing.T) {
	sh := newTestShell(t, nil)
	q := model.Query{Text: "custodial interrogation", UserID: "alice", Mode: model.ModeFast}

	first, err := sh.agg.Execute(context.Background(), q)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := sh.agg.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)

	// No downstream calls on the cached path.
	assert.Equal(t, 1, sh.caseLaw.calls)
	assert.Equal(t, 1, sh.regs.calls)

	stats := sh.results.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestExecuteRateLimitRejectsBeforeSources(t *testing.T) {
	sh := newTestShell(t, nil)
	sh.limiter.ResetAll()
	limited := ratelimit.New(ratelimit.Limits{FastPerWindow: 1, DeepPerWindow: 1, Window: time.Hour})
	sh.agg.limiter = limited

	_, err := sh.agg.Execute(context.Background(), model.Query{Text: "first query", UserID: "alice", Mode: model.ModeFast})
	require.NoError(t, err)

	_, err = sh.agg.Execute(context.Background(), model.Query{Text: "second distinct query", UserID: "alice", Mode: model.ModeFast})
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimited(err))

	// Only the first query reached the sources.
	assert.Equal(t, 1, sh.caseLaw.calls)
	assert.Equal(t, 1, sh.regs.calls)
}

func TestExecuteAllSourcesFailedIsHardFailure(t *testing.T) {
	sh := newTestShell(t, nil)
	sh.caseLaw.err = assert.AnError
	sh.regs.err = assert.AnError

	_, err := sh.agg.Execute(context.Background(), model.Query{Text: "anything at all", UserID: "alice", Mode: model.ModeFast})
	require.Error(t, err)
	assert.False(t, resilience.IsRateLimited(err))
}

func TestExecuteSingleSourceFailureDegrades(t *testing.T) {
	sh := newTestShell(t, nil)
	sh.caseLaw.err = assert.AnError

	ar, err := sh.agg.Execute(context.Background(), model.Query{Text: "custodial interrogation", UserID: "alice", Mode: model.ModeFast})
	require.NoError(t, err)
	require.Len(t, ar.Results, 1)

	require.Len(t, ar.Sources, 2)
	assert.False(t, ar.Sources[0].OK)
	assert.NotEmpty(t, ar.Sources[0].Error)
	assert.True(t, ar.Sources[1].OK)
}

func TestExecuteUnconfiguredCaseLawDegradesQuietly(t *testing.T) {
	sh := newTestShell(t, nil)
	sh.caseLaw.configured = false

	ar, err := sh.agg.Execute(context.Background(), model.Query{Text: "custodial interrogation", UserID: "alice", Mode: model.ModeFast})
	require.NoError(t, err)
	require.Len(t, ar.Results, 1)

	assert.False(t, ar.Sources[0].Configured)
	assert.True(t, ar.Sources[0].OK)
	assert.Empty(t, ar.Sources[0].Error)
	assert.Equal(t, 0, sh.caseLaw.calls)
}

func TestExecuteDeepIncludesOfficialDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	table := &router.Table{
		Sources: []model.DocumentSource{
			{ID: "frcrmp", Name: "Federal Rules of Criminal Procedure", URL: srv.URL + "/frcrmp.pdf", Domain: model.DomainCriminal},
		},
		Keywords: []router.KeywordEntry{{Keyword: "criminal", Sources: []string{"frcrmp"}}},
		Defaults: []string{"frcrmp"},
	}
	f := fetcher.New(fetcher.Options{MinInterval: time.Millisecond, HTTPClient: srv.Client()})
	engine := search.NewEngine(router.New(table), f, 2)

	sh := newTestShell(t, engine)

	// The blocked fetch falls back to the static rule text.
	ar, err := sh.agg.Execute(context.Background(), model.Query{
		Text: "criminal Rule 30 jury instructions", UserID: "alice", Mode: model.ModeDeep,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ModeDeep, ar.Mode)

	var official *model.SearchResult
	for i := range ar.Results {
		if ar.Results[i].Type == model.SourceOfficialPDF {
			official = &ar.Results[i]
		}
	}
	require.NotNil(t, official)
	assert.Equal(t, "30", official.RuleNumber)
	assert.Equal(t, 95, official.RelevanceScore)

	require.Len(t, ar.Sources, 3)
	assert.Equal(t, "courtlistener", ar.Sources[0].Source)
	assert.Equal(t, "ecfr", ar.Sources[1].Source)
	assert.Equal(t, "official-documents", ar.Sources[2].Source)
}

func TestExecuteFastModeSkipsEngine(t *testing.T) {
	// nil engine: fast mode must never touch the official-document path.
	sh := newTestShell(t, nil)

	ar, err := sh.agg.Execute(context.Background(), model.Query{
		Text: "custodial interrogation", UserID: "alice", Mode: model.ModeFast,
	})
	require.NoError(t, err)
	for _, st := range ar.Sources {
		assert.NotEqual(t, "official-documents", st.Source)
	}
}

func TestCacheKeyIncludesFilters(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	a := model.Query{Text: "What is Rule 30?", Mode: model.ModeFast}
	b := model.Query{Text: "what is rule 30", Mode: model.ModeFast}
	c := model.Query{Text: "what is rule 30", Mode: model.ModeDeep}
	d := model.Query{Text: "what is rule 30", Mode: model.ModeFast, StartDate: &start}
	e := model.Query{Text: "what is rule 30", Mode: model.ModeFast, DocumentTypes: []string{"docket"}}

	assert.Equal(t, cacheKey(a), cacheKey(b))
	assert.NotEqual(t, cacheKey(b), cacheKey(c))
	assert.NotEqual(t, cacheKey(b), cacheKey(d))
	assert.NotEqual(t, cacheKey(b), cacheKey(e))
}

func TestExecutePassesDocumentTypes(t *testing.T) {
	sh := newTestShell(t, nil)

	_, err := sh.agg.Execute(context.Background(), model.Query{
		Text: "custodial interrogation", UserID: "alice", Mode: model.ModeFast,
		DocumentTypes: []string{"docket"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"docket"}, sh.caseLaw.lastFilters.DocTypes)
}

func TestCaseLawResultsExpireSooner(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	newShell := func(cl *fakeCaseLaw) *Aggregator {
		results := cache.NewWithClock[model.AggregateResult](cache.Config{
			Name: "results", Purpose: "aggregated query results", TTL: 24 * time.Hour, MaxEntries: 100,
		}, func() time.Time { return now })
		limiter := ratelimit.New(ratelimit.Limits{FastPerWindow: 10, DeepPerWindow: 10, Window: 48 * time.Hour})
		predictor := cost.NewPredictor(cost.DefaultRates(), nil)
		return New(nil, cl, &fakeRegs{resp: regsFixture()}, limiter, predictor, nil, results, Options{
			CaseLawTTL: 6 * time.Hour,
		})
	}

	// A result set with case-law hits ages out on the shorter lifetime.
	withCases := &fakeCaseLaw{configured: true, resp: caseLawFixture()}
	agg := newShell(withCases)
	q := model.Query{Text: "custodial interrogation", UserID: "alice", Mode: model.ModeFast}

	first, err := agg.Execute(context.Background(), q)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	now = now.Add(7 * time.Hour)
	second, err := agg.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, second.CacheHit)
	assert.Equal(t, 2, withCases.calls)

	// Regulation-only results keep the default lifetime.
	now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	regsOnly := &fakeCaseLaw{configured: false}
	agg = newShell(regsOnly)

	first, err = agg.Execute(context.Background(), q)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	now = now.Add(7 * time.Hour)
	second, err = agg.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
}
