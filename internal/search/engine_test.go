package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-legal/research-cli/internal/fetcher"
	"github.com/veritas-legal/research-cli/internal/model"
	"github.com/veritas-legal/research-cli/internal/resilience"
	"github.com/veritas-legal/research-cli/internal/router"
)

func testFetcher(client *http.Client) *fetcher.Fetcher {
	return fetcher.New(fetcher.Options{
		MinInterval: time.Millisecond,
		HTTPClient:  client,
	})
}

func testTable(url string) *router.Table {
	return &router.Table{
		Sources: []model.DocumentSource{
			{ID: "frcrmp", Name: "Federal Rules of Criminal Procedure", URL: url + "/frcrmp.pdf", Domain: model.DomainCriminal},
			{ID: "obscure", Name: "Obscure Source", URL: url + "/obscure.pdf", Domain: model.DomainCivil},
		},
		Keywords: []router.KeywordEntry{
			{Keyword: "criminal", Sources: []string{"frcrmp", "obscure"}},
		},
		Defaults: []string{"frcrmp"},
	}
}

func TestSearchFallbackOnFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	e := NewEngine(router.New(testTable(srv.URL)), testFetcher(srv.Client()), 2)

	results, degraded := e.Search(context.Background(), "criminal jury instructions")

	// frcrmp has a static fallback document; obscure does not and degrades.
	require.Len(t, results, 1)
	assert.Equal(t, model.SourceOfficialPDF, results[0].Type)
	assert.Equal(t, "Federal Rules of Criminal Procedure", results[0].Source)
	assert.NotEmpty(t, results[0].Summary)
	assert.GreaterOrEqual(t, results[0].RelevanceScore, 0)
	assert.LessOrEqual(t, results[0].RelevanceScore, 100)

	require.Len(t, degraded, 1)
	var se *resilience.SourceError
	require.ErrorAs(t, degraded[0], &se)
	assert.Equal(t, "obscure", se.Source)
	assert.Equal(t, resilience.ClassSourceUnavailable, se.Class)
}

func TestSearchRuleExtractionFromFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewEngine(router.New(testTable(srv.URL)), testFetcher(srv.Client()), 2)

	results, _ := e.Search(context.Background(), "criminal Rule 30")
	require.NotEmpty(t, results)

	var ruleHit *model.SearchResult
	for i := range results {
		if results[i].RuleNumber == "30" {
			ruleHit = &results[i]
		}
	}
	require.NotNil(t, ruleHit, "expected an exact Rule 30 extraction")
	assert.Equal(t, 95, ruleHit.RelevanceScore)
	assert.Contains(t, ruleHit.Title, "Rule 30")
	assert.Contains(t, ruleHit.Summary, "Jury Instructions")
}

func TestSearchExtractionFailureDegrades(t *testing.T) {
	// Server responds 200 with non-PDF bytes: fetch succeeds, extraction
	// fails, and only sources with fallbacks contribute.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>definitely not a pdf</html>"))
	}))
	defer srv.Close()

	e := NewEngine(router.New(testTable(srv.URL)), testFetcher(srv.Client()), 2)

	results, degraded := e.Search(context.Background(), "criminal procedure")
	require.Len(t, results, 1)
	require.Len(t, degraded, 1)

	var se *resilience.SourceError
	require.ErrorAs(t, degraded[0], &se)
	assert.Equal(t, resilience.ClassExtraction, se.Class)
}

func TestSearchAllSourcesFailedReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	table := &router.Table{
		Sources: []model.DocumentSource{
			{ID: "a", Name: "A", URL: srv.URL + "/a.pdf", Domain: model.DomainCivil},
			{ID: "b", Name: "B", URL: srv.URL + "/b.pdf", Domain: model.DomainCivil},
		},
		Keywords: []router.KeywordEntry{{Keyword: "civil", Sources: []string{"a", "b"}}},
		Defaults: []string{"a"},
	}
	e := NewEngine(router.New(table), testFetcher(srv.Client()), 2)

	results, degraded := e.Search(context.Background(), "civil claim")
	assert.Empty(t, results)
	assert.Len(t, degraded, 2)
}

func TestSummarizeTruncatesAtWordBoundary(t *testing.T) {
	long := ""
	for range 200 {
		long += "word "
	}
	s := summarize(long)
	assert.LessOrEqual(t, len(s), 603)
	assert.True(t, strings.HasSuffix(s, "…"))
}
