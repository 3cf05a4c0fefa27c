// Package search answers queries against scraped official sources by
// composing routing, fetch, extraction, and scoring.
package search

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veritas-legal/research-cli/internal/extract"
	"github.com/veritas-legal/research-cli/internal/fetcher"
	"github.com/veritas-legal/research-cli/internal/model"
	"github.com/veritas-legal/research-cli/internal/resilience"
	"github.com/veritas-legal/research-cli/internal/router"
	"github.com/veritas-legal/research-cli/internal/scorer"
)

// Engine runs a query against the routed official-document sources.
type Engine struct {
	router        *router.Router
	fetcher       *fetcher.Fetcher
	maxConcurrent int
}

// NewEngine creates an Engine. maxConcurrent bounds parallel source fetches.
func NewEngine(r *router.Router, f *fetcher.Fetcher, maxConcurrent int) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Engine{router: r, fetcher: f, maxConcurrent: maxConcurrent}
}

// Search fetches, extracts, and scores each routed source concurrently.
// A failing source degrades to no contribution: its error is logged with
// source identity and collected for the caller's side channel, never
// propagated as a hard failure.
func (e *Engine) Search(ctx context.Context, query string) ([]model.SearchResult, []error) {
	sources := e.router.Route(query)

	var (
		mu      sync.Mutex
		results []model.SearchResult
		degrade []error
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for _, src := range sources {
		g.Go(func() error {
			res, err := e.searchSource(gCtx, src, query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				zap.L().Warn("search: source degraded",
					zap.String("source", src.ID),
					zap.String("class", string(resilience.Classify(err))),
					zap.Error(err),
				)
				degrade = append(degrade, err)
				return nil
			}
			results = append(results, res)
			return nil
		})
	}
	_ = g.Wait()

	return results, degrade
}

// searchSource produces one scored result for a single source, substituting
// the static fallback text when the fetch fails for a known source.
func (e *Engine) searchSource(ctx context.Context, src model.DocumentSource, query string) (model.SearchResult, error) {
	text, err := e.sourceText(ctx, src)
	if err != nil {
		return model.SearchResult{}, err
	}

	match := scorer.Score(text, query)

	title := src.Name
	if match.RuleNumber != "" {
		title = src.Name + ", Rule " + match.RuleNumber
	}

	return model.SearchResult{
		Source:         src.Name,
		Type:           model.SourceOfficialPDF,
		Title:          title,
		Summary:        summarize(match.Text),
		RelevanceScore: match.Score,
		URL:            src.URL,
		RuleNumber:     match.RuleNumber,
	}, nil
}

func (e *Engine) sourceText(ctx context.Context, src model.DocumentSource) (string, error) {
	doc, err := e.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		if text, ok := fallbackText(src.ID); ok {
			zap.L().Info("search: using fallback document",
				zap.String("source", src.ID),
				zap.Error(err),
			)
			return text, nil
		}
		class := resilience.ClassSourceUnavailable
		if resilience.IsTimeout(err) {
			class = resilience.ClassTimeout
		}
		return "", resilience.NewSourceError(src.ID, class, err)
	}

	text, err := extract.Text(doc.Data)
	if err != nil {
		if fb, ok := fallbackText(src.ID); ok {
			return fb, nil
		}
		return "", resilience.NewSourceError(src.ID, resilience.ClassExtraction, err)
	}
	return text, nil
}

// summarize trims a matched fragment down to snippet size.
func summarize(text string) string {
	const maxLen = 600
	text = strings.TrimSpace(text)
	if len(text) <= maxLen {
		return text
	}
	cut := text[:maxLen]
	if idx := strings.LastIndexByte(cut, ' '); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
