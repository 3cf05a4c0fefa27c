// Package router maps query keywords to official document sources.
package router

import (
	"strings"

	"github.com/veritas-legal/research-cli/internal/model"
)

// Router selects an ordered, deduplicated list of document sources for a
// query by matching keywords against a static table. Routing is
// deterministic: the same query text always yields the same source list.
type Router struct {
	table   *Table
	sources map[string]model.DocumentSource
}

// New creates a Router over the given table.
func New(table *Table) *Router {
	sources := make(map[string]model.DocumentSource, len(table.Sources))
	for _, s := range table.Sources {
		sources[s.ID] = s
	}
	return &Router{table: table, sources: sources}
}

// Route returns the sources whose keywords appear in the query text,
// deduplicated by source ID with first-match order preserved. If no keyword
// matches, the table's default sources are returned so the pipeline never
// runs against an empty source list.
func (r *Router) Route(queryText string) []model.DocumentSource {
	lower := strings.ToLower(queryText)

	var out []model.DocumentSource
	seen := make(map[string]bool)

	for _, entry := range r.table.Keywords {
		if !strings.Contains(lower, entry.Keyword) {
			continue
		}
		for _, id := range entry.Sources {
			if seen[id] {
				continue
			}
			src, ok := r.sources[id]
			if !ok {
				continue
			}
			seen[id] = true
			out = append(out, src)
		}
	}

	if len(out) == 0 {
		for _, id := range r.table.Defaults {
			if src, ok := r.sources[id]; ok && !seen[id] {
				seen[id] = true
				out = append(out, src)
			}
		}
	}

	return out
}

// SourceCount reports how many sources Route would fan out to for the
// query. Used by cost prediction.
func (r *Router) SourceCount(queryText string) int {
	return len(r.Route(queryText))
}

// Source returns the source with the given ID, if configured.
func (r *Router) Source(id string) (model.DocumentSource, bool) {
	s, ok := r.sources[id]
	return s, ok
}
