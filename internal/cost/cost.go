// Package cost predicts per-query spend, recommends execution modes, and
// detects near-duplicate queries for cache-policy tuning.
package cost

import (
	"fmt"
	"sort"

	"github.com/veritas-legal/research-cli/internal/model"
	"github.com/veritas-legal/research-cli/internal/scorer"
)

// Rates holds the per-mode pricing model.
type Rates struct {
	FastBase      float64 `yaml:"fast_base" mapstructure:"fast_base"`
	DeepBase      float64 `yaml:"deep_base" mapstructure:"deep_base"`
	PerSource     float64 `yaml:"per_source" mapstructure:"per_source"`
	PerKiloChars  float64 `yaml:"per_kilo_chars" mapstructure:"per_kilo_chars"`
	SavingsPerHit float64 `yaml:"savings_per_hit" mapstructure:"savings_per_hit"`
}

// DefaultRates returns the stock pricing model. Deep queries fan out to
// scraped PDF sources and verification, so their base is much higher.
func DefaultRates() Rates {
	return Rates{
		FastBase:      0.002,
		DeepBase:      0.045,
		PerSource:     0.008,
		PerKiloChars:  0.001,
		SavingsPerHit: 0.05,
	}
}

// Prediction is the estimated spend for one query in one mode.
type Prediction struct {
	Mode           model.Mode `json:"mode"`
	USD            float64    `json:"usd"`
	EstimatedCalls int        `json:"estimatedCalls"`
	Sources        int        `json:"sources"`
}

// Recommendation carries a mode choice plus the reasoning behind it. The
// rationale is always populated so callers can surface why the requested
// mode was or was not kept.
type Recommendation struct {
	Mode      model.Mode `json:"mode"`
	Requested model.Mode `json:"requested"`
	Rationale string     `json:"rationale"`
}

// SourceCounter reports how many document sources a query would fan out to.
// Satisfied by router.Router.
type SourceCounter interface {
	SourceCount(query string) int
}

// Predictor derives cost estimates from the static rate table and the
// query's expected source fan-out.
type Predictor struct {
	rates   Rates
	counter SourceCounter
}

// NewPredictor creates a Predictor. counter may be nil, in which case a
// fixed fan-out of 2 is assumed.
func NewPredictor(rates Rates, counter SourceCounter) *Predictor {
	return &Predictor{rates: rates, counter: counter}
}

// Rates returns the pricing model in use.
func (p *Predictor) Rates() Rates {
	return p.rates
}

// Predict estimates the cost of running query in the given mode. Fast mode
// only consults the structured APIs; deep mode adds the per-source scraped
// document fan-out and verification overhead.
func (p *Predictor) Predict(query string, mode model.Mode) Prediction {
	sources := 2
	if p.counter != nil {
		sources = p.counter.SourceCount(query)
	}

	lengthCost := float64(len(query)) / 1000.0 * p.rates.PerKiloChars

	var usd float64
	var calls int
	switch mode {
	case model.ModeDeep:
		usd = p.rates.DeepBase + float64(sources)*p.rates.PerSource + lengthCost
		// Structured APIs plus one fetch per routed source.
		calls = 2 + sources
	default:
		usd = p.rates.FastBase + lengthCost
		calls = 2
	}

	return Prediction{
		Mode:           mode,
		USD:            usd,
		EstimatedCalls: calls,
		Sources:        sources,
	}
}

// Compare returns predictions for every mode, cheapest first.
func (p *Predictor) Compare(query string) []Prediction {
	preds := []Prediction{
		p.Predict(query, model.ModeFast),
		p.Predict(query, model.ModeDeep),
	}
	sort.Slice(preds, func(i, j int) bool { return preds[i].USD < preds[j].USD })
	return preds
}

// deepSignals are terms indicating the caller needs primary-document depth
// that the structured APIs alone cannot provide.
var deepSignals = []string{"precedent", "case law", "full text", "verbatim", "controlling authority"}

// RecommendMode suggests a mode for the query. It may recommend a cheaper
// mode than requested when the query looks answerable from lighter sources,
// or a deeper one when the cheap path is judged insufficient. The caller
// decides whether to honor it; the requested mode is never silently replaced.
func (p *Predictor) RecommendMode(query string, requested model.Mode) Recommendation {
	rec := Recommendation{Mode: requested, Requested: requested}

	if rule, ok := scorer.RuleReference(query); ok {
		if requested == model.ModeFast {
			rec.Mode = model.ModeDeep
			rec.Rationale = fmt.Sprintf("explicit reference to Rule %s requires the official rule text, which only deep mode retrieves", rule)
			return rec
		}
		rec.Rationale = fmt.Sprintf("deep mode confirmed: Rule %s resolution needs the scraped official documents", rule)
		return rec
	}

	if requested == model.ModeDeep {
		if len(scorer.Keywords(query)) <= 2 && !containsAnyFold(query, deepSignals) {
			fast := p.Predict(query, model.ModeFast)
			deep := p.Predict(query, model.ModeDeep)
			rec.Mode = model.ModeFast
			rec.Rationale = fmt.Sprintf("broad query is answerable from structured APIs; fast mode saves an estimated $%.3f", deep.USD-fast.USD)
			return rec
		}
		rec.Rationale = "deep mode kept: query carries enough specificity to benefit from document-level scoring"
		return rec
	}

	if containsAnyFold(query, deepSignals) {
		rec.Mode = model.ModeDeep
		rec.Rationale = "query asks for primary-authority depth that fast mode's API summaries do not provide"
		return rec
	}

	rec.Rationale = "fast mode kept: structured API coverage is sufficient for this query"
	return rec
}

func containsAnyFold(s string, terms []string) bool {
	for _, t := range terms {
		if containsFold(s, t) {
			return true
		}
	}
	return false
}
