package model

import "time"

// SourceType classifies where a result came from.
type SourceType string

const (
	SourceOfficialPDF SourceType = "OFFICIAL_PDF"
	SourceCaseLaw     SourceType = "CASE_LAW"
	SourceRegulation  SourceType = "REGULATION"
)

// LegalDomain tags a document source with the area of law it covers.
type LegalDomain string

const (
	DomainCriminal   LegalDomain = "criminal"
	DomainSentencing LegalDomain = "sentencing"
	DomainCivil      LegalDomain = "civil"
	DomainFamily     LegalDomain = "family"
	DomainEvidence   LegalDomain = "evidence"
	DomainConduct    LegalDomain = "professional_conduct"
	DomainProbate    LegalDomain = "probate"
	DomainContract   LegalDomain = "contract"
	DomainAppellate  LegalDomain = "appellate"
)

// DocumentSource is a named reference to one external legal-text origin.
// Static configuration data, never mutated at runtime.
type DocumentSource struct {
	ID     string      `json:"id" yaml:"id"`
	Name   string      `json:"name" yaml:"name"`
	URL    string      `json:"url" yaml:"url"`
	Domain LegalDomain `json:"domain" yaml:"domain"`
}

// SearchResult is the canonical cross-source result record. All sources are
// normalized into this shape before ranking; RelevanceScore is always in
// [0,100] and comparable across sources within a single query.
type SearchResult struct {
	Source         string     `json:"source"`
	Type           SourceType `json:"type"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary"`
	RelevanceScore int        `json:"relevance_score"`
	URL            string     `json:"url"`
	RuleNumber     string     `json:"rule_number,omitempty"`
	Citation       string     `json:"citation,omitempty"`
	Court          string     `json:"court,omitempty"`
	Date           string     `json:"date,omitempty"`
}

// CitationVerificationResult is the immutable outcome of one verification
// attempt. Re-verification produces a new result.
type CitationVerificationResult struct {
	Citation   string `json:"citation"`
	Found      bool   `json:"found"`
	CaseName   string `json:"case_name,omitempty"`
	URL        string `json:"url,omitempty"`
	SourceID   string `json:"source_id,omitempty"`
	ErrMessage string `json:"error_message,omitempty"`
}

// SourceStatus reports one source's contribution to an aggregated query.
type SourceStatus struct {
	Source     string `json:"source"`
	Configured bool   `json:"configured"`
	OK         bool   `json:"ok"`
	Results    int    `json:"results"`
	Error      string `json:"error,omitempty"`
}

// AggregateResult is the shell's response to a query: the ranked merged
// results plus cost/usage metadata.
type AggregateResult struct {
	Query        string         `json:"query"`
	Mode         Mode           `json:"mode"`
	Results      []SearchResult `json:"results"`
	Sources      []SourceStatus `json:"sources"`
	CacheHit     bool           `json:"cache_hit"`
	Rationale    string         `json:"rationale,omitempty"`
	PredictedUSD float64        `json:"predicted_usd"`
	Elapsed      time.Duration  `json:"elapsed"`
}
