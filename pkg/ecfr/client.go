// Package ecfr provides a client for the eCFR federal-regulation search API.
package ecfr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the eCFR search operations.
type Client interface {
	// Search runs a full-text regulation search.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
	// Status reports configuration state. The eCFR API needs no credential,
	// so a constructed client is always configured.
	Status() Status
}

// Status describes client configuration state.
type Status struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// SearchResponse is the parsed search API response.
type SearchResponse struct {
	Results []Result `json:"results"`
	Meta    Meta     `json:"meta"`
}

// Meta holds result-set metadata.
type Meta struct {
	TotalCount int `json:"total_count"`
}

// Result is a single regulation search hit.
type Result struct {
	StartsOn         string    `json:"starts_on"`
	Hierarchy        Hierarchy `json:"hierarchy"`
	HierarchyHeading string    `json:"hierarchy_headings,omitempty"`
	Headings         Headings  `json:"headings"`
	FullTextExcerpt  string    `json:"full_text_excerpt"`
	Score            float64   `json:"score"`
}

// Hierarchy locates a hit within the CFR structure.
type Hierarchy struct {
	Title   string `json:"title"`
	Part    string `json:"part"`
	Section string `json:"section"`
}

// Headings carries the display headings for a hit.
type Headings struct {
	Title   string `json:"title"`
	Part    string `json:"part"`
	Section string `json:"section"`
}

// DocumentURL constructs the human-facing eCFR URL for a hit; the API does
// not supply one directly.
func (r Result) DocumentURL() string {
	if r.Hierarchy.Title == "" {
		return "https://www.ecfr.gov/"
	}
	if r.Hierarchy.Section != "" {
		return fmt.Sprintf("https://www.ecfr.gov/current/title-%s/section-%s",
			r.Hierarchy.Title, r.Hierarchy.Section)
	}
	if r.Hierarchy.Part != "" {
		return fmt.Sprintf("https://www.ecfr.gov/current/title-%s/part-%s",
			r.Hierarchy.Title, r.Hierarchy.Part)
	}
	return fmt.Sprintf("https://www.ecfr.gov/current/title-%s", r.Hierarchy.Title)
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	perPage int
	date    string
}

// WithPerPage sets the result-page size.
func WithPerPage(n int) SearchOption {
	return func(o *searchOpts) {
		o.perPage = n
	}
}

// WithDate searches the CFR as of a specific date (YYYY-MM-DD).
func WithDate(date string) SearchOption {
	return func(o *searchOpts) {
		o.date = date
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request pacing.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an eCFR search client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://www.ecfr.gov/api/search/v1",
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Status() Status {
	return Status{Name: "ecfr", Configured: true}
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{perPage: 20}
	for _, opt := range opts {
		opt(so)
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", fmt.Sprint(so.perPage))
	if so.date != "" {
		q.Set("date", so.date)
	}

	reqURL := c.baseURL + "/results?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ecfr: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "legal-research-cli/1.0")

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ecfr: rate limiter wait")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ecfr: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ecfr: read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("ecfr: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "ecfr: unmarshal response")
	}
	return &result, nil
}
