// Package courtlistener provides a client for the CourtListener search and
// citation-lookup APIs.
package courtlistener

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

// Client defines the CourtListener operations used by the pipeline.
type Client interface {
	// Search runs a full-text case-law search.
	Search(ctx context.Context, query string, filters Filters) (*SearchResponse, error)
	// Lookup resolves a citation string to a case cluster.
	Lookup(ctx context.Context, citation string) (*LookupResult, error)
	// Status reports whether the client holds a usable credential.
	Status() Status
}

// Status describes client configuration state.
type Status struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// Filters narrows a case-law search.
type Filters struct {
	Jurisdiction string
	DocTypes     []string
	StartDate    *time.Time
	EndDate      *time.Time
}

// docTypeParams maps document type names onto search API result types.
// The API accepts a single type per request, so the first recognized name
// wins; unrecognized names fall through to opinions.
var docTypeParams = map[string]string{
	"opinion":       "o",
	"opinions":      "o",
	"case":          "o",
	"docket":        "d",
	"dockets":       "d",
	"filing":        "r",
	"filings":       "r",
	"recap":         "r",
	"oral-argument": "oa",
	"audio":         "oa",
}

func resultType(docTypes []string) string {
	for _, dt := range docTypes {
		if t, ok := docTypeParams[strings.ToLower(dt)]; ok {
			return t
		}
	}
	return "o"
}

// SearchResponse is the parsed search API response.
type SearchResponse struct {
	Count   int      `json:"count"`
	Results []Result `json:"results"`
}

// Result is a single case-law search hit.
type Result struct {
	CaseName    string     `json:"caseName"`
	Citations   []Citation `json:"citation"`
	Court       string     `json:"court"`
	DateFiled   string     `json:"dateFiled"`
	Snippet     string     `json:"snippet"`
	AbsoluteURL string     `json:"absolute_url"`
}

// Citation is one reporter citation attached to a case.
type Citation struct {
	Volume   int    `json:"volume"`
	Reporter string `json:"reporter"`
	Page     string `json:"page"`
}

// String renders the citation in standard form.
func (c Citation) String() string {
	return fmt.Sprintf("%d %s %s", c.Volume, c.Reporter, c.Page)
}

// LookupResult is the outcome of a citation lookup.
type LookupResult struct {
	Found       bool
	CaseName    string
	AbsoluteURL string
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
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a CourtListener client. An empty token leaves the
// client unconfigured: searches return empty results and Status reports
// Configured=false, so a missing credential degrades rather than fails.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://www.courtlistener.com/api/rest/v4",
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		// CourtListener allows 5000/hr authenticated; stay well under.
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Status() Status {
	return Status{Name: "courtlistener", Configured: c.token != ""}
}

func (c *httpClient) Search(ctx context.Context, query string, filters Filters) (*SearchResponse, error) {
	if c.token == "" {
		return &SearchResponse{}, nil
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("type", resultType(filters.DocTypes))
	if filters.Jurisdiction != "" {
		q.Set("court", filters.Jurisdiction)
	}
	if filters.StartDate != nil {
		q.Set("filed_after", filters.StartDate.Format("2006-01-02"))
	}
	if filters.EndDate != nil {
		q.Set("filed_before", filters.EndDate.Format("2006-01-02"))
	}

	body, status, err := c.get(ctx, c.baseURL+"/search/?"+q.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "courtlistener: search request")
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("courtlistener: search status %d: %s", status, truncate(body))
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "courtlistener: unmarshal search response")
	}
	return &resp, nil
}

// lookupResponse mirrors the citation-lookup API schema.
type lookupResponse []struct {
	Citation string `json:"citation"`
	Status   int    `json:"status"`
	Clusters []struct {
		CaseName    string `json:"case_name"`
		AbsoluteURL string `json:"absolute_url"`
	} `json:"clusters"`
}

func (c *httpClient) Lookup(ctx context.Context, citation string) (*LookupResult, error) {
	if c.token == "" {
		return nil, eris.New("courtlistener: not configured")
	}

	form := url.Values{"text": {citation}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/citation-lookup/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "courtlistener: create lookup request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, status, err := c.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "courtlistener: lookup request")
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("courtlistener: lookup status %d: %s", status, truncate(body))
	}

	var resp lookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "courtlistener: unmarshal lookup response")
	}

	for _, entry := range resp {
		if entry.Status != http.StatusOK || len(entry.Clusters) == 0 {
			continue
		}
		cluster := entry.Clusters[0]
		return &LookupResult{
			Found:       true,
			CaseName:    cluster.CaseName,
			AbsoluteURL: "https://www.courtlistener.com" + cluster.AbsoluteURL,
		}, nil
	}
	return &LookupResult{Found: false}, nil
}

func (c *httpClient) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "create request")
	}
	return c.do(ctx, req)
}

func (c *httpClient) do(ctx context.Context, req *http.Request) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "rate limiter wait")
	}

	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "legal-research-cli/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "read response body")
	}
	return body, resp.StatusCode, nil
}

func truncate(b []byte) string {
	const n = 200
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
