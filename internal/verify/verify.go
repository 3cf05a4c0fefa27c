// Package verify resolves citation strings through a primary authority
// with a deterministic secondary-source fallback.
package verify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/veritas-legal/research-cli/internal/model"
	"github.com/veritas-legal/research-cli/pkg/courtlistener"
)

// usReporterRe recognizes the "{volume} U.S. {page}" citation shape.
var usReporterRe = regexp.MustCompile(`^\s*(\d{1,4})\s+U\.?\s?S\.?\s+(\d{1,4})\s*$`)

// Verifier checks citations against CourtListener first, then a
// pattern-derived Justia URL. The chain is exactly two deep; an
// unrecognized citation shape never triggers a network call.
type Verifier struct {
	primary    courtlistener.Client
	http       *http.Client
	justiaBase string
}

// Option configures the Verifier.
type Option func(*Verifier)

// WithHTTPClient sets a custom HTTP client for fallback checks.
func WithHTTPClient(hc *http.Client) Option {
	return func(v *Verifier) {
		v.http = hc
	}
}

// WithJustiaBase overrides the fallback URL base (for testing).
func WithJustiaBase(base string) Option {
	return func(v *Verifier) {
		v.justiaBase = base
	}
}

// New creates a Verifier. primary may be nil or unconfigured; verification
// then relies on the fallback alone.
func New(primary courtlistener.Client, opts ...Option) *Verifier {
	v := &Verifier{
		primary:    primary,
		justiaBase: "https://supreme.justia.com/cases/federal/us",
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// FallbackURL constructs the deterministic Justia URL for a recognized
// citation, or "" if the shape is not recognized.
func (v *Verifier) FallbackURL(citation string) string {
	m := usReporterRe.FindStringSubmatch(citation)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/", v.justiaBase, m[1], m[2])
}

// Verify resolves a citation. The result is immutable; re-verification
// produces a new result.
func (v *Verifier) Verify(ctx context.Context, citation string) model.CitationVerificationResult {
	out := model.CitationVerificationResult{Citation: citation}

	if !usReporterRe.MatchString(citation) {
		out.ErrMessage = "unrecognized citation format"
		return out
	}

	if v.primary != nil && v.primary.Status().Configured {
		res, err := v.primary.Lookup(ctx, citation)
		if err == nil && res.Found {
			out.Found = true
			out.CaseName = res.CaseName
			out.URL = res.AbsoluteURL
			out.SourceID = "courtlistener"
			return out
		}
		if err != nil {
			zap.L().Debug("verify: primary lookup failed, trying fallback",
				zap.String("citation", citation),
				zap.Error(err),
			)
		}
	}

	return v.verifyFallback(ctx, citation, out)
}

// verifyFallback issues an existence check against the constructed Justia
// URL. GET rather than HEAD: the target rejects HEAD requests.
func (v *Verifier) verifyFallback(ctx context.Context, citation string, out model.CitationVerificationResult) model.CitationVerificationResult {
	target := v.FallbackURL(citation)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		out.ErrMessage = "fallback request error: " + err.Error()
		return out
	}
	// Browser-like headers avoid bot blocking on the fallback host.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := v.http.Do(req)
	if err != nil {
		out.ErrMessage = "fallback check failed: " + err.Error()
		return out
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK {
		out.Found = true
		out.URL = target
		out.SourceID = "justia-fallback"
		return out
	}

	out.ErrMessage = fmt.Sprintf("citation not found (fallback status %d)", resp.StatusCode)
	return out
}
