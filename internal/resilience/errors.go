// Package resilience classifies pipeline failures so the aggregation shell
// can degrade per-source contributions instead of failing whole queries.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// Class buckets a failure for propagation policy decisions.
type Class string

const (
	// ClassSourceUnavailable covers network/HTTP failures and missing
	// credentials for one source. Degrades that source to empty results.
	ClassSourceUnavailable Class = "source_unavailable"
	// ClassExtraction covers malformed document content. Degrades to empty
	// text for that document.
	ClassExtraction Class = "extraction_failure"
	// ClassRateLimit is the one condition that aborts a query outright.
	ClassRateLimit Class = "rate_limit_exceeded"
	// ClassTimeout means a source did not respond within its bounded window.
	// Treated identically to ClassSourceUnavailable by the shell.
	ClassTimeout Class = "timeout"
)

// SourceError attaches source identity and a failure class to an error so
// the merge step can log it and discard the contribution.
type SourceError struct {
	Source string
	Class  Class
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Class, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError wraps err with source identity and class.
func NewSourceError(source string, class Class, err error) *SourceError {
	return &SourceError{Source: source, Class: class, Err: err}
}

// RateLimitError rejects a query before any downstream call is issued.
// Callers should back off for RetryAfter or switch to a cheaper mode.
type RateLimitError struct {
	UserID string
	Mode   string
	// RetryAfter is the time until the user's window resets.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for user %s in %s mode", e.UserID, e.Mode)
}

// IsRateLimited reports whether the error chain contains a RateLimitError.
func IsRateLimited(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// Classify maps an arbitrary error to a failure class. Timeouts are detected
// before generic unavailability so they can be reported distinctly.
func Classify(err error) Class {
	if err == nil {
		return ""
	}
	if IsRateLimited(err) {
		return ClassRateLimit
	}
	var se *SourceError
	if errors.As(err, &se) {
		return se.Class
	}
	if IsTimeout(err) {
		return ClassTimeout
	}
	return ClassSourceUnavailable
}

// IsTimeout reports whether the error is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsTransient returns true if the error matches common transient network
// patterns (connection resets, DNS failures, timeouts) and is safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if IsTimeout(err) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
