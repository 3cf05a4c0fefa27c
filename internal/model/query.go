// Package model defines the shared types flowing through the research pipeline.
package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Mode selects the cost/quality tradeoff for a query.
type Mode string

const (
	// ModeFast uses cached and lightweight sources only.
	ModeFast Mode = "fast"
	// ModeDeep adds the scraped official-document path and full verification.
	ModeDeep Mode = "deep"
)

// ParseMode converts a string into a Mode, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast", "":
		return ModeFast, nil
	case "deep":
		return ModeDeep, nil
	default:
		return "", eris.Errorf("model: unknown mode %q", s)
	}
}

// Query is a single legal-research request. Immutable once issued.
type Query struct {
	Text          string     `json:"text"`
	Jurisdiction  string     `json:"jurisdiction,omitempty"`
	DocumentTypes []string   `json:"document_types,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	Mode          Mode       `json:"mode"`
	UserID        string     `json:"user_id"`
	SessionID     string     `json:"session_id,omitempty"`
	CaseID        string     `json:"case_id,omitempty"`
}
