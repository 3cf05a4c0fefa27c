// Package store persists a query-history log used for duplicate-query
// analytics across CLI runs. It is advisory data only; the in-memory
// caches and rate counters never depend on it.
package store

import (
	"context"
	"time"
)

// QueryRecord is one logged query execution.
type QueryRecord struct {
	ID           string    `json:"id"`
	Fingerprint  string    `json:"fingerprint"`
	Text         string    `json:"text"`
	UserID       string    `json:"userId"`
	Mode         string    `json:"mode"`
	PredictedUSD float64   `json:"predictedUsd"`
	CacheHit     bool      `json:"cacheHit"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FingerprintCount aggregates executions sharing a fingerprint.
type FingerprintCount struct {
	Fingerprint string `json:"fingerprint"`
	SampleText  string `json:"sampleText"`
	Count       int    `json:"count"`
}

// Store is the query-history log.
type Store interface {
	Migrate(ctx context.Context) error
	RecordQuery(ctx context.Context, rec QueryRecord) (*QueryRecord, error)
	ListRecent(ctx context.Context, limit int) ([]QueryRecord, error)
	TopFingerprints(ctx context.Context, since time.Time, limit int) ([]FingerprintCount, error)
	Close() error
}
