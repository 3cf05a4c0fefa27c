package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS query_log (
	id            TEXT PRIMARY KEY,
	fingerprint   TEXT NOT NULL,
	query_text    TEXT NOT NULL,
	user_id       TEXT NOT NULL,
	mode          TEXT NOT NULL,
	predicted_usd REAL NOT NULL DEFAULT 0,
	cache_hit     INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_query_log_fingerprint ON query_log(fingerprint);
CREATE INDEX IF NOT EXISTS idx_query_log_user_id ON query_log(user_id);
CREATE INDEX IF NOT EXISTS idx_query_log_created_at ON query_log(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordQuery inserts one execution into the log. A zero CreatedAt is
// filled with the current time; an empty ID gets a fresh UUID.
func (s *SQLiteStore) RecordQuery(ctx context.Context, rec QueryRecord) (*QueryRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_log (id, fingerprint, query_text, user_id, mode, predicted_usd, cache_hit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Fingerprint, rec.Text, rec.UserID, rec.Mode, rec.PredictedUSD, boolToInt(rec.CacheHit), rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert query")
	}
	return &rec, nil
}

// ListRecent returns the newest records, most recent first.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fingerprint, query_text, user_id, mode, predicted_usd, cache_hit, created_at
		 FROM query_log ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recent")
	}
	defer rows.Close()

	var out []QueryRecord
	for rows.Next() {
		var rec QueryRecord
		var hit int
		if err := rows.Scan(&rec.ID, &rec.Fingerprint, &rec.Text, &rec.UserID, &rec.Mode, &rec.PredictedUSD, &hit, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan query")
		}
		rec.CacheHit = hit != 0
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate queries")
}

// TopFingerprints returns the most-repeated fingerprints since the given
// time, largest count first. Fingerprints seen only once are omitted.
func (s *SQLiteStore) TopFingerprints(ctx context.Context, since time.Time, limit int) ([]FingerprintCount, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, MIN(query_text), COUNT(*) AS n
		 FROM query_log WHERE created_at >= ?
		 GROUP BY fingerprint HAVING n > 1
		 ORDER BY n DESC, fingerprint LIMIT ?`, since, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top fingerprints")
	}
	defer rows.Close()

	var out []FingerprintCount
	for rows.Next() {
		var fc FingerprintCount
		if err := rows.Scan(&fc.Fingerprint, &fc.SampleText, &fc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fingerprint count")
		}
		out = append(out, fc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate fingerprints")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
