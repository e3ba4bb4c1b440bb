package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"dataquery/internal/domain"
)

// SQLite is a persistent TTL store backed by the engine's state database.
// It survives restarts and can be shared by multiple processes pointed at
// the same file; sqlite's own locking serializes writers.
type SQLite struct {
	db *sql.DB

	hits   atomic.Int64
	misses atomic.Int64

	now func() time.Time
}

// NewSQLite creates a store over an already-migrated database handle.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: time.Now}
}

// Get returns the cached result for key, dropping it when expired.
func (s *SQLite) Get(ctx context.Context, key string) (*domain.QueryResult, bool, error) {
	var payload string
	var expiresAt sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM cache_entries WHERE cache_key = ?`, key,
	).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}

	if expiresAt.Valid && s.now().Unix() > expiresAt.Int64 {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key)
		s.misses.Add(1)
		return nil, false, nil
	}

	var result domain.QueryResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		// A corrupt payload is treated as a miss; the orchestrator will
		// recompute and overwrite it.
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key)
		s.misses.Add(1)
		return nil, false, nil
	}
	s.hits.Add(1)
	return &result, true, nil
}

// Set upserts the serialized result. ttl <= 0 means never expire.
func (s *SQLite) Set(ctx context.Context, key, queryID string, value *domain.QueryResult, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache set %q: marshal: %w", key, err)
	}
	var expiresAt any
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).Unix()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_key, query_id, payload, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   payload = excluded.payload,
		   expires_at = excluded.expires_at,
		   created_at = excluded.created_at`,
		key, queryID, string(payload), expiresAt, s.now().Unix())
	if err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Invalidate deletes every entry for the query id and returns the count.
func (s *SQLite) Invalidate(ctx context.Context, queryID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE query_id = ?`, queryID)
	if err != nil {
		return 0, fmt.Errorf("cache invalidate %q: %w", queryID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache invalidate %q: %w", queryID, err)
	}
	return int(n), nil
}

// Stats returns hit/miss accounting since process start.
func (s *SQLite) Stats() domain.CacheStats {
	return domain.CacheStats{Hits: s.hits.Load(), Misses: s.misses.Load()}
}

var _ domain.CacheStore = (*SQLite)(nil)
