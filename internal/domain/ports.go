package domain

import (
	"context"
	"time"
)

// Connector executes a spec's parameters against one concrete source kind.
// Connectors normalize shape only; derived metrics belong in the transform
// pipeline.
type Connector interface {
	Kind() SourceKind
	Execute(ctx context.Context, params map[string]string) (Frame, Provenance, error)
}

// CacheStore is a TTL-based store for serialized query results. Values are
// immutable once written; get/set/invalidate must be safe under concurrent
// access.
type CacheStore interface {
	Get(ctx context.Context, key string) (*QueryResult, bool, error)
	// Set stores value under key. ttl <= 0 means never expire.
	Set(ctx context.Context, key string, queryID string, value *QueryResult, ttl time.Duration) error
	// Invalidate clears every entry for the query id, across all parameter
	// and postprocess variants.
	Invalidate(ctx context.Context, queryID string) (int, error)
	Stats() CacheStats
}

// CacheStats is hit/miss accounting for one store.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// AuditSink receives one record per orchestrator execution, append-only.
type AuditSink interface {
	Append(ctx context.Context, rec *ExecutionRecord) error
}
