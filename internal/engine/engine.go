// Package engine composes the registry, connectors, transform pipeline,
// freshness evaluator, and cache into the single execution entry point.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"dataquery/internal/cache"
	"dataquery/internal/connector"
	"dataquery/internal/domain"
	"dataquery/internal/freshness"
	"dataquery/internal/registry"
	"dataquery/internal/transform"
)

// DefaultNamespace prefixes cache keys when no namespace is configured.
const DefaultNamespace = "dataquery"

// Override is a caller-supplied spec variant for one execution. It never
// mutates the registry's stored spec and always produces a distinct cache
// key when the postprocess list differs.
type Override struct {
	// Params are merged over the spec's own params.
	Params map[string]string
	// Postprocess, when non-nil, replaces the spec's pipeline.
	Postprocess []domain.TransformStep
	// TTL overrides the engine default for this call. 0 bypasses the cache
	// entirely: no read, no write.
	TTL *time.Duration
}

// Engine is the execution orchestrator: the sole component that touches the
// cache and connectors directly. It is safe for concurrent use; the cache
// store is the only shared mutable state.
type Engine struct {
	registry   *registry.Registry
	connectors *connector.Registry
	store      domain.CacheStore
	audit      domain.AuditSink
	licenses   *LicenseCatalog
	logger     *slog.Logger

	namespace string
	// defaultTTL applies when a call carries no TTL override. 0 means
	// entries never expire.
	defaultTTL time.Duration

	group singleflight.Group
	now   func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithNamespace overrides the cache key namespace.
func WithNamespace(ns string) Option {
	return func(e *Engine) { e.namespace = ns }
}

// WithDefaultTTL sets the cache TTL applied when a call has no override.
func WithDefaultTTL(d time.Duration) Option {
	return func(e *Engine) { e.defaultTTL = d }
}

// WithAuditSink attaches an execution audit sink.
func WithAuditSink(sink domain.AuditSink) Option {
	return func(e *Engine) { e.audit = sink }
}

// WithLicenseCatalog attaches the provenance license side catalog.
func WithLicenseCatalog(cat *LicenseCatalog) Option {
	return func(e *Engine) { e.licenses = cat }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an Engine over the given registry, connectors, and cache store.
func New(reg *registry.Registry, connectors *connector.Registry, store domain.CacheStore, opts ...Option) *Engine {
	e := &Engine{
		registry:   reg,
		connectors: connectors,
		store:      store,
		licenses:   &LicenseCatalog{},
		namespace:  DefaultNamespace,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one query end to end: cache lookup, connector call, transform
// pipeline, freshness check, provenance enrichment, cache store. Freshness
// is evaluated at result-construction time, so a cache hit re-derives the
// staleness warning against the current clock instead of replaying the one
// recorded at store time.
func (e *Engine) Execute(ctx context.Context, queryID string, override *Override) (*domain.QueryResult, error) {
	started := e.now()

	spec, err := e.resolveSpec(queryID, override)
	if err != nil {
		return nil, err
	}

	key := cache.Key(e.namespace, queryID, spec.Params, spec.Postprocess)

	ttl := e.defaultTTL
	bypass := false
	if override != nil && override.TTL != nil {
		ttl = *override.TTL
		bypass = ttl == 0
	}

	if !bypass {
		if cached, ok, err := e.store.Get(ctx, key); err != nil {
			// A broken cache backend degrades to a recompute, it never
			// fails the query.
			e.logWarn("cache get failed", "key", key, "error", err)
		} else if ok {
			cached.CacheHit = true
			e.refreshStaleness(spec, cached)
			e.appendAudit(ctx, spec, cached, started, true)
			return cached, nil
		}
	}

	// Collapse concurrent misses for the same key: the same key always
	// produces the same computed value, so one flight serves all waiters.
	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		return e.compute(ctx, spec, key, ttl, bypass)
	})
	if err != nil {
		return nil, err
	}

	result := v.(*domain.QueryResult).Clone()
	e.appendAudit(ctx, spec, result, started, false)
	return result, nil
}

// resolveSpec fetches the spec and applies the override onto a deep copy.
func (e *Engine) resolveSpec(queryID string, override *Override) (*domain.QuerySpec, error) {
	stored, err := e.registry.Get(queryID)
	if err != nil {
		return nil, err
	}
	spec := stored.Clone()
	if override != nil {
		if len(override.Params) > 0 {
			spec = spec.WithParams(override.Params)
		}
		if override.Postprocess != nil {
			spec = spec.WithPostprocess(override.Postprocess)
		}
	}
	return spec, nil
}

// compute is the cache-miss path: connector, pipeline, freshness,
// provenance. The cache write happens only after every stage succeeded;
// a partially-built result is never stored.
func (e *Engine) compute(ctx context.Context, spec *domain.QuerySpec, key string, ttl time.Duration, bypass bool) (*domain.QueryResult, error) {
	conn, err := e.connectors.For(spec.Source)
	if err != nil {
		return nil, err
	}

	frame, prov, err := conn.Execute(ctx, spec.Params)
	if err != nil {
		return nil, err
	}

	frame, err = transform.Apply(frame, spec.Postprocess)
	if err != nil {
		return nil, err
	}

	result := &domain.QueryResult{
		QueryID:    spec.ID,
		Frame:      frame,
		Provenance: prov,
		Unit:       spec.ExpectedUnit,
	}

	fresh, warnings := freshness.Evaluate(spec, frame, e.now())
	result.Freshness = fresh
	for _, w := range warnings {
		result.AddWarning(w)
	}

	e.enrichLicense(result)

	if !bypass {
		if err := e.store.Set(ctx, key, spec.ID, result, ttl); err != nil {
			e.logWarn("cache set failed", "key", key, "error", err)
		}
	}
	return result, nil
}

// refreshStaleness re-derives the stale_data warning for a cached result.
// The staleness marker is the freshness stage's own and is replaced, not
// stacked; all other warnings stay untouched.
func (e *Engine) refreshStaleness(spec *domain.QuerySpec, result *domain.QueryResult) {
	kept := result.Warnings[:0]
	for _, w := range result.Warnings {
		if !isStaleWarning(w) {
			kept = append(kept, w)
		}
	}
	result.Warnings = kept

	_, warnings := freshness.Evaluate(spec, result.Frame, e.now())
	for _, w := range warnings {
		if isStaleWarning(w) {
			result.AddWarning(w)
		}
	}
}

func isStaleWarning(w string) bool {
	return len(w) >= 11 && w[:11] == "stale_data:"
}

func (e *Engine) enrichLicense(result *domain.QueryResult) {
	if result.Provenance.License != "" || e.licenses == nil {
		return
	}
	if entry, ok := e.licenses.Match(result.Provenance.Locator); ok {
		result.Provenance.License = entry.License
		result.Provenance.Attribution = entry.Attribution
	}
}

func (e *Engine) appendAudit(ctx context.Context, spec *domain.QuerySpec, result *domain.QueryResult, started time.Time, cacheHit bool) {
	if e.audit == nil {
		return
	}
	rec := &domain.ExecutionRecord{
		ExecutionID: uuid.NewString(),
		QueryID:     spec.ID,
		Params:      spec.Params,
		Timestamp:   started.UTC(),
		RowCount:    len(result.Frame.Rows),
		DurationMs:  e.now().Sub(started).Milliseconds(),
		CacheHit:    cacheHit,
		Warnings:    append([]string(nil), result.Warnings...),
	}
	if err := e.audit.Append(ctx, rec); err != nil {
		e.logWarn("audit append failed", "query_id", spec.ID, "error", err)
	}
}

// Invalidate clears every cache entry for the query id.
func (e *Engine) Invalidate(ctx context.Context, queryID string) (int, error) {
	return e.store.Invalidate(ctx, queryID)
}

// CacheStats returns the store's hit/miss accounting.
func (e *Engine) CacheStats() domain.CacheStats {
	return e.store.Stats()
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
