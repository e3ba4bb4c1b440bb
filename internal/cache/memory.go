package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"dataquery/internal/domain"
)

type memoryEntry struct {
	queryID   string
	value     *domain.QueryResult
	expiresAt time.Time // zero = never expire
}

// Memory is an in-process TTL store. Readers never coordinate with each
// other; only writers on the same key serialize, and a benign race where two
// callers write the same key is acceptable because the value is identical.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	hits   atomic.Int64
	misses atomic.Int64

	now func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

// Get returns a deep copy of the cached result. Expired entries are dropped
// lazily on read.
func (m *Memory) Get(_ context.Context, key string) (*domain.QueryResult, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if ok && !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		ok = false
	}
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	m.hits.Add(1)
	return entry.value.Clone(), true, nil
}

// Set stores a deep copy of value. ttl <= 0 means never expire.
func (m *Memory) Set(_ context.Context, key, queryID string, value *domain.QueryResult, ttl time.Duration) error {
	entry := memoryEntry{queryID: queryID, value: value.Clone()}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

// Invalidate drops every entry for the query id, across all parameter and
// postprocess variants, and returns the number removed.
func (m *Memory) Invalidate(_ context.Context, queryID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, entry := range m.entries {
		if entry.queryID == queryID {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Stats returns hit/miss accounting since process start.
func (m *Memory) Stats() domain.CacheStats {
	return domain.CacheStats{Hits: m.hits.Load(), Misses: m.misses.Load()}
}

var _ domain.CacheStore = (*Memory)(nil)
