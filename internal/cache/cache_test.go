package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataquery/internal/db"
	"dataquery/internal/domain"
)

func sampleResult(queryID string) *domain.QueryResult {
	return &domain.QueryResult{
		QueryID: queryID,
		Frame: domain.Frame{
			Columns: []string{"sector", "employees"},
			Rows:    []domain.Row{{"sector": "B", "employees": 300.0}},
		},
		Provenance: domain.Provenance{DatasetID: "employment/*.csv", Locator: "/data/employment"},
		Freshness:  domain.Freshness{AsOfDate: "2024-12-31", SLADays: 400},
		Unit:       domain.UnitCount,
		Warnings:   []string{"freshness_unknown"},
	}
}

func TestKey_Deterministic(t *testing.T) {
	params := map[string]string{"b": "2", "a": "1"}
	steps := []domain.TransformStep{
		{Name: "top_n", Params: map[string]any{"sort_key": "v", "n": 5}},
	}

	k1 := Key("dataquery", "q1", params, steps)
	k2 := Key("dataquery", "q1", map[string]string{"a": "1", "b": "2"}, steps)
	assert.Equal(t, k1, k2, "param map order must not affect the key")
	assert.Regexp(t, `^dataquery:v1:q1:[0-9a-f]{16}$`, k1)
}

func TestKey_PostprocessInjectivity(t *testing.T) {
	params := map[string]string{"a": "1"}
	base := Key("ns", "q1", params, []domain.TransformStep{
		{Name: "top_n", Params: map[string]any{"sort_key": "v", "n": 5}},
	})

	t.Run("different param value", func(t *testing.T) {
		other := Key("ns", "q1", params, []domain.TransformStep{
			{Name: "top_n", Params: map[string]any{"sort_key": "v", "n": 6}},
		})
		assert.NotEqual(t, base, other)
	})

	t.Run("different step order", func(t *testing.T) {
		a := Key("ns", "q1", params, []domain.TransformStep{
			{Name: "select", Params: map[string]any{"columns": []any{"v"}}},
			{Name: "top_n", Params: map[string]any{"sort_key": "v", "n": 5}},
		})
		b := Key("ns", "q1", params, []domain.TransformStep{
			{Name: "top_n", Params: map[string]any{"sort_key": "v", "n": 5}},
			{Name: "select", Params: map[string]any{"columns": []any{"v"}}},
		})
		assert.NotEqual(t, a, b)
	})

	t.Run("different query id", func(t *testing.T) {
		assert.NotEqual(t, base, Key("ns", "q2", params, nil))
	})
}

func TestMemory_RoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k1", "q1", sampleResult("q1"), 0))

	got, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "q1", got.QueryID)
	assert.Equal(t, 300.0, got.Frame.Rows[0]["employees"])

	t.Run("reader gets a copy", func(t *testing.T) {
		got.Frame.Rows[0]["employees"] = -1.0
		again, ok, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 300.0, again.Frame.Rows[0]["employees"])
	})

	t.Run("stats", func(t *testing.T) {
		stats := store.Stats()
		assert.Equal(t, int64(2), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
	})
}

func TestMemory_TTLExpiry(t *testing.T) {
	store := NewMemory()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", "q1", sampleResult("q1"), time.Minute))

	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok, "entry past its TTL is a miss")
}

func TestMemory_InvalidateByQueryID(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", "q1", sampleResult("q1"), 0))
	require.NoError(t, store.Set(ctx, "k2", "q1", sampleResult("q1"), 0))
	require.NoError(t, store.Set(ctx, "k3", "q2", sampleResult("q2"), 0))

	removed, err := store.Invalidate(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok, _ := store.Get(ctx, "k3")
	assert.True(t, ok, "other query ids keep their entries")
}

func TestSQLite_RoundTrip(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	store := NewSQLite(writeDB)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k1", "q1", sampleResult("q1"), 0))

	got, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "q1", got.QueryID)
	assert.Equal(t, []string{"sector", "employees"}, got.Frame.Columns)
	assert.Equal(t, 300.0, got.Frame.Rows[0]["employees"])
	assert.Equal(t, "2024-12-31", got.Freshness.AsOfDate)
	assert.Equal(t, []string{"freshness_unknown"}, got.Warnings)
}

func TestSQLite_TTLExpiry(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	store := NewSQLite(writeDB)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", "q1", sampleResult("q1"), time.Minute))

	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_Invalidate(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	store := NewSQLite(writeDB)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", "q1", sampleResult("q1"), 0))
	require.NoError(t, store.Set(ctx, "k2", "q1", sampleResult("q1"), 0))
	require.NoError(t, store.Set(ctx, "k3", "q2", sampleResult("q2"), 0))

	removed, err := store.Invalidate(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok, _ := store.Get(ctx, "k3")
	assert.True(t, ok)
}

func TestSQLite_UpsertOverwrites(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	store := NewSQLite(writeDB)
	ctx := context.Background()

	first := sampleResult("q1")
	require.NoError(t, store.Set(ctx, "k1", "q1", first, 0))

	second := sampleResult("q1")
	second.Frame.Rows[0]["employees"] = 999.0
	require.NoError(t, store.Set(ctx, "k1", "q1", second, 0))

	got, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 999.0, got.Frame.Rows[0]["employees"])
}
