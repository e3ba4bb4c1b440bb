package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataquery/internal/domain"
)

func sectorFrame() domain.Frame {
	return domain.Frame{
		Columns: []string{"year", "sector", "employees"},
		Rows: []domain.Row{
			{"year": 2024.0, "sector": "A", "employees": 100.0},
			{"year": 2024.0, "sector": "B", "employees": 300.0},
			{"year": 2023.0, "sector": "A", "employees": 90.0},
		},
	}
}

func TestApply_FilterTopNSelect(t *testing.T) {
	steps := []domain.TransformStep{
		{Name: "filter_equals", Params: map[string]any{"where": map[string]any{"year": 2024}}},
		{Name: "top_n", Params: map[string]any{"sort_key": "employees", "n": 1}},
		{Name: "select", Params: map[string]any{"columns": []any{"sector", "employees"}}},
	}
	out, err := Apply(sectorFrame(), steps)
	require.NoError(t, err)
	assert.Equal(t, []string{"sector", "employees"}, out.Columns)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, "B", out.Rows[0]["sector"])
	assert.Equal(t, 300.0, out.Rows[0]["employees"])
}

func TestApply_UnknownTransform(t *testing.T) {
	_, err := Apply(sectorFrame(), []domain.TransformStep{{Name: "explode"}})
	var terr *domain.TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "explode", terr.Step)
}

func TestSelect_MissingColumnsBecomeNull(t *testing.T) {
	out, err := Apply(sectorFrame(), []domain.TransformStep{
		{Name: "select", Params: map[string]any{"columns": []any{"sector", "ghost"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sector", "ghost"}, out.Columns)
	for _, r := range out.Rows {
		assert.Nil(t, r["ghost"])
	}
}

func TestFilterEquals_EmptyWhereIsNoOp(t *testing.T) {
	out, err := Apply(sectorFrame(), []domain.TransformStep{
		{Name: "filter_equals", Params: map[string]any{"where": map[string]any{}}},
	})
	require.NoError(t, err)
	assert.Len(t, out.Rows, 3)
}

func TestRenameColumns_LastWriterWins(t *testing.T) {
	f := domain.Frame{
		Columns: []string{"a", "b"},
		Rows:    []domain.Row{{"a": 1.0, "b": 2.0}},
	}
	out, err := Apply(f, []domain.TransformStep{
		{Name: "rename_columns", Params: map[string]any{"mapping": map[string]any{"a": "x", "b": "x"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, out.Columns)
	assert.Equal(t, 2.0, out.Rows[0]["x"])
}

func TestToPercent(t *testing.T) {
	f := domain.Frame{
		Columns: []string{"rate", "label"},
		Rows:    []domain.Row{{"rate": 0.42, "label": "spain"}},
	}

	t.Run("default scale", func(t *testing.T) {
		out, err := Apply(f, []domain.TransformStep{
			{Name: "to_percent", Params: map[string]any{"columns": []any{"rate"}}},
		})
		require.NoError(t, err)
		assert.InDelta(t, 42.0, out.Rows[0]["rate"].(float64), 1e-9)
	})

	t.Run("non-numeric passes through", func(t *testing.T) {
		out, err := Apply(f, []domain.TransformStep{
			{Name: "to_percent", Params: map[string]any{"columns": []any{"label"}}},
		})
		require.NoError(t, err)
		assert.Equal(t, "spain", out.Rows[0]["label"])
	})
}

func TestTopN(t *testing.T) {
	t.Run("negative n yields empty", func(t *testing.T) {
		out, err := Apply(sectorFrame(), []domain.TransformStep{
			{Name: "top_n", Params: map[string]any{"sort_key": "employees", "n": -1}},
		})
		require.NoError(t, err)
		assert.Empty(t, out.Rows)
	})

	t.Run("stable sort with missing treated as zero", func(t *testing.T) {
		f := domain.Frame{
			Columns: []string{"name", "v"},
			Rows: []domain.Row{
				{"name": "first-zero", "v": nil},
				{"name": "big", "v": 10.0},
				{"name": "second-zero"},
			},
		}
		out, err := Apply(f, []domain.TransformStep{
			{Name: "top_n", Params: map[string]any{"sort_key": "v", "n": 3}},
		})
		require.NoError(t, err)
		require.Len(t, out.Rows, 3)
		assert.Equal(t, "big", out.Rows[0]["name"])
		assert.Equal(t, "first-zero", out.Rows[1]["name"])
		assert.Equal(t, "second-zero", out.Rows[2]["name"])
	})
}

func TestShareOfTotal(t *testing.T) {
	f := domain.Frame{
		Columns: []string{"region", "sector", "v"},
		Rows: []domain.Row{
			{"region": "north", "sector": "A", "v": 25.0},
			{"region": "north", "sector": "B", "v": 75.0},
			{"region": "south", "sector": "A", "v": 0.0},
			{"region": "south", "sector": "B", "v": 0.0},
		},
	}
	out, err := Apply(f, []domain.TransformStep{
		{Name: "share_of_total", Params: map[string]any{
			"group_keys": []any{"region"},
			"value_key":  "v",
			"out_key":    "share",
		}},
	})
	require.NoError(t, err)

	t.Run("shares sum to 100 for non-zero group", func(t *testing.T) {
		sum := 0.0
		for _, r := range out.Rows[:2] {
			sum += r["share"].(float64)
		}
		assert.InDelta(t, 100.0, sum, 0.01)
	})

	t.Run("zero group sum yields all zero shares", func(t *testing.T) {
		assert.Equal(t, 0.0, out.Rows[2]["share"])
		assert.Equal(t, 0.0, out.Rows[3]["share"])
	})

	t.Run("global group when group_keys empty", func(t *testing.T) {
		global, err := Apply(f, []domain.TransformStep{
			{Name: "share_of_total", Params: map[string]any{"value_key": "v", "out_key": "share"}},
		})
		require.NoError(t, err)
		assert.InDelta(t, 25.0, global.Rows[0]["share"].(float64), 1e-9)
	})
}

func TestYoY(t *testing.T) {
	f := domain.Frame{
		Columns: []string{"year", "v"},
		Rows: []domain.Row{
			{"year": 2023.0, "v": 110.0},
			{"year": 2022.0, "v": 100.0},
			{"year": 2024.0, "v": 0.0},
			{"year": 2025.0, "v": 50.0},
		},
	}
	out, err := Apply(f, []domain.TransformStep{
		{Name: "yoy", Params: map[string]any{"key": "v", "sort_keys": []any{"year"}, "out_key": "yoy"}},
	})
	require.NoError(t, err)
	require.Len(t, out.Rows, 4)

	t.Run("first row is null", func(t *testing.T) {
		assert.Nil(t, out.Rows[0]["yoy"])
	})
	t.Run("rounded to two decimals", func(t *testing.T) {
		assert.Equal(t, 10.0, out.Rows[1]["yoy"])
	})
	t.Run("drop to zero computes", func(t *testing.T) {
		assert.Equal(t, -100.0, out.Rows[2]["yoy"])
	})
	t.Run("zero previous yields null, never a division error", func(t *testing.T) {
		assert.Nil(t, out.Rows[3]["yoy"])
	})
}

func TestRollingAvg(t *testing.T) {
	f := domain.Frame{
		Columns: []string{"year", "v"},
		Rows: []domain.Row{
			{"year": 2021.0, "v": 100.0},
			{"year": 2022.0, "v": 110.0},
			{"year": 2023.0, "v": 120.0},
			{"year": 2024.0, "v": 130.0},
		},
	}
	out, err := Apply(f, []domain.TransformStep{
		{Name: "rolling_avg", Params: map[string]any{
			"key": "v", "sort_keys": []any{"year"}, "window": 3, "out_key": "avg",
		}},
	})
	require.NoError(t, err)
	assert.Nil(t, out.Rows[0]["avg"])
	assert.Nil(t, out.Rows[1]["avg"])
	assert.InDelta(t, 110.0, out.Rows[2]["avg"].(float64), 1e-9)
	assert.InDelta(t, 120.0, out.Rows[3]["avg"].(float64), 1e-9)
}

func TestRollingAvg_SkipsNonNumeric(t *testing.T) {
	f := domain.Frame{
		Columns: []string{"year", "v"},
		Rows: []domain.Row{
			{"year": 2022.0, "v": 100.0},
			{"year": 2023.0, "v": "n/a"},
			{"year": 2024.0, "v": 200.0},
		},
	}
	out, err := Apply(f, []domain.TransformStep{
		{Name: "rolling_avg", Params: map[string]any{
			"key": "v", "sort_keys": []any{"year"}, "window": 3, "out_key": "avg",
		}},
	})
	require.NoError(t, err)
	// "n/a" is skipped from the mean, not treated as zero.
	assert.InDelta(t, 150.0, out.Rows[2]["avg"].(float64), 1e-9)
}

func TestApply_NoPartialApplication(t *testing.T) {
	steps := []domain.TransformStep{
		{Name: "select", Params: map[string]any{"columns": []any{"sector"}}},
		{Name: "top_n", Params: map[string]any{"sort_key": "employees"}}, // missing n
	}
	_, err := Apply(sectorFrame(), steps)
	var terr *domain.TransformError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "top_n", terr.Step)
}

func TestNames_Closed(t *testing.T) {
	assert.Equal(t, []string{
		"filter_equals", "rename_columns", "rolling_avg", "select",
		"share_of_total", "to_percent", "top_n", "yoy",
	}, Names())
}
