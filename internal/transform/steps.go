package transform

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"dataquery/internal/domain"
)

// applySelect projects to the given columns in the given order. Columns
// missing from the source become null in every row.
func applySelect(f domain.Frame, params map[string]any) (domain.Frame, error) {
	columns, err := stringSliceParam("select", params, "columns")
	if err != nil {
		return domain.Frame{}, err
	}
	if len(columns) == 0 {
		return domain.Frame{}, domain.ErrTransform("select", "param %q must not be empty", "columns")
	}
	out := domain.Frame{Columns: columns, Rows: make([]domain.Row, len(f.Rows))}
	for i, r := range f.Rows {
		nr := make(domain.Row, len(columns))
		for _, c := range columns {
			if v, ok := r[c]; ok {
				nr[c] = v
			} else {
				nr[c] = nil
			}
		}
		out.Rows[i] = nr
	}
	return out, nil
}

// applyFilterEquals keeps rows where every key in "where" matches by
// equality. An empty where map is a no-op.
func applyFilterEquals(f domain.Frame, params map[string]any) (domain.Frame, error) {
	where, err := mapParam("filter_equals", params, "where")
	if err != nil {
		return domain.Frame{}, err
	}
	if len(where) == 0 {
		return f, nil
	}
	out := domain.Frame{Columns: append([]string(nil), f.Columns...)}
	for _, r := range f.Rows {
		keep := true
		for k, want := range where {
			if !looseEqual(r[k], want) {
				keep = false
				break
			}
		}
		if keep {
			out.Rows = append(out.Rows, r)
		}
	}
	return out, nil
}

// applyRenameColumns renames fields per the mapping; when two sources rename
// onto the same target, the later column in frame order wins.
func applyRenameColumns(f domain.Frame, params map[string]any) (domain.Frame, error) {
	mapping, err := stringMapParam("rename_columns", params, "mapping")
	if err != nil {
		return domain.Frame{}, err
	}
	out := domain.Frame{Rows: make([]domain.Row, len(f.Rows))}
	for _, c := range f.Columns {
		target := c
		if to, ok := mapping[c]; ok {
			target = to
		}
		// Drop earlier occurrence on collision: last writer wins.
		kept := out.Columns[:0]
		for _, existing := range out.Columns {
			if existing != target {
				kept = append(kept, existing)
			}
		}
		out.Columns = append(kept, target)
	}
	for i, r := range f.Rows {
		nr := make(domain.Row, len(r))
		for _, c := range f.Columns {
			target := c
			if to, ok := mapping[c]; ok {
				target = to
			}
			if v, ok := r[c]; ok {
				nr[target] = v
			}
		}
		out.Rows[i] = nr
	}
	return out, nil
}

// applyToPercent multiplies named numeric fields by scale (default 100).
// Non-numeric values pass through unchanged.
func applyToPercent(f domain.Frame, params map[string]any) (domain.Frame, error) {
	columns, err := stringSliceParam("to_percent", params, "columns")
	if err != nil {
		return domain.Frame{}, err
	}
	scale, err := optionalFloatParam("to_percent", params, "scale", 100.0)
	if err != nil {
		return domain.Frame{}, err
	}
	out := f.Clone()
	for _, r := range out.Rows {
		for _, c := range columns {
			if v, ok := domain.Numeric(r[c]); ok && r[c] != nil {
				r[c] = v * scale
			}
		}
	}
	return out, nil
}

// applyTopN stable-sorts by sort_key (missing values count as 0) and keeps
// the first n rows. Negative n yields an empty frame.
func applyTopN(f domain.Frame, params map[string]any) (domain.Frame, error) {
	sortKey, err := stringParam("top_n", params, "sort_key")
	if err != nil {
		return domain.Frame{}, err
	}
	n, err := intParam("top_n", params, "n")
	if err != nil {
		return domain.Frame{}, err
	}
	descending, err := optionalBoolParam("top_n", params, "descending", true)
	if err != nil {
		return domain.Frame{}, err
	}
	out := f.Clone()
	keyOf := func(r domain.Row) float64 {
		v, ok := domain.Numeric(r[sortKey])
		if !ok {
			return 0
		}
		return v
	}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, b := keyOf(out.Rows[i]), keyOf(out.Rows[j])
		if descending {
			return a > b
		}
		return a < b
	})
	if n < 0 {
		n = 0
	}
	if n < len(out.Rows) {
		out.Rows = out.Rows[:n]
	}
	return out, nil
}

// applyShareOfTotal computes 100*value/sum(value) within each group defined
// by group_keys (empty = one global group). A zero group sum yields 0.0 for
// every member; non-numeric values contribute nothing and get a null share.
func applyShareOfTotal(f domain.Frame, params map[string]any) (domain.Frame, error) {
	groupKeys, err := optionalStringSliceParam("share_of_total", params, "group_keys")
	if err != nil {
		return domain.Frame{}, err
	}
	valueKey, err := stringParam("share_of_total", params, "value_key")
	if err != nil {
		return domain.Frame{}, err
	}
	outKey, err := stringParam("share_of_total", params, "out_key")
	if err != nil {
		return domain.Frame{}, err
	}

	groupOf := func(r domain.Row) string {
		if len(groupKeys) == 0 {
			return ""
		}
		parts := make([]string, len(groupKeys))
		for i, k := range groupKeys {
			parts[i] = valueString(r[k])
		}
		return strings.Join(parts, "\x1f")
	}

	sums := make(map[string]float64)
	for _, r := range f.Rows {
		if v, ok := domain.Numeric(r[valueKey]); ok && r[valueKey] != nil {
			sums[groupOf(r)] += v
		}
	}

	out := f.Clone()
	out.AddColumn(outKey)
	for _, r := range out.Rows {
		v, ok := domain.Numeric(r[valueKey])
		if !ok || r[valueKey] == nil {
			r[outKey] = nil
			continue
		}
		total := sums[groupOf(r)]
		if total == 0 {
			r[outKey] = 0.0
			continue
		}
		r[outKey] = 100 * v / total
	}
	return out, nil
}

// applyYoY sorts by sort_keys and computes (current-previous)/previous*100
// rounded to two decimals. The first row, non-numeric neighbours, and a zero
// previous value all yield null.
func applyYoY(f domain.Frame, params map[string]any) (domain.Frame, error) {
	key, err := stringParam("yoy", params, "key")
	if err != nil {
		return domain.Frame{}, err
	}
	sortKeys, err := stringSliceParam("yoy", params, "sort_keys")
	if err != nil {
		return domain.Frame{}, err
	}
	outKey, err := stringParam("yoy", params, "out_key")
	if err != nil {
		return domain.Frame{}, err
	}

	out := sortedByKeys(f, sortKeys)
	out.AddColumn(outKey)
	for i, r := range out.Rows {
		r[outKey] = nil
		if i == 0 {
			continue
		}
		cur, okCur := domain.Numeric(r[key])
		prev, okPrev := domain.Numeric(out.Rows[i-1][key])
		if !okCur || !okPrev || r[key] == nil || out.Rows[i-1][key] == nil || prev == 0 {
			continue
		}
		r[outKey] = math.Round((cur-prev)/prev*100*100) / 100
	}
	return out, nil
}

// applyRollingAvg sorts by sort_keys and computes a trailing mean over the
// last window rows. Rows before the window fills yield null; non-numeric
// values within the window are skipped from the mean, not treated as zero.
func applyRollingAvg(f domain.Frame, params map[string]any) (domain.Frame, error) {
	key, err := stringParam("rolling_avg", params, "key")
	if err != nil {
		return domain.Frame{}, err
	}
	sortKeys, err := stringSliceParam("rolling_avg", params, "sort_keys")
	if err != nil {
		return domain.Frame{}, err
	}
	window, err := intParam("rolling_avg", params, "window")
	if err != nil {
		return domain.Frame{}, err
	}
	if window <= 0 {
		return domain.Frame{}, domain.ErrTransform("rolling_avg", "param %q must be positive, got %d", "window", window)
	}
	outKey, err := stringParam("rolling_avg", params, "out_key")
	if err != nil {
		return domain.Frame{}, err
	}

	out := sortedByKeys(f, sortKeys)
	out.AddColumn(outKey)
	for i, r := range out.Rows {
		if i+1 < window {
			r[outKey] = nil
			continue
		}
		sum, count := 0.0, 0
		for j := i - window + 1; j <= i; j++ {
			if v, ok := domain.Numeric(out.Rows[j][key]); ok && out.Rows[j][key] != nil {
				sum += v
				count++
			}
		}
		if count == 0 {
			r[outKey] = nil
			continue
		}
		r[outKey] = sum / float64(count)
	}
	return out, nil
}

// sortedByKeys returns a clone stable-sorted ascending by the given keys.
func sortedByKeys(f domain.Frame, keys []string) domain.Frame {
	out := f.Clone()
	sort.SliceStable(out.Rows, func(i, j int) bool {
		for _, k := range keys {
			if c := compareValues(out.Rows[i][k], out.Rows[j][k]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return out
}

// valueString canonicalizes a group key value so 2024 and 2024.0 land in the
// same group.
func valueString(v any) string {
	if v == nil {
		return "\x00"
	}
	if f, ok := domain.Numeric(v); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}
