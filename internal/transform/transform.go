// Package transform implements the closed catalog of pure row transforms
// applied to connector output. Execution is strictly left-to-right; a bad
// step name or parameter aborts the whole pipeline with no partial results.
package transform

import (
	"sort"

	"dataquery/internal/domain"
)

// Func is one catalog member: a pure function from frame to frame.
type Func func(f domain.Frame, params map[string]any) (domain.Frame, error)

var catalog = map[string]Func{
	"select":         applySelect,
	"filter_equals":  applyFilterEquals,
	"rename_columns": applyRenameColumns,
	"to_percent":     applyToPercent,
	"top_n":          applyTopN,
	"share_of_total": applyShareOfTotal,
	"yoy":            applyYoY,
	"rolling_avg":    applyRollingAvg,
}

// Known reports whether name is a catalog member. The registry rejects
// unknown names at load time; Apply rejects them again defensively.
func Known(name string) bool {
	_, ok := catalog[name]
	return ok
}

// Names returns the sorted catalog member names.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Apply runs the steps in declared order. Step N receives the exact output
// of step N-1. Parameter validation happens here, at apply time.
func Apply(f domain.Frame, steps []domain.TransformStep) (domain.Frame, error) {
	cur := f
	for _, step := range steps {
		fn, ok := catalog[step.Name]
		if !ok {
			return domain.Frame{}, domain.ErrTransform(step.Name, "unknown transform")
		}
		next, err := fn(cur, step.Params)
		if err != nil {
			return domain.Frame{}, err
		}
		cur = next
	}
	return cur, nil
}
