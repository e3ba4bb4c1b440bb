// Package triangulate cross-checks numeric invariants over query results.
// Every check is pure and advisory: it inspects results, never mutates them,
// and its findings never block the underlying result from being returned.
package triangulate

import (
	"fmt"
	"math"
	"strings"

	"dataquery/internal/domain"
)

// Issue codes emitted by the built-in checks.
const (
	CodePercentOutOfBounds = "percent_out_of_bounds"
	CodeSumMismatch        = "sum_mismatch"
	CodeFormulaMismatch    = "formula_mismatch"
	CodeSignalConflict     = "signal_conflict"
)

// Check is one independent numeric-invariant rule.
type Check interface {
	// ID identifies the check in reports.
	ID() string
	// Run inspects the given results and returns zero or more issues.
	Run(results []*domain.QueryResult) domain.TriangulationResult
}

// Runner executes a battery of checks in order.
type Runner struct {
	checks []Check
}

// NewRunner composes checks into a battery.
func NewRunner(checks ...Check) *Runner {
	return &Runner{checks: checks}
}

// Run executes every check against the results and returns one report per
// check, in battery order.
func (r *Runner) Run(results ...*domain.QueryResult) []domain.TriangulationResult {
	out := make([]domain.TriangulationResult, 0, len(r.checks))
	for _, c := range r.checks {
		out = append(out, c.Run(results))
	}
	return out
}

// PercentBounds flags any *_percent field outside [0, 100].
type PercentBounds struct{}

func (PercentBounds) ID() string { return "percent_bounds" }

func (p PercentBounds) Run(results []*domain.QueryResult) domain.TriangulationResult {
	report := domain.TriangulationResult{CheckID: p.ID()}
	for _, res := range results {
		for i, row := range res.Frame.Rows {
			for _, col := range res.Frame.Columns {
				if !strings.HasSuffix(col, "_percent") {
					continue
				}
				f, ok := domain.Numeric(row[col])
				if !ok {
					continue
				}
				if f < 0 || f > 100 {
					report.Issues = append(report.Issues, domain.RuleIssue{
						Code:     CodePercentOutOfBounds,
						Message:  fmt.Sprintf("%s: row %d field %s = %g outside [0, 100]", res.QueryID, i, col, f),
						Severity: domain.SeverityError,
					})
				}
			}
		}
	}
	return report
}

// SumToTotal verifies that component values sum to a reported total within an
// absolute tolerance. Rows are grouped by GroupKeys (empty means one global
// group); within each group the PartKey values are summed and compared to the
// group's TotalKey value, which must agree across the group's rows.
type SumToTotal struct {
	CheckID   string
	GroupKeys []string
	PartKey   string
	TotalKey  string
	// Tolerance is the maximum absolute deviation. Zero means the 0.5 default.
	Tolerance float64
}

func (s SumToTotal) ID() string {
	if s.CheckID != "" {
		return s.CheckID
	}
	return "sum_to_total"
}

func (s SumToTotal) tolerance() float64 {
	if s.Tolerance > 0 {
		return s.Tolerance
	}
	return 0.5
}

func (s SumToTotal) Run(results []*domain.QueryResult) domain.TriangulationResult {
	report := domain.TriangulationResult{CheckID: s.ID()}
	for _, res := range results {
		sums := map[string]float64{}
		totals := map[string]float64{}
		seenTotal := map[string]bool{}
		var order []string

		for _, row := range res.Frame.Rows {
			key := groupKey(row, s.GroupKeys)
			if _, ok := sums[key]; !ok {
				order = append(order, key)
			}
			if part, ok := domain.Numeric(row[s.PartKey]); ok {
				sums[key] += part
			}
			if total, ok := domain.Numeric(row[s.TotalKey]); ok {
				totals[key] = total
				seenTotal[key] = true
			}
		}

		for _, key := range order {
			if !seenTotal[key] {
				continue
			}
			diff := math.Abs(sums[key] - totals[key])
			if diff > s.tolerance() {
				report.Issues = append(report.Issues, domain.RuleIssue{
					Code: CodeSumMismatch,
					Message: fmt.Sprintf("%s: group %q sum(%s) = %g but %s = %g (diff %.2f > %.2f)",
						res.QueryID, key, s.PartKey, sums[key], s.TotalKey, totals[key], diff, s.tolerance()),
					Severity: domain.SeverityWarning,
				})
			}
		}
	}
	return report
}

// ShareSum verifies that share values sum to a whole. Rows are grouped by
// GroupKeys (empty means one global group); within each group the ShareKey
// values are summed and compared to Target. When ShareKey is empty the check
// runs over every *_percent column and an exact "share" column.
type ShareSum struct {
	CheckID   string
	GroupKeys []string
	ShareKey  string
	// Target is the expected group sum. Zero means the 100 default.
	Target float64
	// Tolerance is the maximum absolute deviation. Zero means the 0.5 default.
	Tolerance float64
}

func (s ShareSum) ID() string {
	if s.CheckID != "" {
		return s.CheckID
	}
	return "share_sum"
}

func (s ShareSum) target() float64 {
	if s.Target > 0 {
		return s.Target
	}
	return 100
}

func (s ShareSum) tolerance() float64 {
	if s.Tolerance > 0 {
		return s.Tolerance
	}
	return 0.5
}

func (s ShareSum) Run(results []*domain.QueryResult) domain.TriangulationResult {
	report := domain.TriangulationResult{CheckID: s.ID()}
	for _, res := range results {
		for _, col := range shareColumns(res.Frame.Columns, s.ShareKey) {
			sums := map[string]float64{}
			counted := map[string]int{}
			var order []string

			for _, row := range res.Frame.Rows {
				key := groupKey(row, s.GroupKeys)
				if _, ok := sums[key]; !ok {
					order = append(order, key)
				}
				if share, ok := domain.Numeric(row[col]); ok {
					sums[key] += share
					counted[key]++
				}
			}

			for _, key := range order {
				if counted[key] < 2 {
					continue
				}
				diff := math.Abs(sums[key] - s.target())
				if diff > s.tolerance() {
					report.Issues = append(report.Issues, domain.RuleIssue{
						Code: CodeSumMismatch,
						Message: fmt.Sprintf("%s: group %q sum(%s) = %g, expected %g (diff %.2f > %.2f)",
							res.QueryID, key, col, sums[key], s.target(), diff, s.tolerance()),
						Severity: domain.SeverityWarning,
					})
				}
			}
		}
	}
	return report
}

func shareColumns(columns []string, shareKey string) []string {
	if shareKey != "" {
		return []string{shareKey}
	}
	var out []string
	for _, col := range columns {
		if col == "share" || strings.HasSuffix(col, "_percent") {
			out = append(out, col)
		}
	}
	return out
}

// RateConsistency verifies a reported rate against its defining formula,
// rate = 100 * part / (part + complement), row by row.
type RateConsistency struct {
	CheckID       string
	RateKey       string
	PartKey       string
	ComplementKey string
	// Tolerance is the maximum absolute deviation. Zero means the 0.5 default.
	Tolerance float64
}

func (c RateConsistency) ID() string {
	if c.CheckID != "" {
		return c.CheckID
	}
	return "rate_consistency"
}

func (c RateConsistency) tolerance() float64 {
	if c.Tolerance > 0 {
		return c.Tolerance
	}
	return 0.5
}

func (c RateConsistency) Run(results []*domain.QueryResult) domain.TriangulationResult {
	report := domain.TriangulationResult{CheckID: c.ID()}
	for _, res := range results {
		for i, row := range res.Frame.Rows {
			rate, ok := domain.Numeric(row[c.RateKey])
			if !ok {
				continue
			}
			part, okPart := domain.Numeric(row[c.PartKey])
			complement, okComp := domain.Numeric(row[c.ComplementKey])
			if !okPart || !okComp || part+complement == 0 {
				continue
			}
			expected := 100 * part / (part + complement)
			if diff := math.Abs(rate - expected); diff > c.tolerance() {
				report.Issues = append(report.Issues, domain.RuleIssue{
					Code: CodeFormulaMismatch,
					Message: fmt.Sprintf("%s: row %d reports %s = %g but 100*%s/(%s+%s) = %.2f",
						res.QueryID, i, c.RateKey, rate, c.PartKey, c.PartKey, c.ComplementKey, expected),
					Severity: domain.SeverityWarning,
				})
			}
		}
	}
	return report
}

// SignalCoherence flags entity/period pairs where one result carries a drop
// signal while another reports positive growth for the same pair. The first
// result is scanned for signals, every other result for growth values.
type SignalCoherence struct {
	CheckID   string
	EntityKey string
	PeriodKey string
	SignalKey string
	GrowthKey string
}

func (c SignalCoherence) ID() string {
	if c.CheckID != "" {
		return c.CheckID
	}
	return "signal_coherence"
}

func (c SignalCoherence) Run(results []*domain.QueryResult) domain.TriangulationResult {
	report := domain.TriangulationResult{CheckID: c.ID()}
	if len(results) < 2 {
		return report
	}

	signals := map[string]bool{}
	for _, row := range results[0].Frame.Rows {
		if isDropSignal(row[c.SignalKey]) {
			signals[pairKey(row, c.EntityKey, c.PeriodKey)] = true
		}
	}
	if len(signals) == 0 {
		return report
	}

	for _, res := range results[1:] {
		for _, row := range res.Frame.Rows {
			key := pairKey(row, c.EntityKey, c.PeriodKey)
			if !signals[key] {
				continue
			}
			growth, ok := domain.Numeric(row[c.GrowthKey])
			if !ok || growth <= 0 {
				continue
			}
			report.Issues = append(report.Issues, domain.RuleIssue{
				Code: CodeSignalConflict,
				Message: fmt.Sprintf("%s reports drop signal for %q while %s reports %s = %g",
					results[0].QueryID, key, res.QueryID, c.GrowthKey, growth),
				Severity: domain.SeverityWarning,
			})
		}
	}
	return report
}

// isDropSignal interprets a signal field: boolean true, or a string naming a
// drop/decline/warning state.
func isDropSignal(v any) bool {
	switch s := v.(type) {
	case bool:
		return s
	case string:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "drop", "decline", "warning", "alert":
			return true
		}
	}
	return false
}

func groupKey(row domain.Row, keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprint(row[k]))
	}
	return strings.Join(parts, "\x1f")
}

func pairKey(row domain.Row, entityKey, periodKey string) string {
	return fmt.Sprint(row[entityKey]) + "/" + fmt.Sprint(row[periodKey])
}
