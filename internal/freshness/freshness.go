// Package freshness derives an as-of date for a result set and compares it
// against a per-query staleness bound. The evaluator never fails; it only
// appends warnings.
package freshness

import (
	"fmt"
	"strings"
	"time"

	"dataquery/internal/domain"
)

// Warning codes appended by Evaluate.
const (
	WarnUnknown    = "freshness_unknown"
	WarnParseError = "freshness_parse_error"
	WarnAmbiguous  = "freshness_ambiguous"
)

const isoDate = "2006-01-02"

// placeholders are spec asof values that mean "not actually set".
var placeholders = map[string]bool{
	"": true, "unknown": true, "n/a": true, "na": true, "tbd": true,
}

// Evaluate derives the as-of date for a frame by priority: explicit spec
// constraint, maximum ISO date field in rows, maximum year field mapped to
// year-end, then a remote-statistics fallback from the spec's year params.
// When a row-level date and a row-level year disagree, the date field wins
// and the result is flagged ambiguous rather than guessed at.
func Evaluate(spec *domain.QuerySpec, frame domain.Frame, now time.Time) (domain.Freshness, []string) {
	var warnings []string
	fresh := domain.Freshness{SLADays: spec.Constraints.SLADays}

	asof, w := deriveAsOf(spec, frame)
	warnings = append(warnings, w...)

	if asof == nil {
		warnings = append(warnings, WarnUnknown)
		return fresh, warnings
	}
	fresh.AsOfDate = asof.Format(isoDate)

	if spec.Constraints.SLADays > 0 {
		age := int(now.Sub(*asof).Hours() / 24)
		if age > spec.Constraints.SLADays {
			warnings = append(warnings, fmt.Sprintf("stale_data:%d>%d", age, spec.Constraints.SLADays))
		}
	}
	return fresh, warnings
}

func deriveAsOf(spec *domain.QuerySpec, frame domain.Frame) (*time.Time, []string) {
	var warnings []string

	// 1. Explicit non-placeholder constraint date.
	if raw := strings.TrimSpace(strings.ToLower(spec.Constraints.AsOf)); !placeholders[raw] {
		t, err := time.Parse(isoDate, spec.Constraints.AsOf)
		if err == nil {
			return &t, nil
		}
		warnings = append(warnings, WarnParseError)
	}

	// 2. Maximum parseable ISO date across row fields.
	maxDate := maxRowDate(frame)

	// 3. Maximum year field, mapped to year-end.
	maxYear := maxRowYear(frame)

	if maxDate != nil {
		if maxYear != 0 && maxDate.Year() != maxYear {
			warnings = append(warnings, WarnAmbiguous)
		}
		return maxDate, warnings
	}
	if maxYear != 0 {
		t := time.Date(maxYear, time.December, 31, 0, 0, 0, 0, time.UTC)
		return &t, warnings
	}

	// 4. Remote-statistics fallback: the requested year bounds stand in for
	// observation dates when the payload carried none.
	if spec.Source == domain.SourceRemoteStats {
		for _, key := range []string{"end_year", "start_year"} {
			if v := strings.TrimSpace(spec.Params[key]); v != "" {
				t, err := time.Parse("2006", v)
				if err != nil {
					warnings = append(warnings, WarnParseError)
					continue
				}
				end := time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
				return &end, warnings
			}
		}
	}

	return nil, warnings
}

// maxRowDate scans every string field for ISO dates and returns the maximum.
func maxRowDate(frame domain.Frame) *time.Time {
	var max *time.Time
	for _, r := range frame.Rows {
		for _, v := range r {
			s, ok := v.(string)
			if !ok {
				continue
			}
			t, err := time.Parse(isoDate, s)
			if err != nil {
				continue
			}
			if max == nil || t.After(*max) {
				tt := t
				max = &tt
			}
		}
	}
	return max
}

// maxRowYear returns the maximum plausible year value from "year" fields.
func maxRowYear(frame domain.Frame) int {
	max := 0
	for _, r := range frame.Rows {
		v, ok := r["year"]
		if !ok {
			continue
		}
		f, ok := domain.Numeric(v)
		if !ok {
			continue
		}
		y := int(f)
		if y >= 1800 && y <= 2200 && y > max {
			max = y
		}
	}
	return max
}
