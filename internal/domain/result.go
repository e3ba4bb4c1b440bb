package domain

// Provenance identifies the originating dataset, location, and license of a
// result. License is enriched from a side catalog only when the connector
// left it empty.
type Provenance struct {
	DatasetID     string   `json:"dataset_id"`
	Locator       string   `json:"locator"`
	License       string   `json:"license,omitempty"`
	Attribution   string   `json:"attribution,omitempty"`
	FieldsPresent []string `json:"fields_present,omitempty"`
}

// Freshness carries the derived as-of date and SLA outcome for a result.
// AsOfDate is derived from spec constraints or the data itself, never from
// the wall clock.
type Freshness struct {
	AsOfDate string `json:"asof_date,omitempty"` // YYYY-MM-DD, empty when underivable
	SLADays  int    `json:"sla_days,omitempty"`
}

// QueryResult is the value object produced by one orchestrator execution.
// Warnings accumulate across every stage and are append-only: no stage clears
// another stage's warnings.
type QueryResult struct {
	QueryID    string     `json:"query_id"`
	Frame      Frame      `json:"frame"`
	Provenance Provenance `json:"provenance"`
	Freshness  Freshness  `json:"freshness"`
	Unit       Unit       `json:"unit"`
	Warnings   []string   `json:"warnings,omitempty"`
	CacheHit   bool       `json:"cache_hit"`
}

// AddWarning appends a warning code, skipping exact duplicates so cached
// re-evaluation does not stack identical codes.
func (r *QueryResult) AddWarning(code string) {
	for _, w := range r.Warnings {
		if w == code {
			return
		}
	}
	r.Warnings = append(r.Warnings, code)
}

// Clone returns a deep copy. Cache reads hand out clones so concurrent
// callers never share mutable rows.
func (r *QueryResult) Clone() *QueryResult {
	out := *r
	out.Frame = r.Frame.Clone()
	out.Warnings = append([]string(nil), r.Warnings...)
	out.Provenance.FieldsPresent = append([]string(nil), r.Provenance.FieldsPresent...)
	return &out
}
