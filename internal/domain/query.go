package domain

// SourceKind enumerates the supported data source kinds.
type SourceKind string

const (
	SourceTabularFile SourceKind = "tabular_file"
	SourceRemoteStats SourceKind = "remote_stats"
)

// Unit describes the measurement unit a query is expected to return.
type Unit string

const (
	UnitCount    Unit = "count"
	UnitPercent  Unit = "percent"
	UnitCurrency Unit = "currency"
	UnitIndex    Unit = "index"
	UnitUnknown  Unit = "unknown"
)

// TransformStep is one named postprocess step. Params are stored loosely and
// validated against the step's schema when the pipeline is applied.
type TransformStep struct {
	Name   string         `yaml:"name" json:"name"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Constraints holds optional per-query guarantees.
type Constraints struct {
	SumToOne bool `yaml:"sum_to_one,omitempty" json:"sum_to_one,omitempty"`
	// SLADays is the freshness service level in days. 0 means no SLA.
	SLADays int `yaml:"sla_days,omitempty" json:"sla_days,omitempty"`
	// AsOf is an explicit as-of date (YYYY-MM-DD). Placeholder values like
	// "unknown" are ignored by the freshness evaluator.
	AsOf string `yaml:"asof,omitempty" json:"asof,omitempty"`
}

// QuerySpec is the immutable declarative definition of one query. Specs are
// created at registry load time; callers wanting a variant must Clone first.
type QuerySpec struct {
	ID           string            `yaml:"id" json:"id"`
	Title        string            `yaml:"title,omitempty" json:"title,omitempty"`
	Description  string            `yaml:"description,omitempty" json:"description,omitempty"`
	Source       SourceKind        `yaml:"source" json:"source"`
	Params       map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	ExpectedUnit Unit              `yaml:"expected_unit,omitempty" json:"expected_unit,omitempty"`
	Constraints  Constraints       `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Postprocess  []TransformStep   `yaml:"postprocess,omitempty" json:"postprocess,omitempty"`
	// Refresh is an optional cron expression for scheduled cache warming.
	Refresh string `yaml:"refresh,omitempty" json:"refresh,omitempty"`
}

// Clone returns a deep copy of the spec. Overrides always build on a clone so
// the registry's stored spec is never mutated.
func (s *QuerySpec) Clone() *QuerySpec {
	out := *s
	if s.Params != nil {
		out.Params = make(map[string]string, len(s.Params))
		for k, v := range s.Params {
			out.Params[k] = v
		}
	}
	if s.Postprocess != nil {
		out.Postprocess = make([]TransformStep, len(s.Postprocess))
		for i, step := range s.Postprocess {
			out.Postprocess[i] = TransformStep{Name: step.Name, Params: cloneParams(step.Params)}
		}
	}
	return &out
}

// WithParams returns a clone with the given parameter overrides applied on
// top of the spec's own params.
func (s *QuerySpec) WithParams(overrides map[string]string) *QuerySpec {
	out := s.Clone()
	if out.Params == nil {
		out.Params = make(map[string]string, len(overrides))
	}
	for k, v := range overrides {
		out.Params[k] = v
	}
	return out
}

// WithPostprocess returns a clone with the postprocess list replaced.
func (s *QuerySpec) WithPostprocess(steps []TransformStep) *QuerySpec {
	out := s.Clone()
	out.Postprocess = make([]TransformStep, len(steps))
	for i, step := range steps {
		out.Postprocess[i] = TransformStep{Name: step.Name, Params: cloneParams(step.Params)}
	}
	return out
}

func cloneParams(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case map[string]any:
			out[k] = cloneParams(vv)
		case []any:
			cp := make([]any, len(vv))
			copy(cp, vv)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}
