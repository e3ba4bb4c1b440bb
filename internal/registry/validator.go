package registry

import (
	"strings"

	"dataquery/internal/domain"
	"dataquery/internal/transform"
)

// Valid source kinds.
var validSources = map[domain.SourceKind]bool{
	domain.SourceTabularFile: true,
	domain.SourceRemoteStats: true,
}

// Valid expected units.
var validUnits = map[domain.Unit]bool{
	domain.UnitCount:    true,
	domain.UnitPercent:  true,
	domain.UnitCurrency: true,
	domain.UnitIndex:    true,
	domain.UnitUnknown:  true,
}

// maxSLADays bounds the freshness SLA to a decade.
const maxSLADays = 3650

// validateSpec checks required fields, enum membership, SLA bounds, and
// transform names. Transform names are rejected at load time; their params
// are validated later, at apply time.
func validateSpec(path string, spec *domain.QuerySpec) error {
	if strings.TrimSpace(spec.ID) == "" {
		return domain.ErrValidation("%s: missing required field %q", path, "id")
	}
	if spec.Source == "" {
		return domain.ErrValidation("%s: missing required field %q", path, "source")
	}
	if !validSources[spec.Source] {
		return domain.ErrValidation("%s: unknown source %q", path, spec.Source)
	}
	if spec.ExpectedUnit == "" {
		spec.ExpectedUnit = domain.UnitUnknown
	}
	if !validUnits[spec.ExpectedUnit] {
		return domain.ErrValidation("%s: unknown expected_unit %q", path, spec.ExpectedUnit)
	}
	if spec.Constraints.SLADays < 0 || spec.Constraints.SLADays > maxSLADays {
		return domain.ErrValidation("%s: sla_days must be in [0, %d], got %d", path, maxSLADays, spec.Constraints.SLADays)
	}
	for i, step := range spec.Postprocess {
		if !transform.Known(step.Name) {
			return domain.ErrValidation("%s: postprocess[%d]: unknown transform %q (known: %s)",
				path, i, step.Name, strings.Join(transform.Names(), ", "))
		}
	}
	return nil
}
