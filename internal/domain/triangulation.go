package domain

// Severity grades a triangulation issue.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// RuleIssue is one finding from a triangulation check.
type RuleIssue struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// TriangulationResult is the outcome of one check over one or more query
// results. Checks are advisory: issues never block the underlying result.
type TriangulationResult struct {
	CheckID string      `json:"check_id"`
	Issues  []RuleIssue `json:"issues"`
}

// Clean reports whether the check produced no issues.
func (t TriangulationResult) Clean() bool { return len(t.Issues) == 0 }
