package domain

import "time"

// ExecutionRecord is one append-only audit line per orchestrator execution.
type ExecutionRecord struct {
	ExecutionID string            `json:"execution_id"`
	QueryID     string            `json:"query_id"`
	Params      map[string]string `json:"params,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	RowCount    int               `json:"row_count"`
	DurationMs  int64             `json:"duration_ms"`
	CacheHit    bool              `json:"cache_hit"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// AuditFilter narrows audit listings.
type AuditFilter struct {
	QueryID  *string
	CacheHit *bool
	Limit    int
}
