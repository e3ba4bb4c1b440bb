// Package audit records one append-only line per orchestrator execution.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"dataquery/internal/domain"
)

// SQLiteRepo persists execution records in the engine's state database.
type SQLiteRepo struct {
	db *sql.DB
}

// NewSQLiteRepo creates a repo over an already-migrated database handle.
func NewSQLiteRepo(db *sql.DB) *SQLiteRepo {
	return &SQLiteRepo{db: db}
}

// Append inserts one execution record. Records are never updated or deleted.
func (r *SQLiteRepo) Append(ctx context.Context, rec *domain.ExecutionRecord) error {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("audit append: marshal params: %w", err)
	}
	warnings, err := json.Marshal(rec.Warnings)
	if err != nil {
		return fmt.Errorf("audit append: marshal warnings: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO execution_audit
		   (execution_id, query_id, params, ts, row_count, duration_ms, cache_hit, warnings)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ExecutionID, rec.QueryID, string(params), rec.Timestamp.UnixMilli(),
		rec.RowCount, rec.DurationMs, boolToInt(rec.CacheHit), string(warnings))
	if err != nil {
		return fmt.Errorf("audit append: %w", err)
	}
	return nil
}

// List returns records matching the filter, newest first.
func (r *SQLiteRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.ExecutionRecord, error) {
	query := `SELECT execution_id, query_id, params, ts, row_count, duration_ms, cache_hit, warnings
	          FROM execution_audit WHERE 1=1`
	args := []any{}
	if filter.QueryID != nil {
		query += ` AND query_id = ?`
		args = append(args, *filter.QueryID)
	}
	if filter.CacheHit != nil {
		query += ` AND cache_hit = ?`
		args = append(args, boolToInt(*filter.CacheHit))
	}
	query += ` ORDER BY ts DESC`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit list: %w", err)
	}
	defer rows.Close()

	var out []domain.ExecutionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit list: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (*domain.ExecutionRecord, error) {
	var rec domain.ExecutionRecord
	var params, warnings sql.NullString
	var ts int64
	var cacheHit int
	if err := rows.Scan(&rec.ExecutionID, &rec.QueryID, &params, &ts,
		&rec.RowCount, &rec.DurationMs, &cacheHit, &warnings); err != nil {
		return nil, fmt.Errorf("audit scan: %w", err)
	}
	rec.Timestamp = unixMilli(ts)
	rec.CacheHit = cacheHit != 0
	if params.Valid && params.String != "" && params.String != "null" {
		if err := json.Unmarshal([]byte(params.String), &rec.Params); err != nil {
			return nil, fmt.Errorf("audit scan: params: %w", err)
		}
	}
	if warnings.Valid && warnings.String != "" && warnings.String != "null" {
		if err := json.Unmarshal([]byte(warnings.String), &rec.Warnings); err != nil {
			return nil, fmt.Errorf("audit scan: warnings: %w", err)
		}
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domain.AuditSink = (*SQLiteRepo)(nil)
