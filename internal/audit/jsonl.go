package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"dataquery/internal/domain"
)

// JSONLWriter appends execution records to a file, one JSON object per line.
// Useful where the state database is not wanted, e.g. log shipping setups.
type JSONLWriter struct {
	mu   sync.Mutex
	path string
}

// NewJSONLWriter creates a writer appending to path.
func NewJSONLWriter(path string) *JSONLWriter {
	return &JSONLWriter{path: path}
}

// Append writes one line. The file is opened per call so rotation by an
// external tool never holds a handle hostage.
func (w *JSONLWriter) Append(_ context.Context, rec *domain.ExecutionRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit jsonl: marshal: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // operator-configured path
	if err != nil {
		return fmt.Errorf("audit jsonl: open %s: %w", w.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit jsonl: write %s: %w", w.path, err)
	}
	return nil
}

// MultiSink fans one record out to several sinks. The first error wins but
// every sink still sees the record.
type MultiSink struct {
	sinks []domain.AuditSink
}

// NewMultiSink composes sinks.
func NewMultiSink(sinks ...domain.AuditSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Append forwards to every sink.
func (m *MultiSink) Append(ctx context.Context, rec *domain.ExecutionRecord) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Append(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// unixMilli converts a millisecond timestamp back to time.Time in UTC.
func unixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var (
	_ domain.AuditSink = (*JSONLWriter)(nil)
	_ domain.AuditSink = (*MultiSink)(nil)
)
