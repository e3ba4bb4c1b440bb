package connector

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"dataquery/internal/domain"
)

const (
	defaultMaxRows        = 50000
	defaultTabularTimeout = 10 * time.Second
)

// Tabular reads CSV files matched by a glob pattern under a configured base
// directory. It can project a column subset, filter on year equality, cap
// row counts, and rescale named numeric fields by a fixed multiplier. The
// rescale exists because upstream files mix percent and fractional
// representations; the mismatch is normalized once, here at the boundary.
type Tabular struct {
	baseDir string
	maxRows int
	timeout time.Duration
}

// TabularOption customizes a Tabular connector.
type TabularOption func(*Tabular)

// WithMaxRows overrides the default row cap.
func WithMaxRows(n int) TabularOption {
	return func(t *Tabular) { t.maxRows = n }
}

// WithTabularTimeout overrides the default wall-clock timeout.
func WithTabularTimeout(d time.Duration) TabularOption {
	return func(t *Tabular) { t.timeout = d }
}

// NewTabular creates a tabular-file connector rooted at baseDir.
func NewTabular(baseDir string, opts ...TabularOption) *Tabular {
	t := &Tabular{baseDir: baseDir, maxRows: defaultMaxRows, timeout: defaultTabularTimeout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Kind implements domain.Connector.
func (t *Tabular) Kind() domain.SourceKind { return domain.SourceTabularFile }

// Execute resolves params["pattern"] against the base directory and streams
// the matched CSV files into a frame. Recognized params:
//
//	pattern         file glob relative to the base directory (required)
//	columns         comma-separated projection, applied in given order
//	year            keep only rows whose "year" field equals this value
//	max_rows        per-call row cap (bounded by the connector cap)
//	rescale_fields  comma-separated numeric fields to multiply
//	rescale_factor  multiplier for rescale_fields (default 100)
func (t *Tabular) Execute(ctx context.Context, params map[string]string) (domain.Frame, domain.Provenance, error) {
	pattern := strings.TrimSpace(params["pattern"])
	if pattern == "" {
		return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("tabular_file", nil, "missing required param %q", "pattern")
	}
	if strings.Contains(pattern, "..") || filepath.IsAbs(pattern) {
		return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("tabular_file", nil, "pattern %q must stay under the data directory", pattern)
	}

	matches, err := filepath.Glob(filepath.Join(t.baseDir, pattern))
	if err != nil {
		return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("tabular_file", err, "bad pattern %q", pattern)
	}
	if len(matches) == 0 {
		return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("tabular_file", nil, "pattern %q matched no files", pattern)
	}
	sort.Strings(matches)

	maxRows := t.maxRows
	if v := params["max_rows"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("tabular_file", nil, "max_rows must be a positive integer, got %q", v)
		}
		if n < maxRows {
			maxRows = n
		}
	}

	var yearFilter *float64
	if v := params["year"]; v != "" {
		y, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("tabular_file", nil, "year must be numeric, got %q", v)
		}
		yearFilter = &y
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	frame := domain.Frame{}
	for _, path := range matches {
		if err := t.readFile(ctx, path, yearFilter, maxRows, &frame); err != nil {
			return domain.Frame{}, domain.Provenance{}, err
		}
		if len(frame.Rows) >= maxRows {
			break
		}
	}

	if cols := splitList(params["columns"]); len(cols) > 0 {
		frame = projectColumns(frame, cols)
	}
	if fields := splitList(params["rescale_fields"]); len(fields) > 0 {
		factor := 100.0
		if v := params["rescale_factor"]; v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return domain.Frame{}, domain.Provenance{}, domain.ErrConnector("tabular_file", nil, "rescale_factor must be numeric, got %q", v)
			}
			factor = f
		}
		rescaleFields(frame, fields, factor)
	}

	prov := domain.Provenance{
		DatasetID:     pattern,
		Locator:       filepath.Join(t.baseDir, pattern),
		FieldsPresent: append([]string(nil), frame.Columns...),
	}
	return frame, prov, nil
}

// readFile streams one CSV file into the frame, honoring the context
// deadline and the row cap. The first file's header fixes the column order;
// later files merely contribute rows for the fields they share.
func (t *Tabular) readFile(ctx context.Context, path string, yearFilter *float64, maxRows int, frame *domain.Frame) error {
	f, err := os.Open(path) //nolint:gosec // paths come from a glob under the configured base dir
	if err != nil {
		return domain.ErrConnector("tabular_file", err, "open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return domain.ErrConnector("tabular_file", err, "read header of %s", path)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(frame.Columns) == 0 {
		frame.Columns = header
	}

	yearIdx := -1
	for i, h := range header {
		if h == "year" {
			yearIdx = i
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return domain.ErrConnector("tabular_file", err, "timed out reading %s", path)
		}
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return domain.ErrConnector("tabular_file", err, "read %s", path)
		}

		if yearFilter != nil && yearIdx >= 0 && yearIdx < len(record) {
			y, ok := domain.Numeric(record[yearIdx])
			if !ok || y != *yearFilter {
				continue
			}
		}

		row := make(domain.Row, len(header))
		for i, h := range header {
			if i >= len(record) {
				row[h] = nil
				continue
			}
			row[h] = coerceCell(record[i])
		}
		frame.Rows = append(frame.Rows, row)
		if len(frame.Rows) >= maxRows {
			return nil
		}
	}
}

// coerceCell converts a CSV cell to float64 when it parses as a number,
// nil when empty, and the raw string otherwise.
func coerceCell(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func projectColumns(f domain.Frame, cols []string) domain.Frame {
	out := domain.Frame{Columns: cols, Rows: make([]domain.Row, len(f.Rows))}
	for i, r := range f.Rows {
		nr := make(domain.Row, len(cols))
		for _, c := range cols {
			if v, ok := r[c]; ok {
				nr[c] = v
			} else {
				nr[c] = nil
			}
		}
		out.Rows[i] = nr
	}
	return out
}

func rescaleFields(f domain.Frame, fields []string, factor float64) {
	for _, r := range f.Rows {
		for _, field := range fields {
			if v, ok := domain.Numeric(r[field]); ok && r[field] != nil {
				r[field] = v * factor
			}
		}
	}
}

var _ domain.Connector = (*Tabular)(nil)
