package domain

import "strconv"

// Row maps field name to a scalar value: float64, string, or nil. Ordering of
// fields is tracked at the frame level, not per row.
type Row map[string]any

// Frame is an ordered tabular result: a column order plus rows sharing the
// same field set semantics. Transforms may add or remove columns.
type Frame struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Clone returns a deep copy of the frame. Transforms that reorder or rewrite
// rows operate on copies so earlier stages stay untouched.
func (f Frame) Clone() Frame {
	out := Frame{Columns: make([]string, len(f.Columns)), Rows: make([]Row, len(f.Rows))}
	copy(out.Columns, f.Columns)
	for i, r := range f.Rows {
		nr := make(Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out.Rows[i] = nr
	}
	return out
}

// HasColumn reports whether the frame's column order contains name.
func (f Frame) HasColumn(name string) bool {
	for _, c := range f.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends name to the column order if not already present.
func (f *Frame) AddColumn(name string) {
	if !f.HasColumn(name) {
		f.Columns = append(f.Columns, name)
	}
}

// Numeric coerces a scalar to float64. Strings are parsed; nil, booleans, and
// unparseable strings report ok=false.
func Numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
