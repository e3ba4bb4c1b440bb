package transform

import (
	"fmt"

	"dataquery/internal/domain"
)

// Parameter decoding helpers. Step params arrive as loosely-typed maps from
// YAML or JSON; each accessor validates shape and reports a TransformError.

func stringParam(step string, params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", domain.ErrTransform(step, "missing required param %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", domain.ErrTransform(step, "param %q must be a non-empty string, got %T", key, v)
	}
	return s, nil
}

func stringSliceParam(step string, params map[string]any, key string) ([]string, error) {
	v, ok := params[key]
	if !ok {
		return nil, domain.ErrTransform(step, "missing required param %q", key)
	}
	return coerceStringSlice(step, key, v)
}

func optionalStringSliceParam(step string, params map[string]any, key string) ([]string, error) {
	v, ok := params[key]
	if !ok {
		return nil, nil
	}
	return coerceStringSlice(step, key, v)
}

func coerceStringSlice(step, key string, v any) ([]string, error) {
	switch vv := v.(type) {
	case []string:
		return append([]string(nil), vv...), nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, domain.ErrTransform(step, "param %q must be a list of strings, got element %T", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		// Single value shorthand.
		return []string{vv}, nil
	default:
		return nil, domain.ErrTransform(step, "param %q must be a list of strings, got %T", key, v)
	}
}

func intParam(step string, params map[string]any, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, domain.ErrTransform(step, "missing required param %q", key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, domain.ErrTransform(step, "param %q must be an integer, got %v", key, n)
		}
		return int(n), nil
	default:
		return 0, domain.ErrTransform(step, "param %q must be an integer, got %T", key, v)
	}
}

func optionalFloatParam(step string, params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	f, ok := domain.Numeric(v)
	if !ok {
		return 0, domain.ErrTransform(step, "param %q must be numeric, got %T", key, v)
	}
	return f, nil
}

func optionalBoolParam(step string, params map[string]any, key string, def bool) (bool, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, domain.ErrTransform(step, "param %q must be a boolean, got %T", key, v)
	}
	return b, nil
}

func mapParam(step string, params map[string]any, key string) (map[string]any, error) {
	v, ok := params[key]
	if !ok {
		return nil, domain.ErrTransform(step, "missing required param %q", key)
	}
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		// Older YAML decoders produce interface keys.
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, domain.ErrTransform(step, "param %q must have string keys, got %T", key, k)
			}
			out[ks] = val
		}
		return out, nil
	default:
		return nil, domain.ErrTransform(step, "param %q must be a mapping, got %T", key, v)
	}
}

func stringMapParam(step string, params map[string]any, key string) (map[string]string, error) {
	raw, err := mapParam(step, params, key)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, domain.ErrTransform(step, "param %q value for %q must be a string, got %T", key, k, v)
		}
		out[k] = s
	}
	return out, nil
}

// looseEqual compares scalars numerically when both sides parse as numbers,
// otherwise by string form. YAML filters carry ints while connectors emit
// float64; 2024 must match 2024.0.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	fa, okA := domain.Numeric(a)
	fb, okB := domain.Numeric(b)
	if okA && okB {
		return fa == fb
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareValues orders scalars for sorting: nil first, then numbers, then
// strings by lexical order. Mixed numeric/string falls back to string form.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	fa, okA := domain.Numeric(a)
	fb, okB := domain.Numeric(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	sa, sb := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}
