package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode"
)

// toFloat converts decoded JSON numbers and Go numeric types to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// toInt accepts numbers without a fractional part.
func toInt(v any) (int64, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// toStrings accepts a string or a list of strings.
func toStrings(v any) ([]string, bool) {
	switch s := v.(type) {
	case string:
		return []string{s}, true
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}

// toObjects accepts a list of JSON objects.
func toObjects(v any) ([]map[string]any, bool) {
	switch s := v.(type) {
	case []map[string]any:
		return s, true
	case []any:
		out := make([]map[string]any, 0, len(s))
		for _, item := range s {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			out = append(out, m)
		}
		return out, true
	default:
		return nil, false
	}
}

// KeywordValues flattens a stored value into the keyword terms it is indexed under.
// Ranking values index their option values, spans their labels.
func KeywordValues(v any) []string {
	if strs, ok := toStrings(v); ok {
		return strs
	}
	if objs, ok := toObjects(v); ok {
		out := make([]string, 0, len(objs))
		for _, o := range objs {
			if s, ok := o["value"].(string); ok {
				out = append(out, s)
				continue
			}
			if s, ok := o["label"].(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if f, ok := toFloat(v); ok {
		return []string{FormatNumber(f)}
	}
	if b, ok := v.(bool); ok {
		return []string{fmt.Sprint(b)}
	}
	return nil
}

// NumericValue returns the number stored in v.
func NumericValue(v any) (float64, bool) {
	return toFloat(v)
}

// FormatNumber renders a number the way keyword terms compare it.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
