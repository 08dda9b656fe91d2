package memory

import (
	"strconv"

	"github.com/kailas-cloud/annosearch/internal/db"
)

// fieldValues normalizes resolved JSON values for a field type:
// strings for TAG and TEXT, float64 for NUMERIC, []float32 for VECTOR.
// Values of the wrong type are not indexed.
func fieldValues(f *db.IndexField, resolved []any) []any {
	var out []any
	for _, v := range resolved {
		if f.Type == db.IndexFieldVector {
			if vec, ok := toVector(v); ok && len(vec) == f.VectorDim {
				out = append(out, vec)
			}
			continue
		}
		if arr, ok := v.([]any); ok {
			for _, el := range arr {
				if nv, ok := scalarValue(f, el); ok {
					out = append(out, nv)
				}
			}
			continue
		}
		if nv, ok := scalarValue(f, v); ok {
			out = append(out, nv)
		}
	}
	return out
}

func scalarValue(f *db.IndexField, v any) (any, bool) {
	switch f.Type {
	case db.IndexFieldNumeric:
		n, ok := v.(float64)
		return n, ok
	case db.IndexFieldTag:
		switch t := v.(type) {
		case string:
			return t, true
		case bool:
			return strconv.FormatBool(t), true
		}
	case db.IndexFieldText:
		s, ok := v.(string)
		return s, ok
	}
	return nil, false
}

func toVector(v any) ([]float32, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil, false
	}
	vec := make([]float32, len(arr))
	for i, el := range arr {
		n, ok := el.(float64)
		if !ok {
			return nil, false
		}
		vec[i] = float32(n)
	}
	return vec, true
}
