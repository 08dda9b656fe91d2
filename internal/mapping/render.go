package mapping

import "github.com/kailas-cloud/annosearch/internal/domain/schema"

// Document renders the Spec as an Elasticsearch-style mapping body.
// Field names stay flat and dotted (subobjects disabled).
func (s Spec) Document() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for _, p := range s.Properties {
		props[p.Path] = fieldMapping(p.Type, p.Index, p.Dims)
	}

	templates := make([]map[string]any, 0, len(s.DynamicTemplates))
	for _, t := range s.DynamicTemplates {
		templates = append(templates, map[string]any{
			t.ID(): map[string]any{
				"path_match": t.PathMatch,
				"mapping":    fieldMapping(t.Type, t.Index, 0),
			},
		})
	}

	return map[string]any{
		"mappings": map[string]any{
			"dynamic":           "true",
			"subobjects":        false,
			"dynamic_templates": templates,
			"properties":        props,
		},
	}
}

func fieldMapping(t schema.IndexType, index bool, dims int) map[string]any {
	m := map[string]any{"type": string(t)}
	switch {
	case t == schema.IndexDenseVector:
		m["dims"] = dims
		m["index"] = true
		m["similarity"] = "cosine"
	case !index:
		m["index"] = false
	}
	return m
}
