package index

import (
	"fmt"

	"github.com/kailas-cloud/annosearch/internal/db"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
	"github.com/kailas-cloud/annosearch/internal/mapping"
)

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// buildIndex creates an IndexDefinition over a dataset's record documents.
func buildIndex(name, recordPrefix string, spec mapping.Spec, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	b := db.NewIndex(name, recordPrefix)
	if err := addSpec(b, spec, hnsw); err != nil {
		return nil, err
	}
	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", name, err)
	}
	return def, nil
}

// indexFields translates a mapping delta into engine fields.
func indexFields(spec mapping.Spec, hnsw HNSWConfig) ([]db.IndexField, error) {
	b := db.NewIndex("", "")
	if err := addSpec(b, spec, hnsw); err != nil {
		return nil, err
	}
	return b.Fields(), nil
}

// addSpec adds the indexed mapping entries. Entries with Index=false
// (free-text answers) are stored but not indexed.
func addSpec(b *db.IndexBuilder, spec mapping.Spec, hnsw HNSWConfig) error {
	for _, p := range spec.Properties {
		if !p.Index {
			continue
		}
		if err := addProperty(b, p, hnsw); err != nil {
			return err
		}
	}
	for _, t := range spec.DynamicTemplates {
		if !t.Index {
			continue
		}
		if err := addTemplate(b, t); err != nil {
			return err
		}
	}
	return nil
}

func addProperty(b *db.IndexBuilder, p mapping.Property, hnsw HNSWConfig) error {
	path, key := mapping.JSONPath(p.Scope), db.FieldKey(p.Scope)

	// Suggestion values of every answer type are projected as keyword arrays.
	if p.Scope.Kind() == scope.KindSuggestion && p.Scope.Property() == scope.SuggestionValue {
		b.Keyword(path+"[*]", key).Missing()
		return nil
	}

	switch p.Type {
	case schema.IndexKeyword:
		b.Keyword(path, key)
		// record keywords back the legacy id/status sort_by names
		if p.Scope.Kind() == scope.KindRecord {
			b.Sortable()
		}
	case schema.IndexDate:
		b.Number(path, key).Sortable()
	case schema.IndexInteger, schema.IndexFloat:
		b.Number(path, key).Missing()
	case schema.IndexText:
		b.Text(path, key)
	case schema.IndexDenseVector:
		b.Vector(path, key, p.Dims, hnsw.M, hnsw.EFConstruct)
	default:
		return fmt.Errorf("unsupported mapping type %s for %s", p.Type, p.Path)
	}
	return nil
}

func addTemplate(b *db.IndexBuilder, t mapping.DynamicTemplate) error {
	switch t.Kind {
	case mapping.TemplateResponseStatus:
		b.Keyword(mapping.PathResponseStatus+"[*]", db.FieldResponseStatus).
			Keyword(mapping.PathResponseUsers+"[*]", db.FieldResponseUsers)
	case mapping.TemplateResponseValue:
		b.Keyword(mapping.ResponseValuePath(t.Name)+"[*]", db.ResponseValueKey(t.Name))
	case mapping.TemplateMetadata:
		sc := scope.Metadata(t.Name)
		switch t.Type {
		case schema.IndexKeyword:
			b.Keyword(mapping.JSONPath(sc), db.FieldKey(sc))
		case schema.IndexInteger, schema.IndexFloat:
			b.Number(mapping.JSONPath(sc), db.FieldKey(sc))
		default:
			return fmt.Errorf("unsupported metadata mapping type %s for %s", t.Type, t.Name)
		}
		b.Sortable().Missing()
	default:
		return fmt.Errorf("unknown dynamic template %s", t.Kind)
	}
	return nil
}
