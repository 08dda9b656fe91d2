// Package mapping derives a dataset's search index schema from its annotation schema.
//
// A Spec lists static properties (record attributes, text fields, suggestions,
// vectors) and dynamic templates for the open-ended namespaces: per-user
// responses and metadata. Spec.Document renders it as an Elasticsearch-style
// mapping body; the index repository translates it into engine fields.
package mapping

import (
	"fmt"

	"github.com/kailas-cloud/annosearch/internal/domain"
	"github.com/kailas-cloud/annosearch/internal/domain/schema"
	"github.com/kailas-cloud/annosearch/internal/domain/search/scope"
)

// IndexPrefix prefixes every dataset index name.
const IndexPrefix = "rg."

// IndexName returns the index backing a dataset.
func IndexName(datasetID string) string {
	return IndexPrefix + datasetID
}

// TemplateKind tells what a dynamic template matches.
type TemplateKind string

const (
	// TemplateResponseStatus matches responses.*.status.
	TemplateResponseStatus TemplateKind = "response_status"
	// TemplateResponseValue matches responses.*.values.<question>.
	TemplateResponseValue TemplateKind = "response_value"
	// TemplateMetadata matches metadata.<property>.
	TemplateMetadata TemplateKind = "metadata"
)

// Property is a static mapping entry.
type Property struct {
	Path  string
	Type  schema.IndexType
	Index bool
	Dims  int
	Scope scope.Scope
}

// DynamicTemplate maps every field matching PathMatch to one type.
// Name is the question or metadata property the template serves.
type DynamicTemplate struct {
	Kind      TemplateKind
	Name      string
	PathMatch string
	Type      schema.IndexType
	Index     bool
}

// ID returns the template identifier used in rendered mappings.
func (t DynamicTemplate) ID() string {
	if t.Name == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + "_" + t.Name
}

// Spec is a dataset's index mapping.
type Spec struct {
	Properties       []Property
	DynamicTemplates []DynamicTemplate
}

// reserved top-level names a question cannot take: "<question>.suggestion"
// would otherwise land inside a record attribute.
var reserved = map[string]bool{
	scope.RecordID: true, scope.RecordStatus: true, scope.RecordExternalID: true,
	scope.RecordInsertedAt: true, scope.RecordUpdatedAt: true,
	"fields": true, "metadata": true, "responses": true, "suggestions": true, "vectors": true, "search": true,
}

// Build produces the mapping for a dataset's current schema.
func Build(ds schema.Dataset) (Spec, error) {
	var s Spec

	for _, p := range recordProperties() {
		if err := s.addProperty(p); err != nil {
			return Spec{}, err
		}
	}
	if err := s.addTemplate(responseStatusTemplate()); err != nil {
		return Spec{}, err
	}

	for _, f := range ds.Fields() {
		if !f.IsText() {
			continue
		}
		if err := s.addProperty(Property{
			Path: scope.Field(f.Name()).Path(), Type: schema.IndexText, Index: true, Scope: scope.Field(f.Name()),
		}); err != nil {
			return Spec{}, err
		}
	}

	for _, q := range ds.Questions() {
		if reserved[q.Name()] {
			return Spec{}, domain.Configurationf("question name %q collides with a record attribute", q.Name())
		}
		if err := s.addQuestion(q); err != nil {
			return Spec{}, err
		}
	}

	for _, p := range ds.MetadataProperties() {
		if err := s.apply(MetadataPropertyDelta(p)); err != nil {
			return Spec{}, err
		}
	}

	for _, v := range ds.VectorsSettings() {
		if err := s.apply(VectorSettingsDelta(v)); err != nil {
			return Spec{}, err
		}
	}

	return s, nil
}

// MetadataPropertyDelta is the mapping a new metadata property adds to an existing index.
func MetadataPropertyDelta(p schema.MetadataProperty) Spec {
	frag := p.Settings().MappingFragment()
	return Spec{DynamicTemplates: []DynamicTemplate{{
		Kind:      TemplateMetadata,
		Name:      p.Name(),
		PathMatch: scope.Metadata(p.Name()).Path(),
		Type:      frag.Type,
		Index:     frag.Index,
	}}}
}

// VectorSettingsDelta is the mapping a new vector settings adds to an existing index.
func VectorSettingsDelta(v schema.VectorSettings) Spec {
	return Spec{Properties: []Property{{
		Path:  scope.Vector(v.Name()).Path(),
		Type:  schema.IndexDenseVector,
		Index: true,
		Dims:  v.Dimensions(),
		Scope: scope.Vector(v.Name()),
	}}}
}

// Apply returns s extended with delta. Entries already present with the same
// definition are skipped, so applying a delta twice equals applying it once.
func (s Spec) Apply(delta Spec) (Spec, error) {
	out := Spec{
		Properties:       append([]Property(nil), s.Properties...),
		DynamicTemplates: append([]DynamicTemplate(nil), s.DynamicTemplates...),
	}
	if err := out.apply(delta); err != nil {
		return Spec{}, err
	}
	return out, nil
}

// Property returns the static entry at path.
func (s Spec) Property(path string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Path == path {
			return p, true
		}
	}
	return Property{}, false
}

// Template returns the dynamic template whose PathMatch equals pathMatch.
func (s Spec) Template(pathMatch string) (DynamicTemplate, bool) {
	for _, t := range s.DynamicTemplates {
		if t.PathMatch == pathMatch {
			return t, true
		}
	}
	return DynamicTemplate{}, false
}

func (s *Spec) apply(delta Spec) error {
	for _, p := range delta.Properties {
		if err := s.addProperty(p); err != nil {
			return err
		}
	}
	for _, t := range delta.DynamicTemplates {
		if err := s.addTemplate(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Spec) addProperty(p Property) error {
	if existing, ok := s.Property(p.Path); ok {
		if existing.Type != p.Type || existing.Index != p.Index || existing.Dims != p.Dims {
			return domain.Configurationf("conflicting mapping for %q: %s vs %s", p.Path, existing.Type, p.Type)
		}
		return nil
	}
	s.Properties = append(s.Properties, p)
	return nil
}

func (s *Spec) addTemplate(t DynamicTemplate) error {
	if existing, ok := s.Template(t.PathMatch); ok {
		if existing.Type != t.Type || existing.Index != t.Index {
			return domain.Configurationf("conflicting mapping for %q: %s vs %s", t.PathMatch, existing.Type, t.Type)
		}
		return nil
	}
	s.DynamicTemplates = append(s.DynamicTemplates, t)
	return nil
}

func (s *Spec) addQuestion(q schema.Question) error {
	frag := q.Settings().MappingFragment()

	value, err := scope.Suggestion(q.Name(), scope.SuggestionValue)
	if err != nil {
		return fmt.Errorf("question %s: %w", q.Name(), err)
	}
	props := []Property{{Path: value.Path(), Type: frag.Type, Index: frag.Index, Scope: value}}
	for _, sp := range []struct {
		prop string
		typ  schema.IndexType
	}{
		{scope.SuggestionAgent, schema.IndexKeyword},
		{scope.SuggestionScore, schema.IndexFloat},
		{scope.SuggestionType, schema.IndexKeyword},
	} {
		sc, _ := scope.Suggestion(q.Name(), sp.prop)
		props = append(props, Property{Path: sc.Path(), Type: sp.typ, Index: true, Scope: sc})
	}

	for _, p := range props {
		if err := s.addProperty(p); err != nil {
			return err
		}
	}

	return s.addTemplate(DynamicTemplate{
		Kind:      TemplateResponseValue,
		Name:      q.Name(),
		PathMatch: "responses.*.values." + q.Name(),
		Type:      frag.Type,
		Index:     frag.Index,
	})
}

func recordProperties() []Property {
	props := make([]Property, 0, 5)
	for _, p := range []struct {
		name string
		typ  schema.IndexType
	}{
		{scope.RecordID, schema.IndexKeyword},
		{scope.RecordExternalID, schema.IndexKeyword},
		{scope.RecordStatus, schema.IndexKeyword},
		{scope.RecordInsertedAt, schema.IndexDate},
		{scope.RecordUpdatedAt, schema.IndexDate},
	} {
		sc := scope.MustRecord(p.name)
		props = append(props, Property{Path: sc.Path(), Type: p.typ, Index: true, Scope: sc})
	}
	return props
}

func responseStatusTemplate() DynamicTemplate {
	return DynamicTemplate{
		Kind:      TemplateResponseStatus,
		PathMatch: "responses.*.status",
		Type:      schema.IndexKeyword,
		Index:     true,
	}
}
