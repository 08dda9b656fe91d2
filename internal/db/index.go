package db

import (
	"errors"
	"fmt"
	"strings"
)

// IndexFieldType enumerates the engine field types of a record index.
type IndexFieldType int

const (
	// IndexFieldNumeric backs integer, float and date values.
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag backs exact-match keywords.
	IndexFieldTag
	// IndexFieldText backs analyzed full-text fields.
	IndexFieldText
	// IndexFieldVector backs dense vectors (HNSW, FLOAT32, cosine).
	IndexFieldVector
)

func (t IndexFieldType) String() string {
	switch t {
	case IndexFieldNumeric:
		return "NUMERIC"
	case IndexFieldTag:
		return "TAG"
	case IndexFieldText:
		return "TEXT"
	case IndexFieldVector:
		return "VECTOR"
	default:
		return fmt.Sprintf("IndexFieldType(%d)", int(t))
	}
}

// HNSW defaults for vector fields that leave them unset.
const (
	DefaultHNSWM           = 16
	DefaultHNSWEFConstruct = 200
)

// IndexField is one indexed JSONPath of a record document.
// Queries address the field by Key().
type IndexField struct {
	Name     string // JSONPath, $.fields.text
	Alias    string // AS alias, fields.text
	Type     IndexFieldType
	Sortable bool

	// IndexMissing lets ismissing() match documents that lack the field.
	IndexMissing bool

	TagCaseSensitive bool

	VectorDim         int
	VectorM           int
	VectorEFConstruct int
}

// Key returns the name queries use for the field: the alias when set.
func (f *IndexField) Key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

func (f *IndexField) validate() error {
	if !strings.HasPrefix(f.Name, "$.") {
		return fmt.Errorf("field %q: path must start with $.", f.Name)
	}
	if f.Type == IndexFieldVector && f.VectorDim <= 0 {
		return fmt.Errorf("vector field %s requires positive dimensions", f.Key())
	}
	return nil
}

// IndexDefinition is an index over the JSON documents stored under Prefix.
type IndexDefinition struct {
	Name   string
	Prefix string
	Fields []IndexField
}

// Validate checks that the definition can be created.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" || strings.ContainsAny(idx.Name, " \t\r\n") {
		return fmt.Errorf("invalid index name %q", idx.Name)
	}
	if idx.Prefix == "" {
		return errors.New("index prefix is required")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if err := f.validate(); err != nil {
			return err
		}
		if _, dup := seen[f.Key()]; dup {
			return fmt.Errorf("duplicate field %s", f.Key())
		}
		seen[f.Key()] = struct{}{}
	}
	return nil
}

// Field looks up a field by its query key.
func (idx *IndexDefinition) Field(key string) (*IndexField, bool) {
	for i := range idx.Fields {
		if idx.Fields[i].Key() == key {
			return &idx.Fields[i], true
		}
	}
	return nil, false
}
