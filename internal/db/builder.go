package db

// IndexBuilder assembles a record index field by field. Modifiers apply to
// the most recently added field.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts an index over the documents stored under prefix.
func NewIndex(name, prefix string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name, Prefix: prefix}}
}

// Keyword adds a case sensitive TAG field.
func (b *IndexBuilder) Keyword(path, key string) *IndexBuilder {
	return b.add(IndexField{Name: path, Alias: key, Type: IndexFieldTag, TagCaseSensitive: true})
}

// Number adds a NUMERIC field.
func (b *IndexBuilder) Number(path, key string) *IndexBuilder {
	return b.add(IndexField{Name: path, Alias: key, Type: IndexFieldNumeric})
}

// Text adds a full-text field.
func (b *IndexBuilder) Text(path, key string) *IndexBuilder {
	return b.add(IndexField{Name: path, Alias: key, Type: IndexFieldText})
}

// Vector adds an HNSW vector field. Zero m or efConstruct take the defaults.
func (b *IndexBuilder) Vector(path, key string, dims, m, efConstruct int) *IndexBuilder {
	if m <= 0 {
		m = DefaultHNSWM
	}
	if efConstruct <= 0 {
		efConstruct = DefaultHNSWEFConstruct
	}
	return b.add(IndexField{
		Name:              path,
		Alias:             key,
		Type:              IndexFieldVector,
		VectorDim:         dims,
		VectorM:           m,
		VectorEFConstruct: efConstruct,
	})
}

// Sortable marks the last field SORTABLE. Vectors are never sortable.
func (b *IndexBuilder) Sortable() *IndexBuilder {
	if f := b.last(); f != nil && f.Type != IndexFieldVector {
		f.Sortable = true
	}
	return b
}

// Missing marks the last field INDEXMISSING.
func (b *IndexBuilder) Missing() *IndexBuilder {
	if f := b.last(); f != nil && f.Type != IndexFieldVector {
		f.IndexMissing = true
	}
	return b
}

// Fields returns the fields added so far without validating the index.
func (b *IndexBuilder) Fields() []IndexField {
	return append([]IndexField(nil), b.def.Fields...)
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	def := b.def
	def.Fields = b.Fields()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// MustBuild calls Build and panics on error.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

func (b *IndexBuilder) add(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

func (b *IndexBuilder) last() *IndexField {
	if n := len(b.def.Fields); n > 0 {
		return &b.def.Fields[n-1]
	}
	return nil
}
