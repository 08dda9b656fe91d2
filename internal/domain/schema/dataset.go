package schema

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DatasetStatus is the dataset lifecycle state.
type DatasetStatus string

const (
	// DatasetDraft accepts schema changes and has no index.
	DatasetDraft DatasetStatus = "draft"
	// DatasetReady is published: the index exists and fields/questions are frozen.
	DatasetReady DatasetStatus = "ready"
)

// MaxVectorSettings bounds the vector spaces per dataset.
const MaxVectorSettings = 5

// Distribution is the response distribution strategy.
type Distribution struct {
	MinSubmitted int
}

// DefaultDistribution completes a record on its first submitted response.
func DefaultDistribution() Distribution {
	return Distribution{MinSubmitted: 1}
}

// Dataset is the annotation schema aggregate (immutable value object).
// Mutators return an updated copy.
type Dataset struct {
	id                 string
	name               string
	workspace          string
	guidelines         string
	status             DatasetStatus
	allowExtraMetadata bool
	distribution       Distribution
	fields             []Field
	questions          []Question
	metadata           []MetadataProperty
	vectors            []VectorSettings
	insertedAt         int64
	updatedAt          int64
}

// NewDataset validates and creates a draft Dataset with a fresh id.
func NewDataset(name, workspace, guidelines string, allowExtraMetadata bool, dist Distribution) (Dataset, error) {
	if name == "" {
		return Dataset{}, fmt.Errorf("dataset name is required")
	}
	if len(name) > maxNameLength {
		return Dataset{}, fmt.Errorf("dataset name too long (max %d)", maxNameLength)
	}
	if workspace == "" {
		return Dataset{}, fmt.Errorf("workspace is required")
	}
	if dist.MinSubmitted == 0 {
		dist = DefaultDistribution()
	}
	if dist.MinSubmitted < 1 {
		return Dataset{}, fmt.Errorf("distribution min_submitted must be positive")
	}
	now := time.Now().UnixMilli()
	return Dataset{
		id:                 uuid.NewString(),
		name:               name,
		workspace:          workspace,
		guidelines:         guidelines,
		status:             DatasetDraft,
		allowExtraMetadata: allowExtraMetadata,
		distribution:       dist,
		insertedAt:         now,
		updatedAt:          now,
	}, nil
}

// DatasetState carries every attribute for ReconstructDataset.
type DatasetState struct {
	ID                 string
	Name               string
	Workspace          string
	Guidelines         string
	Status             DatasetStatus
	AllowExtraMetadata bool
	Distribution       Distribution
	Fields             []Field
	Questions          []Question
	Metadata           []MetadataProperty
	Vectors            []VectorSettings
	InsertedAt         int64
	UpdatedAt          int64
}

// ReconstructDataset creates a Dataset without validation (storage hydration).
func ReconstructDataset(s DatasetState) Dataset {
	return Dataset{
		id:                 s.ID,
		name:               s.Name,
		workspace:          s.Workspace,
		guidelines:         s.Guidelines,
		status:             s.Status,
		allowExtraMetadata: s.AllowExtraMetadata,
		distribution:       s.Distribution,
		fields:             s.Fields,
		questions:          s.Questions,
		metadata:           s.Metadata,
		vectors:            s.Vectors,
		insertedAt:         s.InsertedAt,
		updatedAt:          s.UpdatedAt,
	}
}

// ID returns the dataset id (a UUID).
func (d Dataset) ID() string { return d.id }

// Name returns the dataset name.
func (d Dataset) Name() string { return d.name }

// Workspace returns the owning workspace.
func (d Dataset) Workspace() string { return d.workspace }

// Guidelines returns the annotation guidelines.
func (d Dataset) Guidelines() string { return d.guidelines }

// Status returns the lifecycle state.
func (d Dataset) Status() DatasetStatus { return d.status }

// IsReady reports whether the dataset is published.
func (d Dataset) IsReady() bool { return d.status == DatasetReady }

// AllowExtraMetadata reports whether records may carry undeclared metadata.
func (d Dataset) AllowExtraMetadata() bool { return d.allowExtraMetadata }

// Distribution returns the response distribution strategy.
func (d Dataset) Distribution() Distribution { return d.distribution }

// Fields returns the fields in declaration order.
func (d Dataset) Fields() []Field { return d.fields }

// Questions returns the questions in declaration order.
func (d Dataset) Questions() []Question { return d.questions }

// MetadataProperties returns the metadata properties in declaration order.
func (d Dataset) MetadataProperties() []MetadataProperty { return d.metadata }

// VectorsSettings returns the vector spaces in declaration order.
func (d Dataset) VectorsSettings() []VectorSettings { return d.vectors }

// InsertedAt returns the creation time (unix millis).
func (d Dataset) InsertedAt() int64 { return d.insertedAt }

// UpdatedAt returns the last change time (unix millis).
func (d Dataset) UpdatedAt() int64 { return d.updatedAt }

// FieldByName looks up a field.
func (d Dataset) FieldByName(name string) (Field, bool) {
	i := slices.IndexFunc(d.fields, func(f Field) bool { return f.name == name })
	if i < 0 {
		return Field{}, false
	}
	return d.fields[i], true
}

// QuestionByName looks up a question.
func (d Dataset) QuestionByName(name string) (Question, bool) {
	i := slices.IndexFunc(d.questions, func(q Question) bool { return q.name == name })
	if i < 0 {
		return Question{}, false
	}
	return d.questions[i], true
}

// MetadataPropertyByName looks up a metadata property.
func (d Dataset) MetadataPropertyByName(name string) (MetadataProperty, bool) {
	i := slices.IndexFunc(d.metadata, func(p MetadataProperty) bool { return p.name == name })
	if i < 0 {
		return MetadataProperty{}, false
	}
	return d.metadata[i], true
}

// VectorSettingsByName looks up a vector space.
func (d Dataset) VectorSettingsByName(name string) (VectorSettings, bool) {
	i := slices.IndexFunc(d.vectors, func(v VectorSettings) bool { return v.name == name })
	if i < 0 {
		return VectorSettings{}, false
	}
	return d.vectors[i], true
}

// TextFieldNames returns the names of full-text searchable fields.
func (d Dataset) TextFieldNames() []string {
	var out []string
	for _, f := range d.fields {
		if f.IsText() {
			out = append(out, f.name)
		}
	}
	return out
}

// WithField adds a field. Only drafts accept new fields.
func (d Dataset) WithField(f Field) (Dataset, error) {
	if d.IsReady() {
		return Dataset{}, fmt.Errorf("fields cannot be added to a published dataset")
	}
	if _, ok := d.FieldByName(f.name); ok {
		return Dataset{}, fmt.Errorf("field %q already exists", f.name)
	}
	d.fields = append(slices.Clone(d.fields), f)
	d.touch()
	return d, nil
}

// WithQuestion adds a question. Only drafts accept new questions.
func (d Dataset) WithQuestion(q Question) (Dataset, error) {
	if d.IsReady() {
		return Dataset{}, fmt.Errorf("questions cannot be added to a published dataset")
	}
	if _, ok := d.QuestionByName(q.name); ok {
		return Dataset{}, fmt.Errorf("question %q already exists", q.name)
	}
	if span, ok := q.settings.(SpanSettings); ok {
		f, found := d.FieldByName(span.Field)
		if !found {
			return Dataset{}, fmt.Errorf("span question %q targets unknown field %q", q.name, span.Field)
		}
		if !f.IsText() {
			return Dataset{}, fmt.Errorf("span question %q must target a text field, %q is %s",
				q.name, f.name, f.Type())
		}
	}
	d.questions = append(slices.Clone(d.questions), q)
	d.touch()
	return d, nil
}

// WithMetadataProperty adds a metadata property. Allowed in any state.
func (d Dataset) WithMetadataProperty(p MetadataProperty) (Dataset, error) {
	if _, ok := d.MetadataPropertyByName(p.name); ok {
		return Dataset{}, fmt.Errorf("metadata property %q already exists", p.name)
	}
	d.metadata = append(slices.Clone(d.metadata), p)
	d.touch()
	return d, nil
}

// WithVectorSettings adds a vector space, up to MaxVectorSettings.
func (d Dataset) WithVectorSettings(v VectorSettings) (Dataset, error) {
	if _, ok := d.VectorSettingsByName(v.name); ok {
		return Dataset{}, fmt.Errorf("vector settings %q already exist", v.name)
	}
	if len(d.vectors) >= MaxVectorSettings {
		return Dataset{}, fmt.Errorf("a dataset can have at most %d vector settings", MaxVectorSettings)
	}
	d.vectors = append(slices.Clone(d.vectors), v)
	d.touch()
	return d, nil
}

// Publish moves a draft to ready. Requires a required field and a required question.
func (d Dataset) Publish() (Dataset, error) {
	if d.IsReady() {
		return Dataset{}, fmt.Errorf("dataset is already published")
	}
	if !slices.ContainsFunc(d.fields, Field.Required) {
		return Dataset{}, fmt.Errorf("dataset cannot be published without required fields")
	}
	if !slices.ContainsFunc(d.questions, Question.Required) {
		return Dataset{}, fmt.Errorf("dataset cannot be published without required questions")
	}
	d.status = DatasetReady
	d.touch()
	return d, nil
}

func (d *Dataset) touch() {
	d.updatedAt = time.Now().UnixMilli()
}
