package schema

import "fmt"

// MaxVectorDimensions bounds a vector space.
const MaxVectorDimensions = 4096

// VectorSettings declares one named vector space of a dataset.
type VectorSettings struct {
	name       string
	title      string
	dimensions int
}

// NewVectorSettings validates and creates VectorSettings.
func NewVectorSettings(name, title string, dimensions int) (VectorSettings, error) {
	if err := ValidateName("vector settings", name); err != nil {
		return VectorSettings{}, err
	}
	if dimensions <= 0 || dimensions > MaxVectorDimensions {
		return VectorSettings{}, fmt.Errorf("vector settings %q: dimensions must be between 1 and %d, got %d",
			name, MaxVectorDimensions, dimensions)
	}
	if title == "" {
		title = name
	}
	return VectorSettings{name: name, title: title, dimensions: dimensions}, nil
}

// ReconstructVectorSettings creates VectorSettings without validation (storage hydration).
func ReconstructVectorSettings(name, title string, dimensions int) VectorSettings {
	return VectorSettings{name: name, title: title, dimensions: dimensions}
}

// Name returns the vector space name.
func (v VectorSettings) Name() string { return v.name }

// Title returns the display title.
func (v VectorSettings) Title() string { return v.title }

// Dimensions returns the vector length.
func (v VectorSettings) Dimensions() int { return v.dimensions }

// ValidateValue checks a vector against the declared dimensions.
func (v VectorSettings) ValidateValue(value []float32) error {
	if len(value) != v.dimensions {
		return fmt.Errorf("vector %q must have %d dimensions, got %d", v.name, v.dimensions, len(value))
	}
	return nil
}
