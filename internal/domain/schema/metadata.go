package schema

import (
	"fmt"
	"slices"
	"strings"
)

// MetadataType discriminates metadata property settings.
type MetadataType string

const (
	// MetadataTerms is a keyword property, optionally with a closed value set.
	MetadataTerms MetadataType = "terms"
	// MetadataInteger is an integer property with optional bounds.
	MetadataInteger MetadataType = "integer"
	// MetadataFloat is a float property with optional bounds.
	MetadataFloat MetadataType = "float"
)

// ExtraMetadataPrefix marks record metadata that is stored but never indexed.
const ExtraMetadataPrefix = "_"

// MetadataSettings is the typed payload of a MetadataProperty.
type MetadataSettings interface {
	Type() MetadataType
	Validate() error
	MappingFragment() Fragment
	ValidateValue(v any) error
}

// Bounded is implemented by numeric settings with optional min/max.
type Bounded interface {
	Bounds() (lo, hi *float64)
}

// TermsMetadataSettings configures a terms property. Nil Values means any term.
type TermsMetadataSettings struct {
	Values []string `json:"values,omitempty"`
}

// Type implements MetadataSettings.
func (TermsMetadataSettings) Type() MetadataType { return MetadataTerms }

// Validate implements MetadataSettings.
func (s TermsMetadataSettings) Validate() error {
	if s.Values == nil {
		return nil
	}
	if len(s.Values) == 0 {
		return fmt.Errorf("terms values must not be empty when provided")
	}
	seen := make(map[string]bool, len(s.Values))
	for _, v := range s.Values {
		if seen[v] {
			return fmt.Errorf("terms values must be unique, %q repeated", v)
		}
		seen[v] = true
	}
	return nil
}

// MappingFragment implements MetadataSettings.
func (TermsMetadataSettings) MappingFragment() Fragment {
	return Fragment{Type: IndexKeyword, Index: true}
}

// ValidateValue implements MetadataSettings.
func (s TermsMetadataSettings) ValidateValue(v any) error {
	terms, ok := toStrings(v)
	if !ok {
		return fmt.Errorf("terms metadata value must be a string or a list of strings")
	}
	for _, t := range terms {
		if !s.Allows(t) {
			return fmt.Errorf("%q is not an allowed value, expected one of [%s]", t, strings.Join(s.Values, ", "))
		}
	}
	return nil
}

// Allows reports whether term belongs to the closed value set (always true when open).
func (s TermsMetadataSettings) Allows(term string) bool {
	return s.Values == nil || slices.Contains(s.Values, term)
}

// IntegerMetadataSettings configures an integer property.
type IntegerMetadataSettings struct {
	Min *int64 `json:"min,omitempty"`
	Max *int64 `json:"max,omitempty"`
}

// Type implements MetadataSettings.
func (IntegerMetadataSettings) Type() MetadataType { return MetadataInteger }

// Validate implements MetadataSettings.
func (s IntegerMetadataSettings) Validate() error {
	if s.Min != nil && s.Max != nil && *s.Min >= *s.Max {
		return fmt.Errorf("min (%d) must be lower than max (%d)", *s.Min, *s.Max)
	}
	return nil
}

// MappingFragment implements MetadataSettings.
func (IntegerMetadataSettings) MappingFragment() Fragment {
	return Fragment{Type: IndexInteger, Index: true}
}

// ValidateValue implements MetadataSettings.
func (s IntegerMetadataSettings) ValidateValue(v any) error {
	n, ok := toInt(v)
	if !ok {
		return fmt.Errorf("integer metadata value must be an integer, got %v", v)
	}
	if s.Min != nil && n < *s.Min {
		return fmt.Errorf("%d is lower than min %d", n, *s.Min)
	}
	if s.Max != nil && n > *s.Max {
		return fmt.Errorf("%d is greater than max %d", n, *s.Max)
	}
	return nil
}

// Bounds implements Bounded.
func (s IntegerMetadataSettings) Bounds() (lo, hi *float64) {
	if s.Min != nil {
		f := float64(*s.Min)
		lo = &f
	}
	if s.Max != nil {
		f := float64(*s.Max)
		hi = &f
	}
	return lo, hi
}

// FloatMetadataSettings configures a float property.
type FloatMetadataSettings struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Type implements MetadataSettings.
func (FloatMetadataSettings) Type() MetadataType { return MetadataFloat }

// Validate implements MetadataSettings.
func (s FloatMetadataSettings) Validate() error {
	if s.Min != nil && s.Max != nil && *s.Min >= *s.Max {
		return fmt.Errorf("min (%g) must be lower than max (%g)", *s.Min, *s.Max)
	}
	return nil
}

// MappingFragment implements MetadataSettings.
func (FloatMetadataSettings) MappingFragment() Fragment {
	return Fragment{Type: IndexFloat, Index: true}
}

// ValidateValue implements MetadataSettings.
func (s FloatMetadataSettings) ValidateValue(v any) error {
	f, ok := toFloat(v)
	if !ok {
		return fmt.Errorf("float metadata value must be a number, got %v", v)
	}
	if s.Min != nil && f < *s.Min {
		return fmt.Errorf("%g is lower than min %g", f, *s.Min)
	}
	if s.Max != nil && f > *s.Max {
		return fmt.Errorf("%g is greater than max %g", f, *s.Max)
	}
	return nil
}

// Bounds implements Bounded.
func (s FloatMetadataSettings) Bounds() (lo, hi *float64) {
	return s.Min, s.Max
}

// MetadataProperty is a filterable record attribute (immutable value object).
type MetadataProperty struct {
	name                 string
	title                string
	settings             MetadataSettings
	visibleForAnnotators bool
}

// NewMetadataProperty validates and creates a MetadataProperty.
func NewMetadataProperty(
	name, title string, settings MetadataSettings, visibleForAnnotators bool,
) (MetadataProperty, error) {
	if err := ValidateName("metadata property", name); err != nil {
		return MetadataProperty{}, err
	}
	if strings.HasPrefix(name, ExtraMetadataPrefix) {
		return MetadataProperty{}, fmt.Errorf("metadata property name %q must not start with %q", name, ExtraMetadataPrefix)
	}
	if settings == nil {
		return MetadataProperty{}, fmt.Errorf("metadata property %q: settings are required", name)
	}
	if err := settings.Validate(); err != nil {
		return MetadataProperty{}, fmt.Errorf("metadata property %q: %w", name, err)
	}
	if title == "" {
		title = name
	}
	return MetadataProperty{
		name: name, title: title, settings: settings, visibleForAnnotators: visibleForAnnotators,
	}, nil
}

// ReconstructMetadataProperty creates a MetadataProperty without validation (storage hydration).
func ReconstructMetadataProperty(
	name, title string, settings MetadataSettings, visibleForAnnotators bool,
) MetadataProperty {
	return MetadataProperty{
		name: name, title: title, settings: settings, visibleForAnnotators: visibleForAnnotators,
	}
}

// Name returns the property name.
func (p MetadataProperty) Name() string { return p.name }

// Title returns the display title.
func (p MetadataProperty) Title() string { return p.title }

// Settings returns the typed settings.
func (p MetadataProperty) Settings() MetadataSettings { return p.settings }

// Type returns the settings discriminator.
func (p MetadataProperty) Type() MetadataType { return p.settings.Type() }

// VisibleForAnnotators reports whether annotators see the property.
func (p MetadataProperty) VisibleForAnnotators() bool { return p.visibleForAnnotators }
