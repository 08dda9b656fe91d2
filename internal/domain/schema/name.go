// Package schema models a dataset's annotation schema: fields, questions,
// metadata properties, vector settings and the records they describe.
//
// Settings are tagged unions: every variant carries its own typed payload and
// knows its index mapping fragment and how to validate a value.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

const maxNameLength = 200

var nameRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateName checks a field/question/metadata/vector name.
// Lowercase alphanumerics, underscores and hyphens, at least one alphanumeric.
func ValidateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name is required", kind)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%s name too long (max %d)", kind, maxNameLength)
	}
	if !nameRegex.MatchString(name) || strings.Trim(name, "_-") == "" {
		return fmt.Errorf("%s name %q must match [a-z0-9_-] and contain a letter or digit", kind, name)
	}
	return nil
}

// IndexType is the engine-side type a schema element maps to.
type IndexType string

const (
	// IndexKeyword is an exact-match string.
	IndexKeyword IndexType = "keyword"
	// IndexText is an analyzed full-text string.
	IndexText IndexType = "text"
	// IndexInteger is a whole number.
	IndexInteger IndexType = "integer"
	// IndexFloat is a floating point number.
	IndexFloat IndexType = "float"
	// IndexDate is a timestamp.
	IndexDate IndexType = "date"
	// IndexDenseVector is a fixed-size float vector.
	IndexDenseVector IndexType = "dense_vector"
)

// IsNumeric reports whether range filters and numeric sorts apply.
func (t IndexType) IsNumeric() bool {
	return t == IndexInteger || t == IndexFloat || t == IndexDate
}

// Fragment is the index mapping a settings variant contributes.
type Fragment struct {
	Type  IndexType
	Index bool
}
