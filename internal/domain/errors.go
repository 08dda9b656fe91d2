package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation signals a malformed request or value.
	ErrValidation = errors.New("validation error")
	// ErrUnprocessable signals a request referencing something the dataset does not have.
	ErrUnprocessable = errors.New("unprocessable entity")
	// ErrConflict signals an operation not allowed in the current state (e.g. schema frozen).
	ErrConflict = errors.New("conflict")
	// ErrConfiguration signals an inconsistent dataset schema.
	ErrConfiguration = errors.New("configuration error")
	// ErrIndexNotFound signals a dataset without a backing search index.
	ErrIndexNotFound = errors.New("search index not found")
	// ErrSearchEngine signals a search backend failure.
	ErrSearchEngine = errors.New("search engine error")
)

// DetailError carries a client-facing detail message for a sentinel.
type DetailError struct {
	Kind   error
	Detail string
}

func (e *DetailError) Error() string { return e.Kind.Error() + ": " + e.Detail }
func (e *DetailError) Unwrap() error { return e.Kind }

// Validationf builds an ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return &DetailError{Kind: ErrValidation, Detail: fmt.Sprintf(format, args...)}
}

// Unprocessablef builds an ErrUnprocessable with a formatted detail.
func Unprocessablef(format string, args ...any) error {
	return &DetailError{Kind: ErrUnprocessable, Detail: fmt.Sprintf(format, args...)}
}

// Conflictf builds an ErrConflict with a formatted detail.
func Conflictf(format string, args ...any) error {
	return &DetailError{Kind: ErrConflict, Detail: fmt.Sprintf(format, args...)}
}

// Configurationf builds an ErrConfiguration with a formatted detail.
func Configurationf(format string, args ...any) error {
	return &DetailError{Kind: ErrConfiguration, Detail: fmt.Sprintf(format, args...)}
}

// AlreadyExistsf builds an ErrAlreadyExists with a formatted detail.
func AlreadyExistsf(format string, args ...any) error {
	return &DetailError{Kind: ErrAlreadyExists, Detail: fmt.Sprintf(format, args...)}
}

// NotFoundf builds an ErrNotFound with a formatted detail.
func NotFoundf(format string, args ...any) error {
	return &DetailError{Kind: ErrNotFound, Detail: fmt.Sprintf(format, args...)}
}

// Detail returns the innermost client-facing detail, or "" when err carries none.
func Detail(err error) string {
	var de *DetailError
	if errors.As(err, &de) {
		return de.Detail
	}
	return ""
}
