package resource

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeCastError    = "CAST_ERROR"
	TextCodeDuplicateKey = "DUPLICATE_KEY"
	TextCodeValidation   = "VALIDATION_FAILED"
)

// MsgNotFound is returned when no record matches an id
const MsgNotFound = "No document found with that ID"

// CastError is raised when a value cannot be converted to the type of
// the field it targets, e.g. a malformed record id
type CastError struct {
	Path  string
	Value string
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cast to %s failed for value %q", e.Path, e.Value)
}

// DuplicateKeyError is raised when a write violates a unique index
type DuplicateKeyError struct {
	Field  string
	Value  any
	Source error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key for field %s: %v", e.Field, e.Value)
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.Source
}

// NewCastError wraps a CastError for path and value
func NewCastError(path, value string) *errors.Error {
	src := &CastError{Path: path, Value: value}
	return errors.Wrap(src, errors.CategoryBadInput, src.Error()).
		WithCode(errors.CodeBadRequest).
		WithTextCode(TextCodeCastError).
		WithMetadata(map[string]any{"path": path, "value": value})
}

// NewDuplicateKeyError wraps a DuplicateKeyError
func NewDuplicateKeyError(source error, field string, value any) *errors.Error {
	dup := &DuplicateKeyError{Field: field, Value: value, Source: source}
	return errors.Wrap(dup, errors.CategoryConflict, dup.Error()).
		WithCode(errors.CodeBadRequest).
		WithTextCode(TextCodeDuplicateKey).
		WithMetadata(map[string]any{"field": field, "value": value})
}

// NewNotFoundError is returned for a missing record
func NewNotFoundError(id string) *errors.Error {
	return errors.New(MsgNotFound, errors.CategoryNotFound).
		WithCode(errors.CodeNotFound).
		WithTextCode("NOT_FOUND").
		WithMetadata(map[string]any{"id": id})
}

// AsCastError extracts a CastError from err
func AsCastError(err error) (*CastError, bool) {
	var target *CastError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// AsDuplicateKeyError extracts a DuplicateKeyError from err
func AsDuplicateKeyError(err error) (*DuplicateKeyError, bool) {
	var target *DuplicateKeyError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
