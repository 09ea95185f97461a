package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrPageNotFound       = errors.New("page not found")
	ErrComponentNotFound  = errors.New("page component not found")
	ErrSlugExhausted      = errors.New("could not allocate a unique slug")
	ErrNotAuthorized      = errors.New("authorized principal required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// ValidationError carries a machine readable list of field problems.
type ValidationError struct {
	Fields validation.Errors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", key, e.Fields[key]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldNames returns the invalid field paths in sorted order.
func (e *ValidationError) FieldNames() []string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func invalidField(field string, err error) *ValidationError {
	return &ValidationError{Fields: validation.Errors{field: err}}
}

// asValidationError converts an ozzo-validation result into a ValidationError.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		return &ValidationError{Fields: fieldErrs}
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}
	return &ValidationError{Fields: validation.Errors{"": err}}
}
