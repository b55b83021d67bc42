// Package errors provides error handling for sift.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"reflect"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Common sentinel errors for use across sift.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested entity does not exist
	ErrNotFound = New("not found")

	// ErrNilParams indicates a built query was applied with nil parameters
	ErrNilParams = New("query parameters must not be nil")

	// ErrInvalidExpr indicates a filter expression is malformed or references
	// a field the entity type does not have
	ErrInvalidExpr = New("invalid filter expression")

	// ErrInvalidPage indicates a negative skip/take or page bound
	ErrInvalidPage = New("invalid page bounds")

	// ErrConflict indicates an entity conflict (e.g., duplicate key)
	ErrConflict = New("entity conflict")

	// ErrUnsupported indicates a query construct a provider cannot evaluate
	ErrUnsupported = New("unsupported query construct")
)

// ParamTypeError reports a mismatch between the parameter type a typed query
// was built with and the parameter value supplied at apply time. It carries
// both types so callers can see exactly what was expected and what arrived.
type ParamTypeError struct {
	Expected reflect.Type
	Actual   reflect.Type
}

func (e *ParamTypeError) Error() string {
	actual := "<nil>"
	if e.Actual != nil {
		actual = e.Actual.String()
	}
	return "query parameter type mismatch: expected " + e.Expected.String() + ", got " + actual
}

// NewParamTypeError builds a ParamTypeError from an expected type and the
// actual value supplied at apply time.
func NewParamTypeError(expected reflect.Type, actual any) error {
	return WithStack(&ParamTypeError{Expected: expected, Actual: reflect.TypeOf(actual)})
}

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsParamTypeError checks if an error is or wraps a ParamTypeError.
func IsParamTypeError(err error) bool {
	if err == nil {
		return false
	}
	var pte *ParamTypeError
	return As(err, &pte)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}
