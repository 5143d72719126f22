package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// ErrValidation marks inputs an analysis cannot run on: too few groups or
	// conditions, non-positive degrees of freedom, too few valid observations.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientData is a validation failure caused by missing or too few observations.
	ErrInsufficientData = fmt.Errorf("%w: insufficient data for analysis", ErrValidation)

	// ErrDomain marks an argument outside the domain of a mathematical primitive.
	ErrDomain = errors.New("argument outside function domain")

	// ErrSingularMatrix is returned when a matrix cannot be inverted.
	ErrSingularMatrix = errors.New("singular matrix")

	// ErrUnknownMethod is returned when a method name does not parse.
	ErrUnknownMethod = errors.New("unknown method")
)

// ValidationError reports the parameter that made an analysis invalid.
type ValidationError struct {
	Field  string  `json:"field"`
	Reason string  `json:"reason"`
	Value  float64 `json:"value"`
	Limit  float64 `json:"limit"`

	insufficient bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s (got %g, need %g)", e.Field, e.Reason, e.Value, e.Limit)
}

func (e *ValidationError) Unwrap() error {
	if e.insufficient {
		return ErrInsufficientData
	}
	return ErrValidation
}

// NewValidationError builds a ValidationError for a structural problem
// (group counts, degrees of freedom).
func NewValidationError(field, reason string, value, limit float64) error {
	return &ValidationError{Field: field, Reason: reason, Value: value, Limit: limit}
}

// NewInsufficientDataError builds a ValidationError for too few observations.
func NewInsufficientDataError(field string, got, need int) error {
	return &ValidationError{
		Field:        field,
		Reason:       "too few valid observations",
		Value:        float64(got),
		Limit:        float64(need),
		insufficient: true,
	}
}

// DomainError reports an invalid argument to a math primitive.
type DomainError struct {
	Func  string  `json:"func"`
	Param string  `json:"param"`
	Value float64 `json:"value"`
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s=%g is outside the function domain", e.Func, e.Param, e.Value)
}

func (e *DomainError) Unwrap() error { return ErrDomain }

// NewDomainError builds a DomainError
func NewDomainError(fn, param string, value float64) error {
	return &DomainError{Func: fn, Param: param, Value: value}
}

// SingularMatrixError carries the size and conditioning ratio of a matrix that
// failed to invert.
type SingularMatrixError struct {
	Op    string  `json:"op"`
	Size  int     `json:"size"`
	Ratio float64 `json:"ratio"`
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("%s: %dx%d matrix is singular (determinant ratio %.3g)", e.Op, e.Size, e.Size, e.Ratio)
}

func (e *SingularMatrixError) Unwrap() error { return ErrSingularMatrix }

// NewUnknownMethodError wraps ErrUnknownMethod with the offending name
func NewUnknownMethodError(kind, name string) error {
	return fmt.Errorf("%w: %s %q", ErrUnknownMethod, kind, name)
}

// Error checking helpers
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsDomainError(err error) bool {
	return errors.Is(err, ErrDomain)
}

func IsSingularMatrix(err error) bool {
	return errors.Is(err, ErrSingularMatrix)
}
