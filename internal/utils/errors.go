package utils

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is matched by every InsufficientDataError through errors.Is.
var ErrInsufficientData = errors.New("insufficient data")

// ErrNoBars is returned by bar sources that hold nothing for the requested symbol.
var ErrNoBars = errors.New("no bars found")

// ErrTrainingRejected is returned when model training cannot be admitted right now.
var ErrTrainingRejected = errors.New("training capacity unavailable")

// ErrSourceUnavailable is returned when no bar source can serve the request.
var ErrSourceUnavailable = errors.New("market data source unavailable")

// ValidationError represents an error occurring during data validation.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
//
// Parameters:
//   - message: The validation error message.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
//
// Parameters:
//   - format: The format string.
//   - args: Arguments for the format string.
//
// Returns:
//   - An error interface wrapping the ValidationError.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// InsufficientDataError reports a series shorter than a component needs.
type InsufficientDataError struct {
	Component string
	Required  int
	Got       int
}

// Error returns the error message string.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need at least %d bars, got %d", e.Component, e.Required, e.Got)
}

// Is makes errors.Is(err, ErrInsufficientData) succeed.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// NewInsufficientDataError creates an InsufficientDataError for the named component.
func NewInsufficientDataError(component string, required, got int) error {
	return &InsufficientDataError{Component: component, Required: required, Got: got}
}

// ComputationError wraps an unexpected numeric failure inside an engine.
type ComputationError struct {
	Op  string
	Err error
}

// Error returns the error message string.
func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: computation failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ComputationError) Unwrap() error {
	return e.Err
}

// NewComputationError wraps err with the failing operation name.
func NewComputationError(op string, err error) error {
	return &ComputationError{Op: op, Err: err}
}
