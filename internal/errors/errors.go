// Package errors provides the error types shared by the PA report packages.
// Sentinels allow errors.Is checks across package boundaries; the typed
// errors carry the file, field or resource that caused the failure.
package errors

import (
	"errors"
	"fmt"
)

// New is the standard library errors.New, re-exported for convenience.
var New = errors.New

// Is, As and Unwrap are re-exported so callers only need one errors import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

var (
	// ErrNotFound indicates that a requested file, field or particle was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrParse indicates that an instrument export could not be parsed
	ErrParse = errors.New("parse error")

	// ErrNoSearchFound indicates that no PA search directory was found below the data root
	ErrNoSearchFound = errors.New("no PA search found")

	// ErrCropTooLarge indicates a crop window larger than the source image
	ErrCropTooLarge = errors.New("crop window larger than image")
)

// ParseError reports a failure while reading one of the flat-file inputs.
type ParseError struct {
	File string
	Line int // 1-based; 0 when the failure is not tied to a line
	Err  error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// NewParseError creates a new ParseError
func NewParseError(file string, line int, err error) *ParseError {
	return &ParseError{File: file, Line: line, Err: err}
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}
