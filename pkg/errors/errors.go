// Package errors provides structured error types for diagramir.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI, HTTP API and library callers
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input and schema validation failures
//   - NOT_FOUND: Resource not found
//   - NETWORK_ERROR: Taxonomy backend unreachable
//   - TAXONOMY_*, STAGE_*: Enrichment subsystem failures
//   - INTERNAL_*: Unexpected internal errors
//
// Schema violations (an unknown node kind, a dangling edge) are the only
// category that callers of the enrichment pipeline ever see. Taxonomy and
// stage failures are logged and degraded at the boundary where they occur.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidKind, "unknown kind %q", raw)
//	if errors.Is(err, errors.ErrCodeInvalidKind) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "export taxonomy from %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidKind   Code = "INVALID_KIND"
	ErrCodeInvalidLayer  Code = "INVALID_LAYER"
	ErrCodeInvalidEnum   Code = "INVALID_ENUM"
	ErrCodeInvalidGraph  Code = "INVALID_GRAPH"
	ErrCodeDuplicateID   Code = "DUPLICATE_ID"
	ErrCodeDanglingRef   Code = "DANGLING_REFERENCE"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"

	// Enrichment errors
	ErrCodeTaxonomyUnavailable Code = "TAXONOMY_UNAVAILABLE"
	ErrCodeSchemaDrift         Code = "SCHEMA_DRIFT"
	ErrCodeStageFailed         Code = "STAGE_FAILED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsValidation reports whether err carries one of the schema or input
// validation codes. The HTTP API maps these to 400 responses.
func IsValidation(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidKind, ErrCodeInvalidLayer, ErrCodeInvalidEnum,
		ErrCodeInvalidGraph, ErrCodeDuplicateID, ErrCodeDanglingRef:
		return true
	}
	return false
}
