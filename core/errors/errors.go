// Package errors provides standardized error types and helpers for the
// polyform engine. Every public entry point returns errors as data;
// these types carry the structure (format tag, source location,
// pipeline phase) that the result shapes are built from.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrUnsupportedFormat indicates a format name with no registered handler
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrUnsupportedOperation indicates an operation a format cannot perform
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrNoMatch indicates detection found no format scoring above zero
	ErrNoMatch = errors.New("no format match")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
)

// Phase identifies where in the conversion pipeline a failure occurred.
type Phase string

// Conversion phases.
const (
	// PhaseValidation covers configuration checks before any parsing.
	PhaseValidation Phase = "validation"
	// PhaseConversion covers source parsing through target serialization.
	PhaseConversion Phase = "conversion"
)

// SyntaxError represents a parse or validation failure in a source
// document. Line and Column are 1-indexed; zero means not derivable.
type SyntaxError struct {
	Format  string // Format being parsed (e.g., "json", "xml")
	Line    int    // 1-indexed line, 0 if unknown
	Column  int    // 1-indexed column, 0 if unknown
	Message string // Human-readable error details
	Err     error  // Underlying error, if any
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("%s syntax error at line %d, column %d: %s", e.Format, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s syntax error at line %d: %s", e.Format, e.Line, e.Message)
	}
	return fmt.Sprintf("%s syntax error: %s", e.Format, e.Message)
}

func (e *SyntaxError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// ConversionError wraps a failure during format conversion, tagged with
// the phase it occurred in.
type ConversionError struct {
	Phase   Phase  // validation or conversion
	Message string // Human-readable error details
	Err     error  // Underlying error, if any
}

func (e *ConversionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("conversion failed (%s): %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("conversion failed (%s): %v", e.Phase, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// UnsupportedFormatError represents a request naming a format with no
// registered handler. This is a caller error, not a document error.
type UnsupportedFormatError struct {
	Format string // Format name that was requested
	Err    error  // Underlying error, if any
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %s", e.Format)
}

func (e *UnsupportedFormatError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupportedFormat
}

// UnsupportedOperationError represents an operation a format cannot
// perform without corrupting output (e.g., minifying YAML).
type UnsupportedOperationError struct {
	Operation string // Operation that was attempted
	Format    string // Format it was attempted on
	Reason    string // Why it is not supported
}

func (e *UnsupportedOperationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s does not support %s: %s", e.Format, e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s does not support %s", e.Format, e.Operation)
}

func (e *UnsupportedOperationError) Unwrap() error {
	return ErrUnsupportedOperation
}

// Helper functions for creating common errors

// NewSyntax creates a SyntaxError.
func NewSyntax(format string, line, column int, message string) *SyntaxError {
	return &SyntaxError{
		Format:  format,
		Line:    line,
		Column:  column,
		Message: message,
	}
}

// NewConversion creates a ConversionError wrapping err.
func NewConversion(phase Phase, err error) *ConversionError {
	return &ConversionError{
		Phase: phase,
		Err:   err,
	}
}

// NewUnsupportedFormat creates an UnsupportedFormatError.
func NewUnsupportedFormat(format string) *UnsupportedFormatError {
	return &UnsupportedFormatError{Format: format}
}

// NewUnsupportedOperation creates an UnsupportedOperationError.
func NewUnsupportedOperation(operation, format, reason string) *UnsupportedOperationError {
	return &UnsupportedOperationError{
		Operation: operation,
		Format:    format,
		Reason:    reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
