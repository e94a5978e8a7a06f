// Package errors provides a lightweight structured error type (FleetError)
// for category-based classification of remote-operation failures.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a fleet error for classification
type ErrorCategory string

const (
	// Remote lifecycle errors (blocking: worker transitions to failed)
	CategoryConnect      ErrorCategory = "connect"
	CategoryUpload       ErrorCategory = "upload"
	CategoryProcessStart ErrorCategory = "process_start"

	// Remote command errors
	CategoryCommandTimeout ErrorCategory = "command_timeout"

	// Metrics-only errors (never change lifecycle status)
	CategoryStatusParse ErrorCategory = "status_parse"

	// Shutdown and infrastructure errors
	CategoryShutdown ErrorCategory = "shutdown"
	CategoryConfig   ErrorCategory = "config"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// FleetError is a structured error with category, retryability, and context
type FleetError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for FleetError
type ContextFields map[string]any

// Error implements the error interface
func (e *FleetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *FleetError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *FleetError) WithContext(key string, value any) *FleetError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new FleetError
func New(category ErrorCategory, severity ErrorSeverity, message string) *FleetError {
	return &FleetError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new FleetError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *FleetError {
	return &FleetError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// WrapRetryable creates a new retryable FleetError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *FleetError {
	return &FleetError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if fe, ok := err.(*FleetError); ok {
		return fe.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if fe, ok := err.(*FleetError); ok {
		return fe.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a FleetError
func GetCategory(err error) ErrorCategory {
	if fe, ok := err.(*FleetError); ok {
		return fe.Category
	}
	return CategoryInternal
}

// ConnectError creates a retryable connect failure for the named worker.
func ConnectError(err error, worker string) *FleetError {
	return WrapRetryable(err, CategoryConnect, SeverityError, "transport connect failed").
		WithContext("worker", worker)
}

// UploadError creates a retryable artifact upload failure for the named worker.
func UploadError(err error, worker string) *FleetError {
	return WrapRetryable(err, CategoryUpload, SeverityError, "artifact upload failed").
		WithContext("worker", worker)
}

// ProcessStartError creates a retryable process start failure for the named worker.
func ProcessStartError(err error, worker string) *FleetError {
	return WrapRetryable(err, CategoryProcessStart, SeverityError, "remote process start failed").
		WithContext("worker", worker)
}

// CommandTimeoutError creates a command timeout error for the named worker.
func CommandTimeoutError(err error, worker string) *FleetError {
	return WrapRetryable(err, CategoryCommandTimeout, SeverityError, "remote command timed out").
		WithContext("worker", worker)
}

// StatusParseError creates a non-fatal statistics parse error for the named worker.
func StatusParseError(err error, worker string) *FleetError {
	return Wrap(err, CategoryStatusParse, SeverityWarning, "status line parse failed").
		WithContext("worker", worker)
}

// ShutdownError creates a shutdown-path error for the named worker.
func ShutdownError(err error, worker string) *FleetError {
	return Wrap(err, CategoryShutdown, SeverityWarning, "worker stop failed during shutdown").
		WithContext("worker", worker)
}
