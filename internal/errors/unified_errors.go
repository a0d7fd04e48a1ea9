// Package errors provides the unified error type shared by the registry builder,
// the service registry and the config store. Every failure surfaced by this module
// is a *UnifiedError carrying an ErrorType, so callers classify failures with the
// Is* predicates instead of matching on message text.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ============================================================================
// ERROR TYPES AND CLASSIFICATION
// ============================================================================

// ErrorType defines the category of error for proper handling.
type ErrorType string

const (
	// Builder and registry errors
	ErrorTypeInvalidArgument ErrorType = "INVALID_ARGUMENT"
	ErrorTypeRegistration    ErrorType = "REGISTRATION_FAILURE"
	ErrorTypeNotRegistered   ErrorType = "NOT_REGISTERED"

	// Config store errors
	ErrorTypeConfigCorrupt ErrorType = "CONFIG_CORRUPT"
	ErrorTypeConfigWrite   ErrorType = "CONFIG_WRITE_FAILURE"

	// Everything else
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// ErrorSeverity defines the severity level for logging.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// ============================================================================
// UNIFIED ERROR STRUCTURE
// ============================================================================

// UnifiedError is the single error type returned by this module.
type UnifiedError struct {
	Type    ErrorType `json:"type"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	// Operation is the builder, registry or store operation that failed.
	Operation string `json:"operation,omitempty"`
	// Resource names the key, descriptor or slot path involved.
	Resource string `json:"resource,omitempty"`

	Severity ErrorSeverity `json:"severity"`
	Cause    error         `json:"-"`

	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e *UnifiedError) Error() string {
	var b strings.Builder
	if string(e.Code) == string(e.Type) || e.Code == "" {
		fmt.Fprintf(&b, "[%s] %s", e.Type, e.Message)
	} else {
		fmt.Fprintf(&b, "[%s:%s] %s", e.Type, e.Code, e.Message)
	}
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause.
func (e *UnifiedError) Unwrap() error {
	return e.Cause
}

// String provides a detailed multi-line representation for logging.
func (e *UnifiedError) String() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Error: %s\n", e.Error()))
	if e.Operation != "" {
		builder.WriteString(fmt.Sprintf("Operation: %s\n", e.Operation))
	}
	if e.Resource != "" {
		builder.WriteString(fmt.Sprintf("Resource: %s\n", e.Resource))
	}
	builder.WriteString(fmt.Sprintf("Severity: %s\n", e.Severity))
	if e.File != "" && e.Line > 0 {
		builder.WriteString(fmt.Sprintf("Location: %s:%d\n", e.File, e.Line))
	}

	return builder.String()
}

// ============================================================================
// ERROR BUILDER FOR FLUENT CONSTRUCTION
// ============================================================================

// ErrorBuilder provides a fluent interface for constructing UnifiedError instances.
type ErrorBuilder struct {
	error *UnifiedError
}

// newBuilder records the location of its caller's caller.
func newBuilder(errType ErrorType, code ErrorCode, message string) *ErrorBuilder {
	_, file, line, _ := runtime.Caller(2)

	return &ErrorBuilder{
		error: &UnifiedError{
			Type:     errType,
			Code:     code,
			Message:  message,
			Severity: code.Severity(),
			File:     file,
			Line:     line,
		},
	}
}

// WithDetails adds additional details to the error.
func (b *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	b.error.Details = details
	return b
}

// WithDetailsf formats additional details.
func (b *ErrorBuilder) WithDetailsf(format string, args ...any) *ErrorBuilder {
	b.error.Details = fmt.Sprintf(format, args...)
	return b
}

// WithOperation specifies the operation that failed.
func (b *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	b.error.Operation = operation
	return b
}

// WithResource specifies the resource being operated on.
func (b *ErrorBuilder) WithResource(resource string) *ErrorBuilder {
	b.error.Resource = resource
	return b
}

// WithSeverity overrides the severity derived from the code.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.error.Severity = severity
	return b
}

// WithCause adds the underlying cause error.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.error.Cause = cause
	return b
}

// Build returns the constructed UnifiedError.
func (b *ErrorBuilder) Build() *UnifiedError {
	return b.error
}

// ============================================================================
// CONVENIENCE CONSTRUCTORS
// ============================================================================

// InvalidArgument reports a nil or malformed caller input.
func InvalidArgument(message string) *ErrorBuilder {
	return newBuilder(ErrorTypeInvalidArgument, CodeInvalidArgument, message)
}

// RegistrationFailure reports a descriptor that could not be registered.
func RegistrationFailure(message string) *ErrorBuilder {
	return newBuilder(ErrorTypeRegistration, CodeRegistrationFailure, message)
}

// NotRegistered reports a resolve with no matching entry.
func NotRegistered(message string) *ErrorBuilder {
	return newBuilder(ErrorTypeNotRegistered, CodeNotRegistered, message)
}

// ConfigCorrupt reports an existing config slot that failed to read or parse.
func ConfigCorrupt(message string) *ErrorBuilder {
	return newBuilder(ErrorTypeConfigCorrupt, CodeConfigCorrupt, message)
}

// ConfigWriteFailure reports an I/O failure while saving a config slot.
func ConfigWriteFailure(message string) *ErrorBuilder {
	return newBuilder(ErrorTypeConfigWrite, CodeConfigWriteFailure, message)
}

// Internal reports any other failure under the given code.
func Internal(code ErrorCode, message string) *ErrorBuilder {
	return newBuilder(ErrorTypeInternal, code, message)
}

// ============================================================================
// ERROR CLASSIFICATION AND CHECKING
// ============================================================================

// IsType checks if an error is of a specific type.
func IsType(err error, errType ErrorType) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Type == errType
	}
	return false
}

// HasCode checks if an error carries a specific code.
func HasCode(err error, code ErrorCode) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Code == code
	}
	return false
}

// IsInvalidArgument checks if an error is an invalid argument error.
func IsInvalidArgument(err error) bool {
	return IsType(err, ErrorTypeInvalidArgument)
}

// IsRegistrationFailure checks if an error is a registration failure.
func IsRegistrationFailure(err error) bool {
	return IsType(err, ErrorTypeRegistration)
}

// IsNotRegistered checks if an error is a not registered error.
func IsNotRegistered(err error) bool {
	return IsType(err, ErrorTypeNotRegistered)
}

// IsConfigCorrupt checks if an error is a config corrupt error.
func IsConfigCorrupt(err error) bool {
	return IsType(err, ErrorTypeConfigCorrupt)
}

// IsConfigWriteFailure checks if an error is a config write failure.
func IsConfigWriteFailure(err error) bool {
	return IsType(err, ErrorTypeConfigWrite)
}

// GetSeverity returns the severity of an error.
func GetSeverity(err error) ErrorSeverity {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Severity
	}
	return SeverityMedium
}

// ============================================================================
// ERROR WRAPPING AND CONTEXT PRESERVATION
// ============================================================================

// Wrap wraps an existing error with operation context while preserving its
// classification. Errors that are not UnifiedErrors become INTERNAL.
func Wrap(err error, operation, message string) *UnifiedError {
	if err == nil {
		return nil
	}

	var existingErr *UnifiedError
	if errors.As(err, &existingErr) {
		return &UnifiedError{
			Type:      existingErr.Type,
			Code:      existingErr.Code,
			Message:   message,
			Operation: operation,
			Resource:  existingErr.Resource,
			Severity:  existingErr.Severity,
			Cause:     err,
			File:      existingErr.File,
			Line:      existingErr.Line,
		}
	}

	_, file, line, _ := runtime.Caller(1)
	return &UnifiedError{
		Type:      ErrorTypeInternal,
		Code:      CodeInternalError,
		Message:   message,
		Operation: operation,
		Severity:  SeverityMedium,
		Cause:     err,
		File:      file,
		Line:      line,
	}
}
