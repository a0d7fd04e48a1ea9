package errors

// ErrorCode represents a unique error code for specific error scenarios
type ErrorCode string

const (
	// Builder errors
	CodeInvalidArgument     ErrorCode = "INVALID_ARGUMENT"
	CodeRegistrationFailure ErrorCode = "REGISTRATION_FAILURE"

	// Registry errors
	CodeNotRegistered      ErrorCode = "NOT_REGISTERED"
	CodeResolutionCycle    ErrorCode = "RESOLUTION_CYCLE"
	CodeConstructionFailed ErrorCode = "CONSTRUCTION_FAILED"
	CodeNoLocator          ErrorCode = "NO_LOCATOR"

	// Config store errors
	CodeConfigCorrupt      ErrorCode = "CONFIG_CORRUPT"
	CodeConfigWriteFailure ErrorCode = "CONFIG_WRITE_FAILURE"
	CodeWatchFailed        ErrorCode = "WATCH_FAILED"

	CodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// String returns the string representation of the error code
func (c ErrorCode) String() string {
	return string(c)
}

// Severity returns the severity level for the error code
func (c ErrorCode) Severity() ErrorSeverity {
	switch c {
	// Critical - startup cannot continue
	case CodeRegistrationFailure, CodeNoLocator:
		return SeverityCritical

	// High - persisted state or a service is unusable
	case CodeConfigCorrupt, CodeConfigWriteFailure, CodeResolutionCycle,
		CodeConstructionFailed, CodeInternalError:
		return SeverityHigh

	// Medium - lookups and watchers
	case CodeNotRegistered, CodeWatchFailed:
		return SeverityMedium

	// Low - caller errors
	default:
		return SeverityLow
	}
}
