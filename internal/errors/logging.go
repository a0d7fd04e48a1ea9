package errors

import (
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields returns structured log fields describing err. UnifiedErrors contribute
// their classification; any other error becomes a plain error field.
func Fields(err error) []zap.Field {
	if err == nil {
		return nil
	}

	var unifiedErr *UnifiedError
	if !errors.As(err, &unifiedErr) {
		return []zap.Field{zap.Error(err)}
	}

	fields := []zap.Field{
		zap.String("error_type", string(unifiedErr.Type)),
		zap.String("error_code", unifiedErr.Code.String()),
		zap.String("error_message", unifiedErr.Message),
		zap.String("error_severity", string(unifiedErr.Severity)),
	}
	if unifiedErr.Details != "" {
		fields = append(fields, zap.String("error_details", unifiedErr.Details))
	}
	if unifiedErr.Operation != "" {
		fields = append(fields, zap.String("failed_operation", unifiedErr.Operation))
	}
	if unifiedErr.Resource != "" {
		fields = append(fields, zap.String("resource", unifiedErr.Resource))
	}
	if unifiedErr.Cause != nil {
		fields = append(fields, zap.NamedError("cause", unifiedErr.Cause))
	}
	return fields
}

// Log logs err at a level derived from its severity.
func Log(logger *zap.Logger, err error, message string, fields ...zap.Field) {
	if logger == nil || err == nil {
		return
	}
	fields = append(fields, Fields(err)...)
	logger.Log(levelFor(GetSeverity(err)), message, fields...)
}

func levelFor(severity ErrorSeverity) zapcore.Level {
	switch severity {
	case SeverityCritical, SeverityHigh:
		return zapcore.ErrorLevel
	case SeverityMedium:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
