package logging

import (
	"fmt"
	"log/slog"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeToolFailed    ErrorCode = "TOOL_FAILED"
	ErrCodeOutputMissing ErrorCode = "OUTPUT_MISSING"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeTimeout       ErrorCode = "TIMEOUT_ERROR"
)

// AppError is the structured error type carried across package boundaries
// so handlers can map a failure to both an HTTP status and a log record
// without string-sniffing.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Operation string                 `json:"operation,omitempty"`
	JobID     string                 `json:"job_id,omitempty"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Severity  string                 `json:"severity"`
}

// NewError creates an AppError with default severity "error".
func NewError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Severity: "error",
		Context:  make(map[string]interface{}),
	}
}

// NewWarning creates an AppError with severity "warning".
func NewWarning(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Severity: "warning",
		Context:  make(map[string]interface{}),
	}
}

func (e *AppError) WithOperation(op string) *AppError {
	e.Operation = op
	return e
}

func (e *AppError) WithJobID(jobID string) *AppError {
	e.JobID = jobID
	return e
}

func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// LogValue implements slog.LogValuer so AppError can be passed directly
// to slog.Any without manual flattening.
func (e *AppError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("error_code", string(e.Code)),
		slog.String("message", e.Message),
		slog.String("severity", e.Severity),
	}

	if e.Operation != "" {
		attrs = append(attrs, slog.String("operation", e.Operation))
	}
	if e.JobID != "" {
		attrs = append(attrs, slog.String("job_id", e.JobID))
	}
	if e.Cause != nil {
		attrs = append(attrs, slog.String("cause", e.Cause.Error()))
	}

	if len(e.Context) > 0 {
		contextAttrs := make([]any, 0, len(e.Context)*2)
		for k, v := range e.Context {
			contextAttrs = append(contextAttrs, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("context", contextAttrs...))
	}

	return slog.GroupValue(attrs...)
}

// IsRetryable reports whether the error represents a transient condition
// worth retrying. Only ErrCodeTimeout counts as retryable.
func (e *AppError) IsRetryable() bool {
	switch e.Code {
	case ErrCodeTimeout:
		return true
	default:
		return false
	}
}

func ErrNotFound(resource, id string) *AppError {
	return NewError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("id", id)
}

func ErrValidation(message string) *AppError {
	return NewError(ErrCodeValidation, message)
}

func ErrToolFailed(toolName string, cause error) *AppError {
	return NewError(ErrCodeToolFailed, fmt.Sprintf("%s failed", toolName)).
		WithCause(cause)
}

func ErrOutputMissing(path string) *AppError {
	return NewError(ErrCodeOutputMissing, "expected output artifact was not produced").
		WithContext("path", path)
}
