package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"
	ErrorTypeContentPolicy      ErrorType = "content_policy"
	ErrorTypeSchemaViolation    ErrorType = "schema_violation"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeConflict           ErrorType = "conflict"
	ErrorTypeIO                 ErrorType = "io"
	ErrorTypeConfig             ErrorType = "config"
	ErrorTypeInternal           ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
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

// Is reports whether target is an AppError of the same type.
// A target carrying a code must match the code as well.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Type != e.Type {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error constructors for different types
func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewBackendUnavailableError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeBackendUnavailable, code, message, cause)
}

func NewContentPolicyError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeContentPolicy, code, message, cause)
}

func NewSchemaViolationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeSchemaViolation, code, message, cause)
}

func NewNotFoundError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeNotFound, code, message, cause)
}

func NewConflictError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConflict, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Sentinels usable with errors.Is. They match any AppError of the same type.
var (
	ErrValidation         = &AppError{Type: ErrorTypeValidation}
	ErrBackendUnavailable = &AppError{Type: ErrorTypeBackendUnavailable}
	ErrContentPolicy      = &AppError{Type: ErrorTypeContentPolicy}
	ErrSchemaViolation    = &AppError{Type: ErrorTypeSchemaViolation}
	ErrNotFound           = &AppError{Type: ErrorTypeNotFound}
	ErrConflict           = &AppError{Type: ErrorTypeConflict}
)

// KindOf returns the type of the first AppError in err's chain, or
// ErrorTypeInternal when there is none.
func KindOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsValidation(err error) bool         { return stderrors.Is(err, ErrValidation) }
func IsBackendUnavailable(err error) bool { return stderrors.Is(err, ErrBackendUnavailable) }
func IsContentPolicy(err error) bool      { return stderrors.Is(err, ErrContentPolicy) }
func IsSchemaViolation(err error) bool    { return stderrors.Is(err, ErrSchemaViolation) }
func IsNotFound(err error) bool           { return stderrors.Is(err, ErrNotFound) }
func IsConflict(err error) bool           { return stderrors.Is(err, ErrConflict) }

// As and Is forward to the standard library so callers need only this package.
func As(err error, target any) bool { return stderrors.As(err, target) }
func Is(err, target error) bool     { return stderrors.Is(err, target) }

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger
func NewLogger(level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return &Logger{logger: slog.New(handler)}
}

// NewLoggerWithHandler wraps an arbitrary slog handler. Tests use it with a
// discard handler.
func NewLoggerWithHandler(h slog.Handler) *Logger {
	return &Logger{logger: slog.New(h)}
}

// Nop returns a logger that drops everything.
func Nop() *Logger {
	return NewLoggerWithHandler(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	if l == nil {
		return
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "error_cause", appErr.Cause.Error())
		}
		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}
		logArgs = append(logArgs, args...)
		l.logger.Error(message, logArgs...)
		return
	}

	logArgs := append([]any{"error", err.Error()}, args...)
	l.logger.Error(message, logArgs...)
}

func (l *Logger) Info(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Warn(message, args...)
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeFileNotFound       = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable    = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat      = "INVALID_FORMAT"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeMissingAPIKey      = "MISSING_API_KEY"
	ErrCodeInvalidConfig      = "INVALID_CONFIG"
	ErrCodeTemplateNotFound   = "TEMPLATE_NOT_FOUND"
	ErrCodeBackendFailed      = "BACKEND_FAILED"
	ErrCodeBackendTimeout     = "BACKEND_TIMEOUT"
	ErrCodeBackendRateLimited = "BACKEND_RATE_LIMITED"
	ErrCodeCircuitOpen        = "CIRCUIT_OPEN"
	ErrCodeContentBlocked     = "CONTENT_BLOCKED"
	ErrCodeMalformedOutput    = "MALFORMED_OUTPUT"
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodeRequestInFlight    = "REQUEST_IN_FLIGHT"
	ErrCodeSessionLimit       = "SESSION_LIMIT"
	ErrCodeUnsupportedFormat  = "UNSUPPORTED_FORMAT"
	ErrCodeCorruptDocument    = "CORRUPT_DOCUMENT"
	ErrCodeDocumentTooLarge   = "DOCUMENT_TOO_LARGE"
	ErrCodeEmptyDocument      = "EMPTY_DOCUMENT"
	ErrCodeRequestTooLarge    = "REQUEST_TOO_LARGE"
)
