package errors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeSubmission ErrorType = "submission"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// SiteError is a structured error type with context.
type SiteError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Field       string
	FilePath    string
	Recoverable bool
}

// Error implements the error interface.
func (e *SiteError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Field != "" {
		parts = append(parts, "field:"+e.Field)
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *SiteError) Is(target error) bool {
	var t *SiteError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SiteError) WithContext(key string, value interface{}) *SiteError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithFile records the file the error relates to.
func (e *SiteError) WithFile(path string) *SiteError {
	e.FilePath = path

	return e
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeValidation,
		Code:        "ERR_INVALID_" + strings.ToUpper(field),
		Message:     message,
		Field:       field,
		Recoverable: true,
	}
}

// NewSubmissionError creates an error for a failed relay submission.
// Submission failures are always retryable by the visitor.
func NewSubmissionError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeSubmission,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeBuild,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	var fe FieldErrors
	return errors.As(err, &fe)
}

// IsValidation reports whether err is a field validation failure.
func IsValidation(err error) bool {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return true
	}

	var se *SiteError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeValidation
	}

	return false
}

// IsSubmission reports whether err came from the outbound relay.
func IsSubmission(err error) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeSubmission
	}

	return false
}

// FieldErrors maps a form field to its validation message.
type FieldErrors map[string]string

// Error implements the error interface with fields in a stable order.
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, fe[field]))
	}

	return fmt.Sprintf("%d invalid field(s): %s", len(fe), strings.Join(parts, "; "))
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level matching its recoverability.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var se *SiteError
	if errors.As(err, &se) {
		fields := []interface{}{"type", se.Type, "code", se.Code}
		if se.Field != "" {
			fields = append(fields, "field", se.Field)
		}
		if se.Recoverable {
			h.logger.Warn(ctx, err, "Recoverable error", fields...)
		} else {
			h.logger.Error(ctx, err, "Unrecoverable error", fields...)
		}
		return
	}

	if IsValidation(err) {
		h.logger.Warn(ctx, err, "Validation failed")
		return
	}

	h.logger.Error(ctx, err, "Unexpected error")
}
