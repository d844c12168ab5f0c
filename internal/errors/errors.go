// Package errors provides structured error handling with stable error codes.
package errors

import "fmt"

// Code classifies an error for aggregation and reporting.
type Code int

const (
	CodeUnknown Code = iota
	CodeInternal
	CodeConfigInvalid
	CodeCaptureFailed
	CodePersistFailed
	CodeDisplayUnavailable
	CodeBusy
	CodeCancelled
)

var codeNames = map[Code]string{
	CodeUnknown:            "UNKNOWN",
	CodeInternal:           "INTERNAL",
	CodeConfigInvalid:      "CONFIG_INVALID",
	CodeCaptureFailed:      "CAPTURE_FAILED",
	CodePersistFailed:      "PERSIST_FAILED",
	CodeDisplayUnavailable: "DISPLAY_UNAVAILABLE",
	CodeBusy:               "BUSY",
	CodeCancelled:          "CANCELLED",
}

// String returns the stable name of the code.
func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// AppError is the base error type with a code and optional metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of an error, or CodeUnknown for foreign errors.
func CodeOf(err error) Code {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeUnknown
}

// IsRecoverable reports whether a run can continue past this error.
// Environmental failures (capture, persistence) are recoverable;
// configuration and invariant failures abort the run.
func IsRecoverable(err error) bool {
	switch CodeOf(err) {
	case CodeCaptureFailed, CodePersistFailed:
		return true
	default:
		return false
	}
}
