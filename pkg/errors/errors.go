package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Validation errors (rejected before any remote call)
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeEmptyMessage ErrorCode = "EMPTY_MESSAGE"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Blocked-state errors (send gated by the block relationship)
	ErrCodeBlocked ErrorCode = "BLOCKED"

	// Remote store errors
	ErrCodeRemoteIO         ErrorCode = "REMOTE_IO_ERROR"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// Multi-document write errors (some writes succeeded, some failed)
	ErrCodePartialWrite ErrorCode = "PARTIAL_WRITE"

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError represents a structured application error with code, message and cause
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

// Error implements the error interface, returning a formatted error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the given code and message
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the original error
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds additional details to an AppError for debugging
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Validation errors
func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func EmptyMessageError() *AppError {
	return New(ErrCodeEmptyMessage, "Message has no text, image or audio")
}

func InvalidInputError(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}

// Blocked-state errors
func BlockedError() *AppError {
	return New(ErrCodeBlocked, "You cannot send a message. You are blocked or the receiver is blocked.")
}

// Remote store errors
func RemoteIOError(err error) *AppError {
	return Wrap(ErrCodeRemoteIO, "Remote store operation failed", err)
}

func NotFoundError(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func PermissionDeniedError(err error) *AppError {
	return Wrap(ErrCodePermissionDenied, "Permission denied by remote store", err)
}

// Partial write errors
func PartialWriteError(message string, err error) *AppError {
	return Wrap(ErrCodePartialWrite, message, err)
}

// Internal errors
func InternalError(message string) *AppError {
	return New(ErrCodeInternal, message)
}

// IsCode reports whether err is an AppError carrying the given code
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetAppError extracts AppError from an error, wrapping non-AppErrors as InternalError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(ErrCodeInternal, err.Error(), err)
}
