// Package errors defines the coded errors services return and the HTTP layer renders.
//
// Resource-level denials use ErrCodeNotFound so a caller cannot tell "exists but
// not yours" from "does not exist". ErrCodeForbidden is reserved for role checks.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable, client-visible error category.
type ErrorCode string

const (
	ErrCodeUnauthenticated ErrorCode = "unauthenticated"
	ErrCodeForbidden       ErrorCode = "forbidden"
	ErrCodeNotFound        ErrorCode = "not_found"
	ErrCodeConflict        ErrorCode = "conflict"
	ErrCodeValidation      ErrorCode = "validation"
	ErrCodeRateLimited     ErrorCode = "rate_limited"
	ErrCodeInternal        ErrorCode = "internal"
	ErrCodeTimeout         ErrorCode = "timeout"
	ErrCodeCanceled        ErrorCode = "canceled"
)

// AppError carries a code and a caller-safe message. Cause is for logs only.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending input for validation errors.
	Field string
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error { return e.Cause }

func newError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Unauthenticated covers missing, unknown, expired and revoked credentials.
func Unauthenticated(message string) *AppError { return newError(ErrCodeUnauthenticated, message) }

// Forbidden is returned when an authenticated caller lacks the required role.
func Forbidden(message string) *AppError { return newError(ErrCodeForbidden, message) }

func NotFound(message string) *AppError { return newError(ErrCodeNotFound, message) }

// NotFoundf formats the message with fmt.Sprintf.
func NotFoundf(format string, args ...any) *AppError {
	return newError(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

func Conflict(message string) *AppError    { return newError(ErrCodeConflict, message) }
func Validation(message string) *AppError  { return newError(ErrCodeValidation, message) }
func RateLimited(message string) *AppError { return newError(ErrCodeRateLimited, message) }
func Internal(message string) *AppError    { return newError(ErrCodeInternal, message) }

// ValidationField tags a validation error with the input field it concerns.
func ValidationField(field, message string) *AppError {
	e := newError(ErrCodeValidation, message)
	e.Field = field
	return e
}

// Wrap attaches code and message to err. A nil err stays nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	e := newError(code, message)
	e.Cause = err
	return e
}

// GetCode returns the code of the first AppError in err's chain, or "".
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field of the first AppError in err's chain, or "".
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

func IsUnauthenticated(err error) bool { return GetCode(err) == ErrCodeUnauthenticated }
func IsForbidden(err error) bool       { return GetCode(err) == ErrCodeForbidden }
func IsNotFound(err error) bool        { return GetCode(err) == ErrCodeNotFound }
func IsConflict(err error) bool        { return GetCode(err) == ErrCodeConflict }
func IsValidation(err error) bool      { return GetCode(err) == ErrCodeValidation }
func IsInternal(err error) bool        { return GetCode(err) == ErrCodeInternal }
