package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error code. Clients branch on codes, not
// on messages, so codes must never change once shipped.
type Code string

const (
	CodeBadRequest       Code = "BAD_REQUEST"
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeConflict         Code = "CONFLICT"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeDatabase         Code = "DATABASE_ERROR"
	CodeInternal         Code = "INTERNAL_ERROR"
)

// HTTPStatus maps an error code to the status the HTTP layer should emit.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed error carried from services up to the single HTTP
// translation boundary. Details is optional structured context safe to show
// to the client (e.g. retry_after_seconds, field errors).
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetail attaches one structured detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap keeps the underlying cause for internal logging while presenting only
// code+message to clients.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func BadRequest(message string) *Error   { return New(CodeBadRequest, message) }
func Validation(message string) *Error   { return New(CodeValidation, message) }
func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }
func Forbidden(message string) *Error    { return New(CodeForbidden, message) }
func NotFound(message string) *Error     { return New(CodeNotFound, message) }
func Conflict(message string) *Error     { return New(CodeConflict, message) }

func RateLimited(retryAfterSeconds int) *Error {
	return New(CodeRateLimited, "rate limit exceeded").WithDetail("retry_after_seconds", retryAfterSeconds)
}

func Database(message string, cause error) *Error {
	return Wrap(CodeDatabase, message, cause)
}

func Internal(message string, cause error) *Error {
	return Wrap(CodeInternal, message, cause)
}

// FromError returns the *Error inside err, or nil if err is not one of ours.
func FromError(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
