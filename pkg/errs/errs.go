package errs

import "fmt"

// Domain error types for the request/roster workflow. Handlers translate
// these to HTTP status codes; services never return raw fmt errors for
// caller mistakes.

type ValidationError struct {
	msg string
}

func Validation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.msg }

type NotFoundError struct {
	msg string
}

func NotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{msg: fmt.Sprintf(format, args...)}
}

func (e *NotFoundError) Error() string { return e.msg }

type AuthorizationError struct {
	msg string
}

func Authorization(format string, args ...interface{}) *AuthorizationError {
	return &AuthorizationError{msg: fmt.Sprintf(format, args...)}
}

func (e *AuthorizationError) Error() string { return e.msg }

// CapacityExceededError rejects assignments that would overbook a bus.
type CapacityExceededError struct {
	msg string
}

func CapacityExceeded(format string, args ...interface{}) *CapacityExceededError {
	return &CapacityExceededError{msg: fmt.Sprintf(format, args...)}
}

func (e *CapacityExceededError) Error() string { return e.msg }

// ConflictError signals a stale write detected by the bus version check.
type ConflictError struct {
	msg string
}

func Conflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{msg: fmt.Sprintf(format, args...)}
}

func (e *ConflictError) Error() string { return e.msg }
