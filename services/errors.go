package services

import "net/http"

// Machine-readable error codes, stable across releases.
const (
	CodeAuthError    = "AUTH_ERROR"
	CodeForbidden    = "FORBIDDEN"
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInvalidState = "INVALID_STATE"
	CodeInternal     = "INTERNAL_ERROR"
)

// ServiceError is the tagged error value every service operation returns on a
// failure path. Err carries the underlying cause for diagnostics; it is never
// sent to clients.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func ErrAuthentication(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusUnauthorized, Code: CodeAuthError, Message: msg}
}

func ErrForbidden(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusForbidden, Code: CodeForbidden, Message: msg}
}

func ErrValidation(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func ErrNotFound(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

func ErrConflict(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusConflict, Code: CodeConflict, Message: msg}
}

func ErrInvalidState(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadRequest, Code: CodeInvalidState, Message: msg}
}

func ErrInternal(msg string, err error) *ServiceError {
	return &ServiceError{StatusCode: http.StatusInternalServerError, Code: CodeInternal, Message: msg, Err: err}
}
