package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternal       = errors.New("internal error")
	ErrValidation     = errors.New("validation failed")
	ErrAuthorization  = errors.New("authorization failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrUnexpected     = errors.New("unexpected error")
)

// UnexpectedMessage is the client-facing message for failures the caller can
// only retry, such as the database being unavailable.
const UnexpectedMessage = "An unexpected error occurred, please try again later"

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Validation creates a 400 error carrying a human-readable message that may
// combine several input problems.
func Validation(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrValidation,
	}
}

// Authorization creates a 401 error for a caller that is not allowed to
// perform the operation at all (e.g. a bad invite secret).
func Authorization(message string) *AppError {
	return &AppError{
		Code:    "AUTHORIZATION_ERROR",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrAuthorization,
	}
}

// Authentication creates a 401 error for credentials that do not match.
func Authentication(message string) *AppError {
	return &AppError{
		Code:    "AUTHENTICATION_ERROR",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrAuthentication,
	}
}

// Unexpected creates a 400 error with a generic retry-later message. The
// cause is kept for logging and never shown to the client.
func Unexpected(err error) *AppError {
	cause := ErrUnexpected
	if err != nil {
		cause = fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	return &AppError{
		Code:    "UNEXPECTED_ERROR",
		Message: UnexpectedMessage,
		Status:  http.StatusBadRequest,
		Err:     cause,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation), errors.Is(err, ErrUnexpected):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrAuthorization), errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
