package errors

import (
	"net/http"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Authentication errors (401xx)
	ErrInvalidCredentials ErrorCode = "40101"
	ErrTokenExpired       ErrorCode = "40102"
	ErrUnauthenticated    ErrorCode = "40103"

	// Authorization errors (403xx)
	ErrForbidden ErrorCode = "40301"
	ErrNotOwner  ErrorCode = "40302"

	// Resource errors (404xx)
	ErrNotFound     ErrorCode = "40401"
	ErrUserNotFound ErrorCode = "40402"

	// Request errors (400xx)
	ErrInvalidRequest   ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"

	// Conflict errors (409xx)
	ErrInvalidTransition ErrorCode = "40901"

	// Server errors (500xx)
	ErrInternalServer ErrorCode = "50001"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse represents the error response format
type ErrorResponse struct {
	Success   bool     `json:"success"`
	Error     APIError `json:"error"`
	RequestID string   `json:"request_id"`
}

// NewErrorResponse builds the response envelope for an API error
func NewErrorResponse(err *APIError, requestID string) ErrorResponse {
	return ErrorResponse{
		Success:   false,
		Error:     *err,
		RequestID: requestID,
	}
}

// Common errors
var (
	ErrInvalidCredentialsError = &APIError{
		Code:       ErrInvalidCredentials,
		Message:    "Invalid username or password",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrTokenExpiredError = &APIError{
		Code:       ErrTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrUnauthenticatedError = &APIError{
		Code:       ErrUnauthenticated,
		Message:    "Authentication required",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbiddenError = &APIError{
		Code:       ErrForbidden,
		Message:    "Admin role required",
		HTTPStatus: http.StatusForbidden,
	}

	ErrNotOwnerError = &APIError{
		Code:       ErrNotOwner,
		Message:    "You do not own this resource",
		HTTPStatus: http.StatusForbidden,
	}

	ErrNotFoundError = &APIError{
		Code:       ErrNotFound,
		Message:    "Resource not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUserNotFoundError = &APIError{
		Code:       ErrUserNotFound,
		Message:    "User not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrInvalidTransitionError = &APIError{
		Code:       ErrInvalidTransition,
		Message:    "Requested status transition is not allowed",
		HTTPStatus: http.StatusConflict,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// NewValidationError creates a validation error with details
func NewValidationError(details any) *APIError {
	return &APIError{
		Code:       ErrValidationFailed,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return &APIError{
		Code:       ErrInvalidRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}
