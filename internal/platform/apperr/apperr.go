// Copyright (c) 2026 Palm. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error taxonomy for the Palm auth service.

Every outcome that can reach a network caller is expressed as an [AppError] with a
machine-readable code and a fixed HTTP status.

Taxonomy:

  - InvalidCredentials: bad email/password combination, deliberately unified.
  - AccountSuspended: correct credentials on a suspended account.
  - InvalidOrExpiredToken: reset token that is wrong, consumed or expired.
  - ForbiddenOperation: guarded mutation or insufficient role.
  - ValidationError: malformed input, with per-field details.
  - NotFound: entity absent.
  - Unavailable: transient storage or delivery failure on a primary write.

Anything that is not an [AppError] is rendered as Internal by the respond package.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes.
const (
	CodeInvalidCredentials    = "INVALID_CREDENTIALS"
	CodeAccountSuspended      = "ACCOUNT_SUSPENDED"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodeForbiddenOperation    = "FORBIDDEN_OPERATION"
	CodeValidation            = "VALIDATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeUnavailable           = "UNAVAILABLE"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeConflict              = "CONFLICT"
	CodeRateLimited           = "RATE_LIMITED"
	CodeInternal              = "INTERNAL_ERROR"
)

// AppError is the canonical error type for the Palm API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients.
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// Is matches two AppErrors by code so sentinel values work with [errors.Is].
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// # Authentication Outcomes

// InvalidCredentials is returned for any email/password mismatch. The message is
// identical for unknown emails and wrong passwords.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:       CodeInvalidCredentials,
		Message:    "Invalid email or password",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// AccountSuspended is returned when a suspended account presents valid credentials
// or a session.
func AccountSuspended() *AppError {
	return &AppError{
		Code:       CodeAccountSuspended,
		Message:    "Your account has been suspended. Please contact an administrator.",
		HTTPStatus: http.StatusForbidden,
	}
}

// InvalidOrExpiredToken covers wrong, consumed and expired reset tokens alike.
func InvalidOrExpiredToken() *AppError {
	return &AppError{
		Code:       CodeInvalidOrExpiredToken,
		Message:    "Invalid or expired token",
		HTTPStatus: http.StatusBadRequest,
	}
}

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("User") // Returns "User not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError] for missing or rejected sessions.
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// ForbiddenOperation creates a 403 [AppError] for guarded mutations and role failures.
func ForbiddenOperation(msg string) *AppError {
	return &AppError{
		Code:       CodeForbiddenOperation,
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// Unavailable creates a 503 [AppError] for transient storage or delivery failures
// during a primary write. The write must not be reported as successful.
func Unavailable(cause error) *AppError {
	return &AppError{
		Code:       CodeUnavailable,
		Message:    "Service temporarily unavailable. Please try again.",
		HTTPStatus: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err carries an [*AppError] with the given code.
func HasCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}

// IsNotFound reports whether err is a NOT_FOUND [AppError].
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}
