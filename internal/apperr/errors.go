// Package apperr defines the error taxonomy shared by services and HTTP handlers.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ValidationError indicates malformed input, e.g. a self-follow.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthenticationError indicates a missing, invalid or revoked credential.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// PermissionDeniedError indicates an authenticated caller lacking a capability.
type PermissionDeniedError struct {
	Message string
}

func (e *PermissionDeniedError) Error() string { return e.Message }

// NotFoundError indicates the addressed entity does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError indicates the request collides with existing state.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// Validation creates a ValidationError with a formatted message.
func Validation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Authentication creates an AuthenticationError with a formatted message.
func Authentication(format string, args ...any) *AuthenticationError {
	return &AuthenticationError{Message: fmt.Sprintf(format, args...)}
}

// PermissionDenied creates a PermissionDeniedError with a formatted message.
func PermissionDenied(format string, args ...any) *PermissionDeniedError {
	return &PermissionDeniedError{Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a NotFoundError with a formatted message.
func NotFound(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a ConflictError with a formatted message.
func Conflict(format string, args ...any) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// HTTPStatus maps an error to the status code surfaced to the caller.
func HTTPStatus(err error) int {
	var validation *ValidationError
	var authn *AuthenticationError
	var denied *PermissionDeniedError
	var notFound *NotFoundError
	var conflict *ConflictError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &authn):
		return http.StatusUnauthorized
	case errors.As(err, &denied):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a stable machine-readable code for the error class.
func Code(err error) string {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusForbidden:
		return "permission_denied"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	default:
		return "internal_error"
	}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Write renders err as a JSON error body with the mapped status code.
// Internal errors never leak their message.
func Write(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	var body errorBody
	body.Error.Code = Code(err)
	if status == http.StatusInternalServerError {
		body.Error.Message = "internal error"
	} else {
		body.Error.Message = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
