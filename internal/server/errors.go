package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/joshdurbin/strava-dashboard/internal/auth"
	"github.com/joshdurbin/strava-dashboard/internal/stats"
	"github.com/joshdurbin/strava-dashboard/internal/strava"
)

// ErrorCode classifies tool and API errors for structured error handling
type ErrorCode string

const (
	// ErrInvalidInput indicates invalid or malformed input parameters
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrDataProcessing indicates activity data that could not be normalized
	ErrDataProcessing ErrorCode = "DATA_PROCESSING"
	// ErrUpstream indicates Strava or the stored credentials failed us
	ErrUpstream ErrorCode = "UPSTREAM_ERROR"
	// ErrInternalError indicates an unexpected internal error
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Status returns the HTTP status the code is served with
func (c ErrorCode) Status() int {
	switch c {
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrDataProcessing:
		return http.StatusUnprocessableEntity
	case ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToolError represents a structured error with code, message, and optional details
type ToolError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *ToolError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidInputError creates an error for invalid input parameters
func NewInvalidInputError(msg string) *ToolError {
	return &ToolError{Code: ErrInvalidInput, Message: msg}
}

// NewInvalidInputErrorWithDetails creates an error for invalid input with additional details
func NewInvalidInputErrorWithDetails(msg, details string) *ToolError {
	return &ToolError{Code: ErrInvalidInput, Message: msg, Details: details}
}

// NewDataProcessingError creates an error for malformed activity data
func NewDataProcessingError(err error) *ToolError {
	return &ToolError{
		Code:    ErrDataProcessing,
		Message: "Activity data could not be processed",
		Details: err.Error(),
	}
}

// NewUpstreamError creates an error for Strava or credential failures
func NewUpstreamError(err error) *ToolError {
	return &ToolError{
		Code:    ErrUpstream,
		Message: "Could not load activities from Strava",
		Details: err.Error(),
	}
}

// NewInternalErrorWithCause creates an internal error wrapping another error
func NewInternalErrorWithCause(msg string, err error) *ToolError {
	return &ToolError{
		Code:    ErrInternalError,
		Message: msg,
		Details: err.Error(),
	}
}

// classify maps an error from the stats or sync layers to a ToolError
func classify(err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}

	var pe *stats.ParameterError
	switch {
	case errors.As(err, &pe):
		return NewInvalidInputErrorWithDetails(fmt.Sprintf("invalid %s", pe.Param), pe.Error())
	case errors.Is(err, stats.ErrDataProcessing):
		return NewDataProcessingError(err)
	case errors.Is(err, auth.ErrNotAuthenticated),
		errors.Is(err, strava.ErrUnauthorized),
		errors.Is(err, strava.ErrRateLimited):
		return NewUpstreamError(err)
	}

	var se *strava.StatusError
	if errors.As(err, &se) {
		return NewUpstreamError(err)
	}
	return NewInternalErrorWithCause("Unexpected error", err)
}
