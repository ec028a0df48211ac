package errors

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// ValidationError is the structured detail attached to a filter
// rejection that traces to a single request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FromAppError maps an application error onto an HTTP response. The
// taxonomy maps directly: unavailable source → 503, rejected query →
// 502, bad filter → 400, everything else → 500.
func FromAppError(err error) *APIError {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Error())
	}

	status := http.StatusInternalServerError
	switch appErr.Type {
	case ErrTypeDataSourceUnavailable:
		status = http.StatusServiceUnavailable
	case ErrTypeQueryExecution:
		status = http.StatusBadGateway
	case ErrTypeInvalidFilterSet:
		status = http.StatusBadRequest
	}

	return &APIError{
		StatusCode: status,
		ErrorCode:  string(appErr.Type),
		Message:    appErr.Message,
		Details:    errorDetails(appErr),
	}
}

// errorDetails prefers the field-scoped validation detail when the
// error carries one, falling back to the underlying cause text.
func errorDetails(appErr *AppError) interface{} {
	if field, ok := appErr.Context["field"].(string); ok {
		return ValidationError{Field: field, Message: appErr.Message}
	}
	if appErr.Cause == nil {
		return nil
	}
	return appErr.Cause.Error()
}

// RenderError writes an API error response using chi/render.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := FromAppError(err)
	render.Status(r, apiErr.StatusCode)
	render.JSON(w, r, apiErr)
}
