package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeDataSourceUnavailable ErrorType = "DATA_SOURCE_UNAVAILABLE"
	ErrTypeQueryExecution        ErrorType = "QUERY_EXECUTION_FAILED"
	ErrTypeInvalidFilterSet      ErrorType = "INVALID_FILTER_SET"
	ErrTypeStorage               ErrorType = "STORAGE"
	ErrTypeParsing               ErrorType = "PARSING"
	ErrTypeConfig                ErrorType = "CONFIG"
)

// AppError represents an application-specific error with a type, a
// human-readable message and the underlying cause. Failures are never
// retried; they surface to the caller with enough context to render a
// diagnostic.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewDataSourceUnavailable signals that no live connection exists. The
// execution adapter raises this instead of silently substituting
// fallback data; live and fallback are explicit alternatives chosen by
// the caller at startup.
func NewDataSourceUnavailable(cause error) *AppError {
	return NewAppError(ErrTypeDataSourceUnavailable, "no live data source connection", cause)
}

// NewQueryExecutionFailed signals that the data source rejected or
// errored on a query. The underlying cause is always attached.
func NewQueryExecutionFailed(message string, cause error) *AppError {
	return NewAppError(ErrTypeQueryExecution, message, cause)
}

// NewInvalidFilterSet signals a malformed filter: bad date range or a
// row limit out of bounds. Detected before query construction.
func NewInvalidFilterSet(message string, cause error) *AppError {
	return NewAppError(ErrTypeInvalidFilterSet, message, cause)
}

// IsType checks whether err is an AppError of the given type anywhere
// in its chain.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// IsDataSourceUnavailable reports whether err signals a missing live connection.
func IsDataSourceUnavailable(err error) bool {
	return IsType(err, ErrTypeDataSourceUnavailable)
}

// IsQueryExecutionFailed reports whether err signals a rejected query.
func IsQueryExecutionFailed(err error) bool {
	return IsType(err, ErrTypeQueryExecution)
}

// IsInvalidFilterSet reports whether err signals a malformed filter.
func IsInvalidFilterSet(err error) bool {
	return IsType(err, ErrTypeInvalidFilterSet)
}
