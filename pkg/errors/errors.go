package errors

import (
	"errors"
	"fmt"
)

// Standard error types
var (
	ErrNotFound                  = errors.New("resource not found")
	ErrConflict                  = errors.New("resource conflict")
	ErrInternal                  = errors.New("internal error")
	ErrValidation                = errors.New("validation error")
	ErrInvalidIdentity           = errors.New("invalid identity")
	ErrUnparseableValue          = errors.New("unparseable value")
	ErrInvalidClosureTransition  = errors.New("invalid closure transition")
	ErrInvalidIncidentTransition = errors.New("invalid incident transition")
	ErrConcurrentJobConflict     = errors.New("concurrent job conflict")
	ErrMissingCategoryMapping    = errors.New("missing category mapping")
)

// AppError represents an application error with context
type AppError struct {
	Err     error             `json:"-"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string) *AppError {
	return &AppError{
		Err:     err,
		Code:    code,
		Message: message,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:     ErrInternal,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    "VALIDATION_ERROR",
		Message: "validation failed",
		Details: details,
	}
}

// Engine error constructors

// InvalidIdentity is returned when a national ID cannot be normalized.
func InvalidIdentity(raw string) *AppError {
	return &AppError{
		Err:     ErrInvalidIdentity,
		Code:    "INVALID_IDENTITY",
		Message: "identity cannot be normalized",
		Details: map[string]string{"raw": raw},
	}
}

// UnparseableValue is returned when a cell value is non-empty, non-sentinel
// and not numeric.
func UnparseableValue(raw string) *AppError {
	return &AppError{
		Err:     ErrUnparseableValue,
		Code:    "UNPARSEABLE_VALUE",
		Message: "value is not numeric and not a recognized empty token",
		Details: map[string]string{"raw": raw},
	}
}

// InvalidClosureTransition is returned when a closure operation is attempted
// outside its legal state window. The closure state is never mutated.
func InvalidClosureTransition(from, to string) *AppError {
	return &AppError{
		Err:     ErrInvalidClosureTransition,
		Code:    "INVALID_CLOSURE_TRANSITION",
		Message: fmt.Sprintf("closure cannot move from %s to %s", from, to),
		Details: map[string]string{"from": from, "to": to},
	}
}

// InvalidIncidentTransition is returned when an incident resolution step is
// attempted out of order.
func InvalidIncidentTransition(from, to string) *AppError {
	return &AppError{
		Err:     ErrInvalidIncidentTransition,
		Code:    "INVALID_INCIDENT_TRANSITION",
		Message: fmt.Sprintf("incident cannot move from %s to %s", from, to),
		Details: map[string]string{"from": from, "to": to},
	}
}

// ConcurrentJobConflict is returned when a second reconciliation or
// consolidation job is triggered while one is already running for the closure.
func ConcurrentJobConflict(closureID string) *AppError {
	return &AppError{
		Err:     ErrConcurrentJobConflict,
		Code:    "CONCURRENT_JOB_CONFLICT",
		Message: "another job is already running for this closure",
		Details: map[string]string{"closure_id": closureID},
	}
}

// MissingCategoryMapping is returned (non-fatally) when a concept code has no
// entry in the category map. Consolidation degrades to the uncategorized
// bucket plus an informational incident instead of failing.
func MissingCategoryMapping(conceptCode string) *AppError {
	return &AppError{
		Err:     ErrMissingCategoryMapping,
		Code:    "MISSING_CATEGORY_MAPPING",
		Message: fmt.Sprintf("concept %s has no category mapping", conceptCode),
		Details: map[string]string{"concept_code": conceptCode},
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
