package validation

import "errors"

// Error is a client-correctable validation failure: malformed or
// unrecognizable input during normalization.
type Error struct {
	Message string
	Details map[string]any
	wrapped error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.wrapped }

// ErrorCode is the stable error-code string for validation failures.
const ErrorCode = "validation_error"

// NewError creates a validation error with an optional details map.
func NewError(message string, details map[string]any) *Error {
	return &Error{Message: message, Details: details}
}

// WrapError creates a validation error wrapping a sentinel, so callers can
// match the specific condition with errors.Is.
func WrapError(err error, message string, details map[string]any) *Error {
	return &Error{Message: message, Details: details, wrapped: err}
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

// ConsistencyError is raised when cross-validation detects a hard
// inconsistency between the agent configuration and the message dataset.
// No current check escalates to this; the channel is reserved for future
// business rules.
type ConsistencyError struct {
	Message string
	Details map[string]any
}

func (e *ConsistencyError) Error() string { return e.Message }

// ConsistencyErrorCode is the stable error-code string for consistency failures.
const ConsistencyErrorCode = "data_consistency_error"

// IsConsistencyError checks if an error is a data consistency error.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}
