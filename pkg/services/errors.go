package services

import (
	"errors"
	"fmt"
)

// Stable error-code strings used in API error payloads.
const (
	CodeSessionNotFound = "session_not_found"
	CodeFileProcessing  = "file_processing_error"
	CodeConfiguration   = "configuration_error"
)

var (
	// ErrSessionNotFound is returned when a session id resolves to nothing.
	ErrSessionNotFound = errors.New("session not found")

	// ErrAnalysisRequired is returned when optimization is requested before
	// an evaluation report exists.
	ErrAnalysisRequired = errors.New("analysis must be completed before optimization")

	// ErrFilesNotUploaded is returned when analysis is requested for a
	// session whose input artifacts are missing.
	ErrFilesNotUploaded = errors.New("session files not uploaded")
)

// NotFoundError carries the session id for error payloads and logs.
type NotFoundError struct {
	SessionID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Session not found: %s", e.SessionID)
}

func (e *NotFoundError) Unwrap() error { return ErrSessionNotFound }

// NewNotFoundError creates a session-not-found error.
func NewNotFoundError(sessionID string) error {
	return &NotFoundError{SessionID: sessionID}
}

// FileError wraps failures of storage or file handling.
type FileError struct {
	Message string
	Err     error
}

func (e *FileError) Error() string { return e.Message }
func (e *FileError) Unwrap() error { return e.Err }

// NewFileError creates a file processing error.
func NewFileError(format string, args ...any) error {
	var wrapped error
	for _, a := range args {
		if err, ok := a.(error); ok {
			wrapped = err
		}
	}
	return &FileError{Message: fmt.Sprintf(format, args...), Err: wrapped}
}

// IsFileError checks if an error is a file processing error.
func IsFileError(err error) bool {
	var fe *FileError
	return errors.As(err, &fe)
}
