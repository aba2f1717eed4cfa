package apperrors

import "errors"

// Common errors
var (
	// Resource errors
	ErrResourceNotFound = errors.New("resource not found")
	ErrConflict         = errors.New("conflict")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")
)

// Event errors
var (
	ErrEventNotFound     = NewResourceNotFoundError("event not found")
	ErrInvalidTransition = errors.New("invalid event state transition")
)

// Rsvp errors
var (
	ErrRsvpNotFound      = NewResourceNotFoundError("rsvp not found")
	ErrUnknownSession    = errors.New("session does not belong to event")
	ErrAlreadyRegistered = NewConflictError("attendee already has an rsvp for this event")
	ErrStudentRsvpClosed = errors.New("event is not accepting student rsvps")

	// ErrCapacityRaceLost signals that the confirm-or-waitlist step lost a
	// race for the event lock. The rsvp engine retries it and never returns it.
	ErrCapacityRaceLost = errors.New("capacity race lost")
)

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewConflictError creates a new custom error for conflict situations with a message
func NewConflictError(message string) error {
	return &CustomError{
		Err:     ErrConflict,
		Message: message,
	}
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}
