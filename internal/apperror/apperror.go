package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation error")
	ErrConflict            = errors.New("conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrDuplicateSession    = errors.New("duplicate session")
	ErrUpstream            = errors.New("upstream failure")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Unauthorized returns an AppError indicating the caller has no valid session.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// InsufficientCredits is returned when a debit would take an account's credit
// balance below zero. The balance is left unchanged.
func InsufficientCredits(accountID string) *AppError {
	return &AppError{
		Err:     ErrInsufficientCredits,
		Message: fmt.Sprintf("account %s has insufficient credits", accountID),
	}
}

// InvalidTransition is returned when a presentation record is asked to move
// out of a terminal state. Records only ever go processing → completed or
// processing → failed.
func InvalidTransition(resource, id, to string) *AppError {
	return &AppError{
		Err:     ErrInvalidTransition,
		Message: fmt.Sprintf("%s %s cannot transition to %s", resource, id, to),
	}
}

// DuplicateSession is returned when a purchase is opened with a checkout
// session id that already exists.
func DuplicateSession(sessionID string) *AppError {
	return &AppError{
		Err:     ErrDuplicateSession,
		Message: fmt.Sprintf("checkout session %s already exists", sessionID),
	}
}

// Upstream wraps a failure from an external collaborator (generation service,
// payment processor, object storage). The message is safe to log but handlers
// surface only a generic 500 to the caller.
func Upstream(collaborator string, err error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: fmt.Sprintf("%s: %v", collaborator, err),
	}
}
