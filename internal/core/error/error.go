package errx

import (
	"errors"
	"fmt"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// PostgresErrorMessage describes Postgres related failures.
	PostgresErrorMessage = "postgres operation failed"
	// PostgresNotFoundMessage describes a missing row.
	PostgresNotFoundMessage = "postgres row not found"
)

// Domain sentinels. Callers match them with errors.Is to pick a recovery policy.
var (
	ErrNotFound           = errors.New("record not found")
	ErrMissingLead        = errors.New("lead not found for conversation")
	ErrMissingState       = errors.New("agent state not found for conversation")
	ErrCompletionFailed   = errors.New("text completion failed")
	ErrEmptyCompletion    = errors.New("text completion returned empty output")
	ErrBookingFailed      = errors.New("calendar booking failed")
	ErrCircuitOpen        = errors.New("collaborator circuit open")
	ErrInvalidPhase       = errors.New("invalid phase")
	ErrBackwardTransition = errors.New("phase transition would move backwards")
	ErrLockNotAcquired    = errors.New("conversation lock not acquired")
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// StatusOf returns the HTTP status carried by err, or fallback when err is not an AppError.
func StatusOf(err error, fallback int) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return fallback
}
