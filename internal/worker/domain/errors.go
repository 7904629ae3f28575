package domain

import "errors"

var (
	// ErrRunNotFound is returned when a run cannot be found in the database
	ErrRunNotFound = errors.New("ingest run not found")

	// ErrRunAlreadyClaimed is returned when attempting to claim a run that is not PENDING
	ErrRunAlreadyClaimed = errors.New("ingest run already claimed or not in PENDING status")

	// ErrInvalidMessage is returned when a queue message is malformed
	ErrInvalidMessage = errors.New("invalid ingest run message")

	// ErrProviderUnavailable is returned when the run's provider cannot be built
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
