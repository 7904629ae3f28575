package domain

import (
	"errors"
)

// Ingest run lifecycle. A run moves PENDING -> RUNNING -> COMPLETED | FAILED.
const (
	RunStatusPending   = "PENDING"
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrRunNotFound = errors.New("ingest run not found")

	// ErrDuplicateIdempotencyKey is returned when an ingest run with the same
	// idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("ingest run with this idempotency key already exists")
)
