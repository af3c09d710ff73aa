package storage

import "errors"

// Common client storage errors
var (
	// ErrAuthNotFound indicates that no authentication data exists
	ErrAuthNotFound = errors.New("authentication data not found")

	// ErrInvalidAuth indicates a session without user or access token
	ErrInvalidAuth = errors.New("invalid authentication data")

	// ErrOperationNotFound indicates that a pending operation was not found
	ErrOperationNotFound = errors.New("pending operation not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
