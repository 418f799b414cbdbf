package storage

import "errors"

// Common client storage errors
var (
	// ErrEntityNotFound indicates that no cached entity matches the id
	ErrEntityNotFound = errors.New("entity not found")

	// ErrOperationNotFound indicates that no pending operation matches the id
	ErrOperationNotFound = errors.New("pending operation not found")

	// ErrSessionNotFound indicates that no authentication session exists
	ErrSessionNotFound = errors.New("session not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
