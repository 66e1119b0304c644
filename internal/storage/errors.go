package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVersionConflict is returned when an optimistic-concurrency write
	// observes a version other than the one it loaded. The caller must
	// redo the whole read-compute-write cycle, not just the write.
	ErrVersionConflict = errors.New("version conflict: state changed since read")
)
