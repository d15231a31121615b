package storage

import "errors"

// Storage errors shared by all KV backends.
var (
	// ErrNotFound is returned when a requested key or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
