package storage

import "errors"

var (
	// ErrNotFound means no record exists for the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput rejects writes missing a required key.
	ErrInvalidInput = errors.New("invalid record input")
)
