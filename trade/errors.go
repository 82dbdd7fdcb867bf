package trade

import "errors"

var (
	// ErrValidation marks a persisted document that does not match the expected shape.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a referenced document that does not exist.
	ErrNotFound = errors.New("not found")
)
