package repository

import "errors"

var (
	// ErrNotFound indicates a document was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a unique constraint would be violated.
	ErrConflict = errors.New("repository: conflict")
)
