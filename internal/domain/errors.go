package domain

import "errors"

var (
	// ErrNotFound indicates a batch, row, column, or submission could not be
	// located for the caller's account scope.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates an operation that is not legal for the
	// batch's current lifecycle state.
	ErrInvalidState = errors.New("invalid batch state")
)
