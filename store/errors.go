package store

import "errors"

var (
	// ErrRoundNotFound is returned when no round was saved at the requested
	// height.
	ErrRoundNotFound = errors.New("round not found")
	// ErrStateNotFound is returned when no state snapshot was saved yet.
	ErrStateNotFound = errors.New("state snapshot not found")
)
