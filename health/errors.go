package health

import "errors"

var (
	// ErrCheckTimeout is the Result.Error of a check that outlived the
	// aggregator timeout.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckPanicked is the Result.Error of a check that panicked.
	ErrCheckPanicked = errors.New("health: check panicked")

	// ErrCheckerNotFound indicates no checker is registered under a name.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrInvalidCheckerName indicates an empty checker name.
	ErrInvalidCheckerName = errors.New("health: checker name is required")
)
