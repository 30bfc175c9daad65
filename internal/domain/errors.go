package domain

import "errors"

// Error taxonomy of the pure core. Every failure is a deterministic parsing
// or validation error; callers translate them into a non-zero process exit.
var (
	ErrInvalidVersionFormat = errors.New("invalid version format")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidPattern       = errors.New("invalid pattern")
)
