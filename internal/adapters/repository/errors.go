package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrInvalidLimit   = errors.New("invalid board limit")
)
