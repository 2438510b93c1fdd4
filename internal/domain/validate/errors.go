package validate

import "errors"

// Sentinel kinds for validation errors. Source adapters wrap transient
// network failures with ErrTransient so the chain knows what to retry;
// everything else fails the lookup immediately.
var (
	ErrTransient = errors.New("transient source error")
	ErrBadQuery  = errors.New("malformed source query")
)
