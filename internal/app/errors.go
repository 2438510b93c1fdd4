package service

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrSubmitInFlight: another submit on the same entity is being
	// processed; concurrent submits are rejected, not queued.
	ErrSubmitInFlight = errors.New("submit already in flight")

	// ErrSeedNotFound: the seed artist name resolved to nothing.
	ErrSeedNotFound = errors.New("seed artist not found")

	// ErrSeedLookup: the lookup source failed while resolving a seed.
	ErrSeedLookup = errors.New("seed artist lookup failed")

	// ErrJoinCodeExhausted: could not mint an unused join code.
	ErrJoinCodeExhausted = errors.New("join code space exhausted")
)
