package game

import "errors"

// Sentinel kinds for engine errors. These cover caller and invariant
// failures only; every expected game condition is a structured Result.
var (
	ErrNotJoinable          = errors.New("entity is not accepting players")
	ErrTooFewParticipants   = errors.New("not enough participants to start")
	ErrAlreadyStarted       = errors.New("entity already started")
	ErrNotFinished          = errors.New("entity is not finished")
	ErrNotResettable        = errors.New("only games can be reset")
	ErrDuplicateParticipant = errors.New("participant already joined")
)
