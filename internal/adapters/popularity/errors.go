package popularity

import "errors"

// Sentinel kinds for snapshot loading errors.
var (
	ErrLoadSnapshot = errors.New("load popularity snapshot failed")
	ErrBadSnapshot  = errors.New("malformed popularity snapshot")
)
