// Package scoring computes the solo-mode score for an accepted move.
package scoring

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithCap sets the maximum final score for a single move.
func WithCap(cap int) Option {
	return func(e *Engine) {
		if cap > 0 {
			e.cap = cap
		}
	}
}
