// Package game owns the turn-resolution engine.
package game

import (
	"time"

	"github.com/okian/medley/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock injects a time source; tests use a manual clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTurnDuration sets the per-turn deadline window.
func WithTurnDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.turnDuration = d
		}
	}
}

// WithAttemptBudget sets how many soft rejections a turn tolerates.
func WithAttemptBudget(budget int) Option {
	return func(e *Engine) {
		if budget > 0 {
			e.attemptBudget = budget
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
