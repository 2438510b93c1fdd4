// Package timer schedules the per-turn deadline callback for each entity.
package timer

import (
	"github.com/okian/medley/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithAfterFunc injects the timer primitive; tests supply a manual one
// so deadlines fire without real time passing.
func WithAfterFunc(after AfterFunc) Option {
	return func(s *Scheduler) {
		if after != nil {
			s.after = after
		}
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}
