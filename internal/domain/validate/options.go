// Package validate decides whether a proposed artist name is a legal move.
package validate

import (
	"time"

	"github.com/okian/medley/pkg/logger"
)

// Option applies a configuration option to the Chain.
type Option func(*Chain)

// WithRetry sets the bounded retry budget for transient source errors.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Chain) {
		if attempts > 0 {
			c.retryAttempts = attempts
		}
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithCacheSize bounds the resolution and relation caches.
func WithCacheSize(size int) Option {
	return func(c *Chain) {
		if size > 0 {
			c.resolveCache = newCache[resolveEntry](size)
			c.relationCache = newCache[relationEntry](size)
			c.degreeCache = newCache[[]string](size)
		}
	}
}

// WithLogger sets a custom logger for the chain.
func WithLogger(l logger.Logger) Option {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}
