// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults, Load(ctx) to layer sources.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// TurnSeconds is the per-turn deadline in seconds.
	TurnSeconds int `koanf:"turn_seconds"`

	// AttemptBudget is the number of soft rejections a holder gets
	// within a single turn before elimination.
	AttemptBudget int `koanf:"attempt_budget"`

	// PrimaryBaseURL points at the MusicBrainz-compatible lookup service.
	PrimaryBaseURL string `koanf:"primary_base_url"`

	// FallbackBaseURL points at the Deezer-compatible lookup service.
	FallbackBaseURL string `koanf:"fallback_base_url"`

	// SourceTimeoutMS bounds a single lookup source HTTP call.
	SourceTimeoutMS int `koanf:"source_timeout_ms"`

	// UserAgent is sent on outbound lookup requests.
	UserAgent string `koanf:"user_agent"`

	// RetryAttempts is the total number of tries per source call.
	RetryAttempts int `koanf:"retry_attempts"`

	// RetryDelayMS is the fixed delay between tries.
	RetryDelayMS int `koanf:"retry_delay_ms"`

	// ValidationCacheSize bounds each of the validation caches.
	ValidationCacheSize int `koanf:"validation_cache_size"`

	// ResultQueueSize bounds the in-memory finished-run queue.
	ResultQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of board update workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the run result deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxBoardLimit caps GET /leaderboard?limit.
	MaxBoardLimit int `koanf:"max_board_limit"`

	// PopularitySnapshotPath optionally points at a JSON popularity
	// snapshot used by the scoring engine. Empty means built-in defaults.
	PopularitySnapshotPath string `koanf:"popularity_snapshot_path"`
}

// New creates a Config populated with defaults.
func New() *Config {
	c := &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		TurnSeconds:         30,
		AttemptBudget:       2,
		PrimaryBaseURL:      "https://musicbrainz.org/ws/2",
		FallbackBaseURL:     "https://api.deezer.com",
		SourceTimeoutMS:     5_000,
		UserAgent:           "medley/1.0 (https://github.com/okian/medley)",
		RetryAttempts:       3,
		RetryDelayMS:        300,
		ValidationCacheSize: 10_000,
		ResultQueueSize:     10_000,
		WorkerCount:         2,
		DedupeSize:          50_000,
		MaxBoardLimit:       100,
	}
	return c
}
