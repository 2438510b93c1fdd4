// Package metrics provides Prometheus metrics for the medley game service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the medley service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Turn engine metrics - what the game is actually doing
	movesProcessed   prometheus.Counter
	movesAccepted    prometheus.Counter
	movesRejected    *prometheus.CounterVec
	eliminations     *prometheus.CounterVec
	runScores        prometheus.Histogram
	activeGames      prometheus.Gauge
	activeRuns       prometheus.Gauge

	// Validation chain metrics
	validationsBySource  *prometheus.CounterVec
	validationCacheHits  prometheus.Counter
	validationCacheMiss  prometheus.Counter
	sourceErrors         *prometheus.CounterVec
	sourceRetries        prometheus.Counter
	sourceLatency        *prometheus.HistogramVec

	// Timer coordinator metrics
	timerFires      prometheus.Counter
	timerStaleFires prometheus.Counter
	pendingTimers   prometheus.Gauge

	// Result pipeline metrics
	resultQueueSize  prometheus.Gauge
	resultQueueDrops *prometheus.CounterVec
	resultDuplicates prometheus.Counter
	boardUpdates     prometheus.Counter
	boardErrors      prometheus.Counter
	boardPlayers     prometheus.Gauge
	workerCount      prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByType        *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "medley",
		subsystem:        "game",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // metric initialization is enumerative by nature
	auto := promauto.With(m.registry)

	m.movesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "moves_processed_total",
		Help:      "Total number of move submissions recorded, accepted or not",
	})

	m.movesAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "moves_accepted_total",
		Help:      "Total number of accepted moves",
	})

	m.movesRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "moves_rejected_total",
			Help:      "Total number of rejected moves by reason",
		},
		[]string{"reason"},
	)

	m.eliminations = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "eliminations_total",
			Help:      "Total number of participant eliminations by reason",
		},
		[]string{"reason"},
	)

	m.runScores = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_score",
		Help:      "Distribution of finished solo run total scores",
		Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000},
	})

	m.activeGames = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_games",
		Help:      "Current number of live multiplayer games",
	})

	m.activeRuns = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_runs",
		Help:      "Current number of live solo runs",
	})

	m.validationsBySource = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "validations_by_source_total",
			Help:      "Collaborations confirmed, by deciding source",
		},
		[]string{"source"},
	)

	m.validationCacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_cache_hits_total",
		Help:      "Validation cache hits",
	})

	m.validationCacheMiss = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validation_cache_misses_total",
		Help:      "Validation cache misses",
	})

	m.sourceErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "source_errors_total",
			Help:      "Lookup source failures after retries, by source",
		},
		[]string{"source"},
	)

	m.sourceRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "source_retries_total",
		Help:      "Transient lookup source errors that triggered a retry",
	})

	m.sourceLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "source_latency_milliseconds",
			Help:      "Lookup source call latency in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"source"},
	)

	m.timerFires = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "timer_fires_total",
		Help:      "Turn deadlines that fired and eliminated a holder",
	})

	m.timerStaleFires = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "timer_stale_fires_total",
		Help:      "Turn deadline callbacks that no-opped after losing a race",
	})

	m.pendingTimers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pending_timers",
		Help:      "Currently armed turn deadlines",
	})

	m.resultQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "result_queue_size",
		Help:      "Current size of the finished-run result queue",
	})

	m.resultQueueDrops = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "result_queue_drops_total",
			Help:      "Run results the queue refused, by cause",
		},
		[]string{"cause"},
	)

	m.resultDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "result_duplicates_total",
		Help:      "Run results suppressed by the idempotency check",
	})

	m.boardUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "board_updates_total",
		Help:      "High-score board improvements",
	})

	m.boardErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "board_errors_total",
		Help:      "High-score board update failures",
	})

	m.boardPlayers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "board_players",
		Help:      "Players on the high-score board",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Result pipeline worker goroutines",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "HTTP error responses by endpoint and error type",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorsByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "HTTP error responses by error type and severity",
		},
		[]string{"error_type", "severity"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Allocated heap bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current goroutine count",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Observed average GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// GetRegistry returns the registry metrics are exposed from.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers against the global manager.

func RecordMoveProcessed() { globalManager.movesProcessed.Inc() }
func RecordMoveAccepted()  { globalManager.movesAccepted.Inc() }

func RecordMoveRejected(reason string) {
	globalManager.movesRejected.WithLabelValues(reason).Inc()
}

func RecordElimination(reason string) {
	globalManager.eliminations.WithLabelValues(reason).Inc()
}

func RecordRunScore(score float64) { globalManager.runScores.Observe(score) }

func UpdateActiveGames(n int) { globalManager.activeGames.Set(float64(n)) }
func UpdateActiveRuns(n int)  { globalManager.activeRuns.Set(float64(n)) }

func RecordValidationBySource(source string) {
	globalManager.validationsBySource.WithLabelValues(source).Inc()
}

func RecordValidationCacheHit()  { globalManager.validationCacheHits.Inc() }
func RecordValidationCacheMiss() { globalManager.validationCacheMiss.Inc() }

func RecordSourceError(source string) {
	globalManager.sourceErrors.WithLabelValues(source).Inc()
}

func RecordSourceRetry() { globalManager.sourceRetries.Inc() }

func RecordSourceLatency(source string, ms float64) {
	globalManager.sourceLatency.WithLabelValues(source).Observe(ms)
}

func RecordTimerFire()      { globalManager.timerFires.Inc() }
func RecordTimerStaleFire() { globalManager.timerStaleFires.Inc() }

func UpdatePendingTimers(n int) { globalManager.pendingTimers.Set(float64(n)) }

func UpdateResultQueueSize(n int) { globalManager.resultQueueSize.Set(float64(n)) }

func RecordResultQueueDrop(cause string) {
	globalManager.resultQueueDrops.WithLabelValues(cause).Inc()
}

func RecordResultDuplicate() { globalManager.resultDuplicates.Inc() }
func RecordBoardUpdate()     { globalManager.boardUpdates.Inc() }
func RecordBoardError()      { globalManager.boardErrors.Inc() }

func UpdateBoardPlayers(n int) { globalManager.boardPlayers.Set(float64(n)) }
func UpdateWorkerCount(n int)  { globalManager.workerCount.Set(float64(n)) }

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutineCount.Set(float64(n))
}

func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPauseTime.Observe(ms)
}
