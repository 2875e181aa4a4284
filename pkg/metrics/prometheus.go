// Package metrics provides Prometheus metrics for the arena tournament service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the arena service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Tournament flow
	teamsRegistered    prometheus.Counter
	submissionsCreated prometheus.Counter
	verifications      prometheus.Counter
	unverifications    prometheus.Counter
	matchesIssued      prometheus.Counter
	matchesEmpty       prometheus.Counter
	matchesEvicted     prometheus.Counter
	comparisons        prometheus.Counter
	staleMatches       prometheus.Counter
	domainErrors       *prometheus.CounterVec

	// State gauges
	totalTeams         prometheus.Gauge
	totalSubmissions   prometheus.Gauge
	verifiedTeams      prometheus.Gauge
	totalComparisons   prometheus.Gauge
	issuedMatches      prometheus.Gauge
	leaderboardLatency prometheus.Histogram

	// Repository
	journalLatency *prometheus.HistogramVec
	journalErrors  prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
	rateLimited         *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init replaces the global manager with one built from opts on a fresh
// registry and returns it. Call it before serving traffic.
func Init(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	m := NewManager(append(opts, WithPrometheusRegistry(registry))...)
	globalManager = m
	customRegistry = registry
	return m
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "arena",
		subsystem:        "tournament",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.teamsRegistered = m.counter("teams_registered_total", "Total number of teams registered")
	m.submissionsCreated = m.counter("submissions_created_total", "Total number of submissions uploaded")
	m.verifications = m.counter("verifications_total", "Total number of verify transitions that changed state")
	m.unverifications = m.counter("unverifications_total", "Total number of successful unverify transitions")
	m.matchesIssued = m.counter("matches_issued_total", "Total number of matches handed to judges")
	m.matchesEmpty = m.counter("matches_empty_total", "Total number of match requests with no eligible pair")
	m.matchesEvicted = m.counter("matches_evicted_total", "Total number of issued matches evicted before a vote")
	m.comparisons = m.counter("comparisons_recorded_total", "Total number of comparisons recorded")
	m.staleMatches = m.counter("stale_matches_total", "Total number of votes rejected as stale")

	m.domainErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "domain_errors_total",
		Help:      "Domain errors returned to callers by operation and kind",
	}, []string{"operation", "kind"})

	m.totalTeams = m.gauge("teams", "Number of registered teams")
	m.totalSubmissions = m.gauge("submissions", "Number of submissions across all teams")
	m.verifiedTeams = m.gauge("verified_teams", "Number of teams with a verified submission")
	m.totalComparisons = m.gauge("comparisons", "Number of recorded comparisons")
	m.issuedMatches = m.gauge("issued_matches", "Number of matches awaiting a vote")

	m.leaderboardLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_recompute_milliseconds",
		Help:      "Leaderboard full recompute latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.journalLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "journal_write_milliseconds",
		Help:      "Journal write latency in milliseconds by operation",
		Buckets:   m.histogramBuckets,
	}, []string{"operation"})
	m.journalErrors = m.counter("journal_errors_total", "Total number of failed journal writes")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.httpErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_errors_total",
		Help:      "HTTP error responses by endpoint, method, type and severity",
	}, []string{"endpoint", "method", "error_type", "severity"})

	m.rateLimited = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_rate_limited_total",
		Help:      "Requests rejected by the rate limiter by endpoint",
	}, []string{"endpoint"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Enabled reports whether the manager records observations.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often callers should refresh gauge metrics.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RecordTeamRegistered increments the teams registered counter.
func RecordTeamRegistered() {
	if globalManager.enabled {
		globalManager.teamsRegistered.Inc()
	}
}

// RecordSubmissionCreated increments the submissions created counter.
func RecordSubmissionCreated() {
	if globalManager.enabled {
		globalManager.submissionsCreated.Inc()
	}
}

// RecordVerification increments the verify transition counter.
func RecordVerification() {
	if globalManager.enabled {
		globalManager.verifications.Inc()
	}
}

// RecordUnverification increments the unverify transition counter.
func RecordUnverification() {
	if globalManager.enabled {
		globalManager.unverifications.Inc()
	}
}

// RecordMatchIssued increments the issued match counter.
func RecordMatchIssued() {
	if globalManager.enabled {
		globalManager.matchesIssued.Inc()
	}
}

// RecordMatchEmpty increments the empty match request counter.
func RecordMatchEmpty() {
	if globalManager.enabled {
		globalManager.matchesEmpty.Inc()
	}
}

// RecordMatchEvicted increments the evicted match counter.
func RecordMatchEvicted() {
	if globalManager.enabled {
		globalManager.matchesEvicted.Inc()
	}
}

// RecordComparison increments the recorded comparisons counter.
func RecordComparison() {
	if globalManager.enabled {
		globalManager.comparisons.Inc()
	}
}

// RecordStaleMatch increments the stale match counter.
func RecordStaleMatch() {
	if globalManager.enabled {
		globalManager.staleMatches.Inc()
	}
}

// RecordDomainError counts a domain error returned by an operation.
func RecordDomainError(operation, kind string) {
	if globalManager.enabled {
		globalManager.domainErrors.WithLabelValues(operation, kind).Inc()
	}
}

// UpdateTotals sets the state gauges in one call.
func UpdateTotals(teams, submissions, verifiedTeams, comparisons int) {
	if !globalManager.enabled {
		return
	}
	globalManager.totalTeams.Set(float64(teams))
	globalManager.totalSubmissions.Set(float64(submissions))
	globalManager.verifiedTeams.Set(float64(verifiedTeams))
	globalManager.totalComparisons.Set(float64(comparisons))
}

// UpdateIssuedMatches sets the number of matches awaiting a vote.
func UpdateIssuedMatches(count int) {
	if globalManager.enabled {
		globalManager.issuedMatches.Set(float64(count))
	}
}

// RecordLeaderboardLatency records the latency of a full leaderboard recompute.
func RecordLeaderboardLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.leaderboardLatency.Observe(latencyMs)
	}
}

// RecordJournalLatency records a journal write latency for an operation.
func RecordJournalLatency(operation string, latencyMs float64) {
	if globalManager.enabled {
		globalManager.journalLatency.WithLabelValues(operation).Observe(latencyMs)
	}
}

// RecordJournalError increments the failed journal write counter.
func RecordJournalError() {
	if globalManager.enabled {
		globalManager.journalErrors.Inc()
	}
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordHTTPError counts an error response.
func RecordHTTPError(endpoint, method, errorType, severity string) {
	if globalManager.enabled {
		globalManager.httpErrors.WithLabelValues(endpoint, method, errorType, severity).Inc()
	}
}

// RecordRateLimited counts a request rejected by the rate limiter.
func RecordRateLimited(endpoint string) {
	if globalManager.enabled {
		globalManager.rateLimited.WithLabelValues(endpoint).Inc()
	}
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records an average GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	if globalManager.enabled {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the custom registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
