package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	// Report metrics
	reportRequests    *prometheus.CounterVec
	reportDuration    prometheus.Histogram
	intervalsExcluded prometheus.Counter
	malformedDropped  prometheus.Counter

	// Event source metrics
	eventsFetched  prometheus.Counter
	fetchErrors    prometheus.Counter
	fetchDuration  prometheus.Histogram
	cacheLookups   *prometheus.CounterVec
	rosterReloads  *prometheus.CounterVec
	rosterMembers  prometheus.Gauge
	loginAttempts  *prometheus.CounterVec
	activityErrors prometheus.Counter

	// WebSocket and board metrics
	wsConnections prometheus.Gauge
	wsMessages    prometheus.Counter
	wsErrors      prometheus.Counter
	boardInLine   prometheus.Gauge
	boardAgents   prometheus.Gauge
	boardCycles   prometheus.Counter
	boardErrors   prometheus.Counter

	// HTTP metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New builds a Metrics on a fresh registry. Tests use it to avoid sharing counters.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		reportRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "report_requests_total",
			Help:      "Presence report requests by view and outcome",
		}, []string{"view", "outcome"}),
		reportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qcdash",
			Name:      "report_duration_seconds",
			Help:      "Time to build a presence report, fetch included",
			Buckets:   prometheus.DefBuckets,
		}),
		intervalsExcluded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "intervals_excluded_total",
			Help:      "Off-queue intervals left out of totals by the max gap rule",
		}),
		malformedDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "malformed_events_dropped_total",
			Help:      "Presence events dropped for missing fields",
		}),

		eventsFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "events_fetched_total",
			Help:      "Presence events read from queue_log",
		}),
		fetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "event_fetch_errors_total",
			Help:      "Failed queue_log queries",
		}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qcdash",
			Name:      "event_fetch_duration_seconds",
			Help:      "queue_log query latency",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "cache_lookups_total",
			Help:      "Event cache lookups by result",
		}, []string{"result"}),
		rosterReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "roster_reloads_total",
			Help:      "Roster reloads by outcome",
		}, []string{"outcome"}),
		rosterMembers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "qcdash",
			Name:      "roster_members",
			Help:      "Members in the current roster",
		}),
		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		activityErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "activity_log_errors_total",
			Help:      "Activity entries that could not be stored",
		}),

		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "qcdash",
			Name:      "websocket_active_connections",
			Help:      "Connected board clients",
		}),
		wsMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "websocket_messages_total",
			Help:      "Messages queued to board clients",
		}),
		wsErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "websocket_errors_total",
			Help:      "Board client errors",
		}),
		boardInLine: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "qcdash",
			Name:      "board_agents_in_line",
			Help:      "Agents on at least one monitored queue at the last board tick",
		}),
		boardAgents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "qcdash",
			Name:      "board_agents",
			Help:      "Agents on the board at the last tick",
		}),
		boardCycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "board_cycles_total",
			Help:      "Board refresh cycles",
		}),
		boardErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "board_errors_total",
			Help:      "Board refresh cycles that failed",
		}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qcdash",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qcdash",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// RecordReport records one report request
func (m *Metrics) RecordReport(view, outcome string, duration time.Duration) {
	m.reportRequests.WithLabelValues(view, outcome).Inc()
	m.reportDuration.Observe(duration.Seconds())
}

// RecordExcludedIntervals adds intervals dropped by the max gap rule
func (m *Metrics) RecordExcludedIntervals(n int) {
	if n > 0 {
		m.intervalsExcluded.Add(float64(n))
	}
}

// RecordMalformedEvents adds events dropped during reconstruction
func (m *Metrics) RecordMalformedEvents(n int) {
	if n > 0 {
		m.malformedDropped.Add(float64(n))
	}
}

// RecordFetch records a queue_log query
func (m *Metrics) RecordFetch(events int, duration time.Duration, err error) {
	m.fetchDuration.Observe(duration.Seconds())
	if err != nil {
		m.fetchErrors.Inc()
		return
	}
	m.eventsFetched.Add(float64(events))
}

// RecordCacheHit increments the cache hit counter
func (m *Metrics) RecordCacheHit() {
	m.cacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss increments the cache miss counter
func (m *Metrics) RecordCacheMiss() {
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordRosterReload records a roster load
func (m *Metrics) RecordRosterReload(members int, err error) {
	if err != nil {
		m.rosterReloads.WithLabelValues("error").Inc()
		return
	}
	m.rosterReloads.WithLabelValues("ok").Inc()
	m.rosterMembers.Set(float64(members))
}

// RecordLogin records a login attempt outcome (ok, invalid, throttled, error)
func (m *Metrics) RecordLogin(outcome string) {
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// RecordActivityError increments the activity store error counter
func (m *Metrics) RecordActivityError() {
	m.activityErrors.Inc()
}

// RecordWebSocketConnect increments active connections
func (m *Metrics) RecordWebSocketConnect() {
	m.wsConnections.Inc()
}

// RecordWebSocketDisconnect decrements active connections
func (m *Metrics) RecordWebSocketDisconnect() {
	m.wsConnections.Dec()
}

// RecordWebSocketMessage increments the message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.wsMessages.Inc()
}

// RecordWebSocketError increments the WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.wsErrors.Inc()
}

// RecordBoardCycle records a board refresh
func (m *Metrics) RecordBoardCycle(agents, inLine int) {
	m.boardCycles.Inc()
	m.boardAgents.Set(float64(agents))
	m.boardInLine.Set(float64(inLine))
}

// RecordBoardError increments the board error counter
func (m *Metrics) RecordBoardError() {
	m.boardErrors.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(route string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
