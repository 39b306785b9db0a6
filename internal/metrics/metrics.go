package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the playback engine.
type Metrics struct {
	registry          *prometheus.Registry
	sessionsOpened    prometheus.Counter
	sessionsExpired   *prometheus.CounterVec
	sessionsClosed    prometheus.Counter
	sessionsErrored   prometheus.Counter
	storyAdvances     prometheus.Counter
	reporterCalls     *prometheus.CounterVec
	commandsThrottled prometheus.Counter
	activeViewers     prometheus.Gauge
}

// New creates and registers Prometheus metrics for the playback engine.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	sessionsOpened := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_sessions_opened_total",
		Help: "Total number of items that entered the viewing phase",
	})
	sessionsExpired := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_sessions_expired_total",
		Help: "Total number of items that expired, by completion source",
	}, []string{"source"})
	sessionsClosed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_sessions_closed_total",
		Help: "Total number of viewers closed by the user or after expiry",
	})
	sessionsErrored := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_sessions_errored_total",
		Help: "Total number of media load failures",
	})
	storyAdvances := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_story_moves_total",
		Help: "Total number of story cursor moves",
	})
	reporterCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_reporter_calls_total",
		Help: "Total number of backend reporter calls, by kind and result",
	}, []string{"kind", "result"})
	commandsThrottled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_commands_throttled_total",
		Help: "Total number of viewer commands dropped by the rate limiter",
	})
	activeViewers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "playback_active_viewer_connections",
		Help: "Number of open viewer gateway connections",
	})

	registry.MustRegister(
		sessionsOpened,
		sessionsExpired,
		sessionsClosed,
		sessionsErrored,
		storyAdvances,
		reporterCalls,
		commandsThrottled,
		activeViewers,
	)

	return &Metrics{
		registry:          registry,
		sessionsOpened:    sessionsOpened,
		sessionsExpired:   sessionsExpired,
		sessionsClosed:    sessionsClosed,
		sessionsErrored:   sessionsErrored,
		storyAdvances:     storyAdvances,
		reporterCalls:     reporterCalls,
		commandsThrottled: commandsThrottled,
		activeViewers:     activeViewers,
	}
}

func (m *Metrics) IncSessionsOpened() {
	m.sessionsOpened.Inc()
}

// IncSessionsExpired increments the expiry counter for source (timer or playback).
func (m *Metrics) IncSessionsExpired(source string) {
	m.sessionsExpired.WithLabelValues(source).Inc()
}

func (m *Metrics) IncSessionsClosed() {
	m.sessionsClosed.Inc()
}

func (m *Metrics) IncSessionsErrored() {
	m.sessionsErrored.Inc()
}

func (m *Metrics) IncStoryMoves() {
	m.storyAdvances.Inc()
}

// ObserveReport records the outcome of one reporter call.
func (m *Metrics) ObserveReport(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reporterCalls.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IncCommandsThrottled() {
	m.commandsThrottled.Inc()
}

func (m *Metrics) ViewerConnected() {
	m.activeViewers.Inc()
}

func (m *Metrics) ViewerDisconnected() {
	m.activeViewers.Dec()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
