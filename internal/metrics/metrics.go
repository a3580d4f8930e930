// Package metrics exposes Prometheus counters for playback decisions,
// timing edits and bridge traffic.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the subdeck collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	playerEvents  *prometheus.CounterVec
	adjustments   *prometheus.CounterVec
	persistErrors prometheus.Counter
	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter
	lines         prometheus.Gauge
	groups        prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	playerEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subdeck_player_events_total",
		Help: "Player commands and policy decisions issued by the orchestrator",
	}, []string{"event"})
	adjustments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subdeck_adjustments_total",
		Help: "Timing edits by outcome (saved or cleared)",
	}, []string{"outcome"})
	persistErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subdeck_persist_errors_total",
		Help: "Adjustment writes that failed",
	})
	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subdeck_bridge_requests_total",
		Help: "Total number of bridge HTTP requests",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subdeck_bridge_errors_total",
		Help: "Bridge HTTP responses with status 4xx or 5xx",
	})
	lines := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subdeck_lines",
		Help: "Number of subtitle lines loaded",
	})
	groups := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subdeck_groups",
		Help: "Number of virtual groups",
	})

	registry.MustRegister(
		playerEvents,
		adjustments,
		persistErrors,
		requestsTotal,
		errorsTotal,
		lines,
		groups,
	)

	return &Metrics{
		registry:      registry,
		playerEvents:  playerEvents,
		adjustments:   adjustments,
		persistErrors: persistErrors,
		requestsTotal: requestsTotal,
		errorsTotal:   errorsTotal,
		lines:         lines,
		groups:        groups,
	}
}

// Observe counts one orchestrator event. It makes *Metrics a
// playback.Observer.
func (m *Metrics) Observe(event string) {
	m.playerEvents.WithLabelValues(event).Inc()
}

// IncAdjustment counts a persisted timing edit; outcome is "saved" or
// "cleared".
func (m *Metrics) IncAdjustment(outcome string) {
	m.adjustments.WithLabelValues(outcome).Inc()
}

// IncPersistErrors increments the failed-write counter.
func (m *Metrics) IncPersistErrors() {
	m.persistErrors.Inc()
}

// IncRequests increments the bridge request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the bridge error counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetSession records the session size.
func (m *Metrics) SetSession(lines, groups int) {
	m.lines.Set(float64(lines))
	m.groups.Set(float64(groups))
}

// Handler returns an http.Handler that serves the registry.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
