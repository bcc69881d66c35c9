package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names exposed on the scrape endpoint. Existing dashboards query
// these, so they must not change.
const (
	RequestsTotalName   = "http_requests_total"
	ActiveRequestsName  = "active_http_requests"
	ResponsesTotalName  = "http_responses_total"
	RequestDurationName = "http_request_duration_seconds"
)

// Metrics tracks file server request counters on a private registry
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   prometheus.Counter
	activeRequests  prometheus.Gauge
	responsesTotal  *prometheus.CounterVec
	requestDuration prometheus.Histogram

	game *GameMetrics
}

// NewMetrics creates a new metrics instance with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: RequestsTotalName,
			Help: "Total HTTP requests served",
		}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: ActiveRequestsName,
			Help: "Number of active HTTP requests",
		}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: ResponsesTotalName,
			Help: "Completed HTTP requests by status code",
		}, []string{"code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    RequestDurationName,
			Help:    "Time spent serving HTTP requests",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.activeRequests,
		m.responsesTotal,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RequestStarted counts a new request and marks it active
func (m *Metrics) RequestStarted() {
	m.requestsTotal.Inc()
	m.activeRequests.Inc()
}

// RequestFinished releases the active slot taken by RequestStarted and records
// the outcome. It must be called exactly once per RequestStarted.
func (m *Metrics) RequestFinished(code int, elapsed time.Duration) {
	m.activeRequests.Dec()
	m.responsesTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	m.requestDuration.Observe(elapsed.Seconds())
}

// EnableGame registers the game counters on first call and returns them
func (m *Metrics) EnableGame() *GameMetrics {
	if m.game == nil {
		m.game = newGameMetrics(m.registry)
	}
	return m.game
}

// Game returns the game counters, or nil when they were never enabled
func (m *Metrics) Game() *GameMetrics {
	return m.game
}

// Handler serves the registry in the Prometheus text exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
		Registry:      m.registry,
	})
}

// GetSnapshot returns the current value of every single-sample counter and
// gauge in the registry, keyed by metric name
func (m *Metrics) GetSnapshot() map[string]float64 {
	snapshot := make(map[string]float64)

	families, err := m.registry.Gather()
	if err != nil {
		return snapshot
	}

	for _, mf := range families {
		samples := mf.GetMetric()
		if len(samples) != 1 {
			continue
		}
		switch {
		case samples[0].GetCounter() != nil:
			snapshot[mf.GetName()] = samples[0].GetCounter().GetValue()
		case samples[0].GetGauge() != nil:
			snapshot[mf.GetName()] = samples[0].GetGauge().GetValue()
		}
	}

	return snapshot
}
