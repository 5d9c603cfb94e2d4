package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loggamera-bridge/internal/models"
)

const namespace = "loggamera"

// Metrics implements the portal and poller observers on a private registry
type Metrics struct {
	registry *prometheus.Registry

	fetchAttempts  *prometheus.CounterVec
	cycleOutcomes  *prometheus.CounterVec
	lastValue      *prometheus.GaugeVec
	cacheFallbacks *prometheus.CounterVec
	pollDuration   prometheus.Histogram
	pollState      *prometheus.GaugeVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Portal fetch attempts by location and result.",
		}, []string{"location", "result"}),
		cycleOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_outcomes_total",
			Help:      "Poll cycle outcomes by location and outcome.",
		}, []string{"location", "kind", "outcome"}),
		lastValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_value",
			Help:      "Last exposed value by location and kind.",
		}, []string{"location", "kind"}),
		cacheFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_fallbacks_total",
			Help:      "Cycles served from the last-good cache.",
		}, []string{"location"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Histogram of whole-poll durations.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		pollState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_locations",
			Help:      "Locations of the last poll by availability.",
		}, []string{"state"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetchAttempts,
		m.cycleOutcomes,
		m.lastValue,
		m.cacheFallbacks,
		m.pollDuration,
		m.pollState,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// Registry exposes the private registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAttempt counts one portal request
func (m *Metrics) ObserveAttempt(locationID int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetchAttempts.WithLabelValues(strconv.Itoa(locationID), result).Inc()
}

// ObserveCycle records the outcome of one location cycle
func (m *Metrics) ObserveCycle(r models.Reading, took time.Duration) {
	if m == nil {
		return
	}
	loc := strconv.Itoa(r.LocationID)
	m.cycleOutcomes.WithLabelValues(loc, r.Kind, r.Outcome.String()).Inc()
	if r.Valid {
		m.lastValue.WithLabelValues(loc, r.Kind).Set(r.Value)
	}
	if r.Stale {
		m.cacheFallbacks.WithLabelValues(loc).Inc()
	}
}

// ObservePoll records the duration and rollup of a poll
func (m *Metrics) ObservePoll(rep *models.Report) {
	if m == nil || rep == nil {
		return
	}
	m.pollDuration.Observe(rep.Duration.Seconds())
	m.pollState.WithLabelValues("ok").Set(float64(rep.Summary.OK))
	m.pollState.WithLabelValues("failed").Set(float64(rep.Summary.Failed))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and their durations for route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}
