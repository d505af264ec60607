package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the backtest service. All methods are
// safe on a nil receiver so callers without metrics need no checks.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal          *prometheus.CounterVec // labels: status
	RunDuration        prometheus.Histogram
	RunBars            prometheus.Histogram
	DataSourceRequests *prometheus.CounterVec // labels: source, status
	HTTPRequests       *prometheus.CounterVec // labels: method, route, status
	HTTPDuration       *prometheus.HistogramVec
}

// NewMetrics builds the collectors on a private registry, including the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_runs_total",
			Help: "Backtest runs by outcome",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_duration_seconds",
			Help:    "Engine run latency",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		RunBars: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_bars",
			Help:    "Bars per backtest run",
			Buckets: prometheus.ExponentialBuckets(10, 4, 6),
		}),
		DataSourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "datasource_requests_total",
			Help: "Upstream market data requests by source and result",
		}, []string{"source", "status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RunsTotal,
		m.RunDuration,
		m.RunBars,
		m.DataSourceRequests,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRun records one engine run. status is "ok" or an error class. A zero d marks
// a run rejected before the engine started: it is counted but not timed.
func (m *Metrics) ObserveRun(status string, bars int, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	if d > 0 {
		m.RunDuration.Observe(d.Seconds())
	}
	if bars > 0 {
		m.RunBars.Observe(float64(bars))
	}
}

// ObserveDataSource records one upstream request.
func (m *Metrics) ObserveDataSource(source, status string) {
	if m == nil {
		return
	}
	m.DataSourceRequests.WithLabelValues(source, status).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
