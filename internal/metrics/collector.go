// Package metrics exposes the studio's prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests can build as many as they need.
type Collector struct {
	registry *prometheus.Registry

	generationRuns     *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationPolls    prometheus.Counter
	stateTransitions   *prometheus.CounterVec
	historySize        prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector registers every metric under namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		generationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_runs_total",
			Help:      "Finished workflow runs by outcome",
		}, []string{"outcome"}),
		generationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of workflow runs",
			Buckets:   []float64{10, 30, 60, 120, 240, 480, 900},
		}, []string{"outcome"}),
		generationPolls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_polls_total",
			Help:      "Job status checks issued to the provider",
		}),
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Application state transitions",
		}, []string{"from", "to"}),
		historySize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_entries",
			Help:      "Videos in the session history",
		}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (c *Collector) PollCompleted() {
	c.generationPolls.Inc()
}

func (c *Collector) RunFinished(outcome string, elapsed time.Duration) {
	c.generationRuns.WithLabelValues(outcome).Inc()
	c.generationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (c *Collector) Transition(from, to string) {
	c.stateTransitions.WithLabelValues(from, to).Inc()
}

func (c *Collector) HistorySize(n int) {
	c.historySize.Set(float64(n))
}

func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
