// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackmichael/snippet-feed/internal/domain"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ActiveConnections   prometheus.Gauge

	GenerationCalls    *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	EventSubscribers   prometheus.Gauge
	FeedbackUpdates    *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_connections",
				Help: "Number of in-flight HTTP requests",
			},
		),
		GenerationCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snippet_generation_calls_total",
				Help: "Total number of calls to the snippet generator",
			},
			[]string{"result"},
		),
		GenerationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "snippet_generation_duration_seconds",
				Help:    "Duration of snippet generator calls",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		EventSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "event_subscribers",
				Help: "Number of connected live update subscribers",
			},
		),
		FeedbackUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_updates_total",
				Help: "Total number of post feedback updates",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveConnections,
		m.GenerationCalls,
		m.GenerationDuration,
		m.EventSubscribers,
		m.FeedbackUpdates,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records a finished HTTP request. route should be the mux
// pattern rather than the raw path to bound label cardinality.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// InstrumentGenerator wraps g so each call is counted and timed.
func (m *Metrics) InstrumentGenerator(g domain.Generator) domain.Generator {
	return &instrumentedGenerator{next: g, m: m}
}

type instrumentedGenerator struct {
	next domain.Generator
	m    *Metrics
}

func (g *instrumentedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	timer := prometheus.NewTimer(g.m.GenerationDuration)
	defer timer.ObserveDuration()

	text, err := g.next.Generate(ctx, prompt)
	if err != nil {
		g.m.GenerationCalls.WithLabelValues("error").Inc()
		return "", err
	}
	g.m.GenerationCalls.WithLabelValues("ok").Inc()
	return text, nil
}
