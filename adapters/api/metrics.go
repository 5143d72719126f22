package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"statcore/app"
	"statcore/internal/errors"
)

// Metrics holds the Prometheus collectors of the HTTP surface
type Metrics struct {
	registry *prometheus.Registry

	AnalysisDuration *prometheus.HistogramVec
	AnalysisFailures *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AnalysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statcore_analysis_duration_seconds",
				Help:    "Duration of each analysis in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"kind", "result"},
		),
		AnalysisFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "statcore_analysis_failures_total",
				Help: "Failed analyses by kind and error code",
			},
			[]string{"kind", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "statcore_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
	}
	m.registry.MustRegister(m.AnalysisDuration, m.AnalysisFailures, m.RequestDuration)
	return m
}

// ObserveAnalysis implements app.Observer
func (m *Metrics) ObserveAnalysis(kind app.Kind, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		m.AnalysisFailures.WithLabelValues(string(kind), errors.FromEngine(err).Code).Inc()
	}
	m.AnalysisDuration.WithLabelValues(string(kind), result).Observe(duration.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
