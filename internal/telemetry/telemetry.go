// Package telemetry exposes Prometheus collectors for analyses and
// submission persistence outcomes.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure reasons recorded on SubmissionsFailed.
const (
	ReasonInvalid = "invalid_document"
	ReasonWrite   = "write_error"
	ReasonTimeout = "timeout"
)

// Collectors groups the application's metrics.
type Collectors struct {
	registry *prometheus.Registry

	SubmissionsPersisted *prometheus.CounterVec
	SubmissionsFailed    *prometheus.CounterVec
	SinkWriteDuration    *prometheus.HistogramVec
	Analyses             *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		SubmissionsPersisted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equity_submissions_persisted_total",
				Help: "Total number of submissions written to the sink",
			},
			[]string{"sink"},
		),
		SubmissionsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equity_submissions_failed_total",
				Help: "Total number of submissions the sink failed to persist",
			},
			[]string{"sink", "reason"},
		),
		SinkWriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "equity_sink_write_duration_seconds",
				Help:    "Duration of the single sink write attempt in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"sink"},
		),
		Analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "equity_analyses_total",
				Help: "Total number of analyses computed, by financial pressure level",
			},
			[]string{"pressure"},
		),
	}

	c.registry.MustRegister(
		c.SubmissionsPersisted,
		c.SubmissionsFailed,
		c.SinkWriteDuration,
		c.Analyses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry the collectors are registered on.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveWrite records the outcome of one sink write. An empty reason
// means the write succeeded.
func (c *Collectors) ObserveWrite(sink, reason string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.SinkWriteDuration.WithLabelValues(sink).Observe(elapsed.Seconds())
	if reason == "" {
		c.SubmissionsPersisted.WithLabelValues(sink).Inc()
		return
	}
	c.SubmissionsFailed.WithLabelValues(sink, reason).Inc()
}

// ObserveAnalysis counts one computed analysis.
func (c *Collectors) ObserveAnalysis(pressure string) {
	if c == nil {
		return
	}
	c.Analyses.WithLabelValues(pressure).Inc()
}
