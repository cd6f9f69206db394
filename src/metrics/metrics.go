// Package metrics holds the Prometheus collectors for the support pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "support_desk"

// Dispatch outcomes used as label values.
const (
	OutcomeOK             = "ok"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
	OutcomeTimeout        = "timeout"
	OutcomeEmptyResponse  = "empty_response"
)

type Metrics struct {
	Rejected   prometheus.Counter
	Dispatches *prometheus.CounterVec
	Latency    *prometheus.HistogramVec
	InFlight   prometheus.Gauge
	CacheHits  prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which tests use to avoid the global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_submissions_total",
			Help:      "Submissions refused before dispatch because the question was empty.",
		}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Model dispatches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent waiting for the model.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatches_in_flight",
			Help:      "Dispatches currently holding a worker slot.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Answers served from the response cache.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Rejected, m.Dispatches, m.Latency, m.InFlight, m.CacheHits)
	}
	return m
}
