package analysis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	outcomeOK       = "ok"
	outcomeCached   = "cached"
	outcomeUpstream = "upstream_error"
	outcomeShape    = "shape_error"
)

// Metrics are the analyzer's Prometheus collectors.
type Metrics struct {
	analyses         *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	recordFailures   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodlens_analyses_total",
				Help: "Ingredient analyses by revision and outcome",
			},
			[]string{"revision", "outcome"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "foodlens_upstream_duration_seconds",
				Help:    "Time spent waiting on the upstream API, retries included",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		recordFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "foodlens_record_failures_total",
				Help: "Analyses that could not be written to the record store",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.analyses, m.upstreamDuration, m.recordFailures)
	}
	return m
}

func (m *Metrics) observe(revision, outcome string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(revision, outcome).Inc()
}

func (m *Metrics) observeUpstream(model string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) recordFailed() {
	if m == nil {
		return
	}
	m.recordFailures.Inc()
}
