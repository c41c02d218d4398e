package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records model invocation counters. A nil *Metrics records nothing.
type Metrics struct {
	Calls    *prometheus.CounterVec
	Retries  *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewMetrics registers the invoker metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_model_calls_total",
				Help: "Total number of extraction model calls by model and outcome",
			},
			[]string{"model", "status"},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "extraction_model_retries_total",
				Help: "Total number of retried extraction model calls",
			},
			[]string{"model"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "extraction_model_call_duration_seconds",
				Help:    "Duration of extraction model calls in seconds, retries included",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
			},
			[]string{"model"},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "extraction_model_calls_in_flight",
				Help: "Number of extraction model calls currently in flight",
			},
		),
	}
}

func (m *Metrics) start() func(model, status string) {
	if m == nil {
		return func(string, string) {}
	}
	begin := time.Now()
	m.InFlight.Inc()
	return func(model, status string) {
		m.InFlight.Dec()
		m.Calls.WithLabelValues(model, status).Inc()
		m.Duration.WithLabelValues(model).Observe(time.Since(begin).Seconds())
	}
}

func (m *Metrics) retried(model string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(model).Inc()
}
