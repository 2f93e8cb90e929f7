package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

// UploadMetrics implements ports.UploadObserver and counts transfer retries.
type UploadMetrics struct {
	service string

	outcomes         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	transferAttempts *prometheus.CounterVec
}

func NewUploadMetrics(registerer prometheus.Registerer, service string) *UploadMetrics {
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doclife",
			Subsystem: "upload",
			Name:      "outcomes_total",
			Help:      "Finished uploads by final state and the stage reached.",
		},
		[]string{"service", "state", "stage"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "doclife",
			Subsystem: "upload",
			Name:      "duration_seconds",
			Help:      "Upload orchestration duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "state"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "doclife",
			Subsystem:   "upload",
			Name:        "in_flight",
			Help:        "Number of uploads currently orchestrated.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	transferAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doclife",
			Subsystem: "transfer",
			Name:      "retries_total",
			Help:      "Retried storage transfer attempts by operation.",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(outcomes, duration, inFlight, transferAttempts)

	return &UploadMetrics{
		service:          service,
		outcomes:         outcomes,
		duration:         duration,
		inFlight:         inFlight,
		transferAttempts: transferAttempts,
	}
}

func (m *UploadMetrics) UploadStarted() {
	m.inFlight.Inc()
}

func (m *UploadMetrics) UploadFinished(state domain.UploadState, stage string, elapsed time.Duration) {
	m.inFlight.Dec()
	if stage == "" {
		stage = "none"
	}
	m.outcomes.WithLabelValues(m.service, string(state), stage).Inc()
	m.duration.WithLabelValues(m.service, string(state)).Observe(elapsed.Seconds())
}

// RetryHook matches resilience.RetryHook.
func (m *UploadMetrics) RetryHook(operation string, _ int, _ time.Duration, _ error) {
	m.transferAttempts.WithLabelValues(m.service, operation).Inc()
}
