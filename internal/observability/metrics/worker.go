package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	eventsTotal   *prometheus.CounterVec
	orphanEntries *prometheus.GaugeVec
	sweepsTotal   *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doclife",
			Subsystem: "worker",
			Name:      "lifecycle_events_total",
			Help:      "Lifecycle notifications consumed by type.",
		},
		[]string{"service", "type"},
	)
	orphanEntries := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "doclife",
			Subsystem: "ledger",
			Name:      "orphan_candidates",
			Help:      "Stale unfinalized ledger entries seen by the last sweep, by state.",
		},
		[]string{"service", "state"},
	)
	sweepsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doclife",
			Subsystem: "ledger",
			Name:      "sweeps_total",
			Help:      "Ledger sweeps by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(eventsTotal, orphanEntries, sweepsTotal)

	return &WorkerMetrics{
		registry:      registry,
		eventsTotal:   eventsTotal,
		orphanEntries: orphanEntries,
		sweepsTotal:   sweepsTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) ObserveEvent(service, eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.eventsTotal.WithLabelValues(service, eventType).Inc()
}

// SetOrphans replaces the gauge values for every state in counts.
func (m *WorkerMetrics) SetOrphans(service string, counts map[string]int) {
	for state, n := range counts {
		m.orphanEntries.WithLabelValues(service, state).Set(float64(n))
	}
}

func (m *WorkerMetrics) ObserveSweep(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sweepsTotal.WithLabelValues(service, status).Inc()
}
