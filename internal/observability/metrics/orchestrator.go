package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type OrchestratorMetrics struct {
	registry *prometheus.Registry
	service  string

	batchTotal        *prometheus.CounterVec
	batchDuration     *prometheus.HistogramVec
	batchSize         *prometheus.HistogramVec
	batchesInFlight   prometheus.Gauge
	candidateTotal    *prometheus.CounterVec
	queueSize         *prometheus.GaugeVec
	itemsInProcessing prometheus.Gauge
}

func NewOrchestratorMetrics(service string) *OrchestratorMetrics {
	registry := prometheus.NewRegistry()

	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "screener",
			Subsystem: "orchestrator",
			Name:      "batch_total",
			Help:      "Total dispatched extraction batches by status.",
		},
		[]string{"service", "status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "screener",
			Subsystem: "orchestrator",
			Name:      "batch_duration_seconds",
			Help:      "Extraction batch duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 90, 120, 180, 300, 600},
		},
		[]string{"service", "status"},
	)
	batchSize := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "screener",
			Subsystem: "orchestrator",
			Name:      "batch_size",
			Help:      "Number of candidates per dispatched batch.",
			Buckets:   []float64{1, 2, 3, 5, 8, 10, 15, 20},
		},
		[]string{"service"},
	)
	batchesInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "screener",
			Subsystem: "orchestrator",
			Name:      "batches_in_flight",
			Help:      "Number of extraction batches currently dispatched.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	candidateTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "screener",
			Subsystem: "orchestrator",
			Name:      "candidate_total",
			Help:      "Total candidate processing outcomes by status.",
		},
		[]string{"service", "status"},
	)
	queueSize := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "screener",
			Subsystem: "orchestrator",
			Name:      "retry_queue_size",
			Help:      "Current retry queue sizes by queue.",
		},
		[]string{"service", "queue"},
	)
	itemsInProcessing := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "screener",
			Subsystem: "orchestrator",
			Name:      "candidates_in_processing",
			Help:      "Number of candidates currently in flight.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(batchTotal, batchDuration, batchSize, batchesInFlight, candidateTotal, queueSize, itemsInProcessing)

	return &OrchestratorMetrics{
		registry:          registry,
		service:           service,
		batchTotal:        batchTotal,
		batchDuration:     batchDuration,
		batchSize:         batchSize,
		batchesInFlight:   batchesInFlight,
		candidateTotal:    candidateTotal,
		queueSize:         queueSize,
		itemsInProcessing: itemsInProcessing,
	}
}

func (m *OrchestratorMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *OrchestratorMetrics) BatchStarted(size int) {
	m.batchesInFlight.Inc()
	m.batchSize.WithLabelValues(m.service).Observe(float64(size))
}

func (m *OrchestratorMetrics) BatchFinished(size int, duration time.Duration, err error) {
	m.batchesInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.batchTotal.WithLabelValues(m.service, status).Inc()
	m.batchDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *OrchestratorMetrics) CandidateFinished(status string) {
	if status == "" {
		status = "unknown"
	}
	m.candidateTotal.WithLabelValues(m.service, status).Inc()
}

func (m *OrchestratorMetrics) QueueSizes(processing, quick, long, format, failed int) {
	m.itemsInProcessing.Set(float64(processing))

	service := m.service
	m.queueSize.WithLabelValues(service, "quick").Set(float64(quick))
	m.queueSize.WithLabelValues(service, "long").Set(float64(long))
	m.queueSize.WithLabelValues(service, "format").Set(float64(format))
	m.queueSize.WithLabelValues(service, "failed").Set(float64(failed))
}
