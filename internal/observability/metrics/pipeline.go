package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/servicing-triage/internal/core/domain"
)

// PipelineMetrics records per-document outcomes. It satisfies
// ports.PipelineObserver.
type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	processTotal         *prometheus.CounterVec
	processDuration      *prometheus.HistogramVec
	processInFlight      prometheus.Gauge
	classificationsTotal *prometheus.CounterVec
	duplicatesTotal      *prometheus.CounterVec
	deliveriesTotal      *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "pipeline",
			Name:      "documents_processed_total",
			Help:      "Total processed documents by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "triage",
			Subsystem: "pipeline",
			Name:      "document_duration_seconds",
			Help:      "Document processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "triage",
			Subsystem: "pipeline",
			Name:      "documents_in_flight",
			Help:      "Number of documents currently being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	classificationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "classifier",
			Name:      "results_total",
			Help:      "Classification results by source (model or rule_fallback).",
		},
		[]string{"service", "source"},
	)
	duplicatesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "dedup",
			Name:      "verdicts_total",
			Help:      "Deduplication verdicts by outcome.",
		},
		[]string{"service", "duplicate"},
	)
	deliveriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triage",
			Subsystem: "delivery",
			Name:      "attempts_total",
			Help:      "Delivery attempts by status.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		processTotal,
		processDuration,
		processInFlight,
		classificationsTotal,
		duplicatesTotal,
		deliveriesTotal,
	)

	return &PipelineMetrics{
		registry:             registry,
		service:              service,
		processTotal:         processTotal,
		processDuration:      processDuration,
		processInFlight:      processInFlight,
		classificationsTotal: classificationsTotal,
		duplicatesTotal:      duplicatesTotal,
		deliveriesTotal:      deliveriesTotal,
	}
}

func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) DocumentStarted() {
	m.processInFlight.Inc()
}

func (m *PipelineMetrics) DocumentFinished(err error, duration time.Duration) {
	m.processInFlight.Dec()

	status := statusLabel(err)
	m.processTotal.WithLabelValues(m.service, status).Inc()
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveClassification(source domain.ClassificationSource) {
	label := string(source)
	if label == "" {
		label = "unknown"
	}
	m.classificationsTotal.WithLabelValues(m.service, label).Inc()
}

func (m *PipelineMetrics) ObserveDuplicate(isDuplicate bool) {
	label := "false"
	if isDuplicate {
		label = "true"
	}
	m.duplicatesTotal.WithLabelValues(m.service, label).Inc()
}

func (m *PipelineMetrics) ObserveDelivery(err error) {
	m.deliveriesTotal.WithLabelValues(m.service, statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
