// Package observability provides Prometheus metrics for the ingestion
// pipeline. Metrics are registered on an injected registry; no exposition
// endpoint is set up here.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for ingestion operations
type IngestMetrics struct {
	registry *prometheus.Registry

	ingestsTotal        *prometheus.CounterVec
	detectionsTotal     *prometheus.CounterVec
	detectorDuration    prometheus.Histogram
	imagingRecordsSaved prometheus.Counter

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewIngestMetrics creates and registers new ingestion metrics
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *IngestMetrics) initMetrics() {
	m.ingestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_operations_total",
			Help: "Total number of ingestion operations",
		},
		[]string{"status"}, // status: success, patient_not_found, image_unreadable, detector_failure, persistence_failure
	)

	m.detectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_detections_total",
			Help: "Total number of raw detections seen by the pipeline",
		},
		[]string{"outcome"}, // outcome: persisted, below_threshold
	)

	m.detectorDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_detector_duration_seconds",
			Help:    "Time taken by the detection model per image",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	m.imagingRecordsSaved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_imaging_records_saved_total",
			Help: "Total number of imaging records persisted",
		},
	)

	m.collectors = []prometheus.Collector{
		m.ingestsTotal,
		m.detectionsTotal,
		m.detectorDuration,
		m.imagingRecordsSaved,
	}
}

// Describe implements prometheus.Collector
func (m *IngestMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *IngestMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordIngest increments the ingestion counter for the given outcome.
func (m *IngestMetrics) RecordIngest(status string) {
	m.ingestsTotal.WithLabelValues(status).Inc()
}

// RecordDetection counts a raw detection by pipeline outcome.
func (m *IngestMetrics) RecordDetection(outcome string) {
	m.detectionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDetectorDuration records one detector invocation duration.
func (m *IngestMetrics) ObserveDetectorDuration(seconds float64) {
	m.detectorDuration.Observe(seconds)
}

// RecordImagingRecordSaved counts one persisted imaging record.
func (m *IngestMetrics) RecordImagingRecordSaved() {
	m.imagingRecordsSaved.Inc()
}
