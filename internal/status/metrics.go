// Package status implements the Status/Event Surface (§4.9): an
// EngineStatus snapshot assembled from atomic counters, an event
// dispatcher posting state_changed/error/device_disconnected events to
// a shell-provided context, and a Prometheus collector exposing the
// same counters, grounded on the Collector/Describe pattern the
// teacher uses throughout internal/observability/metrics (e.g. mqtt.go).
package status

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the engine's Prometheus surface. Unlike the teacher's
// per-subsystem metrics structs (MQTT, BirdNET, notification, ...)
// this engine has exactly one hot path, so one small struct covers
// it: underrun/overrun/drift counters, fill level, and round-trip
// latency.
type Metrics struct {
	Underruns        prometheus.Counter
	Overruns         prometheus.Counter
	DriftCorrections prometheus.Counter
	FillLevel        prometheus.Gauge
	RoundTripLatency prometheus.Histogram
	Volume           prometheus.Gauge
	registry         *prometheus.Registry
}

// NewMetrics creates and registers the engine's Prometheus metrics
// against the given registry.
func NewMetrics(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.init()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) init() {
	m.Underruns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transparency_underruns_total",
		Help: "Total number of playback underruns (ring buffer had fewer frames than requested).",
	})
	m.Overruns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transparency_overruns_total",
		Help: "Total number of capture overruns (ring buffer had no room for a write).",
	})
	m.DriftCorrections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transparency_drift_corrections_total",
		Help: "Total number of stretch/compress corrections applied by the drift compensator.",
	})
	m.FillLevel = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transparency_ring_buffer_fill_ratio",
		Help: "Current ring buffer fill level as a fraction of capacity.",
	})
	m.RoundTripLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "transparency_round_trip_latency_seconds",
		Help:    "Estimated round-trip latency from capture to playback.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 8),
	})
	m.Volume = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "transparency_volume",
		Help: "Current output volume, 0 to 1.",
	})
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Underruns.Describe(ch)
	m.Overruns.Describe(ch)
	m.DriftCorrections.Describe(ch)
	m.FillLevel.Describe(ch)
	m.RoundTripLatency.Describe(ch)
	m.Volume.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Underruns.Collect(ch)
	m.Overruns.Collect(ch)
	m.DriftCorrections.Collect(ch)
	m.FillLevel.Collect(ch)
	m.RoundTripLatency.Collect(ch)
	m.Volume.Collect(ch)
}
