// Package metrics exports decode, analysis and index activity as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roman-kulish/docsis-pnm/internal/pnm"
)

// Metrics implements pnm.Observer and index.Observer.
type Metrics struct {
	decoded   *prometheus.CounterVec
	failures  *prometheus.CounterVec
	warnings  *prometheus.CounterVec
	analysis  *prometheus.HistogramVec
	indexSize prometheus.Gauge
	evictions prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := Metrics{
		decoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_decoded_total",
			Help:      "Captures decoded successfully, by file type.",
		}, []string{"file_type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Captures that failed to decode, by file type and error kind.",
		}, []string{"file_type", "kind"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_warnings_total",
			Help:      "Recoverable anomalies found in decoded captures, by file type.",
		}, []string{"file_type"}),
		analysis: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time spent analyzing a decoded capture.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"file_type"}),
		indexSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Entries currently held by the capture index.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_evictions_total",
			Help:      "Entries evicted from the capture index.",
		}),
	}

	for _, c := range []prometheus.Collector{m.decoded, m.failures, m.warnings, m.analysis, m.indexSize, m.evictions} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}

	return &m, nil
}

// label keeps the file_type label set bounded.
func label(ft pnm.FileType) string {
	if !ft.Known() {
		return "unknown"
	}
	return ft.String()
}

func (m *Metrics) CaptureDecoded(ft pnm.FileType, warnings int) {
	m.decoded.WithLabelValues(label(ft)).Inc()
	if warnings > 0 {
		m.warnings.WithLabelValues(label(ft)).Add(float64(warnings))
	}
}

func (m *Metrics) DecodeFailed(ft pnm.FileType, err error) {
	m.failures.WithLabelValues(label(ft), pnm.ErrorKind(err)).Inc()
}

// ObserveAnalysis records how long the analysis of a capture of type ft took.
func (m *Metrics) ObserveAnalysis(ft pnm.FileType, seconds float64) {
	m.analysis.WithLabelValues(label(ft)).Observe(seconds)
}

func (m *Metrics) IndexSize(n int) {
	m.indexSize.Set(float64(n))
}

func (m *Metrics) EntryEvicted() {
	m.evictions.Inc()
}
