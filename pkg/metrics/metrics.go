// Package metrics exposes Prometheus metrics for analysis runs and exports.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "windboard_"

	resultSuccess = "success"
)

var (
	registerOnce sync.Once

	analysisTotal   *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec
	diagnostics     *prometheus.CounterVec
	exportTotal     *prometheus.CounterVec
	exportLatency   *prometheus.HistogramVec
)

// Init registers the metrics with the default registry. It is safe to call
// more than once.
func Init() {
	registerOnce.Do(func() {
		analysisTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "analysis_total",
				Help: "Total analysis responses by mode",
			},
			[]string{"mode"},
		)
		analysisLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "analysis_latency_seconds",
				Help:    "Analysis latency in seconds by mode",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"mode"},
		)
		diagnostics = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "analysis_diagnostics_total",
				Help: "Non-fatal pipeline diagnostics by kind",
			},
			[]string{"kind"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total payload exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Payload export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			analysisTotal,
			analysisLatency,
			diagnostics,
			exportTotal,
			exportLatency,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAnalysis records an analysis response of the given mode.
func ObserveAnalysis(mode string, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	if analysisTotal != nil {
		analysisTotal.WithLabelValues(mode).Inc()
	}
	if analysisLatency != nil {
		analysisLatency.WithLabelValues(mode).Observe(duration.Seconds())
	}
}

// IncDiagnostic counts a non-fatal pipeline diagnostic.
func IncDiagnostic(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if diagnostics != nil {
		diagnostics.WithLabelValues(kind).Inc()
	}
}

// ObserveExport records an export of the given format.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}
