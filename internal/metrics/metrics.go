package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the monitor.
type Metrics struct {
	registry *prometheus.Registry

	ReadingsTotal      *prometheus.CounterVec // labels: source
	ReadingsSkipped    *prometheus.CounterVec // labels: source, reason
	QueueDrops         *prometheus.CounterVec // labels: source
	AnalysisDuration   *prometheus.HistogramVec
	AnalysisOverlapped *prometheus.CounterVec // labels: source
	ReportsTotal       *prometheus.CounterVec // labels: source, sink
	SinkErrors         *prometheus.CounterVec // labels: sink

	Oscillations     *prometheus.GaugeVec // labels: source
	AverageAmplitude *prometheus.GaugeVec // labels: source
	CurrentPH        *prometheus.GaugeVec // labels: source
	DirectionChanges *prometheus.GaugeVec // labels: source
}

// NewMetrics registers all collectors on a private registry so several
// instances can coexist in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ReadingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phmon_readings_total",
			Help: "Readings accepted per source",
		}, []string{"source"}),
		ReadingsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phmon_readings_skipped_total",
			Help: "Readings ignored per source and reason",
		}, []string{"source", "reason"}),
		QueueDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phmon_queue_drops_total",
			Help: "Events dropped because the session queue was full",
		}, []string{"source"}),
		AnalysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phmon_analysis_duration_seconds",
			Help:    "Windowed analysis latency including the history query",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		AnalysisOverlapped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phmon_analysis_overlapped_total",
			Help: "Analysis passes skipped because one was still running",
		}, []string{"source"}),
		ReportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phmon_reports_total",
			Help: "Reports delivered per source and sink",
		}, []string{"source", "sink"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phmon_sink_errors_total",
			Help: "Report delivery failures per sink",
		}, []string{"sink"}),

		Oscillations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "phmon_oscillations",
			Help: "Oscillations inside the report horizon",
		}, []string{"source"}),
		AverageAmplitude: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "phmon_average_amplitude_ph",
			Help: "Average oscillation amplitude inside the report horizon",
		}, []string{"source"}),
		CurrentPH: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "phmon_current_ph",
			Help: "Latest accepted pH reading",
		}, []string{"source"}),
		DirectionChanges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "phmon_direction_changes",
			Help: "Committed direction reversals, or extrema found in the window",
		}, []string{"source"}),
	}

	m.registry.MustRegister(
		m.ReadingsTotal,
		m.ReadingsSkipped,
		m.QueueDrops,
		m.AnalysisDuration,
		m.AnalysisOverlapped,
		m.ReportsTotal,
		m.SinkErrors,
		m.Oscillations,
		m.AverageAmplitude,
		m.CurrentPH,
		m.DirectionChanges,
	)

	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
