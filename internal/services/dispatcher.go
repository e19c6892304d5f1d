package services

import (
	"context"
	"log/slog"
	"time"

	"ph-monitor/internal/metrics"
	"ph-monitor/internal/models"
)

const deliverTimeout = 5 * time.Second

// ReportSink receives every emitted report
type ReportSink interface {
	Name() string
	Deliver(ctx context.Context, report models.Report) error
}

// ReportStore persists the report log
type ReportStore interface {
	SaveReport(ctx context.Context, report models.Report) error
}

// ReportLog adapts a history store to a sink
type ReportLog struct {
	Store ReportStore
}

func (l ReportLog) Name() string { return "history" }

func (l ReportLog) Deliver(ctx context.Context, report models.Report) error {
	return l.Store.SaveReport(ctx, report)
}

// ReportDispatcher fans reports out to the configured sinks
type ReportDispatcher struct {
	ReportChan chan models.Report

	sinks   []ReportSink
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewReportDispatcher(channelSize int, m *metrics.Metrics, sinks ...ReportSink) *ReportDispatcher {
	return &ReportDispatcher{
		ReportChan: make(chan models.Report, channelSize),
		sinks:      sinks,
		metrics:    m,
		log:        slog.Default().With("component", "dispatcher"),
	}
}

// Start delivers reports until ctx is cancelled
func (d *ReportDispatcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-d.ReportChan:
			if !ok {
				return
			}
			d.dispatch(ctx, report)
		}
	}
}

func (d *ReportDispatcher) dispatch(ctx context.Context, report models.Report) {
	d.metrics.Oscillations.WithLabelValues(report.Source).Set(float64(report.Oscillations))
	d.metrics.AverageAmplitude.WithLabelValues(report.Source).Set(report.AverageAmplitude)
	d.metrics.DirectionChanges.WithLabelValues(report.Source).Set(float64(report.DirectionChanges))

	d.log.Debug("report", "source", report.Source, "state", report.State,
		"oscillations", report.Oscillations, "trend", report.Trend)

	for _, sink := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, deliverTimeout)
		err := sink.Deliver(sctx, report)
		cancel()

		if err != nil {
			d.metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			d.log.Error("failed to deliver report", "sink", sink.Name(), "source", report.Source, "error", err)
			continue
		}
		d.metrics.ReportsTotal.WithLabelValues(report.Source, sink.Name()).Inc()
	}
}
