package services

import (
	"context"
	"sync"
	"time"

	"ph-monitor/internal/metrics"
	"ph-monitor/internal/models"
	"ph-monitor/internal/oscillation"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

const tank = "sensor.tank_ph"

func testParams() oscillation.Params {
	p := oscillation.DefaultParams()
	p.MinDuration = 0
	return p
}

func newTestSession(mode oscillation.Mode, reports chan models.Report) (*Session, *metrics.Metrics) {
	m := metrics.NewMetrics()
	s := NewSession(SessionConfig{
		Source:           tank,
		Mode:             mode,
		Params:           testParams(),
		AnalysisInterval: time.Hour,
		QueueSize:        8,
	}, reports, m, nil)
	s.now = func() time.Time { return t0.Add(time.Hour) }
	return s, m
}

func state(value string, minute int) models.StateChange {
	return models.StateChange{New: &models.RawState{
		Source:    tank,
		Timestamp: t0.Add(time.Duration(minute) * time.Minute),
		Value:     value,
	}}
}

// series spaces values one minute apart starting at t0
func series(values ...float64) []models.Reading {
	out := make([]models.Reading, len(values))
	for i, v := range values {
		out[i] = models.Reading{Source: tank, Timestamp: t0.Add(time.Duration(i) * time.Minute), Value: v}
	}
	return out
}

// three swings around 8.0
func swings() []models.Reading {
	return series(
		8.0, 8.2, 8.3, 8.2,
		7.9, 7.8, 7.9,
		8.2, 8.3, 8.2,
		7.9, 7.8, 7.9,
		8.4, 8.6, 8.4,
		7.6, 7.4, 7.6,
	)
}

type fakeHistory struct {
	mu       sync.Mutex
	readings []models.Reading
	err      error
	block    chan struct{}
	queries  int
	saved    []models.Reading
	reports  []models.Report
}

func (f *fakeHistory) QueryWindow(ctx context.Context, source string, start, end time.Time) ([]models.Reading, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	return f.readings, f.err
}

func (f *fakeHistory) SaveReading(ctx context.Context, reading models.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, reading)
	return nil
}

func (f *fakeHistory) SaveReport(ctx context.Context, report models.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return f.err
}
