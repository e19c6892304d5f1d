package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ph-monitor/internal/logger"
	"ph-monitor/internal/metrics"
	"ph-monitor/internal/models"
	"ph-monitor/internal/oscillation"
)

var (
	// ErrSkippedReading marks states that carry no reading (unknown, unavailable, empty)
	ErrSkippedReading = errors.New("reading skipped")
	// ErrInvalidReading marks states that are not a finite number
	ErrInvalidReading = errors.New("invalid reading")
	// ErrQueueFull is returned by Enqueue when the session cannot keep up
	ErrQueueFull = errors.New("session queue full")
)

// WindowSource serves historical readings to windowed sessions
type WindowSource interface {
	QueryWindow(ctx context.Context, source string, start, end time.Time) ([]models.Reading, error)
}

// SessionConfig holds configuration for one monitored source
type SessionConfig struct {
	Source           string
	Name             string
	Mode             oscillation.Mode
	Params           oscillation.Params
	AnalysisInterval time.Duration
	QueueSize        int
}

// Session owns the detector of one source. Readings are applied in arrival
// order by a single goroutine; windowed analysis passes never overlap.
type Session struct {
	source   string
	name     string
	mode     oscillation.Mode
	params   oscillation.Params
	interval time.Duration

	mu       sync.Mutex
	detector oscillation.Detector
	latest   *models.Report

	queue     chan models.StateChange
	reports   chan<- models.Report
	analyzing atomic.Bool
	workers   sync.WaitGroup
	workersMu sync.Mutex // orders workers.Add against the Wait in Run
	stopped   bool

	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewSession creates a session emitting its reports on reports
func NewSession(cfg SessionConfig, reports chan<- models.Report, m *metrics.Metrics, log *slog.Logger) *Session {
	size := cfg.QueueSize
	if size <= 0 {
		size = 100
	}
	interval := cfg.AnalysisInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	name := cfg.Name
	if name == "" {
		name = "pH Control for " + cfg.Source
	}

	return &Session{
		source:   cfg.Source,
		name:     name,
		mode:     cfg.Mode,
		params:   cfg.Params,
		interval: interval,
		detector: oscillation.New(cfg.Mode, cfg.Params),
		queue:    make(chan models.StateChange, size),
		reports:  reports,
		metrics:  m,
		log:      logger.ForSource(log, cfg.Source).With("component", "session"),
		now:      time.Now,
	}
}

func (s *Session) Source() string                 { return s.source }
func (s *Session) Mode() oscillation.Mode         { return s.detector.Mode() }
func (s *Session) Params() oscillation.Params     { return s.params }
func (s *Session) AnalysisInterval() time.Duration { return s.interval }

// Enqueue hands a state change to the session without blocking
func (s *Session) Enqueue(change models.StateChange) error {
	select {
	case s.queue <- change:
		return nil
	default:
		s.metrics.QueueDrops.WithLabelValues(s.source).Inc()
		return ErrQueueFull
	}
}

// Run drains the queue until ctx is cancelled, then waits for in-flight
// analysis workers.
func (s *Session) Run(ctx context.Context) {
	s.log.Info("session started", "mode", s.detector.Mode())
	defer func() {
		s.workersMu.Lock()
		s.stopped = true
		s.workersMu.Unlock()
		s.workers.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("session stopped")
			return
		case change := <-s.queue:
			s.handle(ctx, change)
		}
	}
}

// handle applies one state change. Rejected states leave the detector untouched.
func (s *Session) handle(ctx context.Context, change models.StateChange) {
	reading, err := ParseReading(s.source, change.New)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, ErrSkippedReading) {
			reason = "unavailable"
		}
		s.metrics.ReadingsSkipped.WithLabelValues(s.source, reason).Inc()
		s.log.Warn("ignoring pH state", "error", err)
		return
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = s.now()
	}

	s.mu.Lock()
	s.detector.Observe(reading)
	s.mu.Unlock()

	s.metrics.ReadingsTotal.WithLabelValues(s.source).Inc()
	s.metrics.CurrentPH.WithLabelValues(s.source).Set(reading.Value)

	// windowed sessions only report after an analysis pass
	if s.detector.Mode() == oscillation.ModeStreaming {
		s.emit(ctx, s.now())
	}
}

// ParseReading validates a raw state into a reading
func ParseReading(source string, state *models.RawState) (models.Reading, error) {
	if state == nil {
		return models.Reading{}, fmt.Errorf("%w: no new state", ErrSkippedReading)
	}
	raw := strings.TrimSpace(state.Value)
	switch strings.ToLower(raw) {
	case "", "unknown", "unavailable", "none":
		return models.Reading{}, fmt.Errorf("%w: state %q", ErrSkippedReading, raw)
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return models.Reading{}, fmt.Errorf("%w: %q is not a number", ErrInvalidReading, raw)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return models.Reading{}, fmt.Errorf("%w: %q is not finite", ErrInvalidReading, raw)
	}

	if state.Source != "" {
		source = state.Source
	}
	return models.Reading{Source: source, Timestamp: state.Timestamp, Value: value}, nil
}

// TriggerAnalysis starts a windowed analysis pass on a worker goroutine.
// It returns false when the session is not windowed, is shutting down, or a pass
// is still running.
func (s *Session) TriggerAnalysis(ctx context.Context, history WindowSource) bool {
	if s.detector.Mode() != oscillation.ModeWindowed || ctx.Err() != nil {
		return false
	}
	if !s.analyzing.CompareAndSwap(false, true) {
		s.metrics.AnalysisOverlapped.WithLabelValues(s.source).Inc()
		s.log.Debug("analysis still running, skipping tick")
		return false
	}

	s.workersMu.Lock()
	if s.stopped {
		s.workersMu.Unlock()
		s.analyzing.Store(false)
		return false
	}
	s.workers.Add(1)
	s.workersMu.Unlock()

	go func() {
		defer s.workers.Done()
		defer s.analyzing.Store(false)
		s.analyze(ctx, history)
	}()
	return true
}

// analyze fetches the window and recomputes the windowed detector. A failed
// query is treated as an empty window.
func (s *Session) analyze(ctx context.Context, history WindowSource) {
	start := time.Now()
	now := s.now()
	from, to := oscillation.WindowBounds(now, s.params.TimeWindow)

	window, err := history.QueryWindow(ctx, s.source, from, to)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("failed to fetch history window, analysing empty window", "error", err)
		window = nil
	}

	analyzer, ok := s.detector.(oscillation.WindowAnalyzer)
	if !ok {
		return
	}

	s.mu.Lock()
	analyzer.Analyze(window, now)
	s.mu.Unlock()

	s.metrics.AnalysisDuration.WithLabelValues(s.source).Observe(time.Since(start).Seconds())
	s.log.Debug("analysis pass complete", "readings", len(window))

	s.emit(ctx, now)
}

// Report builds the current report without emitting it
func (s *Session) Report(now time.Time) models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildLocked(now)
}

func (s *Session) buildLocked(now time.Time) models.Report {
	report := s.detector.Report(now)
	report.ID = uuid.NewString()
	report.Source = s.source
	report.Name = s.name
	report.GeneratedAt = now.UTC()
	return report
}

// Latest returns the last emitted report, or nil before the first one
func (s *Session) Latest() *models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil
	}
	cp := *s.latest
	return &cp
}

func (s *Session) emit(ctx context.Context, now time.Time) {
	s.mu.Lock()
	report := s.buildLocked(now)
	s.latest = &report
	s.mu.Unlock()

	if s.reports == nil {
		return
	}
	select {
	case s.reports <- report:
	case <-ctx.Done():
	}
}
