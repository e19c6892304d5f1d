package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ph-monitor/internal/oscillation"
)

// AnalysisService runs the periodic windowed analysis of every windowed
// session: one pass at start, then one per analysis interval.
type AnalysisService struct {
	registry *Registry
	history  WindowSource
	log      *slog.Logger
}

func NewAnalysisService(registry *Registry, history WindowSource) *AnalysisService {
	return &AnalysisService{
		registry: registry,
		history:  history,
		log:      slog.Default().With("component", "analysis_service"),
	}
}

// Start polls every windowed session until ctx is cancelled
func (as *AnalysisService) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range as.registry.Sessions() {
		if s.Mode() != oscillation.ModeWindowed {
			continue
		}
		as.log.Info("scheduling analysis", "source", s.Source(), "interval", s.AnalysisInterval(),
			"time_window", s.Params().TimeWindow)

		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			as.pollSession(ctx, s)
		}(s)
	}
	wg.Wait()
}

func (as *AnalysisService) pollSession(ctx context.Context, s *Session) {
	ticker := time.NewTicker(s.AnalysisInterval())
	defer ticker.Stop()

	// Initial pass
	s.TriggerAnalysis(ctx, as.history)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.TriggerAnalysis(ctx, as.history)
		}
	}
}
