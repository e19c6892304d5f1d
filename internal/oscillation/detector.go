package oscillation

import (
	"time"

	"ph-monitor/internal/models"
)

// Detector is implemented by both detection strategies
type Detector interface {
	Mode() Mode
	// Observe feeds one accepted reading from the push source
	Observe(r models.Reading)
	// Report derives the current output; it never mutates detector state
	Report(now time.Time) models.Report
}

// WindowAnalyzer is implemented by detectors that recompute from historical windows
type WindowAnalyzer interface {
	Analyze(window []models.Reading, now time.Time)
}

var (
	_ Detector       = (*StreamingDetector)(nil)
	_ Detector       = (*WindowedDetector)(nil)
	_ WindowAnalyzer = (*WindowedDetector)(nil)
)

// New returns the detector for mode. Unknown modes fall back to streaming.
func New(mode Mode, p Params) Detector {
	if mode == ModeWindowed {
		return NewWindowedDetector(p)
	}
	return NewStreamingDetector(p)
}
