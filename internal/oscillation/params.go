// Package oscillation detects peaks, troughs and oscillations of a scalar signal
// around a setpoint. Two strategies share one vocabulary: a streaming direction
// tracker fed one reading at a time, and a windowed segmenter that recomputes
// everything from a snapshot of historical readings.
//
// Nothing in this package does I/O or reads the wall clock; callers pass time in.
package oscillation

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects the detection strategy
type Mode string

const (
	ModeStreaming Mode = "streaming"
	ModeWindowed  Mode = "windowed"
)

// CountMode selects how the streaming tracker counts oscillations
type CountMode string

const (
	// CountPairs counts one oscillation each time both a peak and a trough
	// have been committed since the previous count.
	CountPairs CountMode = "pairs"
	// CountReversals counts committed direction changes and reports half of them.
	CountReversals CountMode = "reversals"
)

const (
	// MaxRecent bounds the streaming history of peaks, troughs and oscillations
	MaxRecent = 10
	// MinWindowReadings is the smallest window the segmenter will analyze
	MinWindowReadings = 5
)

// Params holds the detection thresholds for one monitored source
type Params struct {
	Setpoint      float64
	NoiseFilter   float64
	MinAmplitude  float64
	MinDuration   time.Duration
	TimeWindow    time.Duration
	ReportHorizon time.Duration
	CountMode     CountMode
}

// DefaultParams returns defaults suitable for a reef aquarium probe
func DefaultParams() Params {
	return Params{
		Setpoint:      8.0,
		NoiseFilter:   0.02,
		MinAmplitude:  0.1,
		MinDuration:   5 * time.Minute,
		TimeWindow:    24 * time.Hour,
		ReportHorizon: 24 * time.Hour,
		CountMode:     CountPairs,
	}
}

// Validate rejects parameter sets the detectors cannot work with
func (p Params) Validate() error {
	var errs []error
	if p.NoiseFilter < 0 {
		errs = append(errs, fmt.Errorf("noise_filter must not be negative, got %v", p.NoiseFilter))
	}
	if p.MinAmplitude < 0 {
		errs = append(errs, fmt.Errorf("min_amplitude must not be negative, got %v", p.MinAmplitude))
	}
	if p.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("min_duration must not be negative, got %v", p.MinDuration))
	}
	if p.TimeWindow <= 0 {
		errs = append(errs, fmt.Errorf("time_window must be positive, got %v", p.TimeWindow))
	}
	if p.ReportHorizon <= 0 {
		errs = append(errs, fmt.Errorf("report_horizon must be positive, got %v", p.ReportHorizon))
	}
	switch p.CountMode {
	case CountPairs, CountReversals:
	default:
		errs = append(errs, fmt.Errorf("unknown count_mode %q", p.CountMode))
	}
	return errors.Join(errs...)
}

// NoiseBelowAmplitude reports whether the thresholds are ordered so results are meaningful.
// It is a hint, never enforced.
func (p Params) NoiseBelowAmplitude() bool {
	return p.NoiseFilter < p.MinAmplitude
}
