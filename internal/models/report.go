package models

import "time"

// Trend and status labels shared by both detection modes
const (
	TrendUnknown           = "unknown"
	TrendStable            = "stable"
	TrendIncreasing        = "increasing"
	TrendRapidlyIncreasing = "rapidly_increasing"
	TrendDecreasing        = "decreasing"

	StatusUnknown    = "unknown"
	StatusNormal     = "normal"
	StatusGood       = "good"
	StatusDecreasing = "decreasing"
	StatusLow        = "low"

	StateUnknown = "unknown"
)

// Report is the output of a detector for one monitored source.
// Every field is always populated so consumers get a stable shape.
type Report struct {
	ID          string    `json:"id,omitempty"`
	Source      string    `json:"source"`
	Name        string    `json:"name"`
	Mode        string    `json:"mode"`
	State       string    `json:"state"`
	GeneratedAt time.Time `json:"generated_at"`

	CurrentPH    *float64 `json:"current_ph"`
	Setpoint     float64  `json:"setpoint"`
	Trend        string   `json:"trend"`
	Status       string   `json:"status"`
	Amplitude    float64  `json:"amplitude"`
	Oscillations int      `json:"oscillations"`

	DirectionChanges       int     `json:"direction_changes"`
	SecondsSinceLastChange float64 `json:"seconds_since_last_change"`
	HighPH                 bool    `json:"high_ph"`
	LowPH                  bool    `json:"low_ph"`

	AverageAmplitude  float64 `json:"average_amplitude"`
	MaxAmplitude      float64 `json:"max_amplitude"`
	LastAmplitude     float64 `json:"last_amplitude"`
	LastPeak          string  `json:"last_peak"`
	LastTrough        string  `json:"last_trough"`
	MeanDelta         float64 `json:"mean_delta"`
	DailyOscillations int     `json:"daily_oscillations"`
	WindowReadings    int     `json:"window_readings"`
}

// FormatTimestamp renders extremum timestamps in the reported format
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
