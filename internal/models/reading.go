package models

import "time"

// Reading represents a single pH sample from a monitored source
type Reading struct {
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"` // pH
}

// RawState is the unparsed state delivered by the push source.
// Value is kept as text because sources report "unknown"/"unavailable" too.
type RawState struct {
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Value     string    `json:"value"`
}

// StateChange is one update from the push source: the previous and the new raw state.
// Either side may be nil (first update, source removed).
type StateChange struct {
	Old *RawState
	New *RawState
}

// ExtremumKind distinguishes peaks from troughs
type ExtremumKind string

const (
	KindPeak   ExtremumKind = "peak"
	KindTrough ExtremumKind = "trough"
)

// Extremum is a reading flagged as a local peak or trough
type Extremum struct {
	Timestamp time.Time    `json:"timestamp"`
	Value     float64      `json:"value"`
	Kind      ExtremumKind `json:"kind"`
}

// Oscillation is a matched peak/trough pair
type Oscillation struct {
	Peak      Extremum      `json:"peak"`
	Trough    Extremum      `json:"trough"`
	Amplitude float64       `json:"amplitude"`
	Duration  time.Duration `json:"duration"` // trough time - peak time, negative when the trough came first
}

// NewOscillation builds an oscillation from a peak and a trough in either order
func NewOscillation(peak, trough Extremum) Oscillation {
	amp := peak.Value - trough.Value
	if amp < 0 {
		amp = -amp
	}
	return Oscillation{
		Peak:      peak,
		Trough:    trough,
		Amplitude: amp,
		Duration:  trough.Timestamp.Sub(peak.Timestamp),
	}
}

// Start returns the earlier of the two extrema timestamps
func (o Oscillation) Start() time.Time {
	if o.Trough.Timestamp.Before(o.Peak.Timestamp) {
		return o.Trough.Timestamp
	}
	return o.Peak.Timestamp
}
