package oscillation

import (
	"time"

	"github.com/gammazero/deque"

	"ph-monitor/internal/models"
)

// Direction is the state of the streaming tracker
type Direction string

const (
	DirectionUnknown Direction = "unknown"
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
)

// DetectorState is the running state of a streaming detector
type DetectorState struct {
	HasValue  bool
	LastValue float64
	LastSeen  time.Time
	Direction Direction

	High   float64
	HighAt time.Time
	Low    float64
	LowAt  time.Time

	// LastDirectionChange is the last reversal, committed or not;
	// LastRegistered is the last reversal that committed a peak or trough.
	LastDirectionChange time.Time
	LastRegistered      time.Time

	peaks        deque.Deque[models.Extremum]
	troughs      deque.Deque[models.Extremum]
	oscillations deque.Deque[models.Oscillation]

	lastExtremum    models.Extremum
	hasLastExtremum bool
	peakPending     bool
	troughPending   bool

	DirectionChanges int
	Oscillations     int
}

// StateSnapshot is a plain copy of DetectorState with the bounded histories flattened
type StateSnapshot struct {
	HasValue            bool
	LastValue           float64
	LastSeen            time.Time
	Direction           Direction
	High                float64
	HighAt              time.Time
	Low                 float64
	LowAt               time.Time
	LastDirectionChange time.Time
	LastRegistered      time.Time
	Peaks               []models.Extremum
	Troughs             []models.Extremum
	Recent              []models.Oscillation
	DirectionChanges    int
	Oscillations        int
}

// StreamingDetector tracks direction changes of a live signal and commits peaks
// and troughs on reversal. Significance of a candidate extremum is measured
// against the setpoint, the same reference the windowed segmenter uses.
type StreamingDetector struct {
	params Params
	state  DetectorState
}

// NewStreamingDetector creates a streaming detector in the unknown state
func NewStreamingDetector(p Params) *StreamingDetector {
	return &StreamingDetector{
		params: p,
		state:  DetectorState{Direction: DirectionUnknown},
	}
}

func (d *StreamingDetector) Mode() Mode { return ModeStreaming }

// Observe feeds one reading through the noise filter and the direction state machine
func (d *StreamingDetector) Observe(r models.Reading) {
	s := &d.state

	if !s.HasValue {
		s.HasValue = true
		s.LastValue = r.Value
		s.LastSeen = r.Timestamp
		s.High, s.HighAt = r.Value, r.Timestamp
		s.Low, s.LowAt = r.Value, r.Timestamp
		return
	}

	prev := s.LastValue
	s.LastValue = r.Value
	s.LastSeen = r.Timestamp

	if !Significant(prev, r.Value, d.params.NoiseFilter) {
		return
	}
	rising := r.Value > prev

	switch s.Direction {
	case DirectionUnknown:
		// sub-noise drift before the first move never updates the water marks
		if rising {
			s.Direction = DirectionRising
			s.High, s.HighAt = r.Value, r.Timestamp
		} else {
			s.Direction = DirectionFalling
			s.Low, s.LowAt = r.Value, r.Timestamp
		}

	case DirectionRising:
		if rising {
			d.raiseHigh(r)
			return
		}
		candidate := models.Extremum{Timestamp: s.HighAt, Value: s.High, Kind: models.KindPeak}
		s.Direction = DirectionFalling
		s.LastDirectionChange = r.Timestamp
		s.Low, s.LowAt = r.Value, r.Timestamp
		if candidate.Value-d.params.Setpoint >= d.params.MinAmplitude {
			d.commit(candidate, r.Timestamp)
		}

	case DirectionFalling:
		if !rising {
			d.lowerLow(r)
			return
		}
		candidate := models.Extremum{Timestamp: s.LowAt, Value: s.Low, Kind: models.KindTrough}
		s.Direction = DirectionRising
		s.LastDirectionChange = r.Timestamp
		s.High, s.HighAt = r.Value, r.Timestamp
		if d.params.Setpoint-candidate.Value >= d.params.MinAmplitude {
			d.commit(candidate, r.Timestamp)
		}
	}
}

func (d *StreamingDetector) raiseHigh(r models.Reading) {
	if r.Value > d.state.High {
		d.state.High, d.state.HighAt = r.Value, r.Timestamp
	}
}

func (d *StreamingDetector) lowerLow(r models.Reading) {
	if r.Value < d.state.Low {
		d.state.Low, d.state.LowAt = r.Value, r.Timestamp
	}
}

// commit registers e; at is the reading that revealed the reversal
func (d *StreamingDetector) commit(e models.Extremum, at time.Time) {
	s := &d.state
	s.DirectionChanges++
	s.LastRegistered = at

	if e.Kind == models.KindPeak {
		pushBounded(&s.peaks, e)
		s.peakPending = true
	} else {
		pushBounded(&s.troughs, e)
		s.troughPending = true
	}

	if s.hasLastExtremum && s.lastExtremum.Kind != e.Kind {
		var osc models.Oscillation
		if e.Kind == models.KindPeak {
			osc = models.NewOscillation(e, s.lastExtremum)
		} else {
			osc = models.NewOscillation(s.lastExtremum, e)
		}
		if osc.Amplitude >= d.params.MinAmplitude {
			pushBounded(&s.oscillations, osc)
		}
	}
	s.lastExtremum, s.hasLastExtremum = e, true

	switch d.params.CountMode {
	case CountReversals:
		s.Oscillations = s.DirectionChanges / 2
	default:
		if s.peakPending && s.troughPending {
			s.Oscillations++
			s.peakPending, s.troughPending = false, false
		}
	}
}

func pushBounded[T any](q *deque.Deque[T], v T) {
	q.PushBack(v)
	for q.Len() > MaxRecent {
		q.PopFront()
	}
}

func drain[T any](q *deque.Deque[T]) []T {
	out := make([]T, q.Len())
	for i := range out {
		out[i] = q.At(i)
	}
	return out
}

// Snapshot returns a copy of the running state
func (d *StreamingDetector) Snapshot() StateSnapshot {
	s := &d.state
	return StateSnapshot{
		HasValue:            s.HasValue,
		LastValue:           s.LastValue,
		LastSeen:            s.LastSeen,
		Direction:           s.Direction,
		High:                s.High,
		HighAt:              s.HighAt,
		Low:                 s.Low,
		LowAt:               s.LowAt,
		LastDirectionChange: s.LastDirectionChange,
		LastRegistered:      s.LastRegistered,
		Peaks:               drain(&s.peaks),
		Troughs:             drain(&s.troughs),
		Recent:              drain(&s.oscillations),
		DirectionChanges:    s.DirectionChanges,
		Oscillations:        s.Oscillations,
	}
}

// Report derives the reported output at now
func (d *StreamingDetector) Report(now time.Time) models.Report {
	s := &d.state
	p := d.params

	report := models.Report{
		Mode:             string(ModeStreaming),
		State:            models.StateUnknown,
		GeneratedAt:      now,
		Setpoint:         p.Setpoint,
		Trend:            models.TrendUnknown,
		Status:           models.StatusUnknown,
		Oscillations:     s.Oscillations,
		DirectionChanges: s.DirectionChanges,
	}

	if !s.LastDirectionChange.IsZero() {
		report.SecondsSinceLastChange = Round(now.Sub(s.LastDirectionChange).Seconds())
	}

	if s.HasValue {
		value := s.LastValue
		report.CurrentPH = &value
		settled := s.LastRegistered.IsZero() || now.Sub(s.LastRegistered) >= p.MinDuration
		report.State = StateLabel(value, p.Setpoint, p.NoiseFilter, settled)
		report.HighPH, report.LowPH = ProblemFlags(value, p.Setpoint, p.NoiseFilter)
	}

	summary := Summarize(WithinHorizon(drain(&s.oscillations), now, p.ReportHorizon))
	report.Trend = summary.Trend
	report.Status = summary.Status
	report.Amplitude = summary.Last
	report.AverageAmplitude = summary.Average
	report.MaxAmplitude = summary.Max
	report.LastAmplitude = summary.Last

	if s.peaks.Len() > 0 {
		report.LastPeak = models.FormatTimestamp(s.peaks.Back().Timestamp)
	}
	if s.troughs.Len() > 0 {
		report.LastTrough = models.FormatTimestamp(s.troughs.Back().Timestamp)
	}
	return report
}
