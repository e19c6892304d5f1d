package oscillation

import (
	"math"
	"time"

	"ph-monitor/internal/models"
)

// WindowResult is the outcome of one analysis pass over a window
type WindowResult struct {
	Readings     int
	Peaks        []models.Extremum
	Troughs      []models.Extremum
	Oscillations []models.Oscillation
	Summary      Summary
	MeanDelta    float64
	Pairs        int
	Latest       *models.Reading
}

// AnalyzeWindow recomputes extrema, oscillations and aggregates from scratch.
// Non-finite values are dropped before analysis.
func AnalyzeWindow(window []models.Reading, p Params, now time.Time) WindowResult {
	clean := make([]models.Reading, 0, len(window))
	for _, r := range window {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			continue
		}
		clean = append(clean, r)
	}

	result := WindowResult{Readings: len(clean)}
	if len(clean) == 0 {
		result.Summary = Summarize(nil)
		return result
	}
	latest := clean[len(clean)-1]
	result.Latest = &latest

	result.Peaks, result.Troughs = FindExtrema(clean, p)
	result.Oscillations = MatchOscillations(result.Peaks, result.Troughs, p.MinAmplitude)
	result.Summary = Summarize(WithinHorizon(result.Oscillations, now, p.ReportHorizon))
	result.MeanDelta, result.Pairs = NeighbourSummary(clean)
	return result
}

// WindowBounds returns the analysis window [now - timeWindow, now]
func WindowBounds(now time.Time, timeWindow time.Duration) (start, end time.Time) {
	return now.Add(-timeWindow), now
}

// WindowedDetector recomputes its metrics from a historical window on every pass.
// Between passes it only tracks the latest pushed value.
type WindowedDetector struct {
	params   Params
	current  *models.Reading
	result   WindowResult
	analyzed bool
}

// NewWindowedDetector creates a windowed detector with no analysis yet
func NewWindowedDetector(p Params) *WindowedDetector {
	return &WindowedDetector{params: p}
}

func (d *WindowedDetector) Mode() Mode { return ModeWindowed }

// Observe records the latest pushed reading for the current value attributes
func (d *WindowedDetector) Observe(r models.Reading) {
	d.current = &r
}

// Analyze replaces the previous result with one computed over window
func (d *WindowedDetector) Analyze(window []models.Reading, now time.Time) {
	d.result = AnalyzeWindow(window, d.params, now)
	d.analyzed = true
}

// Result returns the most recent analysis outcome
func (d *WindowedDetector) Result() WindowResult {
	return d.result
}

// Report derives the reported output at now. The state is the amplitude trend,
// or unknown until a non-empty window has been analyzed.
func (d *WindowedDetector) Report(now time.Time) models.Report {
	p := d.params
	res := d.result
	sum := res.Summary
	if !d.analyzed {
		sum = Summarize(nil)
	}

	report := models.Report{
		Mode:              string(ModeWindowed),
		State:             models.StateUnknown,
		GeneratedAt:       now,
		Setpoint:          p.Setpoint,
		Trend:             sum.Trend,
		Status:            sum.Status,
		Amplitude:         sum.Average,
		Oscillations:      sum.Count,
		AverageAmplitude:  sum.Average,
		MaxAmplitude:      sum.Max,
		LastAmplitude:     sum.Last,
		LastPeak:          models.FormatTimestamp(sum.LastPeak),
		LastTrough:        models.FormatTimestamp(sum.LastTrough),
		MeanDelta:         res.MeanDelta,
		DailyOscillations: res.Pairs,
		WindowReadings:    res.Readings,
		DirectionChanges:  len(res.Peaks) + len(res.Troughs),
	}

	if d.analyzed && res.Readings > 0 {
		report.State = sum.Trend
	}

	latest := d.current
	if latest == nil {
		latest = res.Latest
	}
	if latest != nil {
		value := latest.Value
		report.CurrentPH = &value
		report.HighPH, report.LowPH = ProblemFlags(value, p.Setpoint, p.NoiseFilter)
	}

	if !sum.LastPeak.IsZero() {
		report.SecondsSinceLastChange = Round(now.Sub(lastChange(sum)).Seconds())
	}
	return report
}

func lastChange(sum Summary) time.Time {
	if sum.LastTrough.After(sum.LastPeak) {
		return sum.LastTrough
	}
	return sum.LastPeak
}
