package oscillation

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ph-monitor/internal/models"
)

func TestWindowed_EmptyWindowIsUnknown(t *testing.T) {
	d := NewWindowedDetector(testParams())
	d.Analyze(nil, t0)

	report := d.Report(t0)
	require.Equal(t, models.StateUnknown, report.State)
	require.Zero(t, report.AverageAmplitude)
	require.Zero(t, report.MaxAmplitude)
	require.Zero(t, report.LastAmplitude)
	require.Zero(t, report.Oscillations)
	require.Equal(t, models.TrendUnknown, report.Trend)
	require.Equal(t, models.StatusUnknown, report.Status)
	require.Empty(t, report.LastPeak)
	require.Nil(t, report.CurrentPH)
}

func TestWindowed_EmptyWindowClearsStaleMetrics(t *testing.T) {
	d := NewWindowedDetector(testParams())
	readings := sine(8.0, 0.5, 20, 4)
	now := readings[len(readings)-1].Timestamp

	d.Analyze(readings, now)
	require.NotEqual(t, models.StateUnknown, d.Report(now).State)

	d.Analyze([]models.Reading{}, now.Add(time.Hour))
	report := d.Report(now.Add(time.Hour))
	require.Equal(t, models.StateUnknown, report.State)
	require.Zero(t, report.MaxAmplitude)
	require.Zero(t, report.Oscillations)
}

func TestWindowed_Report(t *testing.T) {
	p := testParams()
	d := NewWindowedDetector(p)

	// three swings, the last one twice as wide
	readings := series(
		8.0, 8.2, 8.3, 8.2,
		7.9, 7.8, 7.9,
		8.2, 8.3, 8.2,
		7.9, 7.8, 7.9,
		8.4, 8.6, 8.4,
		7.6, 7.4, 7.6,
	)
	now := readings[len(readings)-1].Timestamp.Add(time.Minute)
	d.Analyze(readings, now)

	result := d.Result()
	require.Len(t, result.Peaks, 3)
	require.Len(t, result.Troughs, 3)
	require.Len(t, result.Oscillations, 3)

	report := d.Report(now)
	require.Equal(t, string(ModeWindowed), report.Mode)
	require.Equal(t, models.TrendRapidlyIncreasing, report.State)
	require.Equal(t, models.StatusLow, report.Status)
	require.Equal(t, 3, report.Oscillations)
	require.Equal(t, 0.73, report.AverageAmplitude)
	require.Equal(t, 1.2, report.MaxAmplitude)
	require.Equal(t, 1.2, report.LastAmplitude)
	require.Equal(t, models.FormatTimestamp(readings[14].Timestamp), report.LastPeak)
	require.Equal(t, models.FormatTimestamp(readings[17].Timestamp), report.LastTrough)
	require.Equal(t, len(readings), report.WindowReadings)
	require.Equal(t, 120.0, report.SecondsSinceLastChange)
	require.NotNil(t, report.CurrentPH)
	require.Equal(t, 7.6, *report.CurrentPH)
	require.True(t, report.LowPH)
	require.Equal(t, 3, report.DailyOscillations)
}

func TestWindowed_OldOscillationsLeaveHorizon(t *testing.T) {
	p := testParams()
	p.ReportHorizon = time.Hour
	d := NewWindowedDetector(p)

	readings := sine(8.0, 0.5, 20, 4)
	d.Analyze(readings, readings[len(readings)-1].Timestamp.Add(48*time.Hour))

	report := d.Report(readings[len(readings)-1].Timestamp.Add(48 * time.Hour))
	require.Zero(t, report.Oscillations)
	require.Equal(t, models.StateUnknown, report.State)
	require.Len(t, d.Result().Oscillations, 4)
}

func TestWindowed_FiltersNonFiniteValues(t *testing.T) {
	readings := series(8.0, math.NaN(), 8.3, math.Inf(1), 8.2)
	result := AnalyzeWindow(readings, testParams(), t0.Add(time.Hour))

	require.Equal(t, 3, result.Readings)
	require.Equal(t, 8.2, result.Latest.Value)
}

func TestWindowed_ObservedValueWinsOverWindow(t *testing.T) {
	d := NewWindowedDetector(testParams())
	d.Observe(models.Reading{Timestamp: t0, Value: 8.35})

	report := d.Report(t0)
	require.Equal(t, models.StateUnknown, report.State)
	require.NotNil(t, report.CurrentPH)
	require.Equal(t, 8.35, *report.CurrentPH)
	require.True(t, report.HighPH)

	d.Analyze(series(7.9, 7.95, 8.0, 8.05, 8.0), t0.Add(time.Hour))
	require.Equal(t, 8.35, *d.Report(t0.Add(time.Hour)).CurrentPH)
}

func TestNew(t *testing.T) {
	require.Equal(t, ModeStreaming, New(ModeStreaming, testParams()).Mode())
	require.Equal(t, ModeWindowed, New(ModeWindowed, testParams()).Mode())
	require.Equal(t, ModeStreaming, New("", testParams()).Mode())

	_, ok := New(ModeWindowed, testParams()).(WindowAnalyzer)
	require.True(t, ok)
	_, ok = New(ModeStreaming, testParams()).(WindowAnalyzer)
	require.False(t, ok)
}
