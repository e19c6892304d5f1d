package oscillation

import (
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"ph-monitor/internal/models"
)

// Summary aggregates the oscillations inside the reporting horizon
type Summary struct {
	Count         int
	Average       float64
	Max           float64
	Last          float64
	LastPeak      time.Time
	LastTrough    time.Time
	Trend         string
	Status        string
	PercentChange float64
}

// ClassifyTrend compares the mean amplitude of the first and second half of a
// chronologically ordered amplitude list. The split is index based (n/2), so with
// an odd count the middle oscillation lands in the second half.
func ClassifyTrend(amplitudes []float64) (trend, status string, percentChange float64) {
	if len(amplitudes) < 2 {
		return models.TrendUnknown, models.StatusUnknown, 0
	}

	half := len(amplitudes) / 2
	firstAvg, _ := stats.Mean(amplitudes[:half])
	secondAvg, _ := stats.Mean(amplitudes[half:])

	if firstAvg != 0 {
		percentChange = (secondAvg - firstAvg) / firstAvg * 100
	}

	switch {
	case percentChange > 15:
		return models.TrendRapidlyIncreasing, models.StatusLow, percentChange
	case percentChange > 5:
		return models.TrendIncreasing, models.StatusDecreasing, percentChange
	case percentChange < -5:
		return models.TrendDecreasing, models.StatusGood, percentChange
	default:
		return models.TrendStable, models.StatusNormal, percentChange
	}
}

// WithinHorizon keeps the oscillations whose peak is at most horizon before now.
// Input order is preserved.
func WithinHorizon(oscillations []models.Oscillation, now time.Time, horizon time.Duration) []models.Oscillation {
	recent := make([]models.Oscillation, 0, len(oscillations))
	for _, osc := range oscillations {
		if now.Sub(osc.Peak.Timestamp) <= horizon {
			recent = append(recent, osc)
		}
	}
	return recent
}

// Summarize computes amplitude metrics and trend over chronologically ordered oscillations
func Summarize(oscillations []models.Oscillation) Summary {
	if len(oscillations) == 0 {
		return Summary{
			Trend:  models.TrendUnknown,
			Status: models.StatusUnknown,
		}
	}

	amplitudes := make([]float64, len(oscillations))
	for i, osc := range oscillations {
		amplitudes[i] = osc.Amplitude
	}

	avg, _ := stats.Mean(amplitudes)
	maxAmp, _ := stats.Max(amplitudes)
	last := oscillations[len(oscillations)-1]
	trend, status, pct := ClassifyTrend(amplitudes)

	return Summary{
		Count:         len(oscillations),
		Average:       Round(avg),
		Max:           Round(maxAmp),
		Last:          Round(last.Amplitude),
		LastPeak:      last.Peak.Timestamp,
		LastTrough:    last.Trough.Timestamp,
		Trend:         trend,
		Status:        status,
		PercentChange: pct,
	}
}

// Round rounds reported metrics to two decimals
func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
