package oscillation

import (
	"math"
	"time"

	"ph-monitor/internal/models"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func testParams() Params {
	return Params{
		Setpoint:      8.0,
		NoiseFilter:   0.02,
		MinAmplitude:  0.1,
		MinDuration:   0,
		TimeWindow:    24 * time.Hour,
		ReportHorizon: 24 * time.Hour,
		CountMode:     CountPairs,
	}
}

// series spaces values one minute apart starting at t0
func series(values ...float64) []models.Reading {
	out := make([]models.Reading, len(values))
	for i, v := range values {
		out[i] = models.Reading{Source: "sensor.tank_ph", Timestamp: t0.Add(time.Duration(i) * time.Minute), Value: v}
	}
	return out
}

// sine samples setpoint + amplitude*sin over the given number of full cycles
func sine(setpoint, amplitude float64, perCycle, cycles int) []models.Reading {
	values := make([]float64, perCycle*cycles+1)
	for i := range values {
		values[i] = setpoint + amplitude*math.Sin(2*math.Pi*float64(i)/float64(perCycle))
	}
	return series(values...)
}

func feed(d Detector, readings []models.Reading) {
	for _, r := range readings {
		d.Observe(r)
	}
}
