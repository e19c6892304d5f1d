package oscillation

import (
	"sort"

	"ph-monitor/internal/models"
)

// Segment is a contiguous run of readings on one side of the setpoint.
// Start and End index into the analyzed window, End exclusive.
type Segment struct {
	Above bool
	Start int
	End   int
}

// Len returns the number of readings in the segment
func (s Segment) Len() int { return s.End - s.Start }

// Segments partitions an ordered window into runs strictly above / not above the setpoint
func Segments(window []models.Reading, setpoint float64) []Segment {
	if len(window) == 0 {
		return nil
	}

	var segments []Segment
	current := Segment{Above: window[0].Value > setpoint}
	for i, r := range window {
		above := r.Value > setpoint
		if above != current.Above {
			current.End = i
			segments = append(segments, current)
			current = Segment{Above: above, Start: i}
		}
	}
	current.End = len(window)
	return append(segments, current)
}

// FindExtrema returns the peak and trough candidates of a window that pass the
// amplitude and duration tests, in chronological order
func FindExtrema(window []models.Reading, p Params) (peaks, troughs []models.Extremum) {
	if len(window) < MinWindowReadings {
		return nil, nil
	}

	for _, seg := range Segments(window, p.Setpoint) {
		if seg.Len() < 2 {
			continue
		}
		run := window[seg.Start:seg.End]
		duration := run[len(run)-1].Timestamp.Sub(run[0].Timestamp)

		if seg.Above {
			top := run[0]
			for _, r := range run[1:] {
				if r.Value > top.Value {
					top = r
				}
			}
			if top.Value-p.Setpoint > p.MinAmplitude && duration >= p.MinDuration {
				peaks = append(peaks, models.Extremum{Timestamp: top.Timestamp, Value: top.Value, Kind: models.KindPeak})
			}
			continue
		}

		bottom := run[0]
		for _, r := range run[1:] {
			if r.Value < bottom.Value {
				bottom = r
			}
		}
		if p.Setpoint-bottom.Value > p.MinAmplitude && duration >= p.MinDuration {
			troughs = append(troughs, models.Extremum{Timestamp: bottom.Timestamp, Value: bottom.Value, Kind: models.KindTrough})
		}
	}
	return peaks, troughs
}

// MatchOscillations pairs every peak with the earliest trough strictly after it.
// A trough may close more than one peak when no trough separates them.
func MatchOscillations(peaks, troughs []models.Extremum, minAmplitude float64) []models.Oscillation {
	if len(peaks) == 0 || len(troughs) == 0 {
		return nil
	}

	sortedPeaks := sortedByTime(peaks)
	sortedTroughs := sortedByTime(troughs)

	var oscillations []models.Oscillation
	for _, peak := range sortedPeaks {
		i := sort.Search(len(sortedTroughs), func(i int) bool {
			return sortedTroughs[i].Timestamp.After(peak.Timestamp)
		})
		if i == len(sortedTroughs) {
			continue
		}
		osc := models.NewOscillation(peak, sortedTroughs[i])
		if peak.Value-sortedTroughs[i].Value > minAmplitude {
			oscillations = append(oscillations, osc)
		}
	}
	return oscillations
}

func sortedByTime(extrema []models.Extremum) []models.Extremum {
	out := make([]models.Extremum, len(extrema))
	copy(out, extrema)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// NeighbourSummary finds strict local maxima and minima by comparing each reading
// with its two neighbours. It returns the mean of peak_i - trough_i over the zipped
// pairs and the number of complete pairs.
func NeighbourSummary(window []models.Reading) (meanDelta float64, pairs int) {
	if len(window) < 3 {
		return 0, 0
	}

	var peaks, troughs []float64
	for i := 1; i < len(window)-1; i++ {
		prev, cur, next := window[i-1].Value, window[i].Value, window[i+1].Value
		switch {
		case cur > prev && cur > next:
			peaks = append(peaks, cur)
		case cur < prev && cur < next:
			troughs = append(troughs, cur)
		}
	}

	pairs = min(len(peaks), len(troughs))
	if pairs == 0 {
		return 0, 0
	}

	var sum float64
	for i := 0; i < pairs; i++ {
		sum += peaks[i] - troughs[i]
	}
	return Round(sum / float64(pairs)), pairs
}

