package stats

import (
	"fmt"
	"math"
)

// MovingAverage returns the simple moving average of series over window
// consecutive samples. When points is positive and smaller than the number of
// averages, the output is downsampled to points evenly spaced averages that
// always include the first and the last one.
func MovingAverage[T Number](series []T, window, points int) ([]float64, error) {
	if window < 1 || window > len(series) {
		return nil, fmt.Errorf("%w: window %d over %d samples", ErrInvalidWindow, window, len(series))
	}
	if points < 0 {
		return nil, fmt.Errorf("%w: %d output points", ErrInvalidWindow, points)
	}

	averages := make([]float64, 0, len(series)-window+1)
	var sum float64
	for i, v := range series {
		sum += float64(v)
		if i >= window {
			sum -= float64(series[i-window])
		}
		if i >= window-1 {
			averages = append(averages, sum/float64(window))
		}
	}

	if points == 0 || points >= len(averages) {
		return averages, nil
	}
	if points == 1 {
		return averages[:1], nil
	}

	out := make([]float64, points)
	step := float64(len(averages)-1) / float64(points-1)
	for i := range out {
		out[i] = averages[int(math.Round(float64(i)*step))]
	}
	return out, nil
}

// Summary describes the distribution of a series.
type Summary struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"stdDev"`
	N      int     `json:"n"`
}

// Summarize computes the population statistics of series.
func Summarize[T Number](series []T) (Summary, error) {
	if len(series) == 0 {
		return Summary{}, fmt.Errorf("%w: empty series", ErrInsufficientData)
	}

	s := Summary{Min: math.Inf(1), Max: math.Inf(-1), N: len(series)}
	var sum float64
	for _, v := range series {
		f := float64(v)
		sum += f
		s.Min = min(s.Min, f)
		s.Max = max(s.Max, f)
	}
	s.Mean = sum / float64(len(series))

	var variance float64
	for _, v := range series {
		d := float64(v) - s.Mean
		variance += d * d
	}
	s.StdDev = math.Sqrt(variance / float64(len(series)))

	return s, nil
}
