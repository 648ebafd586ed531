package stats

import (
	"fmt"
	"time"
)

// RatePerInterval returns count/total, or 0 when total is 0.
func RatePerInterval[T Number](count, total T) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}

// Sample is one reading of a monotonic counter.
type Sample struct {
	At    time.Time
	Value uint64
}

// IntervalRate is the growth of a counter between two consecutive samples.
type IntervalRate struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Delta     uint64    `json:"delta"`
	PerSecond float64   `json:"perSecond"`
}

// Rates turns a counter series into per-interval rates. A counter that goes
// backwards is treated as reset, and the interval counts from zero. Intervals
// with no elapsed time report a zero rate.
func Rates(samples []Sample) ([]IntervalRate, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("%w: %d samples, need at least 2", ErrInsufficientData, len(samples))
	}

	out := make([]IntervalRate, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]

		delta := cur.Value
		if cur.Value >= prev.Value {
			delta = cur.Value - prev.Value
		}

		r := IntervalRate{Start: prev.At, End: cur.At, Delta: delta}
		if elapsed := cur.At.Sub(prev.At).Seconds(); elapsed > 0 {
			r.PerSecond = float64(delta) / elapsed
		}
		out = append(out, r)
	}
	return out, nil
}
