package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/roman-kulish/docsis-pnm/internal/pnm"
	"github.com/roman-kulish/docsis-pnm/internal/stats"
)

// floor for the magnitude of a null coefficient
const minMagnitudeDB = -100.0

func toComplex(s stats.Scaler, values []pnm.Complex) []complex128 {
	out := make([]complex128, len(values))
	for i, v := range values {
		out[i] = complex(s.Scale(float64(v.Real)), s.Scale(float64(v.Imag)))
	}
	return out
}

// unwrap removes the 2π jumps of a phase series taken from atan2.
func unwrap(phase []float64) []float64 {
	out := make([]float64, len(phase))
	var offset float64
	for i, p := range phase {
		if i > 0 {
			switch d := p - phase[i-1]; {
			case d > math.Pi:
				offset -= 2 * math.Pi
			case d < -math.Pi:
				offset += 2 * math.Pi
			}
		}
		out[i] = p + offset
	}
	return out
}

// complexTrace computes magnitude and phase of per-subcarrier coefficients.
// The group delay is the negative slope of the unwrapped phase over
// frequency, divided by 2π.
func complexTrace(layout pnm.SubcarrierLayout, values []complex128) (ComplexTrace, []float64, error) {
	var t ComplexTrace

	freq := make([]float64, len(values))
	phase := make([]float64, len(values))
	t.MagnitudeDB = make([]float64, len(values))

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, c := range values {
		freq[i] = layout.Frequency(i)
		phase[i] = cmplx.Phase(c)

		m := max(20*math.Log10(cmplx.Abs(c)), minMagnitudeDB)
		t.MagnitudeDB[i] = m
		lo, hi = min(lo, m), max(hi, m)
	}
	t.Phase = unwrap(phase)

	fit, err := stats.LinearRegression(freq, t.Phase)
	if err != nil {
		return t, nil, fmt.Errorf("fitting phase: %w", err)
	}
	t.PhaseFit = fit
	t.GroupDelay = -fit.Slope / (2 * math.Pi)
	t.Ripple = hi - lo

	return t, freq, nil
}
