package stats

import "math"

// Scaler converts fixed-point integers into real values: raw / Factor, rounded
// to Precision decimal places. A negative Precision disables rounding.
type Scaler struct {
	Factor    float64 `yaml:"factor"`
	Precision int     `yaml:"precision"`
}

// Scale converts a single raw value. A zero Factor is treated as 1.
func (s Scaler) Scale(raw float64) float64 {
	factor := s.Factor
	if factor == 0 {
		factor = 1
	}

	v := raw / factor
	if s.Precision < 0 {
		return v
	}

	p := math.Pow(10, float64(s.Precision))
	return math.Round(v*p) / p
}

// ScaleAll converts every value of a raw series.
func ScaleAll[T Number](s Scaler, raw []T) []float64 {
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = s.Scale(float64(v))
	}
	return out
}

// Decibels returns 10*log10(ratio). Non-positive ratios give -Inf.
func Decibels(ratio float64) float64 {
	if ratio <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(ratio)
}
