// Package stats holds the numeric helpers shared by the capture analyses:
// least-squares regression, fixed-point scaling, moving averages and counter rates.
package stats

import (
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

var (
	// ErrInsufficientData is returned when a series cannot support the requested statistic.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidWindow is returned for a moving-average window outside 1..len(series).
	ErrInvalidWindow = errors.New("invalid window")
)

// Number is any integer or floating point type found in decoded payloads.
type Number interface {
	constraints.Integer | constraints.Float
}

// Fit is an ordinary least-squares line y = Slope*x + Intercept.
type Fit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"` // coefficient of determination, 1 for a perfect fit
	N         int     `json:"n"`
}

// At evaluates the fitted line at x.
func (f Fit) At(x float64) float64 {
	return f.Slope*x + f.Intercept
}

// LinearRegression fits a line through the paired samples.
func LinearRegression[X, Y Number](x []X, y []Y) (Fit, error) {
	if len(x) != len(y) {
		return Fit{}, fmt.Errorf("%w: %d x values, %d y values", ErrInsufficientData, len(x), len(y))
	}
	n := len(x)
	if n < 2 {
		return Fit{}, fmt.Errorf("%w: %d points, need at least 2", ErrInsufficientData, n)
	}

	var sumX, sumY float64
	for i := range n {
		sumX += float64(x[i])
		sumY += float64(y[i])
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var sxx, sxy, syy float64
	for i := range n {
		dx, dy := float64(x[i])-meanX, float64(y[i])-meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return Fit{}, fmt.Errorf("%w: zero variance in x", ErrInsufficientData)
	}

	fit := Fit{Slope: sxy / sxx, N: n}
	fit.Intercept = meanY - fit.Slope*meanX

	// a flat y series is fitted exactly by a flat line
	fit.R2 = 1
	if syy != 0 {
		fit.R2 = (sxy * sxy) / (sxx * syy)
	}

	return fit, nil
}

// Indices returns 0..n-1 as float64, the x axis of a series sampled per index.
func Indices(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}
