package modulation

import (
	"fmt"
	"math"
	"slices"

	"github.com/roman-kulish/docsis-pnm/internal/stats"
)

// Point is a constellation coordinate in normalized units.
type Point struct {
	I float64 `json:"i"`
	Q float64 `json:"q"`
}

func (p Point) Power() float64 {
	return p.I*p.I + p.Q*p.Q
}

// tables holds one reference table per order. It is built once and never
// written again, so concurrent readers need no lock.
var tables = func() map[Order][]Point {
	m := make(map[Order][]Point, len(orders))
	for _, o := range orders {
		m[o] = buildTable(o)
	}
	return m
}()

// normalization scales a square grid with levels ±1, ±3, ... to unit average energy.
func normalization(o Order) float64 {
	return 1 / math.Sqrt(2*float64(o-1)/3)
}

func buildTable(o Order) []Point {
	side := o.side()
	scale := normalization(o)
	top := float64(side - 1)

	points := make([]Point, 0, int(o))
	for row := 0; row < side; row++ {
		q := top - 2*float64(row)
		for col := 0; col < side; col++ {
			i := -top + 2*float64(col)
			points = append(points, Point{I: i * scale, Q: q * scale})
		}
	}
	return points
}

// HardDecisionTable returns the ideal points of order, row-major from the
// top-left corner (-max, +max). Every call returns the same coordinates in the
// same order; the slice is a copy the caller may modify.
func HardDecisionTable(o Order) ([]Point, error) {
	t, ok := tables[o]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedModulationOrder, int(o))
	}
	return slices.Clone(t), nil
}

// Decision is the nearest ideal point of a received sample.
type Decision struct {
	Index    int   `json:"index"` // position in the hard-decision table
	Ideal    Point `json:"ideal"`
	Received Point `json:"received"`
}

// Error is the error vector between the received sample and its ideal point.
func (d Decision) Error() Point {
	return Point{I: d.Received.I - d.Ideal.I, Q: d.Received.Q - d.Ideal.Q}
}

// level maps a normalized coordinate onto the nearest grid level 0..side-1.
func level(v, scale float64, side int) int {
	l := int(math.Round((v/scale + float64(side-1)) / 2))
	return min(max(l, 0), side-1)
}

// Classify makes a hard decision for every sample. The grid is square, so the
// nearest point is found per axis without searching the table.
func Classify(o Order, samples []Point) ([]Decision, error) {
	t, ok := tables[o]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedModulationOrder, int(o))
	}

	side := o.side()
	scale := normalization(o)

	out := make([]Decision, len(samples))
	for n, s := range samples {
		col := level(s.I, scale, side)
		row := side - 1 - level(s.Q, scale, side)
		idx := row*side + col
		out[n] = Decision{Index: idx, Ideal: t[idx], Received: s}
	}
	return out, nil
}

// MER returns the modulation error ratio of the decisions in dB: average ideal
// power over average error power. An error-free set gives +Inf.
func MER(decisions []Decision) (float64, error) {
	if len(decisions) == 0 {
		return 0, fmt.Errorf("%w: no decisions", stats.ErrInsufficientData)
	}

	var signal, noise float64
	for _, d := range decisions {
		signal += d.Ideal.Power()
		noise += d.Error().Power()
	}
	if noise == 0 {
		return math.Inf(1), nil
	}
	return stats.Decibels(signal / noise), nil
}
