package analysis

import (
	"fmt"
	"log/slog"
	"math"
)

func db(v float64) string {
	return fmt.Sprintf("%.2fdB", v)
}

// Highlights returns the headline figures of an analysis as log attributes.
func Highlights(a Analysis) []slog.Attr {
	switch v := a.(type) {
	case *RxMER:
		return []slog.Attr{
			slog.String("mean", db(v.Summary.Mean)),
			slog.String("min", db(v.Summary.Min)),
			slog.String("slope", fmt.Sprintf("%.4fdB/MHz", v.Fit.Slope)),
			slog.Int("subcarriers", v.Summary.N),
			slog.Int("excluded", v.Excluded),
		}
	case *Spectrum:
		return []slog.Attr{
			slog.String("mean", fmt.Sprintf("%.2fdBmV", v.Summary.Mean)),
			slog.String("low", fmt.Sprintf("%.2fdBmV", v.Bounds.Low)),
			slog.String("high", fmt.Sprintf("%.2fdBmV", v.Bounds.High)),
			slog.Int("segments", v.Segments),
		}
	case *Constellation:
		return []slog.Attr{
			slog.String("order", v.Order.String()),
			slog.String("mer", db(v.MER)),
			slog.Int("samples", len(v.RawX)),
		}
	case *FEC:
		attrs := make([]slog.Attr, 0, len(v.Profiles))
		for _, p := range v.Profiles {
			attrs = append(attrs, slog.Group(fmt.Sprintf("profile%d", p.ProfileID),
				slog.Float64("corrected", p.CorrectedRate),
				slog.Float64("uncorrectable", p.UncorrectableRate),
			))
		}
		return attrs
	case *PreEqualizer:
		return traceHighlights(&v.ComplexTrace)
	case *ChannelEstimate:
		return traceHighlights(&v.ComplexTrace)
	case *Histogram:
		return []slog.Attr{
			slog.Bool("symmetric", v.Symmetric),
			slog.Uint64("hits", v.TotalHits),
			slog.Int("bins", len(v.RawY)),
		}
	case *Latency:
		return []slog.Attr{
			slog.Int("flows", v.Summary.N),
			slog.String("meanLatency", fmt.Sprintf("%.0fus", v.Summary.Mean)),
			slog.Uint64("packets", v.Packets),
		}
	default:
		return nil
	}
}

func traceHighlights(t *ComplexTrace) []slog.Attr {
	return []slog.Attr{
		slog.String("groupDelay", fmt.Sprintf("%.3gs", t.GroupDelay)),
		slog.String("ripple", db(t.Ripple)),
		slog.Int("coefficients", len(t.MagnitudeDB)),
	}
}

// Fields returns the headline figures of an analysis as numeric values, in
// the units of the analysis. Non-finite values are left out.
func Fields(a Analysis) map[string]any {
	out := make(map[string]any)
	put := func(k string, v float64) {
		if !math.IsInf(v, 0) && !math.IsNaN(v) {
			out[k] = v
		}
	}

	switch v := a.(type) {
	case *RxMER:
		put("mer_mean", v.Summary.Mean)
		put("mer_min", v.Summary.Min)
		put("mer_slope", v.Fit.Slope)
		out["excluded"] = int64(v.Excluded)
	case *Spectrum:
		put("power_mean", v.Summary.Mean)
		put("power_low", v.Bounds.Low)
		put("power_high", v.Bounds.High)
	case *Constellation:
		put("mer", v.MER)
		out["samples"] = int64(len(v.RawX))
	case *FEC:
		for _, p := range v.Profiles {
			put(fmt.Sprintf("profile%d_corrected", p.ProfileID), p.CorrectedRate)
			put(fmt.Sprintf("profile%d_uncorrectable", p.ProfileID), p.UncorrectableRate)
		}
	case *PreEqualizer:
		put("group_delay", v.GroupDelay)
		put("ripple", v.Ripple)
	case *ChannelEstimate:
		put("group_delay", v.GroupDelay)
		put("ripple", v.Ripple)
	case *Histogram:
		out["hits"] = int64(v.TotalHits)
	case *Latency:
		put("latency_mean", v.Summary.Mean)
		out["packets"] = int64(v.Packets)
	}
	return out
}
