package analysis

import "time"

func baseMap(a Analysis, b *Base) map[string]any {
	return map[string]any{
		"fileType":      a.FileType().String(),
		"channelId":     b.ChannelID.String(),
		"mac":           b.MAC.String(),
		"transactionId": b.TransactionID,
		"captureTime":   b.CaptureTime.Format(time.RFC3339),
		"rawX":          b.RawX,
		"rawY":          b.RawY,
	}
}

func traceMap(m map[string]any, t *ComplexTrace) map[string]any {
	m["magnitudeDb"] = t.MagnitudeDB
	m["phase"] = t.Phase
	m["groupDelay"] = t.GroupDelay
	m["ripple"] = t.Ripple
	m["phaseSlope"] = t.PhaseFit.Slope
	return m
}

// ToMap converts a single analysis into a plain keyed structure. Each concrete
// type has its own conversion; nil yields nil.
func ToMap(a Analysis) map[string]any {
	switch v := a.(type) {
	case *RxMER:
		m := baseMap(v, &v.Base)
		m["summary"] = v.Summary
		m["slope"] = v.Fit.Slope
		m["intercept"] = v.Fit.Intercept
		m["r2"] = v.Fit.R2
		m["smoothed"] = v.Smoothed
		m["excluded"] = v.Excluded
		return m

	case *Spectrum:
		m := baseMap(v, &v.Base)
		m["summary"] = v.Summary
		m["bounds"] = v.Bounds
		m["smoothed"] = v.Smoothed
		m["segments"] = v.Segments
		return m

	case *Constellation:
		m := baseMap(v, &v.Base)
		m["order"] = v.Order.String()
		m["mer"] = v.MER
		m["symbolCounts"] = v.SymbolCounts
		return m

	case *FEC:
		m := baseMap(v, &v.Base)
		profiles := make([]map[string]any, len(v.Profiles))
		for i, p := range v.Profiles {
			profiles[i] = map[string]any{
				"profileId":         p.ProfileID,
				"intervals":         p.Intervals,
				"correctedRate":     p.CorrectedRate,
				"uncorrectableRate": p.UncorrectableRate,
			}
		}
		m["profiles"] = profiles
		return m

	case *PreEqualizer:
		m := traceMap(baseMap(v, &v.Base), &v.ComplexTrace)
		m["cmtsMac"] = v.CMTSMAC.String()
		return m

	case *ChannelEstimate:
		return traceMap(baseMap(v, &v.Base), &v.ComplexTrace)

	case *Histogram:
		m := baseMap(v, &v.Base)
		m["symmetric"] = v.Symmetric
		m["totalHits"] = v.TotalHits
		return m

	case *Latency:
		m := baseMap(v, &v.Base)
		m["summary"] = v.Summary
		m["packets"] = v.Packets
		return m

	default:
		return nil
	}
}
