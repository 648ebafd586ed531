package analysis

import "math"

// For 20 samples the 5th percentile is the first sample and the 95th the 19th.
const minimumBoundsSamples = 20

// PowerBounds is the spread of a power trace.
type PowerBounds struct {
	Low  float64 `json:"low"`  // 5th percentile, 1 dB resolution
	High float64 `json:"high"` // 95th percentile, 1 dB resolution
	Mean float64 `json:"mean"` // weighted average of the bins
}

// powerHistogram counts power readings in 1 dB bins.
type powerHistogram struct {
	bins   map[int]int
	total  int
	minBin int
	maxBin int
}

func newPowerHistogram() *powerHistogram {
	return &powerHistogram{
		bins:   make(map[int]int),
		minBin: math.MaxInt32,
		maxBin: math.MinInt32,
	}
}

func (h *powerHistogram) update(power float64) {
	bin := int(math.Floor(power))
	h.bins[bin]++
	h.total++
	h.minBin = min(h.minBin, bin)
	h.maxBin = max(h.maxBin, bin)
}

func (h *powerHistogram) bounds() PowerBounds {
	target := h.total * 5 / 100

	var b PowerBounds
	var count int
	for bin := h.minBin; bin <= h.maxBin; bin++ {
		count += h.bins[bin]
		if count >= target {
			b.Low = float64(bin)
			break
		}
	}

	count = 0
	for bin := h.maxBin; bin >= h.minBin; bin-- {
		count += h.bins[bin]
		if count >= target {
			b.High = float64(bin)
			break
		}
	}

	var sum float64
	for bin, n := range h.bins {
		sum += float64(bin) * float64(n)
	}
	b.Mean = sum / float64(h.total)

	return b
}

// powerBounds reports the percentile spread of values. Short traces report
// their plain minimum and maximum instead.
func powerBounds(values []float64) PowerBounds {
	if len(values) == 0 {
		return PowerBounds{}
	}

	if len(values) < minimumBoundsSamples {
		b := PowerBounds{Low: math.Inf(1), High: math.Inf(-1)}
		var sum float64
		for _, v := range values {
			b.Low = min(b.Low, v)
			b.High = max(b.High, v)
			sum += v
		}
		b.Mean = sum / float64(len(values))
		return b
	}

	h := newPowerHistogram()
	for _, v := range values {
		h.update(v)
	}
	return h.bounds()
}
