package analysis

import (
	"errors"
	"maps"
	"math"
	"slices"
	"testing"

	"github.com/roman-kulish/docsis-pnm/internal/modulation"
	"github.com/roman-kulish/docsis-pnm/internal/pnm"
	"github.com/roman-kulish/docsis-pnm/internal/stats"
)

var testMAC = pnm.MustParseMAC("aa:bb:cc:dd:ee:ff")

func record(ch pnm.ChannelID, p pnm.Payload) *pnm.CaptureRecord {
	return &pnm.CaptureRecord{
		Header: pnm.CaptureHeader{
			FormatVersion: pnm.Version{Major: 1},
			FileType:      p.FileType(),
			ChannelID:     ch,
			CaptureTime:   1_700_000_000,
		},
		Payload:       p,
		SourceMAC:     testMAC,
		TransactionID: "tx-" + ch.String(),
	}
}

func layout() pnm.SubcarrierLayout {
	return pnm.SubcarrierLayout{ZeroFrequency: 1_000_000_000, FirstActiveIndex: 0, SpacingKHz: 50}
}

func TestAnalyze_RxMER(t *testing.T) {
	// MER rises 1 dB per subcarrier, one subcarrier excluded
	values := []uint8{120, 124, pnm.RxMERExcluded, 132, 136}
	a := NewAnalyzer(DefaultConfig())

	result, err := a.Analyze(record(5, &pnm.RxMER{CMMAC: testMAC, Layout: layout(), Values: values}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rxmer, ok := result.(*RxMER)
	if !ok {
		t.Fatalf("expected *RxMER, got %T", result)
	}
	if rxmer.Channel() != 5 || rxmer.Excluded != 1 {
		t.Errorf("unexpected identity %+v", rxmer.Base)
	}
	if !slices.Equal(rxmer.RawY, []float64{30, 31, 33, 34}) {
		t.Errorf("unexpected MER values %v", rxmer.RawY)
	}
	if rxmer.RawX[2] != 1_000_150_000 {
		t.Errorf("expected excluded subcarrier to keep the frequency axis, got %v", rxmer.RawX)
	}
	// 1 dB per 50 kHz is 20 dB per MHz
	if math.Abs(rxmer.Fit.Slope-20) > 1e-6 {
		t.Errorf("expected 20 dB/MHz slope, got %v", rxmer.Fit.Slope)
	}
	if rxmer.Summary.Min != 30 || rxmer.Summary.Max != 34 {
		t.Errorf("unexpected summary %+v", rxmer.Summary)
	}
	// the default window is wider than the capture and shrinks to it
	if len(rxmer.Smoothed) != 1 || rxmer.Smoothed[0] != 32 {
		t.Errorf("unexpected smoothed trace %v", rxmer.Smoothed)
	}
}

func TestAnalyze_RxMERInsufficientData(t *testing.T) {
	p := &pnm.RxMER{Layout: layout(), Values: []uint8{pnm.RxMERExcluded, 100}}
	if _, err := NewAnalyzer(DefaultConfig()).Analyze(record(1, p)); !errors.Is(err, stats.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestAnalyze_Spectrum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MovingAverage = MovingAverageConfig{Window: 2, Points: 0}

	p := &pnm.Spectrum{
		FirstSegmentCenter: 100_000_000,
		SegmentSpan:        10_000_000,
		BinsPerSegment:     2,
		BinSpacing:         5_000_000,
		Amplitudes:         []int16{-1000, 500, 250, 1250},
	}
	result, err := NewAnalyzer(cfg).Analyze(record(pnm.NoChannel, p))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := result.(*Spectrum)
	if !slices.Equal(s.RawY, []float64{-10, 5, 2.5, 12.5}) {
		t.Errorf("unexpected amplitudes %v", s.RawY)
	}
	if !slices.Equal(s.RawX, []float64{95_000_000, 100_000_000, 105_000_000, 110_000_000}) {
		t.Errorf("unexpected frequencies %v", s.RawX)
	}
	if !slices.Equal(s.Smoothed, []float64{-2.5, 3.75, 7.5}) {
		t.Errorf("unexpected smoothed trace %v", s.Smoothed)
	}
	if s.Segments != 2 || s.Bounds.Low != -10 || s.Bounds.High != 12.5 {
		t.Errorf("unexpected segments or bounds: %d %+v", s.Segments, s.Bounds)
	}
}

func TestAnalyze_Constellation(t *testing.T) {
	table, err := modulation.HardDecisionTable(modulation.QAM16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	samples := make([]pnm.Complex, 0, len(table))
	for _, p := range table {
		samples = append(samples, pnm.Complex{
			Real: int16(math.Round(p.I * 8192)),
			Imag: int16(math.Round(p.Q * 8192)),
		})
	}

	result, err := NewAnalyzer(DefaultConfig()).Analyze(record(3,
		&pnm.Constellation{QAMOrder: 16, Layout: layout(), Samples: samples}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := result.(*Constellation)
	if c.Order != modulation.QAM16 {
		t.Errorf("expected qam16, got %s", c.Order)
	}
	for i, n := range c.SymbolCounts {
		if n != 1 {
			t.Errorf("point %d: expected one sample, got %d", i, n)
		}
	}
	// only fixed-point rounding remains
	if c.MER < 60 {
		t.Errorf("expected a very high MER, got %v", c.MER)
	}

	_, err = NewAnalyzer(DefaultConfig()).Analyze(record(3, &pnm.Constellation{QAMOrder: 32, Samples: samples}))
	if !errors.Is(err, modulation.ErrUnsupportedModulationOrder) {
		t.Errorf("expected ErrUnsupportedModulationOrder, got %v", err)
	}
}

func TestAnalyze_FEC(t *testing.T) {
	p := &pnm.FECSummary{
		Profiles: []pnm.FECProfile{{
			ProfileID: 1,
			Sets: []pnm.CodewordSet{
				{Timestamp: 1_700_000_000, Total: 1000, Corrected: 10, Uncorrectable: 0},
				{Timestamp: 1_700_000_010, Total: 2000, Corrected: 20, Uncorrectable: 10},
			},
		}},
	}
	result, err := NewAnalyzer(DefaultConfig()).Analyze(record(7, p))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f := result.(*FEC)
	if len(f.Profiles) != 1 || len(f.Profiles[0].Intervals) != 2 {
		t.Fatalf("unexpected profiles %+v", f.Profiles)
	}

	profile := f.Profiles[0]
	if profile.Intervals[0].CorrectedRate != 0.01 || profile.Intervals[1].UncorrectableRate != 0.005 {
		t.Errorf("unexpected interval rates %+v", profile.Intervals)
	}
	if profile.Intervals[0].CodewordsPerSecond != 0 || profile.Intervals[1].CodewordsPerSecond != 200 {
		t.Errorf("unexpected codeword throughput %+v", profile.Intervals)
	}
	if profile.CorrectedRate != 0.01 {
		t.Errorf("unexpected profile corrected rate %v", profile.CorrectedRate)
	}
	if !slices.Equal(f.RawY, []float64{0, 0.005}) {
		t.Errorf("unexpected raw series %v", f.RawY)
	}
}

func TestAnalyze_PreEqualizerGroupDelay(t *testing.T) {
	const delay = 1e-6 // seconds

	l := layout()
	taps := make([]pnm.Complex, 64)
	for i := range taps {
		phase := -2 * math.Pi * l.Frequency(i) * delay
		taps[i] = pnm.Complex{
			Real: int16(math.Round(8192 * math.Cos(phase))),
			Imag: int16(math.Round(8192 * math.Sin(phase))),
		}
	}

	result, err := NewAnalyzer(DefaultConfig()).Analyze(record(9, &pnm.PreEqualizer{Layout: l, Taps: taps}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pe := result.(*PreEqualizer)
	if math.Abs(pe.GroupDelay-delay) > 1e-8 {
		t.Errorf("expected group delay %v, got %v", delay, pe.GroupDelay)
	}
	// taps of half amplitude in s1.14
	if math.Abs(pe.MagnitudeDB[0]+6.0206) > 1e-2 || pe.Ripple > 0.1 {
		t.Errorf("unexpected magnitude %v ripple %v", pe.MagnitudeDB[0], pe.Ripple)
	}
	if len(pe.RawX) != len(taps) || len(pe.RawY) != len(taps) {
		t.Errorf("unexpected raw series lengths")
	}
}

func TestAnalyze_ChannelEstimateNullCoefficient(t *testing.T) {
	p := &pnm.ChannelEstimate{Layout: layout(), Coefficients: []pnm.Complex{{Real: 8192}, {}, {Real: 8192}}}

	result, err := NewAnalyzer(DefaultConfig()).Analyze(record(2, p))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ce := result.(*ChannelEstimate)
	if ce.MagnitudeDB[1] != minMagnitudeDB || ce.MagnitudeDB[0] != 0 {
		t.Errorf("unexpected magnitudes %v", ce.MagnitudeDB)
	}
}

func TestAnalyze_HistogramAndLatency(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())

	result, err := a.Analyze(record(4, &pnm.Histogram{HitCounts: []uint32{1, 3, 0, 4}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := result.(*Histogram)
	if h.TotalHits != 8 || !slices.Equal(h.RawY, []float64{0.125, 0.375, 0, 0.5}) {
		t.Errorf("unexpected histogram %+v", h)
	}

	result, err = a.Analyze(record(pnm.NoChannel, &pnm.LatencyReport{Entries: []pnm.LatencySummaryEntry{
		{ServiceFlowID: 1, MeanLatencyUs: 100, Packets: 10},
		{ServiceFlowID: 2, MeanLatencyUs: 300, Packets: 5},
	}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l := result.(*Latency)
	if l.Summary.Mean != 200 || l.Packets != 15 || l.Channel() != pnm.NoChannel {
		t.Errorf("unexpected latency analysis %+v", l)
	}
}

func TestAnalyze_NoPayload(t *testing.T) {
	if _, err := NewAnalyzer(DefaultConfig()).Analyze(&pnm.CaptureRecord{}); !errors.Is(err, ErrNoPayload) {
		t.Errorf("expected ErrNoPayload, got %v", err)
	}
}

func TestMultiAnalysis(t *testing.T) {
	a := NewAnalyzer(DefaultConfig())
	analyze := func(ch pnm.ChannelID, hits []uint32) Analysis {
		t.Helper()
		result, err := a.Analyze(record(ch, &pnm.Histogram{HitCounts: hits}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return result
	}

	var m MultiAnalysis
	first := analyze(5, []uint32{1})
	m.Add(first)
	m.Add(analyze(3, []uint32{2}))
	last := analyze(5, []uint32{3})
	m.Add(last)

	if m.Count() != 3 {
		t.Fatalf("expected 3 analyses, got %d", m.Count())
	}

	all := m.All()
	if all[0] != first || all[2] != last {
		t.Errorf("expected insertion order to be preserved")
	}
	all[0] = nil
	if m.All()[0] == nil {
		t.Errorf("All must return a copy")
	}

	byChannel := m.ByChannel()
	if len(byChannel) != 2 || byChannel[5] != last {
		t.Errorf("expected the last analysis of channel 5 to win")
	}
	if !slices.Equal(m.Channels(), []pnm.ChannelID{3, 5}) {
		t.Errorf("unexpected channels %v", m.Channels())
	}

	out := m.ToMap()
	if out["count"] != 2 {
		t.Errorf("unexpected count %v", out["count"])
	}
	channels := out["channels"].(map[string]any)
	ch5 := channels["5"].(map[string]any)
	if ch5["totalHits"] != uint64(3) || ch5["fileType"] != pnm.FileTypeHistogram.String() {
		t.Errorf("unexpected channel 5 entry %v", ch5)
	}
}

func TestToMap_EveryAnalysisType(t *testing.T) {
	analyses := []Analysis{
		&RxMER{}, &Spectrum{}, &Constellation{Order: modulation.QPSK}, &FEC{},
		&PreEqualizer{}, &ChannelEstimate{}, &Histogram{}, &Latency{},
	}
	seen := make(map[pnm.FileType]bool)
	for _, a := range analyses {
		m := ToMap(a)
		if m == nil {
			t.Errorf("%T has no conversion", a)
			continue
		}
		if m["fileType"] != a.FileType().String() {
			t.Errorf("%T: unexpected file type %v", a, m["fileType"])
		}
		if _, fec := a.(*FEC); !fec && len(Highlights(a)) == 0 {
			t.Errorf("%T has no highlights", a)
		}
		seen[a.FileType()] = true
	}
	if len(seen) != len(pnm.FileTypes()) {
		t.Errorf("expected an analysis for every file type")
	}
	if ToMap(nil) != nil {
		t.Errorf("expected nil for nil analysis")
	}
}

func TestPowerBounds(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i) - 50.5
	}
	b := powerBounds(values)
	if b.Low != -47 || b.High != 44 {
		t.Errorf("unexpected percentile bounds %+v", b)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Spectrum.Factor = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for zero scale factor")
	}

	cfg = DefaultConfig()
	cfg.MovingAverage.Window = -1
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for negative window")
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name string
		a    Analysis
		want map[string]any
	}{
		{
			name: "rxmer",
			a:    &RxMER{Summary: stats.Summary{Mean: 40, Min: 35}, Fit: stats.Fit{Slope: -0.01}, Excluded: 2},
			want: map[string]any{"mer_mean": 40.0, "mer_min": 35.0, "mer_slope": -0.01, "excluded": int64(2)},
		},
		{
			name: "noise free constellation",
			a:    &Constellation{MER: math.Inf(1), Base: Base{RawX: make([]float64, 3)}},
			want: map[string]any{"samples": int64(3)},
		},
		{
			name: "fec",
			a: &FEC{Profiles: []FECProfile{
				{ProfileID: 0, CorrectedRate: 0.1, UncorrectableRate: 0},
				{ProfileID: 3, CorrectedRate: 0.2, UncorrectableRate: 0.01},
			}},
			want: map[string]any{
				"profile0_corrected": 0.1, "profile0_uncorrectable": 0.0,
				"profile3_corrected": 0.2, "profile3_uncorrectable": 0.01,
			},
		},
		{
			name: "pre-equalizer",
			a:    &PreEqualizer{ComplexTrace: ComplexTrace{GroupDelay: 1e-7, Ripple: math.NaN()}},
			want: map[string]any{"group_delay": 1e-7},
		},
		{
			name: "latency",
			a:    &Latency{Summary: stats.Summary{Mean: 300}, Packets: 12},
			want: map[string]any{"latency_mean": 300.0, "packets": int64(12)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fields(tt.a)
			if !maps.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
