package analysis

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/docsis-pnm/internal/modulation"
	"github.com/roman-kulish/docsis-pnm/internal/pnm"
	"github.com/roman-kulish/docsis-pnm/internal/stats"
)

// ErrNoPayload is returned for a record that carries no decoded payload.
var ErrNoPayload = errors.New("capture has no payload")

// WithLogger sets the logger for the analyzer
func WithLogger(logger *slog.Logger) func(a *Analyzer) {
	return func(a *Analyzer) {
		a.logger = logger.With(slog.String("component", "analyzer"))
	}
}

// Analyzer turns decoded capture records into analyses. It only reads its
// configuration and is safe for concurrent use.
type Analyzer struct {
	cfg    Config
	logger *slog.Logger
}

func NewAnalyzer(cfg Config, options ...func(a *Analyzer)) *Analyzer {
	a := Analyzer{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&a)
	}

	return &a
}

// Analyze dispatches on the payload variant of rec.
func (a *Analyzer) Analyze(rec *pnm.CaptureRecord) (Analysis, error) {
	if rec == nil || rec.Payload == nil {
		return nil, ErrNoPayload
	}

	base := Base{
		ChannelID:     rec.Header.ChannelID,
		MAC:           rec.SourceMAC,
		TransactionID: rec.TransactionID,
		CaptureTime:   rec.Header.Time(),
	}

	var (
		result Analysis
		err    error
	)
	switch p := rec.Payload.(type) {
	case *pnm.RxMER:
		result, err = a.rxmer(base, p)
	case *pnm.Spectrum:
		result, err = a.spectrum(base, p)
	case *pnm.Constellation:
		result, err = a.constellation(base, p)
	case *pnm.FECSummary:
		result, err = a.fec(base, p)
	case *pnm.PreEqualizer:
		result, err = a.preEqualizer(base, p)
	case *pnm.ChannelEstimate:
		result, err = a.channelEstimate(base, p)
	case *pnm.Histogram:
		result, err = a.histogram(base, p)
	case *pnm.LatencyReport:
		result, err = a.latency(base, p)
	default:
		return nil, fmt.Errorf("%w: %T", pnm.ErrUnknownFileType, p)
	}
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", rec.Payload.FileType(), err)
	}

	a.logger.Debug("capture analyzed",
		slog.String("fileType", result.FileType().String()),
		slog.String("channel", result.Channel().String()),
		slog.String("transactionId", rec.TransactionID),
	)

	return result, nil
}

// smooth applies the configured moving average. The window shrinks to the
// series length so that short captures are still smoothed.
func (a *Analyzer) smooth(series []float64) ([]float64, error) {
	window := a.cfg.MovingAverage.Window
	if window <= 0 || len(series) == 0 {
		return nil, nil
	}
	return stats.MovingAverage(series, min(window, len(series)), a.cfg.MovingAverage.Points)
}

func (a *Analyzer) rxmer(base Base, p *pnm.RxMER) (*RxMER, error) {
	out := &RxMER{Base: base}

	var mhz []float64
	for i, v := range p.Values {
		if v == pnm.RxMERExcluded {
			out.Excluded++
			continue
		}
		f := p.Layout.Frequency(i)
		out.RawX = append(out.RawX, f)
		out.RawY = append(out.RawY, a.cfg.RxMER.Scale(float64(v)))
		mhz = append(mhz, f/1e6)
	}

	var err error
	if out.Summary, err = stats.Summarize(out.RawY); err != nil {
		return nil, err
	}
	if out.Fit, err = stats.LinearRegression(mhz, out.RawY); err != nil {
		return nil, err
	}
	if out.Smoothed, err = a.smooth(out.RawY); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Analyzer) spectrum(base Base, p *pnm.Spectrum) (*Spectrum, error) {
	out := &Spectrum{Base: base, Segments: len(p.Segments())}

	out.RawX = make([]float64, len(p.Amplitudes))
	for i := range p.Amplitudes {
		out.RawX[i] = p.Frequency(i)
	}
	out.RawY = stats.ScaleAll(a.cfg.Spectrum, p.Amplitudes)

	var err error
	if out.Summary, err = stats.Summarize(out.RawY); err != nil {
		return nil, err
	}
	out.Bounds = powerBounds(out.RawY)
	if out.Smoothed, err = a.smooth(out.RawY); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Analyzer) constellation(base Base, p *pnm.Constellation) (*Constellation, error) {
	order, err := modulation.ParseOrder(int(p.QAMOrder))
	if err != nil {
		return nil, err
	}

	out := &Constellation{Base: base, Order: order, SymbolCounts: make([]int, order)}

	samples := make([]modulation.Point, len(p.Samples))
	out.RawX = make([]float64, len(p.Samples))
	out.RawY = make([]float64, len(p.Samples))
	for i, s := range p.Samples {
		samples[i] = modulation.Point{
			I: a.cfg.Constellation.Scale(float64(s.Real)),
			Q: a.cfg.Constellation.Scale(float64(s.Imag)),
		}
		out.RawX[i], out.RawY[i] = samples[i].I, samples[i].Q
	}

	decisions, err := modulation.Classify(order, samples)
	if err != nil {
		return nil, err
	}
	for _, d := range decisions {
		out.SymbolCounts[d.Index]++
	}
	if out.MER, err = modulation.MER(decisions); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Analyzer) fec(base Base, p *pnm.FECSummary) (*FEC, error) {
	out := &FEC{Base: base, Profiles: make([]FECProfile, 0, len(p.Profiles))}

	for _, profile := range p.Profiles {
		fp := FECProfile{ProfileID: profile.ProfileID, Intervals: make([]FECInterval, len(profile.Sets))}

		var total, corrected, uncorrectable uint64
		samples := make([]stats.Sample, len(profile.Sets))
		for i, s := range profile.Sets {
			total += uint64(s.Total)
			corrected += uint64(s.Corrected)
			uncorrectable += uint64(s.Uncorrectable)
			samples[i] = stats.Sample{At: time.Unix(int64(s.Timestamp), 0).UTC(), Value: total}

			fp.Intervals[i] = FECInterval{
				Start:             samples[i].At,
				Total:             s.Total,
				Corrected:         s.Corrected,
				Uncorrectable:     s.Uncorrectable,
				CorrectedRate:     stats.RatePerInterval(s.Corrected, s.Total),
				UncorrectableRate: stats.RatePerInterval(s.Uncorrectable, s.Total),
			}
			out.RawX = append(out.RawX, float64(s.Timestamp))
			out.RawY = append(out.RawY, fp.Intervals[i].UncorrectableRate)
		}

		// the codewords of a set were counted since the previous set
		if rates, err := stats.Rates(samples); err == nil {
			for i, r := range rates {
				fp.Intervals[i+1].CodewordsPerSecond = r.PerSecond
			}
		}

		fp.CorrectedRate = stats.RatePerInterval(corrected, total)
		fp.UncorrectableRate = stats.RatePerInterval(uncorrectable, total)
		out.Profiles = append(out.Profiles, fp)
	}

	return out, nil
}

func (a *Analyzer) preEqualizer(base Base, p *pnm.PreEqualizer) (*PreEqualizer, error) {
	trace, freq, err := complexTrace(p.Layout, toComplex(a.cfg.PreEqualizer, p.Taps))
	if err != nil {
		return nil, err
	}

	out := &PreEqualizer{Base: base, CMTSMAC: p.CMTSMAC, ComplexTrace: trace}
	out.RawX, out.RawY = freq, trace.MagnitudeDB
	return out, nil
}

func (a *Analyzer) channelEstimate(base Base, p *pnm.ChannelEstimate) (*ChannelEstimate, error) {
	trace, freq, err := complexTrace(p.Layout, toComplex(a.cfg.ChannelEstimate, p.Coefficients))
	if err != nil {
		return nil, err
	}

	out := &ChannelEstimate{Base: base, ComplexTrace: trace}
	out.RawX, out.RawY = freq, trace.MagnitudeDB
	return out, nil
}

func (a *Analyzer) histogram(base Base, p *pnm.Histogram) (*Histogram, error) {
	out := &Histogram{Base: base, Symmetric: p.Symmetric}

	for _, h := range p.HitCounts {
		out.TotalHits += uint64(h)
	}

	out.RawX = stats.Indices(len(p.HitCounts))
	out.RawY = make([]float64, len(p.HitCounts))
	for i, h := range p.HitCounts {
		out.RawY[i] = stats.RatePerInterval(uint64(h), out.TotalHits)
	}
	return out, nil
}

func (a *Analyzer) latency(base Base, p *pnm.LatencyReport) (*Latency, error) {
	out := &Latency{Base: base}

	for _, e := range p.Entries {
		out.RawX = append(out.RawX, float64(e.ServiceFlowID))
		out.RawY = append(out.RawY, float64(e.MeanLatencyUs))
		out.Packets += uint64(e.Packets)
	}

	if len(out.RawY) > 0 {
		var err error
		if out.Summary, err = stats.Summarize(out.RawY); err != nil {
			return nil, err
		}
	}
	return out, nil
}
