// Package analysis derives per-channel statistics from decoded captures.
package analysis

import (
	"time"

	"github.com/roman-kulish/docsis-pnm/internal/modulation"
	"github.com/roman-kulish/docsis-pnm/internal/pnm"
	"github.com/roman-kulish/docsis-pnm/internal/stats"
)

// Analysis is the result of analyzing one capture. The set of implementations
// mirrors the payload variants of the pnm package.
type Analysis interface {
	FileType() pnm.FileType
	Channel() pnm.ChannelID
	Info() *Base
	isAnalysis()
}

// Base holds the identity of the analyzed capture and the raw series the
// statistics were computed from.
type Base struct {
	ChannelID     pnm.ChannelID `json:"channelId"`
	MAC           pnm.MAC       `json:"mac"`
	TransactionID string        `json:"transactionId"`
	CaptureTime   time.Time     `json:"captureTime"`
	RawX          []float64     `json:"rawX"`
	RawY          []float64     `json:"rawY"`
}

func (b *Base) Channel() pnm.ChannelID {
	return b.ChannelID
}

// Info returns the identity and raw series shared by every analysis.
func (b *Base) Info() *Base {
	return b
}

// RxMER is the per-subcarrier MER profile. RawX is the subcarrier frequency in
// Hz, RawY the MER in dB. Excluded subcarriers are left out of both.
type RxMER struct {
	Base
	Summary  stats.Summary `json:"summary"`
	Fit      stats.Fit     `json:"fit"` // dB per MHz
	Smoothed []float64     `json:"smoothed,omitempty"`
	Excluded int           `json:"excluded"`
}

// Spectrum is a spectrum analyzer trace. RawX is the bin frequency in Hz, RawY
// the amplitude in dBmV.
type Spectrum struct {
	Base
	Summary  stats.Summary `json:"summary"`
	Bounds   PowerBounds   `json:"bounds"`
	Smoothed []float64     `json:"smoothed,omitempty"`
	Segments int           `json:"segments"`
}

// Constellation classifies soft decisions against the reference grid. RawX and
// RawY are the I and Q components of the samples.
type Constellation struct {
	Base
	Order        modulation.Order `json:"order"`
	MER          float64          `json:"mer"` // dB
	SymbolCounts []int            `json:"symbolCounts"`
}

// FECInterval is one codeword set with its derived rates.
type FECInterval struct {
	Start              time.Time `json:"start"`
	Total              uint32    `json:"total"`
	Corrected          uint32    `json:"corrected"`
	Uncorrectable      uint32    `json:"uncorrectable"`
	CorrectedRate      float64   `json:"correctedRate"`
	UncorrectableRate  float64   `json:"uncorrectableRate"`
	CodewordsPerSecond float64   `json:"codewordsPerSecond"` // 0 for the first interval
}

type FECProfile struct {
	ProfileID         uint8         `json:"profileId"`
	Intervals         []FECInterval `json:"intervals"`
	CorrectedRate     float64       `json:"correctedRate"`
	UncorrectableRate float64       `json:"uncorrectableRate"`
}

// FEC holds codeword error rates per profile. RawX is the interval start in
// Unix seconds, RawY the uncorrectable rate, across all profiles.
type FEC struct {
	Base
	Profiles []FECProfile `json:"profiles"`
}

// ComplexTrace describes a set of per-subcarrier complex coefficients.
type ComplexTrace struct {
	MagnitudeDB []float64 `json:"magnitudeDb"`
	Phase       []float64 `json:"phase"` // unwrapped, radians
	PhaseFit    stats.Fit `json:"phaseFit"`
	GroupDelay  float64   `json:"groupDelay"` // seconds
	Ripple      float64   `json:"ripple"`     // peak to peak magnitude, dB
}

// PreEqualizer analyzes upstream pre-equalizer taps. RawX is the subcarrier
// frequency in Hz, RawY the magnitude in dB.
type PreEqualizer struct {
	Base
	CMTSMAC pnm.MAC `json:"cmtsMac"`
	ComplexTrace
}

// ChannelEstimate analyzes downstream channel estimate coefficients. RawX is
// the subcarrier frequency in Hz, RawY the magnitude in dB.
type ChannelEstimate struct {
	Base
	ComplexTrace
}

// Histogram normalizes hit counts. RawX is the bin index, RawY the share of all hits.
type Histogram struct {
	Base
	Symmetric bool   `json:"symmetric"`
	TotalHits uint64 `json:"totalHits"`
}

// Latency holds per service flow latency. RawX is the service flow id, RawY
// the mean latency in microseconds.
type Latency struct {
	Base
	Summary stats.Summary `json:"summary"`
	Packets uint64        `json:"packets"`
}

func (*RxMER) FileType() pnm.FileType           { return pnm.FileTypeRxMER }
func (*Spectrum) FileType() pnm.FileType        { return pnm.FileTypeSpectrum }
func (*Constellation) FileType() pnm.FileType   { return pnm.FileTypeConstellation }
func (*FEC) FileType() pnm.FileType             { return pnm.FileTypeFECSummary }
func (*PreEqualizer) FileType() pnm.FileType    { return pnm.FileTypePreEqualizer }
func (*ChannelEstimate) FileType() pnm.FileType { return pnm.FileTypeChannelEstimate }
func (*Histogram) FileType() pnm.FileType       { return pnm.FileTypeHistogram }
func (*Latency) FileType() pnm.FileType         { return pnm.FileTypeLatency }

func (*RxMER) isAnalysis()           {}
func (*Spectrum) isAnalysis()        {}
func (*Constellation) isAnalysis()   {}
func (*FEC) isAnalysis()             {}
func (*PreEqualizer) isAnalysis()    {}
func (*ChannelEstimate) isAnalysis() {}
func (*Histogram) isAnalysis()       {}
func (*Latency) isAnalysis()         {}
