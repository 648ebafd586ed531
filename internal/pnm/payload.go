package pnm

import "fmt"

// Payload is the decoded body of a capture. The set of implementations is
// closed to this package; the active variant is selected only by the header's
// file type.
type Payload interface {
	FileType() FileType
	isPayload()
}

// SubcarrierLayout places OFDM subcarrier values on the frequency axis.
type SubcarrierLayout struct {
	ZeroFrequency    uint32 `json:"zeroFrequency"`    // Hz
	FirstActiveIndex uint16 `json:"firstActiveIndex"` // index of the first value in the payload
	SpacingKHz       uint8  `json:"spacingKHz"`       // 25 or 50 kHz
}

// Frequency returns the center frequency in Hz of the i-th value of the payload.
func (l SubcarrierLayout) Frequency(i int) float64 {
	return float64(l.ZeroFrequency) + float64(int(l.FirstActiveIndex)+i)*float64(l.SpacingKHz)*1e3
}

// Complex is a raw fixed-point complex value. Scaling to real units is left to
// the analysis, which knows the format (s2.13, s1.14).
type Complex struct {
	Real int16 `json:"re"`
	Imag int16 `json:"im"`
}

// RxMERExcluded marks a subcarrier that carries no MER measurement.
const RxMERExcluded = 0xFF

// RxMER is a per-subcarrier receive modulation error ratio capture. Values
// are in quarter dB.
type RxMER struct {
	CMMAC  MAC              `json:"cmMac"`
	Layout SubcarrierLayout `json:"layout"`
	Values []uint8          `json:"values"`
}

// ChannelEstimate holds the downstream OFDM channel estimate coefficients.
type ChannelEstimate struct {
	CMMAC        MAC              `json:"cmMac"`
	Layout       SubcarrierLayout `json:"layout"`
	Coefficients []Complex        `json:"coefficients"`
}

// Constellation holds soft-decision samples of a downstream constellation display.
type Constellation struct {
	CMMAC    MAC              `json:"cmMac"`
	QAMOrder uint16           `json:"qamOrder"` // as reported by the modem, not validated here
	Layout   SubcarrierLayout `json:"layout"`
	Samples  []Complex        `json:"samples"`
}

// Histogram is the downstream amplitude histogram.
type Histogram struct {
	CMMAC       MAC      `json:"cmMac"`
	Symmetric   bool     `json:"symmetric"`
	DwellCounts []uint32 `json:"dwellCounts"`
	HitCounts   []uint32 `json:"hitCounts"`
}

// PreEqualizer holds upstream pre-equalizer taps.
type PreEqualizer struct {
	CMMAC   MAC              `json:"cmMac"`
	CMTSMAC MAC              `json:"cmtsMac"`
	Layout  SubcarrierLayout `json:"layout"`
	Taps    []Complex        `json:"taps"`
}

// CodewordSet is one interval of OFDM FEC codeword counters.
type CodewordSet struct {
	Timestamp     uint32 `json:"timestamp"` // Unix epoch seconds
	Total         uint32 `json:"total"`
	Corrected     uint32 `json:"corrected"`
	Uncorrectable uint32 `json:"uncorrectable"`
}

type FECProfile struct {
	ProfileID uint8         `json:"profileId"`
	Sets      []CodewordSet `json:"sets"`
}

// FECSummary is the codeword error summary of an OFDM channel, per modulation profile.
type FECSummary struct {
	CMMAC       MAC          `json:"cmMac"`
	SummaryType uint8        `json:"summaryType"`
	Profiles    []FECProfile `json:"profiles"`
}

// Spectrum is a segmented spectrum analyzer sweep. Amplitudes are in hundredths of dBmV.
type Spectrum struct {
	CMMAC                    MAC     `json:"cmMac"`
	FirstSegmentCenter       uint32  `json:"firstSegmentCenter"` // Hz
	LastSegmentCenter        uint32  `json:"lastSegmentCenter"`  // Hz
	SegmentSpan              uint32  `json:"segmentSpan"`        // Hz
	BinsPerSegment           uint16  `json:"binsPerSegment"`
	EquivalentNoiseBandwidth uint16  `json:"equivalentNoiseBandwidth"`
	WindowFunction           uint16  `json:"windowFunction"`
	BinSpacing               uint32  `json:"binSpacing"` // Hz
	Amplitudes               []int16 `json:"amplitudes"`
}

// Segments splits the amplitudes by segment. A sweep without a bin count is a single segment.
func (s *Spectrum) Segments() [][]int16 {
	n := int(s.BinsPerSegment)
	if n == 0 || n >= len(s.Amplitudes) {
		return [][]int16{s.Amplitudes}
	}
	out := make([][]int16, 0, (len(s.Amplitudes)+n-1)/n)
	for start := 0; start < len(s.Amplitudes); start += n {
		out = append(out, s.Amplitudes[start:min(start+n, len(s.Amplitudes))])
	}
	return out
}

// Frequency returns the frequency in Hz of the i-th amplitude.
func (s *Spectrum) Frequency(i int) float64 {
	n := int(s.BinsPerSegment)
	if n == 0 {
		n = len(s.Amplitudes)
	}
	if n == 0 {
		return float64(s.FirstSegmentCenter)
	}
	segment, bin := i/n, i%n
	center := float64(s.FirstSegmentCenter) + float64(segment)*float64(s.SegmentSpan)
	return center - float64(s.SegmentSpan)/2 + float64(bin)*float64(s.BinSpacing)
}

// LatencyEntrySize is the wire width of one LatencySummaryEntry.
const LatencyEntrySize = 24

// LatencySummaryEntry is one fixed-width record of a latency report.
type LatencySummaryEntry struct {
	ServiceFlowID uint32 `json:"serviceFlowId"`
	MeasuredAt    uint32 `json:"measuredAt"` // Unix epoch seconds
	MinLatencyUs  uint32 `json:"minLatencyUs"`
	MaxLatencyUs  uint32 `json:"maxLatencyUs"`
	MeanLatencyUs uint32 `json:"meanLatencyUs"`
	Packets       uint32 `json:"packets"`
}

type LatencyReport struct {
	Entries []LatencySummaryEntry `json:"entries"`
}

func (*RxMER) FileType() FileType           { return FileTypeRxMER }
func (*ChannelEstimate) FileType() FileType { return FileTypeChannelEstimate }
func (*Constellation) FileType() FileType   { return FileTypeConstellation }
func (*Histogram) FileType() FileType       { return FileTypeHistogram }
func (*PreEqualizer) FileType() FileType    { return FileTypePreEqualizer }
func (*FECSummary) FileType() FileType      { return FileTypeFECSummary }
func (*Spectrum) FileType() FileType        { return FileTypeSpectrum }
func (*LatencyReport) FileType() FileType   { return FileTypeLatency }

// DeviceMAC returns the cable modem MAC a payload carries. Latency reports carry none.
func DeviceMAC(p Payload) (MAC, bool) {
	switch v := p.(type) {
	case *RxMER:
		return v.CMMAC, true
	case *ChannelEstimate:
		return v.CMMAC, true
	case *Constellation:
		return v.CMMAC, true
	case *Histogram:
		return v.CMMAC, true
	case *PreEqualizer:
		return v.CMMAC, true
	case *FECSummary:
		return v.CMMAC, true
	case *Spectrum:
		return v.CMMAC, true
	default:
		return MAC{}, false
	}
}

func (*RxMER) isPayload()           {}
func (*ChannelEstimate) isPayload() {}
func (*Constellation) isPayload()   {}
func (*Histogram) isPayload()       {}
func (*PreEqualizer) isPayload()    {}
func (*FECSummary) isPayload()      {}
func (*Spectrum) isPayload()        {}
func (*LatencyReport) isPayload()   {}

// WarningKind classifies recoverable anomalies found while decoding.
type WarningKind uint8

const (
	WarningTrailingBytes WarningKind = iota + 1
)

func (k WarningKind) String() string {
	switch k {
	case WarningTrailingBytes:
		return "trailing-bytes"
	default:
		return fmt.Sprintf("warning(%d)", uint8(k))
	}
}

// Warning is reported alongside a successfully decoded payload.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	FileType FileType    `json:"fileType"`
	Offset   int         `json:"offset"`
	Bytes    int         `json:"bytes"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %d bytes at offset %d", w.FileType, w.Kind, w.Bytes, w.Offset)
}
