// Package synth builds well-formed capture files from known inputs. The
// constellation builder draws its symbols from a PRBS, so a capture can be
// regenerated from its seed and the decoded samples checked against the
// codewords that produced them.
package synth

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roman-kulish/docsis-pnm/internal/pnm"
)

const (
	s2_13 = 1 << 13
	s1_14 = 1 << 14
)

// fixed converts v to a signed fixed-point value with the given scale, saturating at the int16 range.
func fixed(v, scale float64) int16 {
	return int16(max(math.MinInt16, min(math.MaxInt16, math.Round(v*scale))))
}

func header(h pnm.CaptureHeader, ft pnm.FileType, size int) ([]byte, error) {
	h.FileType = ft
	b, err := pnm.AppendHeader(make([]byte, 0, pnm.HeaderSize+size), h)
	if err != nil {
		return nil, fmt.Errorf("encoding header: %w", err)
	}
	return b, nil
}

func appendLayout(b []byte, l pnm.SubcarrierLayout) []byte {
	b = binary.BigEndian.AppendUint32(b, l.ZeroFrequency)
	b = binary.BigEndian.AppendUint16(b, l.FirstActiveIndex)
	return append(b, l.SpacingKHz)
}

func appendComplex(b []byte, re, im int16) []byte {
	b = binary.BigEndian.AppendUint16(b, uint16(re))
	return binary.BigEndian.AppendUint16(b, uint16(im))
}

// RxMER builds an RxMER capture from per-subcarrier MER in dB. NaN marks an
// excluded subcarrier; other values are clamped to the quarter dB range of a byte.
func RxMER(h pnm.CaptureHeader, mac pnm.MAC, layout pnm.SubcarrierLayout, merDB []float64) ([]byte, error) {
	b, err := header(h, pnm.FileTypeRxMER, 6+7+4+len(merDB))
	if err != nil {
		return nil, err
	}

	b = append(b, mac[:]...)
	b = appendLayout(b, layout)
	b = binary.BigEndian.AppendUint32(b, uint32(len(merDB)))
	for _, v := range merDB {
		if math.IsNaN(v) {
			b = append(b, pnm.RxMERExcluded)
			continue
		}
		b = append(b, uint8(max(0, min(pnm.RxMERExcluded-1, math.Round(v*4)))))
	}
	return b, nil
}

// Spectrum builds a spectrum analyzer capture. Amplitudes are in dBmV.
func Spectrum(h pnm.CaptureHeader, mac pnm.MAC, sweep pnm.Spectrum, amplitudesDBmV []float64) ([]byte, error) {
	b, err := header(h, pnm.FileTypeSpectrum, 6+24+4+2*len(amplitudesDBmV))
	if err != nil {
		return nil, err
	}

	b = append(b, mac[:]...)
	b = binary.BigEndian.AppendUint32(b, sweep.FirstSegmentCenter)
	b = binary.BigEndian.AppendUint32(b, sweep.LastSegmentCenter)
	b = binary.BigEndian.AppendUint32(b, sweep.SegmentSpan)
	b = binary.BigEndian.AppendUint16(b, sweep.BinsPerSegment)
	b = binary.BigEndian.AppendUint16(b, sweep.EquivalentNoiseBandwidth)
	b = binary.BigEndian.AppendUint16(b, sweep.WindowFunction)
	b = binary.BigEndian.AppendUint32(b, sweep.BinSpacing)
	b = binary.BigEndian.AppendUint32(b, uint32(2*len(amplitudesDBmV)))
	for _, v := range amplitudesDBmV {
		b = binary.BigEndian.AppendUint16(b, uint16(fixed(v, 100)))
	}
	return b, nil
}

// PreEqualizer builds an upstream pre-equalizer capture from real-valued taps.
func PreEqualizer(h pnm.CaptureHeader, cm, cmts pnm.MAC, layout pnm.SubcarrierLayout, taps []complex128) ([]byte, error) {
	b, err := header(h, pnm.FileTypePreEqualizer, 12+7+4+4*len(taps))
	if err != nil {
		return nil, err
	}

	b = append(b, cm[:]...)
	b = append(b, cmts[:]...)
	b = appendLayout(b, layout)
	b = binary.BigEndian.AppendUint32(b, uint32(4*len(taps)))
	for _, t := range taps {
		b = appendComplex(b, fixed(real(t), s1_14), fixed(imag(t), s1_14))
	}
	return b, nil
}

// FECSummary builds a codeword error summary capture.
func FECSummary(h pnm.CaptureHeader, mac pnm.MAC, summaryType uint8, profiles []pnm.FECProfile) ([]byte, error) {
	if len(profiles) > math.MaxUint8 {
		return nil, fmt.Errorf("%d profiles do not fit a summary", len(profiles))
	}

	b, err := header(h, pnm.FileTypeFECSummary, 8)
	if err != nil {
		return nil, err
	}

	b = append(b, mac[:]...)
	b = append(b, summaryType, uint8(len(profiles)))
	for _, p := range profiles {
		if len(p.Sets) > math.MaxUint16 {
			return nil, fmt.Errorf("profile %d: %d codeword sets do not fit a summary", p.ProfileID, len(p.Sets))
		}
		b = append(b, p.ProfileID)
		b = binary.BigEndian.AppendUint16(b, uint16(len(p.Sets)))
		for _, s := range p.Sets {
			b = binary.BigEndian.AppendUint32(b, s.Timestamp)
			b = binary.BigEndian.AppendUint32(b, s.Total)
			b = binary.BigEndian.AppendUint32(b, s.Corrected)
			b = binary.BigEndian.AppendUint32(b, s.Uncorrectable)
		}
	}
	return b, nil
}

// Latency builds a latency report capture.
func Latency(h pnm.CaptureHeader, entries []pnm.LatencySummaryEntry) ([]byte, error) {
	if len(entries) > math.MaxUint8 {
		return nil, fmt.Errorf("%d entries do not fit a latency report", len(entries))
	}

	b, err := header(h, pnm.FileTypeLatency, 1+len(entries)*pnm.LatencyEntrySize)
	if err != nil {
		return nil, err
	}

	b = append(b, uint8(len(entries)))
	for _, e := range entries {
		b = binary.BigEndian.AppendUint32(b, e.ServiceFlowID)
		b = binary.BigEndian.AppendUint32(b, e.MeasuredAt)
		b = binary.BigEndian.AppendUint32(b, e.MinLatencyUs)
		b = binary.BigEndian.AppendUint32(b, e.MaxLatencyUs)
		b = binary.BigEndian.AppendUint32(b, e.MeanLatencyUs)
		b = binary.BigEndian.AppendUint32(b, e.Packets)
	}
	return b, nil
}
