package pnm

import "fmt"

type decodeFunc func(ft FileType, b []byte) (Payload, []Warning, error)

// decoders is the single dispatch table from file type to payload decoder.
// Decoders are independent functions and share no state.
var decoders = map[FileType]decodeFunc{
	FileTypeChannelEstimate: decodeChannelEstimate,
	FileTypeConstellation:   decodeConstellation,
	FileTypeRxMER:           decodeRxMER,
	FileTypeHistogram:       decodeHistogram,
	FileTypePreEqualizer:    decodePreEqualizer,
	FileTypeFECSummary:      decodeFECSummary,
	FileTypeSpectrum:        decodeSpectrum,
	FileTypeLatency:         decodeLatencyReport,
}

// DecodePayload decodes the bytes that follow the header of a capture of type ft.
// The payload must be complete; decoders never operate on transfer chunks.
func DecodePayload(ft FileType, b []byte) (Payload, []Warning, error) {
	decode, ok := decoders[ft]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownFileType, ft)
	}
	return decode(ft, b)
}

func expectType(want, got FileType) error {
	if want != got {
		return &TypeMismatchError{Expected: want, Actual: got}
	}
	return nil
}

func decodeRxMER(ft FileType, b []byte) (Payload, []Warning, error) {
	if err := expectType(FileTypeRxMER, ft); err != nil {
		return nil, nil, err
	}

	c := newCursor(ft, b)
	p := &RxMER{}

	var err error
	if p.CMMAC, err = c.mac("cm mac"); err != nil {
		return nil, nil, err
	}
	if p.Layout, err = c.layout(); err != nil {
		return nil, nil, err
	}

	n, err := c.length("rxmer data", 1)
	if err != nil {
		return nil, nil, err
	}
	if p.Values, err = c.bytes("rxmer data", n); err != nil {
		return nil, nil, err
	}

	return p, c.finish(), nil
}

func decodeChannelEstimate(ft FileType, b []byte) (Payload, []Warning, error) {
	if err := expectType(FileTypeChannelEstimate, ft); err != nil {
		return nil, nil, err
	}

	c := newCursor(ft, b)
	p := &ChannelEstimate{}

	var err error
	if p.CMMAC, err = c.mac("cm mac"); err != nil {
		return nil, nil, err
	}
	if p.Layout, err = c.layout(); err != nil {
		return nil, nil, err
	}

	n, err := c.length("coefficients", 4)
	if err != nil {
		return nil, nil, err
	}
	if p.Coefficients, err = c.complexes("coefficients", n); err != nil {
		return nil, nil, err
	}

	return p, c.finish(), nil
}

func decodeConstellation(ft FileType, b []byte) (Payload, []Warning, error) {
	if err := expectType(FileTypeConstellation, ft); err != nil {
		return nil, nil, err
	}

	c := newCursor(ft, b)
	p := &Constellation{}

	var err error
	if p.CMMAC, err = c.mac("cm mac"); err != nil {
		return nil, nil, err
	}
	if p.QAMOrder, err = c.u16("qam order"); err != nil {
		return nil, nil, err
	}

	count, err := c.u16("sample count")
	if err != nil {
		return nil, nil, err
	}
	if p.Layout, err = c.layout(); err != nil {
		return nil, nil, err
	}
	if p.Samples, err = c.complexes("samples", int(count)); err != nil {
		return nil, nil, err
	}

	return p, c.finish(), nil
}

func decodeHistogram(ft FileType, b []byte) (Payload, []Warning, error) {
	if err := expectType(FileTypeHistogram, ft); err != nil {
		return nil, nil, err
	}

	c := newCursor(ft, b)
	p := &Histogram{}

	var err error
	if p.CMMAC, err = c.mac("cm mac"); err != nil {
		return nil, nil, err
	}

	symmetry, err := c.u8("symmetry")
	if err != nil {
		return nil, nil, err
	}
	p.Symmetric = symmetry != 0

	n, err := c.length("dwell counts", 4)
	if err != nil {
		return nil, nil, err
	}
	if p.DwellCounts, err = c.u32s("dwell counts", n); err != nil {
		return nil, nil, err
	}

	if n, err = c.length("hit counts", 4); err != nil {
		return nil, nil, err
	}
	if p.HitCounts, err = c.u32s("hit counts", n); err != nil {
		return nil, nil, err
	}

	return p, c.finish(), nil
}

func decodePreEqualizer(ft FileType, b []byte) (Payload, []Warning, error) {
	if err := expectType(FileTypePreEqualizer, ft); err != nil {
		return nil, nil, err
	}

	c := newCursor(ft, b)
	p := &PreEqualizer{}

	var err error
	if p.CMMAC, err = c.mac("cm mac"); err != nil {
		return nil, nil, err
	}
	if p.CMTSMAC, err = c.mac("cmts mac"); err != nil {
		return nil, nil, err
	}
	if p.Layout, err = c.layout(); err != nil {
		return nil, nil, err
	}

	n, err := c.length("taps", 4)
	if err != nil {
		return nil, nil, err
	}
	if p.Taps, err = c.complexes("taps", n); err != nil {
		return nil, nil, err
	}

	return p, c.finish(), nil
}

const codewordSetSize = 16

func decodeFECSummary(ft FileType, b []byte) (Payload, []Warning, error) {
	if err := expectType(FileTypeFECSummary, ft); err != nil {
		return nil, nil, err
	}

	c := newCursor(ft, b)
	p := &FECSummary{}

	var err error
	if p.CMMAC, err = c.mac("cm mac"); err != nil {
		return nil, nil, err
	}
	if p.SummaryType, err = c.u8("summary type"); err != nil {
		return nil, nil, err
	}

	profiles, err := c.u8("profile count")
	if err != nil {
		return nil, nil, err
	}

	p.Profiles = make([]FECProfile, 0, profiles)
	for i := 0; i < int(profiles); i++ {
		var profile FECProfile
		if profile.ProfileID, err = c.u8("profile id"); err != nil {
			return nil, nil, err
		}

		sets, err := c.u16("codeword set count")
		if err != nil {
			return nil, nil, err
		}
		if err = c.need("codeword sets", int(sets)*codewordSetSize); err != nil {
			return nil, nil, err
		}

		profile.Sets = make([]CodewordSet, sets)
		for j := range profile.Sets {
			s := &profile.Sets[j]
			// length was checked above; these reads cannot fail
			s.Timestamp, _ = c.u32("timestamp")
			s.Total, _ = c.u32("total codewords")
			s.Corrected, _ = c.u32("corrected codewords")
			s.Uncorrectable, _ = c.u32("uncorrectable codewords")
		}
		p.Profiles = append(p.Profiles, profile)
	}

	return p, c.finish(), nil
}

func decodeSpectrum(ft FileType, b []byte) (Payload, []Warning, error) {
	if err := expectType(FileTypeSpectrum, ft); err != nil {
		return nil, nil, err
	}

	c := newCursor(ft, b)
	p := &Spectrum{}

	var err error
	if p.CMMAC, err = c.mac("cm mac"); err != nil {
		return nil, nil, err
	}
	if p.FirstSegmentCenter, err = c.u32("first segment center frequency"); err != nil {
		return nil, nil, err
	}
	if p.LastSegmentCenter, err = c.u32("last segment center frequency"); err != nil {
		return nil, nil, err
	}
	if p.SegmentSpan, err = c.u32("segment span"); err != nil {
		return nil, nil, err
	}
	if p.BinsPerSegment, err = c.u16("bins per segment"); err != nil {
		return nil, nil, err
	}
	if p.EquivalentNoiseBandwidth, err = c.u16("equivalent noise bandwidth"); err != nil {
		return nil, nil, err
	}
	if p.WindowFunction, err = c.u16("window function"); err != nil {
		return nil, nil, err
	}
	if p.BinSpacing, err = c.u32("bin spacing"); err != nil {
		return nil, nil, err
	}

	n, err := c.length("amplitudes", 2)
	if err != nil {
		return nil, nil, err
	}
	p.Amplitudes = make([]int16, n)
	for i := range p.Amplitudes {
		if p.Amplitudes[i], err = c.i16("amplitude"); err != nil {
			return nil, nil, err
		}
	}

	return p, c.finish(), nil
}

func decodeLatencyReport(ft FileType, b []byte) (Payload, []Warning, error) {
	if err := expectType(FileTypeLatency, ft); err != nil {
		return nil, nil, err
	}

	c := newCursor(ft, b)

	n, err := c.u8("entry count")
	if err != nil {
		return nil, nil, err
	}
	if err = c.need("latency entries", int(n)*LatencyEntrySize); err != nil {
		return nil, nil, err
	}

	p := &LatencyReport{Entries: make([]LatencySummaryEntry, n)}
	for i := range p.Entries {
		e := &p.Entries[i]
		e.ServiceFlowID, _ = c.u32("service flow id")
		e.MeasuredAt, _ = c.u32("measured at")
		e.MinLatencyUs, _ = c.u32("min latency")
		e.MaxLatencyUs, _ = c.u32("max latency")
		e.MeanLatencyUs, _ = c.u32("mean latency")
		e.Packets, _ = c.u32("packets")
	}

	return p, c.finish(), nil
}
