package pnm

import (
	"encoding/binary"
	"errors"
	"testing"
)

var testMAC = MustParseMAC("aa:bb:cc:dd:ee:ff")

func appendLayout(b []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, 1_200_000_000)
	b = binary.BigEndian.AppendUint16(b, 148)
	return append(b, 50)
}

func appendComplexes(b []byte, values ...int16) []byte {
	for _, v := range values {
		b = binary.BigEndian.AppendUint16(b, uint16(v))
	}
	return b
}

func latencyEntry(flow uint32) []byte {
	var b []byte
	for _, v := range []uint32{flow, 1_700_000_000, 100, 900, 350, 4_096} {
		b = binary.BigEndian.AppendUint32(b, v)
	}
	return b
}

// validPayloads returns a well formed payload for every file type.
func validPayloads() map[FileType][]byte {
	rxmer := appendLayout(testMAC[:])
	rxmer = binary.BigEndian.AppendUint32(rxmer, 4)
	rxmer = append(rxmer, 160, 164, RxMERExcluded, 170)

	estimate := appendLayout(testMAC[:])
	estimate = binary.BigEndian.AppendUint32(estimate, 8)
	estimate = appendComplexes(estimate, 8192, 0, 0, -8192)

	constellation := binary.BigEndian.AppendUint16(append([]byte{}, testMAC[:]...), 16)
	constellation = binary.BigEndian.AppendUint16(constellation, 2)
	constellation = appendLayout(constellation)
	constellation = appendComplexes(constellation, 2590, 2590, -2590, 7770)

	histogram := append(append([]byte{}, testMAC[:]...), 1)
	histogram = binary.BigEndian.AppendUint32(histogram, 8)
	histogram = binary.BigEndian.AppendUint32(histogram, 10)
	histogram = binary.BigEndian.AppendUint32(histogram, 10)
	histogram = binary.BigEndian.AppendUint32(histogram, 4)
	histogram = binary.BigEndian.AppendUint32(histogram, 77)

	preEq := append(append([]byte{}, testMAC[:]...), 0, 1, 2, 3, 4, 5)
	preEq = appendLayout(preEq)
	preEq = binary.BigEndian.AppendUint32(preEq, 12)
	preEq = appendComplexes(preEq, 10, -3, 16384, 0, 40, 12)

	fec := append(append([]byte{}, testMAC[:]...), 2, 1, 0)
	fec = binary.BigEndian.AppendUint16(fec, 2)
	for _, v := range []uint32{1_700_000_000, 1000, 10, 1, 1_700_000_060, 2000, 20, 0} {
		fec = binary.BigEndian.AppendUint32(fec, v)
	}

	spectrum := append([]byte{}, testMAC[:]...)
	for _, v := range []uint32{100_000_000, 150_000_000, 50_000_000} {
		spectrum = binary.BigEndian.AppendUint32(spectrum, v)
	}
	spectrum = binary.BigEndian.AppendUint16(spectrum, 2)
	spectrum = binary.BigEndian.AppendUint16(spectrum, 110)
	spectrum = binary.BigEndian.AppendUint16(spectrum, 1)
	spectrum = binary.BigEndian.AppendUint32(spectrum, 25_000_000)
	spectrum = binary.BigEndian.AppendUint32(spectrum, 8)
	spectrum = appendComplexes(spectrum, -1050, 320, 415, -12)

	latency := append([]byte{2}, latencyEntry(7)...)
	latency = append(latency, latencyEntry(9)...)

	return map[FileType][]byte{
		FileTypeRxMER:           rxmer,
		FileTypeChannelEstimate: estimate,
		FileTypeConstellation:   constellation,
		FileTypeHistogram:       histogram,
		FileTypePreEqualizer:    preEq,
		FileTypeFECSummary:      fec,
		FileTypeSpectrum:        spectrum,
		FileTypeLatency:         latency,
	}
}

func TestDecodePayload_AllTypes(t *testing.T) {
	payloads := validPayloads()
	if len(payloads) != len(FileTypes()) {
		t.Fatalf("expected a payload fixture for every file type")
	}

	for ft, b := range payloads {
		t.Run(ft.String(), func(t *testing.T) {
			p, warnings, err := DecodePayload(ft, b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if p.FileType() != ft {
				t.Errorf("expected payload variant %s, got %s", ft, p.FileType())
			}
			if len(warnings) != 0 {
				t.Errorf("expected no warnings, got %v", warnings)
			}
			if mac, ok := DeviceMAC(p); ok != (ft != FileTypeLatency) || (ok && mac != testMAC) {
				t.Errorf("unexpected device mac %s (%v)", mac, ok)
			}
		})
	}
}

func TestDecodePayload_Values(t *testing.T) {
	payloads := validPayloads()

	p, _, err := DecodePayload(FileTypeRxMER, payloads[FileTypeRxMER])
	if err != nil {
		t.Fatalf("rxmer: %v", err)
	}
	rxmer := p.(*RxMER)
	if rxmer.CMMAC != testMAC || len(rxmer.Values) != 4 || rxmer.Values[2] != RxMERExcluded {
		t.Errorf("unexpected rxmer payload %+v", rxmer)
	}
	if got := rxmer.Layout.Frequency(2); got != 1_200_000_000+150*50_000 {
		t.Errorf("unexpected subcarrier frequency %f", got)
	}

	p, _, err = DecodePayload(FileTypeConstellation, payloads[FileTypeConstellation])
	if err != nil {
		t.Fatalf("constellation: %v", err)
	}
	constellation := p.(*Constellation)
	if constellation.QAMOrder != 16 || len(constellation.Samples) != 2 {
		t.Fatalf("unexpected constellation payload %+v", constellation)
	}
	if constellation.Samples[1] != (Complex{Real: -2590, Imag: 7770}) {
		t.Errorf("unexpected second sample %+v", constellation.Samples[1])
	}

	p, _, err = DecodePayload(FileTypeFECSummary, payloads[FileTypeFECSummary])
	if err != nil {
		t.Fatalf("fec: %v", err)
	}
	fec := p.(*FECSummary)
	if len(fec.Profiles) != 1 || len(fec.Profiles[0].Sets) != 2 {
		t.Fatalf("unexpected fec payload %+v", fec)
	}
	if s := fec.Profiles[0].Sets[1]; s.Total != 2000 || s.Corrected != 20 || s.Uncorrectable != 0 {
		t.Errorf("unexpected codeword set %+v", s)
	}

	p, _, err = DecodePayload(FileTypeSpectrum, payloads[FileTypeSpectrum])
	if err != nil {
		t.Fatalf("spectrum: %v", err)
	}
	spectrum := p.(*Spectrum)
	if segments := spectrum.Segments(); len(segments) != 2 || segments[1][0] != 415 {
		t.Errorf("unexpected segments %v", segments)
	}
	if got := spectrum.Frequency(3); got != 150_000_000-25_000_000+25_000_000 {
		t.Errorf("unexpected bin frequency %f", got)
	}

	p, _, err = DecodePayload(FileTypePreEqualizer, payloads[FileTypePreEqualizer])
	if err != nil {
		t.Fatalf("pre-equalizer: %v", err)
	}
	preEq := p.(*PreEqualizer)
	if preEq.CMTSMAC != (MAC{0, 1, 2, 3, 4, 5}) || len(preEq.Taps) != 3 || preEq.Taps[1].Real != 16384 {
		t.Errorf("unexpected pre-equalizer payload %+v", preEq)
	}
}

func TestDecodeLatencyReport(t *testing.T) {
	t.Run("exact records", func(t *testing.T) {
		b := append([]byte{2}, latencyEntry(1)...)
		b = append(b, latencyEntry(2)...)

		p, warnings, err := DecodePayload(FileTypeLatency, b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		report := p.(*LatencyReport)
		if len(report.Entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(report.Entries))
		}
		if report.Entries[1].ServiceFlowID != 2 || report.Entries[1].MeanLatencyUs != 350 {
			t.Errorf("unexpected second entry %+v", report.Entries[1])
		}
		if len(warnings) != 0 {
			t.Errorf("expected no warnings, got %v", warnings)
		}
	})

	t.Run("one record short", func(t *testing.T) {
		b := append([]byte{2}, latencyEntry(1)...)

		p, _, err := DecodePayload(FileTypeLatency, b)
		if !errors.Is(err, ErrTruncatedPayload) {
			t.Fatalf("expected ErrTruncatedPayload, got %v", err)
		}
		if p != nil {
			t.Errorf("expected no partial payload")
		}

		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("expected *DecodeError, got %T", err)
		}
		if de.FileType != FileTypeLatency || de.Offset != 1 || de.Need != 2*LatencyEntrySize || de.Have != LatencyEntrySize {
			t.Errorf("unexpected error context %+v", de)
		}
	})

	t.Run("trailing bytes", func(t *testing.T) {
		b := append([]byte{1}, latencyEntry(1)...)
		b = append(b, 0xDE, 0xAD, 0xBE)

		p, warnings, err := DecodePayload(FileTypeLatency, b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(p.(*LatencyReport).Entries) != 1 {
			t.Errorf("expected 1 entry")
		}
		if len(warnings) != 1 {
			t.Fatalf("expected 1 warning, got %d", len(warnings))
		}
		w := warnings[0]
		if w.Kind != WarningTrailingBytes || w.Bytes != 3 || w.Offset != 1+LatencyEntrySize {
			t.Errorf("unexpected warning %+v", w)
		}
	})

	t.Run("zero entries", func(t *testing.T) {
		p, _, err := DecodePayload(FileTypeLatency, []byte{0})
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(p.(*LatencyReport).Entries) != 0 {
			t.Errorf("expected no entries")
		}
	})
}

func TestDecodePayload_EveryPrefixIsTruncated(t *testing.T) {
	for ft, b := range validPayloads() {
		t.Run(ft.String(), func(t *testing.T) {
			for n := 0; n < len(b); n++ {
				p, _, err := DecodePayload(ft, b[:n])
				if !errors.Is(err, ErrTruncatedPayload) {
					t.Fatalf("prefix %d/%d: expected ErrTruncatedPayload, got %v", n, len(b), err)
				}
				if p != nil {
					t.Fatalf("prefix %d/%d: expected no partial payload", n, len(b))
				}
			}
		})
	}
}

func TestDecodePayload_LengthNotMultipleOfElement(t *testing.T) {
	b := appendLayout(testMAC[:])
	b = binary.BigEndian.AppendUint32(b, 6)
	b = appendComplexes(b, 1, 2, 3)

	_, _, err := DecodePayload(FileTypeChannelEstimate, b)
	if !errors.Is(err, ErrTruncatedPayload) {
		t.Fatalf("expected ErrTruncatedPayload, got %v", err)
	}
}

func TestPayloadDecoders_TypeMismatch(t *testing.T) {
	payloads := validPayloads()

	_, _, err := decodeRxMER(FileTypeSpectrum, payloads[FileTypeRxMER])
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *TypeMismatchError, got %v", err)
	}
	if mismatch.Expected != FileTypeRxMER || mismatch.Actual != FileTypeSpectrum {
		t.Errorf("unexpected mismatch %+v", mismatch)
	}
	if !errors.Is(err, ErrPayloadTypeMismatch) {
		t.Errorf("expected error to match ErrPayloadTypeMismatch")
	}

	for ft, decode := range decoders {
		other := FileTypeLatency
		if ft == FileTypeLatency {
			other = FileTypeRxMER
		}
		if _, _, err := decode(other, payloads[ft]); !errors.Is(err, ErrPayloadTypeMismatch) {
			t.Errorf("%s decoder accepted %s: %v", ft, other, err)
		}
	}
}

func TestDecodePayload_UnknownType(t *testing.T) {
	if _, _, err := DecodePayload(FileTypeUnknown, []byte{1, 2, 3}); !errors.Is(err, ErrUnknownFileType) {
		t.Fatalf("expected ErrUnknownFileType, got %v", err)
	}
}

func TestErrorKind(t *testing.T) {
	_, _, err := DecodePayload(FileTypeLatency, []byte{})
	if kind := ErrorKind(err); kind != "truncated_payload" {
		t.Errorf("expected truncated_payload, got %s", kind)
	}
	if kind := ErrorKind(&TypeMismatchError{}); kind != "payload_type_mismatch" {
		t.Errorf("expected payload_type_mismatch, got %s", kind)
	}
	if kind := ErrorKind(nil); kind != "" {
		t.Errorf("expected empty kind, got %s", kind)
	}
}
