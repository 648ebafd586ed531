package pnm

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingObserver struct {
	mu       sync.Mutex
	decoded  map[FileType]int
	warnings int
	failed   []error
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{decoded: make(map[FileType]int)}
}

func (o *recordingObserver) CaptureDecoded(ft FileType, warnings int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decoded[ft]++
	o.warnings += warnings
}

func (o *recordingObserver) DecodeFailed(_ FileType, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, err)
}

func buildCapture(t *testing.T, ft FileType, channel ChannelID, payload []byte) []byte {
	t.Helper()
	raw, err := AppendHeader(nil, CaptureHeader{
		FormatVersion: Version{Major: 1},
		FileType:      ft,
		ChannelID:     channel,
		CaptureTime:   1_700_000_000,
	})
	if err != nil {
		t.Fatalf("building header: %v", err)
	}
	return append(raw, payload...)
}

func TestDecoder_Decode(t *testing.T) {
	observer := newRecordingObserver()
	d := NewDecoder(WithObserver(observer))

	raw := buildCapture(t, FileTypeRxMER, 5, validPayloads()[FileTypeRxMER])
	rec, err := d.Decode(raw, testMAC, "tx-1")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if rec.Header.FileType != FileTypeRxMER || rec.Header.ChannelID != 5 {
		t.Errorf("unexpected header %+v", rec.Header)
	}
	if rec.SourceMAC != testMAC || rec.TransactionID != "tx-1" {
		t.Errorf("unexpected identity %s / %s", rec.SourceMAC, rec.TransactionID)
	}
	if _, ok := rec.Payload.(*RxMER); !ok {
		t.Errorf("expected *RxMER payload, got %T", rec.Payload)
	}
	if observer.decoded[FileTypeRxMER] != 1 {
		t.Errorf("expected observer to see one rxmer capture")
	}
}

func TestDecoder_DecodeDoesNotAliasInput(t *testing.T) {
	raw := buildCapture(t, FileTypeRxMER, 1, validPayloads()[FileTypeRxMER])
	rec, err := NewDecoder().Decode(raw, testMAC, "tx")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	for i := range raw {
		raw[i] = 0
	}
	if rec.Payload.(*RxMER).Values[0] != 160 {
		t.Errorf("decoded values changed with the input buffer")
	}
}

func TestDecoder_DecodeFailures(t *testing.T) {
	testCases := []struct {
		name     string
		raw      []byte
		expected error
	}{
		{"short header", []byte{'P', 'N', 'N'}, ErrMalformedHeader},
		{"unknown tag", append([]byte{'P', 'N', 'N', 0x7F}, 1, 0, 0, 0, 0, 0, 1), ErrUnknownFileType},
		{"truncated body", buildCapture(t, FileTypeLatency, NoChannel, []byte{2}), ErrTruncatedPayload},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			observer := newRecordingObserver()
			d := NewDecoder(WithObserver(observer))

			rec, err := d.Decode(tc.raw, testMAC, "tx")
			if !errors.Is(err, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, err)
			}
			if rec != nil {
				t.Errorf("expected no record on failure")
			}
			if len(observer.failed) != 1 {
				t.Errorf("expected observer to see one failure, got %d", len(observer.failed))
			}
		})
	}
}

func TestDecoder_DecodeAll(t *testing.T) {
	payloads := validPayloads()
	captures := []Capture{
		{Raw: buildCapture(t, FileTypeRxMER, 1, payloads[FileTypeRxMER]), MAC: testMAC, TransactionID: "a"},
		{Raw: []byte("garbage"), MAC: testMAC, TransactionID: "b"},
		{Raw: buildCapture(t, FileTypeSpectrum, NoChannel, payloads[FileTypeSpectrum]), MAC: testMAC, TransactionID: "c"},
		{Raw: buildCapture(t, FileTypeLatency, NoChannel, append(payloads[FileTypeLatency], 0)), MAC: testMAC, TransactionID: "d"},
	}

	observer := newRecordingObserver()
	results := NewDecoder(WithObserver(observer), WithConcurrency(2)).DecodeAll(context.Background(), captures)
	if len(results) != len(captures) {
		t.Fatalf("expected %d results, got %d", len(captures), len(results))
	}

	for i, r := range results {
		if i == 1 {
			if !errors.Is(r.Err, ErrMalformedHeader) || r.Record != nil {
				t.Errorf("result %d: expected isolated header failure, got %+v", i, r)
			}
			continue
		}
		if r.Err != nil {
			t.Fatalf("result %d: %v", i, r.Err)
		}
		if r.Record.TransactionID != captures[i].TransactionID {
			t.Errorf("result %d: results out of order", i)
		}
	}

	if len(results[3].Record.Warnings) != 1 {
		t.Errorf("expected a trailing bytes warning on the latency capture")
	}
	if observer.warnings != 1 || len(observer.failed) != 1 {
		t.Errorf("unexpected observer totals: warnings=%d failed=%d", observer.warnings, len(observer.failed))
	}
}

func TestDecoder_DecodeAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	captures := []Capture{{Raw: buildCapture(t, FileTypeRxMER, 1, validPayloads()[FileTypeRxMER])}}
	results := NewDecoder().DecodeAll(ctx, captures)
	if !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", results[0].Err)
	}
}
