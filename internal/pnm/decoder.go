package pnm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// CaptureRecord is one fully decoded capture. It is never mutated after Decode returns it.
type CaptureRecord struct {
	Header        CaptureHeader `json:"header"`
	Payload       Payload       `json:"payload"`
	SourceMAC     MAC           `json:"sourceMac"`
	TransactionID string        `json:"transactionId"`
	Warnings      []Warning     `json:"warnings,omitempty"`
}

// Observer is notified of every decode outcome.
type Observer interface {
	CaptureDecoded(ft FileType, warnings int)
	DecodeFailed(ft FileType, err error)
}

type nopObserver struct{}

func (nopObserver) CaptureDecoded(FileType, int)  {}
func (nopObserver) DecodeFailed(FileType, error) {}

// WithLogger sets the logger for the decoder
func WithLogger(logger *slog.Logger) func(d *Decoder) {
	return func(d *Decoder) {
		d.logger = logger.With(slog.String("component", "pnm-decoder"))
	}
}

// WithObserver sets the observer that receives decode outcomes
func WithObserver(o Observer) func(d *Decoder) {
	return func(d *Decoder) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithConcurrency limits the number of captures DecodeAll decodes at once
func WithConcurrency(n int) func(d *Decoder) {
	return func(d *Decoder) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// Decoder turns raw capture buffers into CaptureRecords. It holds no per-capture
// state and is safe for concurrent use.
type Decoder struct {
	logger      *slog.Logger
	observer    Observer
	concurrency int
}

// NewDecoder creates a new Decoder with a discard logger
func NewDecoder(options ...func(d *Decoder)) *Decoder {
	d := Decoder{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:    nopObserver{},
		concurrency: runtime.GOMAXPROCS(0),
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Decode parses the header and the payload of a single capture. On failure no
// partial record is returned.
func (d *Decoder) Decode(raw []byte, mac MAC, transactionID string) (*CaptureRecord, error) {
	header, body, err := DecodeHeader(raw)
	if err != nil {
		d.observer.DecodeFailed(FileTypeUnknown, err)
		return nil, fmt.Errorf("decoding header: %w", err)
	}

	payload, warnings, err := DecodePayload(header.FileType, body)
	if err != nil {
		d.observer.DecodeFailed(header.FileType, err)
		return nil, fmt.Errorf("decoding %s payload: %w", header.FileType, err)
	}

	for _, w := range warnings {
		d.logger.Warn("capture decoded with anomaly",
			slog.String("kind", w.Kind.String()),
			slog.String("fileType", w.FileType.String()),
			slog.Int("offset", HeaderSize+w.Offset),
			slog.Int("bytes", w.Bytes),
			slog.String("transactionId", transactionID),
		)
	}

	d.logger.Debug("capture decoded",
		slog.String("fileType", header.FileType.String()),
		slog.String("version", header.FormatVersion.String()),
		slog.String("channel", header.ChannelID.String()),
		slog.String("size", humanize.Bytes(uint64(len(raw)))),
		slog.String("mac", mac.String()),
	)
	d.observer.CaptureDecoded(header.FileType, len(warnings))

	return &CaptureRecord{
		Header:        header,
		Payload:       payload,
		SourceMAC:     mac,
		TransactionID: transactionID,
		Warnings:      warnings,
	}, nil
}

// Capture is a raw capture buffer together with the identity supplied by the
// orchestration layer that requested it.
type Capture struct {
	Raw           []byte
	MAC           MAC
	TransactionID string
}

// Result is the outcome of decoding one Capture. Exactly one of Record and Err is set.
type Result struct {
	Record *CaptureRecord
	Err    error
}

// DecodeAll decodes independent captures in parallel. Failures are isolated:
// one corrupt capture never affects the results of the others. Captures not yet
// started when ctx is done fail with the context error.
func (d *Decoder) DecodeAll(ctx context.Context, captures []Capture) []Result {
	results := make([]Result, len(captures))

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, c := range captures {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i].Record, results[i].Err = d.Decode(c.Raw, c.MAC, c.TransactionID)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
