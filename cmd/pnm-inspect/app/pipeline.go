package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/roman-kulish/docsis-pnm/internal/analysis"
	"github.com/roman-kulish/docsis-pnm/internal/index"
	"github.com/roman-kulish/docsis-pnm/internal/pnm"
	"github.com/roman-kulish/docsis-pnm/internal/storage"
)

const maxBatchSize = 100

// AnalysisObserver is notified of the time spent analyzing every capture.
type AnalysisObserver interface {
	ObserveAnalysis(ft pnm.FileType, seconds float64)
}

// WithMaxBatchSize sets the maximum number of entries handed to a sink at once.
func WithMaxBatchSize(size int) func(*Pipeline) {
	return func(p *Pipeline) {
		if size > 0 {
			p.maxBatchSize = size
		}
	}
}

// WithSink persists every catalogued capture. Sinks are written in the order
// they were added.
func WithSink(sink storage.Sink) func(*Pipeline) {
	return func(p *Pipeline) {
		p.sinks = append(p.sinks, sink)
	}
}

// WithMetrics sets the observer of analysis durations
func WithMetrics(o AnalysisObserver) func(*Pipeline) {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// WithMAC catalogues every capture under mac instead of the MAC the capture carries.
func WithMAC(mac pnm.MAC) func(*Pipeline) {
	return func(p *Pipeline) {
		p.mac = mac
	}
}

// WithDevice attaches device details to every catalogued capture.
func WithDevice(d index.DeviceDetails) func(*Pipeline) {
	return func(p *Pipeline) {
		p.device = d
	}
}

// Summary is the outcome of a pipeline run.
type Summary struct {
	Files    int
	Decoded  int
	Failed   int
	Warnings int
	Stored   int
	Bytes    uint64
	Analyses *analysis.MultiAnalysis
}

// Pipeline decodes capture files, analyzes the decoded records and catalogues
// them in the index, optionally persisting the catalogued entries.
type Pipeline struct {
	decoder  *pnm.Decoder
	analyzer *analysis.Analyzer
	index    *index.Index

	logger   *slog.Logger
	sinks    []storage.Sink
	observer AnalysisObserver
	mac      pnm.MAC
	device   index.DeviceDetails

	maxBatchSize int
}

// NewPipeline creates a new Pipeline
func NewPipeline(decoder *pnm.Decoder, analyzer *analysis.Analyzer, ix *index.Index, logger *slog.Logger, options ...func(*Pipeline)) *Pipeline {
	p := Pipeline{
		decoder:      decoder,
		analyzer:     analyzer,
		index:        ix,
		logger:       logger,
		maxBatchSize: maxBatchSize,
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

type source struct {
	path string
	raw  []byte
}

// Run processes files. A file that cannot be read, decoded or analyzed is
// logged and counted as failed; it does not stop the run.
func (p *Pipeline) Run(ctx context.Context, files []string) (*Summary, error) {
	s := Summary{Files: len(files), Analyses: &analysis.MultiAnalysis{}}

	sources := make([]source, 0, len(files))
	captures := make([]pnm.Capture, 0, len(files))
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			p.logger.Error("reading capture", slog.String("path", path), slog.String("error", err.Error()))
			s.Failed++
			continue
		}
		s.Bytes += uint64(len(raw))
		sources = append(sources, source{path: path, raw: raw})
		captures = append(captures, pnm.Capture{Raw: raw, MAC: p.mac, TransactionID: index.NewTransactionID()})
	}

	results := p.decoder.DecodeAll(ctx, captures)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]index.Entry, 0, len(results))
	for i, r := range results {
		src := sources[i]
		if r.Err != nil {
			p.logger.Error("decoding capture", slog.String("path", src.path), slog.String("error", r.Err.Error()))
			s.Failed++
			continue
		}

		rec := p.resolveMAC(r.Record)
		s.Decoded++
		s.Warnings += len(rec.Warnings)

		started := time.Now()
		result, err := p.analyzer.Analyze(rec)
		if p.observer != nil {
			p.observer.ObserveAnalysis(rec.Header.FileType, time.Since(started).Seconds())
		}
		if err != nil {
			p.logger.Warn("analyzing capture", slog.String("path", src.path), slog.String("error", err.Error()))
		} else {
			s.Analyses.Add(result)
		}

		e := index.EntryFromRecord(rec, filepath.Base(src.path), src.raw, p.device)
		if err = p.index.Insert(e); err != nil {
			return nil, fmt.Errorf("indexing %s: %w", src.path, err)
		}
		entries = append(entries, e)
	}

	if len(p.sinks) > 0 {
		for chunk := range slices.Chunk(entries, p.maxBatchSize) {
			for _, sink := range p.sinks {
				if err := sink.SaveEntries(ctx, chunk...); err != nil {
					return nil, fmt.Errorf("storing captures: %w", err)
				}
			}
			s.Stored += len(chunk)
		}
	}

	return &s, nil
}

// resolveMAC falls back to the MAC carried by the payload when the capture was
// not requested for a specific device.
func (p *Pipeline) resolveMAC(rec *pnm.CaptureRecord) *pnm.CaptureRecord {
	if !rec.SourceMAC.IsZero() {
		return rec
	}
	mac, ok := pnm.DeviceMAC(rec.Payload)
	if !ok {
		return rec
	}
	resolved := *rec
	resolved.SourceMAC = mac
	return &resolved
}
