// Package timeseries writes the headline figures of capture analyses to InfluxDB.
package timeseries

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/InfluxCommunity/influxdb3-go/v2/influxdb3"

	"github.com/roman-kulish/docsis-pnm/internal/analysis"
)

const (
	defaultMeasurement = "pnm_analysis"
	defaultBatchSize   = 500
)

// Config describes the InfluxDB connection. An empty Host disables the writer.
type Config struct {
	Host        string `yaml:"host"`
	Token       string `yaml:"token"`
	Database    string `yaml:"database"`
	Measurement string `yaml:"measurement"`
	BatchSize   int    `yaml:"batchSize"`
}

// Enabled reports whether analyses should be written at all.
func (c Config) Enabled() bool {
	return c.Host != ""
}

type pointWriter interface {
	WritePoints(ctx context.Context, points []*influxdb3.Point, options ...influxdb3.WriteOption) error
	Close() error
}

// WithLogger sets the logger for the writer
func WithLogger(logger *slog.Logger) func(w *Writer) {
	return func(w *Writer) {
		w.logger = logger.With(slog.String("component", "timeseries-writer"))
	}
}

// Writer turns analyses into points, one per analysis, tagged with the device
// MAC, the channel and the file type.
type Writer struct {
	client      pointWriter
	measurement string
	batchSize   int
	logger      *slog.Logger
}

// New connects to InfluxDB.
func New(cfg Config, options ...func(w *Writer)) (*Writer, error) {
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     cfg.Host,
		Token:    cfg.Token,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("creating influxdb client: %w", err)
	}
	return newWriter(client, cfg, options...), nil
}

func newWriter(client pointWriter, cfg Config, options ...func(w *Writer)) *Writer {
	w := Writer{
		client:      client,
		measurement: cfg.Measurement,
		batchSize:   cfg.BatchSize,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if w.measurement == "" {
		w.measurement = defaultMeasurement
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}

	for _, option := range options {
		option(&w)
	}

	return &w
}

// Points converts analyses into points. Analyses without any numeric figure are skipped.
func (w *Writer) Points(analyses []analysis.Analysis) []*influxdb3.Point {
	points := make([]*influxdb3.Point, 0, len(analyses))
	for _, a := range analyses {
		fields := analysis.Fields(a)
		if len(fields) == 0 {
			continue
		}

		base := a.Info()
		tags := map[string]string{
			"mac":       base.MAC.String(),
			"channel":   base.ChannelID.String(),
			"file_type": a.FileType().String(),
		}
		points = append(points, influxdb3.NewPoint(w.measurement, tags, fields, base.CaptureTime))
	}
	return points
}

// WriteAnalyses writes analyses in batches and returns the number of points written.
func (w *Writer) WriteAnalyses(ctx context.Context, analyses []analysis.Analysis) (int, error) {
	var n int
	for batch := range slices.Chunk(w.Points(analyses), w.batchSize) {
		if err := w.client.WritePoints(ctx, batch); err != nil {
			return n, fmt.Errorf("writing points: %w", err)
		}
		n += len(batch)
		w.logger.Debug("points written", slog.Int("points", len(batch)))
	}
	return n, nil
}

func (w *Writer) Close() error {
	return w.client.Close()
}
