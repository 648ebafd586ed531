package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roman-kulish/docsis-pnm/internal/analysis"
	"github.com/roman-kulish/docsis-pnm/internal/config"
	"github.com/roman-kulish/docsis-pnm/internal/index"
	"github.com/roman-kulish/docsis-pnm/internal/metrics"
	"github.com/roman-kulish/docsis-pnm/internal/pnm"
	"github.com/roman-kulish/docsis-pnm/internal/storage"
	"github.com/roman-kulish/docsis-pnm/internal/timeseries"
)

const shutdownTimeout = 5 * time.Second

// Run decodes, analyzes and catalogues the capture files found under paths.
func Run(ctx context.Context, cfg *config.Config, paths []string, logger *slog.Logger, options ...func(*Pipeline)) (err error) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, cfg.Metrics.Namespace)
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	if cfg.Metrics.Listen != "" {
		srv := startMetrics(cfg.Metrics.Listen, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if sErr := srv.Shutdown(shutdownCtx); sErr != nil && !errors.Is(sErr, http.ErrServerClosed) {
				err = errors.Join(err, sErr)
			}
		}()
	}

	ix, err := index.New(cfg.Index, index.WithLogger(logger), index.WithObserver(m))
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}

	options = append([]func(*Pipeline){WithMetrics(m)}, options...)
	if cfg.Storage.Path != "" {
		store := storage.NewSqliteStore(cfg.Storage.Path)
		defer func() {
			err = errors.Join(err, store.Close())
		}()

		// a fresh database has nothing to restore and no schema to read from
		if n, lErr := storage.LoadInto(ctx, store, ix); lErr != nil {
			logger.Warn("could not restore index", slog.String("error", lErr.Error()), slog.String("path", cfg.Storage.Path))
		} else {
			logger.Info("index restored", slog.Int("entries", n), slog.String("path", cfg.Storage.Path))
		}
		options = append(options, WithSink(store))
	}

	if export := cfg.Storage.Postgres; export.ConnString != "" {
		sink, sErr := storage.OpenPostgresSink(export.ConnString, export.Table)
		if sErr != nil {
			return sErr
		}
		defer func() {
			err = errors.Join(err, sink.Close())
		}()

		logger.Info("exporting captures", slog.String("table", export.Table))
		options = append(options, WithSink(sink))
	}

	var series *timeseries.Writer
	if cfg.Timeseries.Enabled() {
		if series, err = timeseries.New(cfg.Timeseries, timeseries.WithLogger(logger)); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, series.Close())
		}()
	}

	files, err := Discover(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no capture files found")
	}

	decoder := pnm.NewDecoder(
		pnm.WithLogger(logger),
		pnm.WithObserver(m),
		pnm.WithConcurrency(cfg.Decoder.Concurrency),
	)
	analyzer := analysis.NewAnalyzer(cfg.Analysis, analysis.WithLogger(logger))

	summary, err := NewPipeline(decoder, analyzer, ix, logger, options...).Run(ctx, files)
	if err != nil {
		return err
	}

	if series != nil {
		n, wErr := series.WriteAnalyses(ctx, summary.Analyses.All())
		if wErr != nil {
			return wErr
		}
		logger.Info("analyses written to timeseries database", slog.Int("points", n), slog.String("database", cfg.Timeseries.Database))
	}

	logSummary(logger, summary, ix)
	return ix.Check()
}

func startMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server exited", slog.String("error", err.Error()))
		}
	}()

	logger.Info("serving metrics", slog.String("addr", addr))
	return srv
}

func logSummary(logger *slog.Logger, s *Summary, ix *index.Index) {
	logger.Info("captures processed",
		slog.Group("stats",
			slog.Int("files", s.Files),
			slog.Int("decoded", s.Decoded),
			slog.Int("failed", s.Failed),
			slog.Int("warnings", s.Warnings),
			slog.Int("stored", s.Stored),
			slog.String("size", humanize.Bytes(s.Bytes)),
			slog.Int("indexed", ix.Len()),
		))

	for _, a := range s.Analyses.All() {
		logger.Info("capture analysis",
			slog.String("fileType", a.FileType().String()),
			slog.String("channel", a.Channel().String()),
			slog.Attr{Key: "result", Value: slog.GroupValue(analysis.Highlights(a)...)},
		)
	}
}
