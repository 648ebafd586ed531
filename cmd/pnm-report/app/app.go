package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/docsis-pnm/internal/analysis"
	"github.com/roman-kulish/docsis-pnm/internal/index"
	"github.com/roman-kulish/docsis-pnm/internal/pnm"
	"github.com/roman-kulish/docsis-pnm/internal/storage"
)

// Report is what Run found in the store.
type Report struct {
	Entries  []index.Entry
	Analyses *analysis.MultiAnalysis
	Failed   int
}

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	report, err := BuildReport(ctx, store, config, logger)
	if err != nil {
		return err
	}

	logReport(logger, report)
	return nil
}

// BuildReport reads the captures selected by config, re-decodes and analyzes them.
func BuildReport(ctx context.Context, store storage.Store, config *Config, logger *slog.Logger) (*Report, error) {
	var opts []storage.ReaderOption
	var filters []any
	if config.MAC != nil {
		opts = append(opts, storage.WithMAC(*config.MAC))
		filters = append(filters, slog.String("mac", config.MAC.String()))
	}
	if config.Channel != nil {
		opts = append(opts, storage.WithChannel(*config.Channel))
		filters = append(filters, slog.String("channel", config.Channel.String()))
	}
	if len(config.FileTypes) > 0 {
		opts = append(opts, storage.WithFileTypes(config.FileTypes...))
		filters = append(filters, slog.Any("fileTypes", config.FileTypes))
	}

	switch {
	case config.From != nil && config.To != nil:
		opts = append(opts, storage.WithTimeRange(config.From.UTC(), config.To.UTC()))

		filters = append(filters,
			slog.String("from", config.From.UTC().Format(time.DateTime)),
			slog.String("to", config.To.UTC().Format(time.DateTime)))

	case config.From != nil:
		opts = append(opts, storage.WithStartTime(config.From.UTC()))
		filters = append(filters, slog.String("from", config.From.UTC().Format(time.DateTime)))

	case config.To != nil:
		opts = append(opts, storage.WithEndTime(config.To.UTC()))
		filters = append(filters, slog.String("to", config.To.UTC().Format(time.DateTime)))
	}

	logger.Info("reader configuration", filters...)

	ix, err := index.New(index.DefaultConfig(), index.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	iter, err := store.ReadEntries(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	for iter.Next(ctx) {
		if err = ix.Insert(iter.Current()); err != nil {
			return nil, err
		}
	}
	if err = iter.Error(); err != nil {
		return nil, err
	}

	report := &Report{Entries: ix.All(config.SortKeys...), Analyses: &analysis.MultiAnalysis{}}

	settings := config.pipeline()
	decoder := pnm.NewDecoder(pnm.WithLogger(logger), pnm.WithConcurrency(settings.Decoder.Concurrency))
	analyzer := analysis.NewAnalyzer(settings.Analysis, analysis.WithLogger(logger))

	captures := make([]pnm.Capture, len(report.Entries))
	for i, e := range report.Entries {
		captures[i] = pnm.Capture{Raw: e.Payload, MAC: e.MAC, TransactionID: e.TransactionID}
	}

	for i, res := range decoder.DecodeAll(ctx, captures) {
		txID := report.Entries[i].TransactionID
		if res.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Error("decoding stored capture", slog.String("transactionId", txID), slog.String("error", res.Err.Error()))
			report.Failed++
			continue
		}
		a, err := analyzer.Analyze(res.Record)
		if err != nil {
			logger.Warn("analyzing stored capture", slog.String("transactionId", txID), slog.String("error", err.Error()))
			report.Failed++
			continue
		}
		report.Analyses.Add(a)
	}

	return report, nil
}

func logReport(logger *slog.Logger, r *Report) {
	var size uint64
	for _, e := range r.Entries {
		size += uint64(len(e.Payload))

		logger.Debug("capture",
			slog.String("transactionId", e.TransactionID),
			slog.String("file", e.FileName),
			slog.String("fileType", e.FileType.String()),
			slog.String("mac", e.MAC.String()),
			slog.String("channel", e.ChannelID.String()),
			slog.String("captured", e.Time().Local().Format(time.DateTime)),
			slog.String("size", humanize.Bytes(uint64(len(e.Payload)))),
		)
	}

	logger.Info("finished reading captures",
		slog.Group("stats",
			slog.Int("captures", len(r.Entries)),
			slog.Int("analyzed", r.Analyses.Count()),
			slog.Int("failed", r.Failed),
			slog.String("size", humanize.Bytes(size)),
		))

	latest := r.Analyses.ByChannel()
	for _, ch := range r.Analyses.Channels() {
		a := latest[ch]
		logger.Info("latest channel analysis",
			slog.String("channel", ch.String()),
			slog.String("fileType", a.FileType().String()),
			slog.Attr{Key: "result", Value: slog.GroupValue(analysis.Highlights(a)...)},
		)
	}
}
