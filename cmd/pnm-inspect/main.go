package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/docsis-pnm/cmd/pnm-inspect/app"
	"github.com/roman-kulish/docsis-pnm/internal/config"
	"github.com/roman-kulish/docsis-pnm/internal/pnm"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath, mac string
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&mac, "mac", "", "Device MAC to catalogue captures under (default: the MAC carried by each capture)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-c config.yaml] [-mac aa:bb:cc:dd:ee:ff] file|dir...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
			os.Exit(1)
		}
	}

	level, err := cfg.Settings.Level()
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	logLevel.Set(level)

	var opts []func(*app.Pipeline)
	if mac != "" {
		m, err := pnm.ParseMAC(mac)
		if err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		opts = append(opts, app.WithMAC(m))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, cfg, flag.Args(), logger, opts...); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
