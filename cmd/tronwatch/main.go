package main

import (
	"context"

	"github.com/gabapcia/tronwatch/internal/config"
	"github.com/gabapcia/tronwatch/internal/handlers/api"
	"github.com/gabapcia/tronwatch/internal/handlers/cli"
	"github.com/gabapcia/tronwatch/internal/infra/blockchain/tron"
	"github.com/gabapcia/tronwatch/internal/infra/sink/file"
	"github.com/gabapcia/tronwatch/internal/infra/sink/sheets"
	"github.com/gabapcia/tronwatch/internal/infra/storage/redis"
	"github.com/gabapcia/tronwatch/internal/infra/walletsource/static"
	"github.com/gabapcia/tronwatch/internal/pkg/logger"
	"github.com/gabapcia/tronwatch/internal/pkg/telemetry"
	"github.com/gabapcia/tronwatch/internal/scheduler"
	"github.com/gabapcia/tronwatch/internal/txtracker"
)

const serviceName = "tronwatch"

// version is overridden at build time with -ldflags.
var version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel)); err != nil {
		panic(err)
	}
	defer logger.Sync()

	telemetryShutdown, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize telemetry", "error", err)
	}
	defer telemetryShutdown(ctx)

	fetcher := tron.NewClient(cfg.TronAPIURL, cfg.TronAPIKey,
		tron.WithDegradedMode(cfg.DegradedMode()),
	)

	walletSource, sink, err := buildSheetOrFileEdges(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to set up wallet source and sink", "error", err)
	}

	trackerOpts := []txtracker.Option{
		txtracker.WithMaxConcurrentFetches(cfg.MaxConcurrentFetches),
	}
	if cfg.UseRedisWatermarks() {
		watermarks, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal(ctx, "failed to connect to redis", "error", err)
		}
		trackerOpts = append(trackerOpts, txtracker.WithWatermarkStorage(watermarks))
	}

	tracker := txtracker.New(walletSource, fetcher, sink, trackerOpts...)

	sched := scheduler.New(tracker, scheduler.WithInterval(cfg.CheckInterval()))
	server := api.NewServer(cfg.ServerAddr, tracker, api.WithVersion(version))

	if err := cli.Run(ctx, tracker, sched, server); err != nil {
		logger.Fatal(ctx, "application terminated with error", "error", err)
	}
}

// buildSheetOrFileEdges selects where tracked wallets come from and
// where transactions go. A fully configured Google Sheet serves both
// roles; otherwise a static wallet list feeds a flat file sink.
func buildSheetOrFileEdges(ctx context.Context, cfg config.Config) (txtracker.WalletSource, txtracker.Sink, error) {
	if cfg.UseGoogleSheets() {
		opts := make([]sheets.Option, 0, 1)
		if cfg.GoogleSheetRange != "" {
			opts = append(opts, sheets.WithWalletRange(cfg.GoogleSheetRange))
		}

		sheet, err := sheets.NewClient(ctx, cfg.GoogleSheetsAPIKey, cfg.GoogleSheetID, opts...)
		if err != nil {
			return nil, nil, err
		}
		return sheet, sheet, nil
	}

	walletSource, err := static.NewSource(cfg.WalletAddresses)
	if err != nil {
		return nil, nil, err
	}

	sink := file.NewSink(cfg.OutputFilePath, file.WithTrackedAddresses(cfg.WalletAddresses...))
	return walletSource, sink, nil
}
