package main

import (
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting sync-worker",
		"batch_size", cfg.SyncBatchSize,
		"interval", cfg.SyncInterval,
		"max_retries", cfg.SyncMaxRetries)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	repo, cleanup, err := cli.InitRepository(ctx, logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize storage", err)
	}
	defer cleanup()

	sink, err := cli.InitSheets(ctx, logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets", err)
	}

	processor := services.NewSyncProcessor(repo, sink, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
		MaxRetries:   cfg.SyncMaxRetries,
	})

	// Without a broker the worker still polls.
	var consumer worker.Consumer
	if client := cli.InitAMQP(logger, cfg); client != nil {
		consumer = client
		defer client.Close()
	}

	if err := worker.NewSyncWorker(processor, consumer).Run(ctx); err != nil {
		cli.Fatal(logger, "Sync worker failed", err)
	}
	logger.Info("Sync-worker shutdown complete")
}
