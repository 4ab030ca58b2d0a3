package main

import (
	"time"

	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentRecurring)
	logger.Info("Starting recurring-worker", "interval", cfg.RecurringInterval)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	repo, cleanup, err := cli.InitRepository(ctx, logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize storage", err)
	}
	defer cleanup()

	// Generated transactions reach the spreadsheet through the sync-worker.
	var publisher services.SyncPublisher
	if client := cli.InitAMQP(logger, cfg); client != nil {
		publisher = client
		defer client.Close()
	}

	processor := services.NewRecurringProcessor(repo, publisher, nil, nil)

	run := func(now time.Time) {
		count, err := processor.Run(ctx, now)
		if err != nil {
			logger.Error("Recurring processing failed", log.FieldError, err)
			return
		}
		logger.Info("Recurring processing complete",
			"transactions_created", count,
			"next_check", now.Add(cfg.RecurringInterval).Format("15:04:05"))
	}

	run(time.Now())

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Recurring-worker shutdown complete")
			return
		case now := <-ticker.C:
			run(now)
		}
	}
}
