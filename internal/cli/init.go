// Package cli holds the start-up steps shared by the fintrack binaries.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	sheetsmem "fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
)

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger installs a text logger for component at cfg's level as the
// process default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	conf := log.DefaultConfig()
	conf.Component = component
	if cfg != nil {
		conf.Level = cfg.SlogLevel()
	}
	logger := log.New(conf)
	log.SetDefault(logger)
	return logger
}

// Bootstrap loads .env and the configuration, installs the logger and
// exits the process if the configuration is invalid.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitRepository opens the configured backend and returns it with its
// cleanup function.
func InitRepository(ctx context.Context, logger *log.Logger, cfg *config.Config) (storage.Repository, backend.CleanupFunc, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentStorage).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}
	return res.Repository, res.Cleanup, nil
}

// InitAMQP connects to the broker when one is configured. It returns nil
// if messaging is disabled or the broker is unreachable; callers fall back
// to polling.
func InitAMQP(logger *log.Logger, cfg *config.Config) *amqp.Client {
	logger = logger.WithComponent(log.ComponentAMQP)
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled, sync relies on polling")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without messaging", log.FieldError, err)
		return nil
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// InitSheets returns the spreadsheet sink. Without a spreadsheet id the
// rows go to an in-process store so the rest of the pipeline still runs.
func InitSheets(ctx context.Context, logger *log.Logger, cfg *config.Config) (sheets.Sink, error) {
	if !cfg.SheetsEnabled() {
		logger.Warn("Google Sheets disabled, synced rows are kept in memory only")
		return sheetsmem.New(), nil
	}
	client, err := gsheet.NewFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init google sheets: %w", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Fatal logs err and exits.
func Fatal(logger *log.Logger, msg string, err error) {
	logger.Log(context.Background(), slog.LevelError, msg, log.FieldError, err)
	os.Exit(1)
}
