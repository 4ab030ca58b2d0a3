package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/ai"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/middleware/auth"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/report"
	"fintrack/internal/services"
	"fintrack/internal/storage"
	"fintrack/internal/worker"
)

const (
	cacheSweepInterval = 10 * time.Minute
	shutdownTimeout    = 30 * time.Second
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	logger.Info("Starting fintrack", "port", cfg.Port, "backend", cfg.DataBackend)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	repo, cleanup, err := cli.InitRepository(ctx, logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize storage", err)
	}
	defer cleanup()

	var publisher services.SyncPublisher
	if client := cli.InitAMQP(logger, cfg); client != nil {
		publisher = client
		defer client.Close()
	}

	months := cache.NewLRUCache[core.MonthOverview](100, 5*time.Minute)
	reports := report.NewService(repo, months)
	state := services.NewSyncState()
	recurringProc := services.NewRecurringProcessor(repo, publisher, state, reports)
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	sweeper := cache.NewManager(months, limiter)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Repo:         repo,
		Transactions: services.NewTransactionService(repo, publisher, reports),
		Recurring:    recurringProc,
		SyncState:    state,
		Reports:      reports,
		Parser:       initParser(ctx, logger, cfg),
		Auth:         initAuth(logger, cfg),
		Limiter:      limiter,
		Detector:     security.NewDetector(),
		Logger:       logger,
	})

	// materialize anything that fell due while the server was down
	if n, err := recurringProc.Run(ctx, time.Now()); err != nil {
		logger.Error("Startup materialization failed", log.FieldError, err)
	} else {
		logger.Info("Startup materialization complete", log.FieldCount, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return sweeper.Run(gctx, cacheSweepInterval)
	})
	g.Go(func() error {
		runRecurring(gctx, logger, recurringProc, cfg.RecurringInterval)
		return nil
	})

	// Without a broker nobody else drains the sync queue.
	if publisher == nil && cfg.SheetsEnabled() {
		proc, err := newSyncProcessor(ctx, logger, cfg, repo)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize spreadsheet sync", err)
		}
		g.Go(func() error {
			return worker.NewSyncWorker(proc, nil).Run(gctx)
		})
		logger.Info("In-process spreadsheet sync enabled", "interval", cfg.SyncInterval)
	}

	logger.Info("Server listening", "addr", srv.Addr)
	if err := g.Wait(); err != nil {
		cli.Fatal(logger, "Server error", err)
	}
	logger.Info("Server stopped gracefully")
}

func runRecurring(ctx context.Context, logger *log.Logger, proc *services.RecurringProcessor, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := proc.Run(ctx, now)
			if err != nil {
				logger.Error("Periodic materialization failed", log.FieldError, err)
				continue
			}
			if n > 0 {
				logger.Info("Periodic materialization complete", log.FieldCount, n)
			}
		}
	}
}

func newSyncProcessor(ctx context.Context, logger *log.Logger, cfg *config.Config, repo storage.Repository) (*services.SyncProcessor, error) {
	sink, err := cli.InitSheets(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	return services.NewSyncProcessor(repo, sink, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
		MaxRetries:   cfg.SyncMaxRetries,
	}), nil
}

// initParser returns nil when AI drafts are disabled or the client cannot
// be created; the draft endpoints then answer 503.
func initParser(ctx context.Context, logger *log.Logger, cfg *config.Config) ai.Parser {
	logger = logger.WithComponent(log.ComponentAI)
	if !cfg.AIEnabled() {
		logger.Info("AI drafts disabled")
		return nil
	}
	p, err := ai.NewGeminiParser(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		logger.Warn("Failed to initialize AI parser, drafts disabled", log.FieldError, err)
		return nil
	}
	logger.Info("AI drafts enabled", "model", cfg.GeminiModel)
	return p
}

func initAuth(logger *log.Logger, cfg *config.Config) *auth.Verifier {
	if !cfg.AuthEnabled() {
		logger.Warn("API authentication disabled, set AUTH_JWT_SECRET to require bearer tokens")
		return nil
	}
	return auth.NewVerifier(cfg.AuthJWTSecret)
}
