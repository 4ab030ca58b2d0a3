// Package worker runs the spreadsheet sync loop of the sync-worker binary.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/services"
)

// Consumer delivers sync messages until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// SyncWorker drives a SyncProcessor from the message queue, with polling
// as the backup for lost messages.
type SyncWorker struct {
	processor *services.SyncProcessor
	consumer  Consumer
	// startupBatches bounds the drain done before consuming.
	startupBatches int
}

// NewSyncWorker wires the worker. consumer may be nil, in which case only
// polling runs.
func NewSyncWorker(processor *services.SyncProcessor, consumer Consumer) *SyncWorker {
	return &SyncWorker{processor: processor, consumer: consumer, startupBatches: 50}
}

// StartupSync requeues transactions that ran out of attempts, reconciles
// against the sheet and drains whatever is pending. This recovers from
// missed messages and from crashes between append and mark.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	retried, err := w.processor.RetryFailed(ctx)
	if err != nil {
		return err
	}
	fixed, err := w.processor.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	total := 0
	for i := 0; i < w.startupBatches; i++ {
		n, err := w.processor.ProcessBatch(ctx)
		if err != nil {
			return fmt.Errorf("startup batch: %w", err)
		}
		if n == 0 {
			break
		}
		total += n
	}
	slog.InfoContext(ctx, "Startup sync completed", "retried", retried, "reconciled", fixed, "synced", total)
	return nil
}

// Run performs the startup sync, then consumes messages and polls until
// ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context) error {
	start := time.Now()
	if err := w.StartupSync(ctx); err != nil {
		// keep going: the poller retries the same work
		slog.ErrorContext(ctx, "Startup sync failed", "error", err)
	}

	if err := w.processor.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := w.processor.Stop(stopCtx); err != nil {
			slog.Warn("Sync processor did not stop cleanly", "error", err)
		}
	}()

	slog.InfoContext(ctx, "Sync worker running", "startup_ms", time.Since(start).Milliseconds())
	if w.consumer == nil {
		<-ctx.Done()
		return nil
	}
	err := w.consumer.Consume(ctx, w.processor.HandleMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
