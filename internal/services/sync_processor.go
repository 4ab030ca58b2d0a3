package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	"fintrack/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending transactions.
	PollInterval time.Duration
	// BatchSize is the max number of transactions appended per poll.
	BatchSize int
	// MaxRetries is the number of failed appends before a transaction is
	// parked in the error state.
	MaxRetries int
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

// SyncRepository is the storage the processor needs.
type SyncRepository interface {
	storage.SyncStore
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
}

// SyncProcessor copies pending transactions to the spreadsheet.
type SyncProcessor struct {
	repo   SyncRepository
	sink   sheets.Sink
	config SyncProcessorConfig

	// serialises appends so the AMQP path and the poller never write the
	// same row twice
	syncMu sync.Mutex

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(repo SyncRepository, sink sheets.Sink, config SyncProcessorConfig) *SyncProcessor {
	def := DefaultSyncProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	return &SyncProcessor{repo: repo, sink: sink, config: config}
}

// HandleMessage is the AMQP handler for the sync queue.
func (p *SyncProcessor) HandleMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	switch msg.Op {
	case amqp.OpDelete:
		return p.Remove(ctx, msg.ID)
	default:
		return p.SyncOne(ctx, msg.ID)
	}
}

// SyncOne appends a single transaction unless it is already synced or
// has been deleted in the meantime.
func (p *SyncProcessor) SyncOne(ctx context.Context, id string) error {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	tx, err := p.repo.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		slog.DebugContext(ctx, "Transaction gone before sync", log.FieldTxID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", id, err)
	}
	return p.syncLocked(ctx, tx)
}

// syncPending re-reads id under the lock, since the message path may
// have synced or deleted it after the batch was listed.
func (p *SyncProcessor) syncPending(ctx context.Context, id string) (bool, error) {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()
	tx, err := p.repo.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get transaction %s: %w", id, err)
	}
	if tx.SyncStatus != core.SyncPending {
		return false, nil
	}
	return true, p.syncLocked(ctx, tx)
}

func (p *SyncProcessor) syncLocked(ctx context.Context, tx core.Transaction) error {
	if tx.SyncStatus == core.SyncSynced {
		return nil
	}
	ref, err := p.write(ctx, tx)
	if err != nil {
		attempts, markErr := p.repo.MarkSyncFailed(ctx, tx.ID, p.config.MaxRetries)
		if markErr != nil {
			slog.ErrorContext(ctx, "Failed to record sync failure", log.FieldTxID, tx.ID, log.FieldError, markErr)
		}
		level := slog.LevelWarn
		if attempts >= p.config.MaxRetries {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "Sheet write failed",
			log.FieldTxID, tx.ID,
			"attempt", attempts,
			"max_retries", p.config.MaxRetries,
			log.FieldError, err)
		return err
	}

	if err := p.repo.MarkSynced(ctx, tx.ID); err != nil {
		// the row is in the sheet; reconcile or the next resync pass settles it
		slog.WarnContext(ctx, "Failed to mark transaction as synced", log.FieldTxID, tx.ID, log.FieldError, err)
	}
	slog.InfoContext(ctx, "Synced transaction to sheet", log.FieldTxID, tx.ID, "sheet_ref", ref)
	return nil
}

// write appends tx, first dropping the row of an edited transaction.
func (p *SyncProcessor) write(ctx context.Context, tx core.Transaction) (string, error) {
	if tx.Resync {
		if err := p.sink.Remove(ctx, tx.ID); err != nil {
			return "", fmt.Errorf("remove stale row: %w", err)
		}
	}
	ref, err := p.sink.Append(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("append to sheet: %w", err)
	}
	return ref, nil
}

// RetryFailed gives transactions parked in the error state a fresh
// attempt budget.
func (p *SyncProcessor) RetryFailed(ctx context.Context) (int, error) {
	n, err := p.repo.RetrySyncErrors(ctx)
	if err != nil {
		return 0, fmt.Errorf("retry sync errors: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Requeued failed transactions", log.FieldCount, n, log.FieldOperation, log.OpSync)
	}
	return n, nil
}

// Remove deletes the transaction's row from the sheet.
func (p *SyncProcessor) Remove(ctx context.Context, id string) error {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()
	if err := p.sink.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove %s from sheet: %w", id, err)
	}
	return nil
}

// ProcessBatch appends up to BatchSize pending transactions and returns
// how many made it.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) (int, error) {
	pending, err := p.repo.ListPendingSync(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending sync: %w", err)
	}

	synced := 0
	for _, tx := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		ok, err := p.syncPending(ctx, tx.ID)
		if err == nil && ok {
			synced++
		}
	}
	if len(pending) > 0 {
		slog.DebugContext(ctx, "Processed sync batch", "pending", len(pending), "synced", synced)
	}
	return synced, nil
}

// Reconcile marks pending transactions whose id already appears in the
// sheet as synced, so a crash between append and mark never duplicates
// a row. Edited transactions are left pending: the row present is the old
// version.
func (p *SyncProcessor) Reconcile(ctx context.Context) (int, error) {
	pending, err := p.repo.ListPendingSync(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list pending sync: %w", err)
	}

	present := map[int]map[string]struct{}{}
	fixed := 0
	for _, tx := range pending {
		if tx.Resync {
			continue
		}
		year := tx.Date.Year()
		ids, ok := present[year]
		if !ok {
			ids, err = p.sink.SyncedIDs(ctx, year)
			if err != nil {
				return fixed, fmt.Errorf("read synced ids for %d: %w", year, err)
			}
			present[year] = ids
		}
		if _, ok := ids[tx.ID]; !ok {
			continue
		}
		if err := p.repo.MarkSynced(ctx, tx.ID); err != nil {
			return fixed, fmt.Errorf("mark %s synced: %w", tx.ID, err)
		}
		fixed++
	}
	if fixed > 0 {
		slog.InfoContext(ctx, "Reconciled transactions already in sheet", log.FieldCount, fixed)
	}
	return fixed, nil
}

// Run polls until ctx is cancelled or Stop is called.
func (p *SyncProcessor) Run(ctx context.Context) error {
	stopCh, doneCh, err := p.begin()
	if err != nil {
		return err
	}
	p.loop(ctx, stopCh, doneCh)
	return nil
}

// Start runs the poll loop in the background.
func (p *SyncProcessor) Start(ctx context.Context) error {
	stopCh, doneCh, err := p.begin()
	if err != nil {
		return err
	}
	go p.loop(ctx, stopCh, doneCh)
	return nil
}

func (p *SyncProcessor) begin() (chan struct{}, chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil, nil, fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	return p.stopCh, p.doneCh, nil
}

func (p *SyncProcessor) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(doneCh)
	}()

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *SyncProcessor) poll(ctx context.Context) {
	if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Sync batch failed", log.FieldError, err)
	}
}

// Stop signals the loop and waits for it to finish or ctx to expire.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.stopCh = nil
	p.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
