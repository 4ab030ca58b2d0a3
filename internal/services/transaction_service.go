package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// TransactionService writes transactions locally, then tells the sync
// worker about it. The local write is the source of truth.
type TransactionService struct {
	repo      storage.TransactionStore
	publisher SyncPublisher
	reports   Invalidator
}

// NewTransactionService wires the service. publisher and reports may be nil.
func NewTransactionService(repo storage.TransactionStore, publisher SyncPublisher, reports Invalidator) *TransactionService {
	if publisher == nil {
		slog.Warn("AMQP publisher not configured, transactions will only sync by polling")
	}
	return &TransactionService{repo: repo, publisher: publisher, reports: reports}
}

func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	// recurring links are only set by the materializer
	tx.RecurringRuleID = ""
	saved, err := s.repo.AddTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.changed(ctx, saved.ID, amqp.OpSync)
	fields := log.NewFields().WithTransaction(saved.ID, saved.Date.String(), saved.Category, saved.Amount.Cents)
	slog.InfoContext(ctx, "Transaction created", fields.ToSlice()...)
	return saved, nil
}

// CreateMany saves each transaction in turn and stops at the first failure,
// returning what was saved so far.
func (s *TransactionService) CreateMany(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(txs))
	for i, tx := range txs {
		saved, err := s.Create(ctx, tx)
		if err != nil {
			return out, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, saved)
	}
	return out, nil
}

func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	saved, err := s.repo.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.changed(ctx, saved.ID, amqp.OpSync)
	slog.InfoContext(ctx, "Transaction updated", log.FieldTxID, saved.ID, log.FieldOperation, log.OpUpdate)
	return saved, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.changed(ctx, id, amqp.OpDelete)
	return nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.repo.ListTransactions(ctx, f)
}

func (s *TransactionService) changed(ctx context.Context, id string, op amqp.Op) {
	if s.reports != nil {
		s.reports.Invalidate()
	}
	publish(ctx, s.publisher, id, op)
}
