package report

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Service loads the records behind each report. Month overviews are
// cached until Invalidate is called or their TTL runs out.
type Service struct {
	repo   storage.Repository
	months cache.Cache[core.MonthOverview]
}

func NewService(repo storage.Repository, months cache.Cache[core.MonthOverview]) *Service {
	return &Service{repo: repo, months: months}
}

// Invalidate drops cached overviews after a transaction write.
func (s *Service) Invalidate() {
	if s.months != nil {
		s.months.Purge()
	}
}

func (s *Service) Month(ctx context.Context, year, month int) (core.MonthOverview, error) {
	if month < 1 || month > 12 {
		return core.MonthOverview{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	key := fmt.Sprintf("%04d-%02d", year, month)
	if s.months != nil {
		if ov, ok := s.months.Get(key); ok {
			slog.DebugContext(ctx, "Month overview cache hit", "month", key)
			return ov, nil
		}
	}

	from := core.NewDate(year, month, 1)
	txs, err := s.repo.ListTransactions(ctx, storage.TransactionFilter{
		From: from,
		To:   core.NewDate(year, month+1, 1).AddDays(-1),
	})
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("list transactions for %s: %w", key, err)
	}
	ov := MonthOverview(txs, year, month)
	if s.months != nil {
		s.months.Set(key, ov)
	}
	return ov, nil
}

// Budgets reports every budget set for month (YYYY-MM).
func (s *Service) Budgets(ctx context.Context, month string) ([]core.BudgetStatus, error) {
	year, m, err := core.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.Budgets().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	var budgets []core.Budget
	for _, b := range all {
		if b.Month == month {
			budgets = append(budgets, b)
		}
	}
	txs, err := s.repo.ListTransactions(ctx, storage.TransactionFilter{
		From: core.NewDate(year, m, 1),
		To:   core.NewDate(year, m+1, 1).AddDays(-1),
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", month, err)
	}
	return BudgetStatuses(budgets, txs), nil
}

func (s *Service) Lenders(ctx context.Context) ([]core.LenderBalance, error) {
	lenders, err := s.repo.Lenders().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list lenders: %w", err)
	}
	loans, err := s.repo.Loans().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return LenderBalances(lenders, loans), nil
}

func (s *Service) Assets(ctx context.Context) ([]core.AssetValuation, error) {
	assets, err := s.repo.Assets().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	txs, err := s.repo.AssetTransactions().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list asset transactions: %w", err)
	}
	rates, err := s.repo.ItemRates().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list item rates: %w", err)
	}
	return AssetValuations(assets, txs, rates), nil
}
