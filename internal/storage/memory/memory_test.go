package memory

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func TestTransactionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.AddTransaction(ctx, core.Transaction{Date: core.NewDate(2025, 2, 1), Category: "Food", Amount: core.Money{Cents: 100}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	_, _ = s.AddTransaction(ctx, core.Transaction{Date: core.NewDate(2025, 1, 1), Category: "Rent", Amount: core.Money{Cents: 200}})

	all, _ := s.ListTransactions(ctx, storage.TransactionFilter{})
	if len(all) != 2 || all[0].Category != "Rent" {
		t.Fatalf("expected date ordering, got %+v", all)
	}
	food, _ := s.ListTransactions(ctx, storage.TransactionFilter{Category: "Food"})
	if len(food) != 1 || food[0].ID != a.ID {
		t.Fatalf("category filter failed: %+v", food)
	}

	if _, err := s.AddTransaction(ctx, core.Transaction{Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 1}}); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := s.DeleteTransaction(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetTransaction(ctx, a.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyMaterializationGuard(t *testing.T) {
	ctx := context.Background()
	s := New()
	rule, err := s.AddRule(ctx, core.RecurringRule{
		Category: "Rent", Amount: core.Money{Cents: 100}, Frequency: core.Monthly,
		NextDueDate: core.NewDate(2025, 1, 1), Active: true,
	})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}

	txs := []core.Transaction{{Date: core.NewDate(2025, 1, 1), Category: "Rent", Amount: core.Money{Cents: 100}, RecurringRuleID: rule.ID}}
	adv := []storage.RuleAdvance{{RuleID: rule.ID, From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 2, 1)}}
	if err := s.ApplyMaterialization(ctx, txs, adv); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := s.ApplyMaterialization(ctx, txs, adv); !errors.Is(err, storage.ErrStaleRule) {
		t.Fatalf("expected ErrStaleRule, got %v", err)
	}
	all, _ := s.ListTransactions(ctx, storage.TransactionFilter{})
	if len(all) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(all))
	}
	got, _ := s.GetRule(ctx, rule.ID)
	if !got.NextDueDate.Equal(core.NewDate(2025, 2, 1)) {
		t.Fatalf("next due = %s", got.NextDueDate)
	}
}

func TestRuleAnchorAndDeactivation(t *testing.T) {
	ctx := context.Background()
	s := New()
	rule, _ := s.AddRule(ctx, core.RecurringRule{
		Category: "Rent", Amount: core.Money{Cents: 100}, Frequency: core.Monthly,
		NextDueDate: core.NewDate(2025, 1, 31), Active: true,
	})
	if rule.AnchorDay != 31 {
		t.Fatalf("anchor on create = %d", rule.AnchorDay)
	}
	adv := []storage.RuleAdvance{{RuleID: rule.ID, From: core.NewDate(2025, 1, 31), To: core.NewDate(2025, 2, 28)}}
	if err := s.ApplyMaterialization(ctx, nil, adv); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, _ := s.GetRule(ctx, rule.ID)
	got.Active = false
	got.AnchorDay = 0
	updated, err := s.UpdateRule(ctx, got)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.AnchorDay != 31 {
		t.Fatalf("anchor = %d, want 31", updated.AnchorDay)
	}

	adv = []storage.RuleAdvance{{RuleID: rule.ID, From: core.NewDate(2025, 2, 28), To: core.NewDate(2025, 3, 31)}}
	if err := s.ApplyMaterialization(ctx, nil, adv); !errors.Is(err, storage.ErrStaleRule) {
		t.Fatalf("expected ErrStaleRule for inactive rule, got %v", err)
	}
}

func TestSyncStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.AddTransaction(ctx, core.Transaction{Date: core.NewDate(2025, 1, 1), Category: "Food", Amount: core.Money{Cents: 1}})

	if n, _ := s.MarkSyncFailed(ctx, tx.ID, 2); n != 1 {
		t.Fatalf("attempts = %d", n)
	}
	if n, _ := s.MarkSyncFailed(ctx, tx.ID, 2); n != 2 {
		t.Fatalf("attempts = %d", n)
	}
	if p, _ := s.ListPendingSync(ctx, 10); len(p) != 0 {
		t.Fatalf("expected nothing pending after max attempts")
	}
	if n, _ := s.RetrySyncErrors(ctx); n != 1 {
		t.Fatalf("retry count = %d", n)
	}
	if err := s.MarkSynced(ctx, tx.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	got, _ := s.GetTransaction(ctx, tx.ID)
	if got.SyncStatus != core.SyncSynced {
		t.Fatalf("status = %q", got.SyncStatus)
	}
}

func TestEntityReferencesAndCascade(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.Loans().Add(ctx, core.LoanTransaction{LenderID: "ghost", Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 1}}); !errors.Is(err, core.ErrMissingReference) {
		t.Fatalf("expected ErrMissingReference, got %v", err)
	}
	lender, _ := s.Lenders().Add(ctx, core.Lender{Name: "Alice"})
	if _, err := s.Loans().Add(ctx, core.LoanTransaction{LenderID: lender.ID, Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 1}}); err != nil {
		t.Fatalf("add loan: %v", err)
	}
	if err := s.Lenders().Delete(ctx, lender.ID); err != nil {
		t.Fatalf("delete lender: %v", err)
	}
	if loans, _ := s.Loans().List(ctx); len(loans) != 0 {
		t.Fatalf("expected cascade, got %d loans", len(loans))
	}

	if _, err := s.Budgets().Add(ctx, core.Budget{Category: "Food", Month: "2025-01", Limit: core.Money{Cents: 1}}); err != nil {
		t.Fatalf("add budget: %v", err)
	}
	if _, err := s.Budgets().Add(ctx, core.Budget{Category: "Food", Month: "2025-01", Limit: core.Money{Cents: 2}}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.Profiles().Update(ctx, core.Profile{ID: "nope", Name: "x", Currency: "EUR", Theme: core.ThemeLight}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
