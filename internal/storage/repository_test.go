package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"fintrack/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTx(date core.Date, category string, cents int64) core.Transaction {
	return core.Transaction{
		Date:          date,
		Description:   "sample",
		Category:      category,
		Amount:        core.Money{Cents: cents},
		PaymentMethod: "card",
	}
}

func TestTransactionCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.AddTransaction(ctx, sampleTx(core.NewDate(2025, 3, 1), "Food", 1250))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if created.ID == "" || created.SyncStatus != core.SyncPending || created.CreatedAt.IsZero() {
		t.Fatalf("defaults not applied: %+v", created)
	}

	got, err := repo.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.Cents != 1250 || !got.Date.Equal(core.NewDate(2025, 3, 1)) || got.Category != "Food" {
		t.Fatalf("unexpected transaction %+v", got)
	}

	got.Amount = core.Money{Cents: -9000}
	got.Category = "Salary"
	updated, err := repo.UpdateTransaction(ctx, got)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount.Cents != -9000 || updated.Category != "Salary" {
		t.Fatalf("update not applied: %+v", updated)
	}

	if err := repo.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteTransaction(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := repo.UpdateTransaction(ctx, got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestAddTransactionValidates(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.AddTransaction(context.Background(), sampleTx(core.NewDate(2025, 1, 1), "", 100))
	if !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestListTransactionsFilter(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	for _, tx := range []core.Transaction{
		sampleTx(core.NewDate(2025, 1, 15), "Food", 100),
		sampleTx(core.NewDate(2025, 2, 1), "Food", 200),
		sampleTx(core.NewDate(2025, 2, 10), "Rent", 300),
		sampleTx(core.NewDate(2025, 3, 1), "Food", 400),
	} {
		if _, err := repo.AddTransaction(ctx, tx); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter TransactionFilter
		want   []int64
	}{
		{"all", TransactionFilter{}, []int64{100, 200, 300, 400}},
		{"february", TransactionFilter{From: core.NewDate(2025, 2, 1), To: core.NewDate(2025, 2, 28)}, []int64{200, 300}},
		{"food from feb", TransactionFilter{From: core.NewDate(2025, 2, 1), Category: "Food"}, []int64{200, 400}},
		{"limit", TransactionFilter{Limit: 1}, []int64{100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListTransactions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d transactions, want %d", len(got), len(tt.want))
			}
			for i, tx := range got {
				if tx.Amount.Cents != tt.want[i] {
					t.Fatalf("position %d: got %d, want %d", i, tx.Amount.Cents, tt.want[i])
				}
			}
		})
	}
}

func TestRuleCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	active, err := repo.AddRule(ctx, core.RecurringRule{
		Category: "Rent", Amount: core.Money{Cents: 80000}, Frequency: core.Monthly,
		NextDueDate: core.NewDate(2025, 1, 31), Active: true,
	})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}
	_, err = repo.AddRule(ctx, core.RecurringRule{
		Category: "Gym", Amount: core.Money{Cents: 3000}, Frequency: core.Weekly,
		NextDueDate: core.NewDate(2025, 1, 1), Active: false,
	})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}
	if _, err := repo.AddRule(ctx, core.RecurringRule{
		Category: "Bad", Amount: core.Money{Cents: 1}, Frequency: "hourly", NextDueDate: core.NewDate(2025, 1, 1),
	}); !errors.Is(err, core.ErrInvalidFrequency) {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}

	all, err := repo.ListRules(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("list rules: %d %v", len(all), err)
	}
	actives, err := repo.ListActiveRules(ctx)
	if err != nil || len(actives) != 1 || actives[0].ID != active.ID {
		t.Fatalf("list active rules: %+v %v", actives, err)
	}

	active.Description = "Flat rent"
	active.Active = false
	updated, err := repo.UpdateRule(ctx, active)
	if err != nil {
		t.Fatalf("update rule: %v", err)
	}
	if updated.Description != "Flat rent" || updated.Active {
		t.Fatalf("update not applied: %+v", updated)
	}

	if err := repo.DeleteRule(ctx, active.ID); err != nil {
		t.Fatalf("delete rule: %v", err)
	}
	if _, err := repo.GetRule(ctx, active.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyMaterialization(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rule, err := repo.AddRule(ctx, core.RecurringRule{
		Category: "Rent", Amount: core.Money{Cents: 80000}, Frequency: core.Monthly,
		NextDueDate: core.NewDate(2025, 1, 1), Active: true,
	})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}

	generated := []core.Transaction{
		{Date: core.NewDate(2025, 1, 1), Category: "Rent", Amount: rule.Amount, PaymentMethod: core.PaymentMethodRecurring, RecurringRuleID: rule.ID},
		{Date: core.NewDate(2025, 2, 1), Category: "Rent", Amount: rule.Amount, PaymentMethod: core.PaymentMethodRecurring, RecurringRuleID: rule.ID},
	}
	adv := []RuleAdvance{{RuleID: rule.ID, From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 3, 1)}}
	if err := repo.ApplyMaterialization(ctx, generated, adv); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := repo.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatalf("get rule: %v", err)
	}
	if !got.NextDueDate.Equal(core.NewDate(2025, 3, 1)) {
		t.Fatalf("next due = %s", got.NextDueDate)
	}
	txs, err := repo.ListTransactions(ctx, TransactionFilter{})
	if err != nil || len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d (%v)", len(txs), err)
	}
	if txs[0].RecurringRuleID != rule.ID || txs[0].SyncStatus != core.SyncPending {
		t.Fatalf("unexpected generated transaction %+v", txs[0])
	}

	// Replaying the same write must not duplicate anything.
	err = repo.ApplyMaterialization(ctx, []core.Transaction{
		{Date: core.NewDate(2025, 1, 1), Category: "Rent", Amount: rule.Amount, RecurringRuleID: rule.ID},
	}, adv)
	if !errors.Is(err, ErrStaleRule) {
		t.Fatalf("expected ErrStaleRule, got %v", err)
	}
	txs, _ = repo.ListTransactions(ctx, TransactionFilter{})
	if len(txs) != 2 {
		t.Fatalf("stale write persisted transactions: %d", len(txs))
	}
	got, _ = repo.GetRule(ctx, rule.ID)
	if !got.NextDueDate.Equal(core.NewDate(2025, 3, 1)) {
		t.Fatalf("stale write moved rule to %s", got.NextDueDate)
	}
}

func TestApplyMaterializationRollsBackAllRules(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a, _ := repo.AddRule(ctx, core.RecurringRule{Category: "A", Amount: core.Money{Cents: 1}, Frequency: core.Daily, NextDueDate: core.NewDate(2025, 1, 1), Active: true})
	b, _ := repo.AddRule(ctx, core.RecurringRule{Category: "B", Amount: core.Money{Cents: 1}, Frequency: core.Daily, NextDueDate: core.NewDate(2025, 1, 5), Active: true})

	err := repo.ApplyMaterialization(ctx,
		[]core.Transaction{{Date: core.NewDate(2025, 1, 1), Category: "A", Amount: core.Money{Cents: 1}}},
		[]RuleAdvance{
			{RuleID: a.ID, From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 1, 2)},
			{RuleID: b.ID, From: core.NewDate(2025, 1, 4), To: core.NewDate(2025, 1, 6)},
		})
	if !errors.Is(err, ErrStaleRule) {
		t.Fatalf("expected ErrStaleRule, got %v", err)
	}
	got, _ := repo.GetRule(ctx, a.ID)
	if !got.NextDueDate.Equal(core.NewDate(2025, 1, 1)) {
		t.Fatalf("first rule was advanced despite rollback: %s", got.NextDueDate)
	}
	if txs, _ := repo.ListTransactions(ctx, TransactionFilter{}); len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
}

func TestRuleAnchorDay(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rule, err := repo.AddRule(ctx, core.RecurringRule{
		Category: "Rent", Amount: core.Money{Cents: 80000}, Frequency: core.Monthly,
		NextDueDate: core.NewDate(2025, 1, 31), Active: true,
	})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}
	if rule.AnchorDay != 31 {
		t.Fatalf("anchor on create = %d", rule.AnchorDay)
	}

	adv := []RuleAdvance{{RuleID: rule.ID, From: core.NewDate(2025, 1, 31), To: core.NewDate(2025, 2, 28)}}
	if err := repo.ApplyMaterialization(ctx, nil, adv); err != nil {
		t.Fatalf("apply: %v", err)
	}
	got, _ := repo.GetRule(ctx, rule.ID)
	if got.AnchorDay != 31 || !got.NextDueDate.Equal(core.NewDate(2025, 2, 28)) {
		t.Fatalf("after advance: %+v", got)
	}

	got.Description = "Flat"
	got.AnchorDay = 0
	kept, err := repo.UpdateRule(ctx, got)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if kept.AnchorDay != 31 {
		t.Fatalf("edit without rescheduling changed anchor to %d", kept.AnchorDay)
	}

	kept.NextDueDate = core.NewDate(2025, 3, 15)
	moved, err := repo.UpdateRule(ctx, kept)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if moved.AnchorDay != 15 {
		t.Fatalf("reschedule anchor = %d, want 15", moved.AnchorDay)
	}
}

func TestApplyMaterializationSkipsDeactivatedRule(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rule, _ := repo.AddRule(ctx, core.RecurringRule{
		Category: "Gym", Amount: core.Money{Cents: 3000}, Frequency: core.Monthly,
		NextDueDate: core.NewDate(2025, 1, 1), Active: true,
	})
	rule.Active = false
	if _, err := repo.UpdateRule(ctx, rule); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	err := repo.ApplyMaterialization(ctx,
		[]core.Transaction{{Date: core.NewDate(2025, 1, 1), Category: "Gym", Amount: rule.Amount, RecurringRuleID: rule.ID}},
		[]RuleAdvance{{RuleID: rule.ID, From: core.NewDate(2025, 1, 1), To: core.NewDate(2025, 2, 1)}})
	if !errors.Is(err, ErrStaleRule) {
		t.Fatalf("expected ErrStaleRule, got %v", err)
	}
	if txs, _ := repo.ListTransactions(ctx, TransactionFilter{}); len(txs) != 0 {
		t.Fatalf("inactive rule emitted %d transactions", len(txs))
	}
}

func TestUpdateTransactionRequeuesSync(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	fresh, _ := repo.AddTransaction(ctx, sampleTx(core.NewDate(2025, 1, 1), "Food", 100))
	synced, _ := repo.AddTransaction(ctx, sampleTx(core.NewDate(2025, 1, 2), "Food", 200))
	if err := repo.MarkSynced(ctx, synced.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	fresh.Amount = core.Money{Cents: 150}
	got, err := repo.UpdateTransaction(ctx, fresh)
	if err != nil {
		t.Fatalf("update fresh: %v", err)
	}
	if got.SyncStatus != core.SyncPending || got.Resync {
		t.Fatalf("fresh: status=%s resync=%v", got.SyncStatus, got.Resync)
	}

	synced.Amount = core.Money{Cents: 250}
	got, err = repo.UpdateTransaction(ctx, synced)
	if err != nil {
		t.Fatalf("update synced: %v", err)
	}
	if got.SyncStatus != core.SyncPending || !got.Resync || got.SyncAttempts != 0 {
		t.Fatalf("synced: %+v", got)
	}
	if pending, _ := repo.ListPendingSync(ctx, 0); len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	if err := repo.MarkSynced(ctx, synced.ID); err != nil {
		t.Fatalf("mark synced again: %v", err)
	}
	if got, _ = repo.GetTransaction(ctx, synced.ID); got.Resync {
		t.Fatal("resync flag survived MarkSynced")
	}
}

func TestSyncBookkeeping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a, _ := repo.AddTransaction(ctx, sampleTx(core.NewDate(2025, 1, 1), "Food", 100))
	b, _ := repo.AddTransaction(ctx, sampleTx(core.NewDate(2025, 1, 2), "Food", 200))

	pending, err := repo.ListPendingSync(ctx, 10)
	if err != nil || len(pending) != 2 {
		t.Fatalf("pending = %d (%v)", len(pending), err)
	}

	if err := repo.MarkSynced(ctx, a.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	for i := 1; i <= 3; i++ {
		n, err := repo.MarkSyncFailed(ctx, b.ID, 3)
		if err != nil || n != i {
			t.Fatalf("attempt %d: got %d (%v)", i, n, err)
		}
	}
	got, _ := repo.GetTransaction(ctx, b.ID)
	if got.SyncStatus != core.SyncError {
		t.Fatalf("expected error status, got %q", got.SyncStatus)
	}
	if pending, _ := repo.ListPendingSync(ctx, 10); len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %d", len(pending))
	}

	n, err := repo.RetrySyncErrors(ctx)
	if err != nil || n != 1 {
		t.Fatalf("retry = %d (%v)", n, err)
	}
	got, _ = repo.GetTransaction(ctx, b.ID)
	if got.SyncStatus != core.SyncPending || got.SyncAttempts != 0 {
		t.Fatalf("retry did not reset: %+v", got)
	}

	if err := repo.MarkSynced(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.MarkSyncFailed(ctx, "missing", 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEntityStores(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	lender, err := repo.Lenders().Add(ctx, core.Lender{Name: "Bank"})
	if err != nil {
		t.Fatalf("add lender: %v", err)
	}
	if _, err := repo.Loans().Add(ctx, core.LoanTransaction{LenderID: lender.ID, Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 100000}}); err != nil {
		t.Fatalf("add loan: %v", err)
	}
	if _, err := repo.Loans().Add(ctx, core.LoanTransaction{LenderID: "nobody", Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 1}}); !errors.Is(err, core.ErrMissingReference) {
		t.Fatalf("expected ErrMissingReference, got %v", err)
	}

	if err := repo.Lenders().Delete(ctx, lender.ID); err != nil {
		t.Fatalf("delete lender: %v", err)
	}
	loans, err := repo.Loans().List(ctx)
	if err != nil || len(loans) != 0 {
		t.Fatalf("expected loans to cascade, got %d (%v)", len(loans), err)
	}

	budget, err := repo.Budgets().Add(ctx, core.Budget{Category: "Food", Month: "2025-03", Limit: core.Money{Cents: 40000}})
	if err != nil {
		t.Fatalf("add budget: %v", err)
	}
	if _, err := repo.Budgets().Add(ctx, core.Budget{Category: "Food", Month: "2025-03", Limit: core.Money{Cents: 1}}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	budget.Limit = core.Money{Cents: 50000}
	if _, err := repo.Budgets().Update(ctx, budget); err != nil {
		t.Fatalf("update budget: %v", err)
	}
	got, err := repo.Budgets().Get(ctx, budget.ID)
	if err != nil || got.Limit.Cents != 50000 {
		t.Fatalf("get budget: %+v %v", got, err)
	}
	if _, err := repo.Budgets().Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	asset, err := repo.Assets().Add(ctx, core.Asset{Name: "Gold", Unit: "g"})
	if err != nil {
		t.Fatalf("add asset: %v", err)
	}
	if _, err := repo.AssetTransactions().Add(ctx, core.AssetTransaction{AssetID: asset.ID, Date: core.NewDate(2025, 1, 1), Quantity: 2.5, UnitPrice: core.Money{Cents: 6000}}); err != nil {
		t.Fatalf("add asset transaction: %v", err)
	}
	ats, _ := repo.AssetTransactions().List(ctx)
	if len(ats) != 1 || ats[0].Quantity != 2.5 {
		t.Fatalf("unexpected asset transactions %+v", ats)
	}

	if _, err := repo.ItemRates().Add(ctx, core.ItemRate{Item: "gold", Rate: core.Money{Cents: 7000}, Date: core.NewDate(2025, 2, 1)}); err != nil {
		t.Fatalf("add rate: %v", err)
	}
	if _, err := repo.Profiles().Add(ctx, core.Profile{Name: "me", Currency: "EUR", Theme: core.ThemeSystem}); err != nil {
		t.Fatalf("add profile: %v", err)
	}
	if _, err := repo.Profiles().Add(ctx, core.Profile{Name: "", Currency: "EUR", Theme: core.ThemeSystem}); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tx, err := repo.AddTransaction(ctx, sampleTx(core.NewDate(2025, 1, 1), "Food", 100))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	repo.Close()

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	if _, err := repo.GetTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("transaction lost after reopen: %v", err)
	}
}
