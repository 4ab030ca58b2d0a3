// Package memory is an in-process Repository used for the offline mode and
// in tests. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type Store struct {
	mu    sync.Mutex
	txs   []core.Transaction
	rules []core.RecurringRule
	now   func() time.Time

	budgets           *table[core.Budget]
	lenders           *table[core.Lender]
	loans             *table[core.LoanTransaction]
	assets            *table[core.Asset]
	assetTransactions *table[core.AssetTransaction]
	itemRates         *table[core.ItemRate]
	profiles          *table[core.Profile]
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	s := &Store{now: time.Now}
	s.budgets = newTable(storage.BudgetKind)
	s.lenders = newTable(storage.LenderKind)
	s.loans = newTable(storage.LoanKind)
	s.assets = newTable(storage.AssetKind)
	s.assetTransactions = newTable(storage.AssetTransactionKind)
	s.itemRates = newTable(storage.ItemRateKind)
	s.profiles = newTable(storage.ProfileKind)

	s.budgets.unique = func(a, b core.Budget) bool {
		return a.Category == b.Category && a.Month == b.Month
	}
	s.loans.check = func(v core.LoanTransaction) error {
		if !s.lenders.has(v.LenderID) {
			return fmt.Errorf("%w: lender %s", core.ErrMissingReference, v.LenderID)
		}
		return nil
	}
	s.lenders.onDelete = func(id string) {
		s.loans.deleteWhere(func(v core.LoanTransaction) bool { return v.LenderID == id })
	}
	s.assetTransactions.check = func(v core.AssetTransaction) error {
		if !s.assets.has(v.AssetID) {
			return fmt.Errorf("%w: asset %s", core.ErrMissingReference, v.AssetID)
		}
		return nil
	}
	s.assets.onDelete = func(id string) {
		s.assetTransactions.deleteWhere(func(v core.AssetTransaction) bool { return v.AssetID == id })
	}
	return s
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) Budgets() storage.Store[core.Budget]                    { return s.budgets }
func (s *Store) Lenders() storage.Store[core.Lender]                    { return s.lenders }
func (s *Store) Loans() storage.Store[core.LoanTransaction]             { return s.loans }
func (s *Store) Assets() storage.Store[core.Asset]                      { return s.assets }
func (s *Store) AssetTransactions() storage.Store[core.AssetTransaction] { return s.assetTransactions }
func (s *Store) ItemRates() storage.Store[core.ItemRate]                { return s.itemRates }
func (s *Store) Profiles() storage.Store[core.Profile]                  { return s.profiles }

func (s *Store) ListTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if f.Matches(tx) {
			out = append(out, tx)
		}
	}
	sortTransactions(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.txIndex(id); i >= 0 {
		return s.txs[i], nil
	}
	return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, storage.ErrNotFound)
}

func (s *Store) AddTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	tx, err := storage.PrepareTransaction(tx, s.now())
	if err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txIndex(tx.ID) >= 0 {
		return core.Transaction{}, fmt.Errorf("create transaction %s: %w", tx.ID, storage.ErrConflict)
	}
	s.txs = append(s.txs, tx)
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(tx.ID)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", tx.ID, storage.ErrNotFound)
	}
	cur := s.txs[i]
	cur.Date, cur.Description, cur.Category = tx.Date, tx.Description, tx.Category
	cur.Amount, cur.PaymentMethod = tx.Amount, tx.PaymentMethod
	if cur.SyncStatus == core.SyncSynced {
		cur.Resync = true
	}
	cur.SyncStatus, cur.SyncAttempts = core.SyncPending, 0
	s.txs[i] = cur
	return cur, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(id)
	if i < 0 {
		return fmt.Errorf("delete transaction %s: %w", id, storage.ErrNotFound)
	}
	s.txs = append(s.txs[:i], s.txs[i+1:]...)
	return nil
}

func (s *Store) ListPendingSync(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.SyncStatus == core.SyncPending {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkSynced(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(id)
	if i < 0 {
		return fmt.Errorf("mark transaction synced %s: %w", id, storage.ErrNotFound)
	}
	s.txs[i].SyncStatus = core.SyncSynced
	s.txs[i].Resync = false
	return nil
}

func (s *Store) MarkSyncFailed(_ context.Context, id string, maxAttempts int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.txIndex(id)
	if i < 0 {
		return 0, fmt.Errorf("mark transaction sync failed %s: %w", id, storage.ErrNotFound)
	}
	s.txs[i].SyncAttempts++
	if s.txs[i].SyncAttempts >= maxAttempts {
		s.txs[i].SyncStatus = core.SyncError
	} else {
		s.txs[i].SyncStatus = core.SyncPending
	}
	return s.txs[i].SyncAttempts, nil
}

func (s *Store) RetrySyncErrors(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.txs {
		if s.txs[i].SyncStatus == core.SyncError {
			s.txs[i].SyncStatus = core.SyncPending
			s.txs[i].SyncAttempts = 0
			n++
		}
	}
	return n, nil
}

func (s *Store) ListRules(context.Context) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedRules(func(core.RecurringRule) bool { return true }), nil
}

func (s *Store) ListActiveRules(context.Context) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedRules(func(r core.RecurringRule) bool { return r.Active }), nil
}

func (s *Store) GetRule(_ context.Context, id string) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.ruleIndex(id); i >= 0 {
		return s.rules[i], nil
	}
	return core.RecurringRule{}, fmt.Errorf("get recurring rule %s: %w", id, storage.ErrNotFound)
}

func (s *Store) AddRule(_ context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	r, err := storage.PrepareRule(r, s.now())
	if err != nil {
		return core.RecurringRule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ruleIndex(r.ID) >= 0 {
		return core.RecurringRule{}, fmt.Errorf("create recurring rule %s: %w", r.ID, storage.ErrConflict)
	}
	s.rules = append(s.rules, r)
	return r, nil
}

func (s *Store) UpdateRule(_ context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	r.NextDueDate = core.DateOf(r.NextDueDate.Time)
	if err := r.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.ruleIndex(r.ID)
	if i < 0 {
		return core.RecurringRule{}, fmt.Errorf("update recurring rule %s: %w", r.ID, storage.ErrNotFound)
	}
	r = r.Rescheduled(s.rules[i])
	r.CreatedAt = s.rules[i].CreatedAt
	s.rules[i] = r
	return r, nil
}

func (s *Store) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.ruleIndex(id)
	if i < 0 {
		return fmt.Errorf("delete recurring rule %s: %w", id, storage.ErrNotFound)
	}
	s.rules = append(s.rules[:i], s.rules[i+1:]...)
	return nil
}

// ApplyMaterialization checks every guard before touching anything, so a
// stale or deactivated rule leaves the store unchanged.
func (s *Store) ApplyMaterialization(_ context.Context, txs []core.Transaction, advances []storage.RuleAdvance) error {
	now := s.now()
	prepared := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		p, err := storage.PrepareTransaction(tx, now)
		if err != nil {
			return fmt.Errorf("generated transaction for rule %s: %w", tx.RecurringRuleID, err)
		}
		prepared = append(prepared, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := make([]int, len(advances))
	for k, adv := range advances {
		i := s.ruleIndex(adv.RuleID)
		if i < 0 || !s.rules[i].Active || !s.rules[i].NextDueDate.Equal(adv.From) {
			return fmt.Errorf("advance recurring rule %s from %s: %w", adv.RuleID, adv.From, storage.ErrStaleRule)
		}
		idx[k] = i
	}
	for k, adv := range advances {
		s.rules[idx[k]].NextDueDate = adv.To
	}
	s.txs = append(s.txs, prepared...)
	return nil
}

func (s *Store) txIndex(id string) int {
	for i := range s.txs {
		if s.txs[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) ruleIndex(id string) int {
	for i := range s.rules {
		if s.rules[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) sortedRules(keep func(core.RecurringRule) bool) []core.RecurringRule {
	out := make([]core.RecurringRule, 0, len(s.rules))
	for _, r := range s.rules {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].NextDueDate.Equal(out[j].NextDueDate) {
			return out[i].NextDueDate.Before(out[j].NextDueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortTransactions(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return strings.Compare(a.ID, b.ID) < 0
	})
}
