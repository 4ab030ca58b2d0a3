package storage

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

var (
	// ErrNotFound is returned when a record with the requested id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleRule is returned by ApplyMaterialization when a rule's next due
	// date no longer matches the value the run started from, or the rule was
	// deactivated meanwhile.
	ErrStaleRule = errors.New("stale recurring rule")
	// ErrConflict is returned when a write would break a uniqueness rule.
	ErrConflict = errors.New("conflict")
)

// TransactionFilter narrows ListTransactions. Zero values mean "no bound".
type TransactionFilter struct {
	From     core.Date
	To       core.Date
	Category string
	Limit    int
}

// Matches reports whether tx passes the filter, ignoring Limit.
func (f TransactionFilter) Matches(tx core.Transaction) bool {
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To) {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	return true
}

// RuleAdvance moves one rule's next due date from From to To. From is the
// value observed when materialization started and acts as the guard.
type RuleAdvance struct {
	RuleID string
	From   core.Date
	To     core.Date
}

type TransactionStore interface {
	ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

// SyncStore tracks which transactions still have to reach the spreadsheet.
type SyncStore interface {
	ListPendingSync(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkSynced(ctx context.Context, id string) error
	// MarkSyncFailed bumps the attempt counter and flips the status to
	// error once maxAttempts is reached. It returns the new attempt count.
	MarkSyncFailed(ctx context.Context, id string, maxAttempts int) (int, error)
	// RetrySyncErrors puts transactions in error state back to pending with
	// a fresh attempt budget.
	RetrySyncErrors(ctx context.Context) (int, error)
}

type RuleStore interface {
	ListRules(ctx context.Context) ([]core.RecurringRule, error)
	ListActiveRules(ctx context.Context) ([]core.RecurringRule, error)
	GetRule(ctx context.Context, id string) (core.RecurringRule, error)
	AddRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error)
	UpdateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error)
	DeleteRule(ctx context.Context, id string) error
	// ApplyMaterialization inserts the generated transactions and advances
	// the rules in one atomic step. If any advance finds an inactive rule or
	// a next due date other than its From value, nothing is written and
	// ErrStaleRule is returned.
	ApplyMaterialization(ctx context.Context, txs []core.Transaction, advances []RuleAdvance) error
}

// Store is the CRUD surface shared by the simple entities.
type Store[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Add(ctx context.Context, v T) (T, error)
	Update(ctx context.Context, v T) (T, error)
	Delete(ctx context.Context, id string) error
}

// Repository is everything the application needs from a backend.
type Repository interface {
	TransactionStore
	SyncStore
	RuleStore

	Budgets() Store[core.Budget]
	Lenders() Store[core.Lender]
	Loans() Store[core.LoanTransaction]
	Assets() Store[core.Asset]
	AssetTransactions() Store[core.AssetTransaction]
	ItemRates() Store[core.ItemRate]
	Profiles() Store[core.Profile]

	Ping(ctx context.Context) error
	Close() error
}
