package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

// table is a generic CRUD store over one SQLite table. columns[0] must be
// the id column and values must return arguments in column order.
type table[T any] struct {
	r       *SQLiteRepository
	kind    Kind[T]
	name    string
	columns []string
	orderBy string
	values  func(T) []any
	scan    func(scanner) (T, error)
}

func (t *table[T]) selectSQL() string {
	return "SELECT " + strings.Join(t.columns, ", ") + " FROM " + t.name
}

func (t *table[T]) List(ctx context.Context) ([]T, error) {
	rows, err := t.r.db.QueryContext(ctx, t.selectSQL()+" ORDER BY "+t.orderBy)
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", t.kind.Name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.kind.Name, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %ss: %w", t.kind.Name, err)
	}
	return out, nil
}

func (t *table[T]) Get(ctx context.Context, id string) (T, error) {
	v, err := t.scan(t.r.db.QueryRowContext(ctx, t.selectSQL()+" WHERE id = ?", id))
	if err != nil {
		var zero T
		return zero, fmt.Errorf("get %s %s: %w", t.kind.Name, id, translateError(err))
	}
	return v, nil
}

func (t *table[T]) Add(ctx context.Context, v T) (T, error) {
	var zero T
	if t.kind.ID(v) == "" {
		t.kind.SetID(&v, uuid.NewString())
	}
	if err := t.kind.Validate(v); err != nil {
		return zero, err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	q := "INSERT INTO " + t.name + " (" + strings.Join(t.columns, ", ") + ") VALUES (" + placeholders + ")"
	if _, err := t.r.db.ExecContext(ctx, q, t.values(v)...); err != nil {
		return zero, fmt.Errorf("create %s: %w", t.kind.Name, translateError(err))
	}
	return v, nil
}

func (t *table[T]) Update(ctx context.Context, v T) (T, error) {
	var zero T
	if err := t.kind.Validate(v); err != nil {
		return zero, err
	}
	sets := make([]string, 0, len(t.columns)-1)
	for _, c := range t.columns[1:] {
		sets = append(sets, c+" = ?")
	}
	vals := t.values(v)
	args := append(vals[1:len(vals):len(vals)], vals[0])
	q := "UPDATE " + t.name + " SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := t.r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return zero, fmt.Errorf("update %s: %w", t.kind.Name, translateError(err))
	}
	if err := expectOneRow(res); err != nil {
		return zero, fmt.Errorf("update %s %s: %w", t.kind.Name, t.kind.ID(v), err)
	}
	return v, nil
}

func (t *table[T]) Delete(ctx context.Context, id string) error {
	res, err := t.r.db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.kind.Name, translateError(err))
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("delete %s %s: %w", t.kind.Name, id, err)
	}
	return nil
}

func (r *SQLiteRepository) initTables() {
	r.budgets = &table[core.Budget]{
		r: r, kind: BudgetKind, name: "budgets",
		columns: []string{"id", "category", "month", "limit_cents"},
		orderBy: "month, category",
		values:  func(v core.Budget) []any { return []any{v.ID, v.Category, v.Month, v.Limit.Cents} },
		scan: func(s scanner) (core.Budget, error) {
			var v core.Budget
			err := s.Scan(&v.ID, &v.Category, &v.Month, &v.Limit.Cents)
			return v, err
		},
	}

	r.lenders = &table[core.Lender]{
		r: r, kind: LenderKind, name: "lenders",
		columns: []string{"id", "name", "contact", "notes"},
		orderBy: "name, id",
		values:  func(v core.Lender) []any { return []any{v.ID, v.Name, v.Contact, v.Notes} },
		scan: func(s scanner) (core.Lender, error) {
			var v core.Lender
			err := s.Scan(&v.ID, &v.Name, &v.Contact, &v.Notes)
			return v, err
		},
	}

	r.loans = &table[core.LoanTransaction]{
		r: r, kind: LoanKind, name: "loan_transactions",
		columns: []string{"id", "lender_id", "date", "amount_cents", "note"},
		orderBy: "date, id",
		values: func(v core.LoanTransaction) []any {
			return []any{v.ID, v.LenderID, v.Date.String(), v.Amount.Cents, v.Note}
		},
		scan: func(s scanner) (core.LoanTransaction, error) {
			var (
				v    core.LoanTransaction
				date string
			)
			if err := s.Scan(&v.ID, &v.LenderID, &date, &v.Amount.Cents, &v.Note); err != nil {
				return v, err
			}
			var err error
			v.Date, err = parseStoredDate(date)
			return v, err
		},
	}

	r.assets = &table[core.Asset]{
		r: r, kind: AssetKind, name: "assets",
		columns: []string{"id", "name", "kind", "unit"},
		orderBy: "name, id",
		values:  func(v core.Asset) []any { return []any{v.ID, v.Name, v.Kind, v.Unit} },
		scan: func(s scanner) (core.Asset, error) {
			var v core.Asset
			err := s.Scan(&v.ID, &v.Name, &v.Kind, &v.Unit)
			return v, err
		},
	}

	r.assetTransactions = &table[core.AssetTransaction]{
		r: r, kind: AssetTransactionKind, name: "asset_transactions",
		columns: []string{"id", "asset_id", "date", "quantity", "unit_price_cents", "note"},
		orderBy: "date, id",
		values: func(v core.AssetTransaction) []any {
			return []any{v.ID, v.AssetID, v.Date.String(), v.Quantity, v.UnitPrice.Cents, v.Note}
		},
		scan: func(s scanner) (core.AssetTransaction, error) {
			var (
				v    core.AssetTransaction
				date string
			)
			if err := s.Scan(&v.ID, &v.AssetID, &date, &v.Quantity, &v.UnitPrice.Cents, &v.Note); err != nil {
				return v, err
			}
			var err error
			v.Date, err = parseStoredDate(date)
			return v, err
		},
	}

	r.itemRates = &table[core.ItemRate]{
		r: r, kind: ItemRateKind, name: "item_rates",
		columns: []string{"id", "item", "rate_cents", "date"},
		orderBy: "date, item, id",
		values:  func(v core.ItemRate) []any { return []any{v.ID, v.Item, v.Rate.Cents, v.Date.String()} },
		scan: func(s scanner) (core.ItemRate, error) {
			var (
				v    core.ItemRate
				date string
			)
			if err := s.Scan(&v.ID, &v.Item, &v.Rate.Cents, &date); err != nil {
				return v, err
			}
			var err error
			v.Date, err = parseStoredDate(date)
			return v, err
		},
	}

	r.profiles = &table[core.Profile]{
		r: r, kind: ProfileKind, name: "profiles",
		columns: []string{"id", "name", "currency", "theme"},
		orderBy: "name, id",
		values:  func(v core.Profile) []any { return []any{v.ID, v.Name, v.Currency, v.Theme} },
		scan: func(s scanner) (core.Profile, error) {
			var v core.Profile
			err := s.Scan(&v.ID, &v.Name, &v.Currency, &v.Theme)
			return v, err
		},
	}
}
