package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

const transactionColumns = `id, date, description, category, amount_cents, payment_method,
	recurring_rule_id, sync_status, sync_attempts, resync, created_at`

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx            core.Transaction
		date, created string
		ruleID        sql.NullString
	)
	err := s.Scan(&tx.ID, &date, &tx.Description, &tx.Category, &tx.Amount.Cents,
		&tx.PaymentMethod, &ruleID, &tx.SyncStatus, &tx.SyncAttempts, &tx.Resync, &created)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.Date, err = parseStoredDate(date); err != nil {
		return core.Transaction{}, err
	}
	tx.RecurringRuleID = ruleID.String
	tx.CreatedAt = parseStoredTime(created)
	return tx, nil
}

// prepareTransaction fills defaults and validates before insert.
func (r *SQLiteRepository) prepareTransaction(tx core.Transaction) (core.Transaction, error) {
	return PrepareTransaction(tx, r.now())
}

func insertTransaction(ctx context.Context, e execer, tx core.Transaction) error {
	var ruleID sql.NullString
	if tx.RecurringRuleID != "" {
		ruleID = sql.NullString{String: tx.RecurringRuleID, Valid: true}
	}
	_, err := e.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Date.String(), tx.Description, tx.Category, tx.Amount.Cents, tx.PaymentMethod,
		ruleID, tx.SyncStatus, tx.SyncAttempts, tx.Resync, tx.CreatedAt.UTC().Format(storedTimeLayout))
	return translateError(err)
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}

	q := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY date, created_at, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, translateError(err))
	}
	return tx, nil
}

func (r *SQLiteRepository) AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx, err := r.prepareTransaction(tx)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := insertTransaction(ctx, r.db, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"date", tx.Date.String(),
		"amount_cents", tx.Amount.Cents,
		"category", tx.Category)

	return tx, nil
}

// UpdateTransaction rewrites the user-editable fields and queues the
// transaction for sync again. A row already in the sheet is flagged for
// replacement.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE transactions
		SET date = ?, description = ?, category = ?, amount_cents = ?, payment_method = ?,
			resync = CASE WHEN sync_status = ? THEN 1 ELSE resync END,
			sync_status = ?, sync_attempts = 0
		WHERE id = ?`,
		tx.Date.String(), tx.Description, tx.Category, tx.Amount.Cents, tx.PaymentMethod,
		core.SyncSynced, core.SyncPending, tx.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", translateError(err))
	}
	if err := expectOneRow(res); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	return r.GetTransaction(ctx, tx.ID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// ListPendingSync returns transactions waiting for the spreadsheet, oldest
// first. A limit of zero or less returns all of them.
func (r *SQLiteRepository) ListPendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, "SELECT "+transactionColumns+
		" FROM transactions WHERE sync_status = ? ORDER BY created_at, id LIMIT ?", core.SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// MarkSynced marks a transaction as successfully synced
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE transactions SET sync_status = ?, resync = 0 WHERE id = ?", core.SyncSynced, id)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("mark transaction synced %s: %w", id, err)
	}
	slog.DebugContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

func (r *SQLiteRepository) MarkSyncFailed(ctx context.Context, id string, maxAttempts int) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `UPDATE transactions
		SET sync_attempts = sync_attempts + 1,
		    sync_status = CASE WHEN sync_attempts + 1 >= ? THEN ? ELSE ? END
		WHERE id = ?
		RETURNING sync_attempts`,
		maxAttempts, core.SyncError, core.SyncPending, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("mark transaction sync failed %s: %w", id, translateError(err))
	}
	if attempts >= maxAttempts {
		slog.WarnContext(ctx, "Transaction marked with sync error", "id", id, "attempts", attempts)
	}
	return attempts, nil
}

func (r *SQLiteRepository) RetrySyncErrors(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE transactions SET sync_status = ?, sync_attempts = 0 WHERE sync_status = ?",
		core.SyncPending, core.SyncError)
	if err != nil {
		return 0, fmt.Errorf("retry sync errors: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// PrepareTransaction assigns an id, sync status and creation time when they
// are missing, then validates. Backends call it before inserting.
func PrepareTransaction(tx core.Transaction, now time.Time) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.SyncStatus == "" {
		tx.SyncStatus = core.SyncPending
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now.UTC()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}
