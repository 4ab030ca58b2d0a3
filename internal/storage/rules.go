package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

const ruleColumns = "id, description, category, amount_cents, frequency, next_due_date, anchor_day, active, created_at"

func scanRule(s scanner) (core.RecurringRule, error) {
	var (
		rule          core.RecurringRule
		freq          string
		next, created string
	)
	if err := s.Scan(&rule.ID, &rule.Description, &rule.Category, &rule.Amount.Cents,
		&freq, &next, &rule.AnchorDay, &rule.Active, &created); err != nil {
		return core.RecurringRule{}, err
	}
	var err error
	if rule.NextDueDate, err = parseStoredDate(next); err != nil {
		return core.RecurringRule{}, err
	}
	rule.Frequency = core.Frequency(freq)
	rule.CreatedAt = parseStoredTime(created)
	return rule, nil
}

// PrepareRule assigns an id and creation time when missing, normalises the
// due date to a calendar date, validates and fixes the anchor day.
func PrepareRule(rule core.RecurringRule, now time.Time) (core.RecurringRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now.UTC()
	}
	rule.NextDueDate = core.DateOf(rule.NextDueDate.Time)
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	rule.AnchorDay = rule.Anchor()
	return rule, nil
}

func (r *SQLiteRepository) queryRules(ctx context.Context, q string, args ...any) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListRules(ctx context.Context) ([]core.RecurringRule, error) {
	rules, err := r.queryRules(ctx, "SELECT "+ruleColumns+" FROM recurring_rules ORDER BY next_due_date, id")
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	return rules, nil
}

func (r *SQLiteRepository) ListActiveRules(ctx context.Context) ([]core.RecurringRule, error) {
	rules, err := r.queryRules(ctx, "SELECT "+ruleColumns+" FROM recurring_rules WHERE active = 1 ORDER BY next_due_date, id")
	if err != nil {
		return nil, fmt.Errorf("list active recurring rules: %w", err)
	}
	return rules, nil
}

func (r *SQLiteRepository) GetRule(ctx context.Context, id string) (core.RecurringRule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM recurring_rules WHERE id = ?", id))
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("get recurring rule %s: %w", id, translateError(err))
	}
	return rule, nil
}

func (r *SQLiteRepository) AddRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	rule, err := PrepareRule(rule, r.now())
	if err != nil {
		return core.RecurringRule{}, err
	}
	_, err = r.db.ExecContext(ctx, "INSERT INTO recurring_rules ("+ruleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rule.ID, rule.Description, rule.Category, rule.Amount.Cents, string(rule.Frequency),
		rule.NextDueDate.String(), rule.AnchorDay, rule.Active, rule.CreatedAt.Format(storedTimeLayout))
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("create recurring rule: %w", translateError(err))
	}

	slog.InfoContext(ctx, "Recurring rule created",
		"id", rule.ID,
		"frequency", rule.Frequency,
		"next_due_date", rule.NextDueDate.String())

	return rule, nil
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	rule.NextDueDate = core.DateOf(rule.NextDueDate.Time)
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, err
	}
	// Moving the due date re-anchors the rule; other edits keep the anchor.
	due := rule.NextDueDate.String()
	res, err := r.db.ExecContext(ctx, `UPDATE recurring_rules
		SET description = ?, category = ?, amount_cents = ?, frequency = ?, active = ?,
			anchor_day = CASE WHEN next_due_date = ? AND anchor_day > 0 THEN anchor_day ELSE ? END,
			next_due_date = ?
		WHERE id = ?`,
		rule.Description, rule.Category, rule.Amount.Cents, string(rule.Frequency), rule.Active,
		due, rule.NextDueDate.Day(), due, rule.ID)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("update recurring rule: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return core.RecurringRule{}, fmt.Errorf("update recurring rule %s: %w", rule.ID, err)
	}
	return r.GetRule(ctx, rule.ID)
}

// DeleteRule removes the rule. Transactions it generated are kept.
func (r *SQLiteRepository) DeleteRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM recurring_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("delete recurring rule %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) ApplyMaterialization(ctx context.Context, txs []core.Transaction, advances []RuleAdvance) (err error) {
	if len(txs) == 0 && len(advances) == 0 {
		return nil
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin materialization: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := dbtx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Failed to roll back materialization", "error", rbErr)
			}
		}
	}()

	for _, adv := range advances {
		res, execErr := dbtx.ExecContext(ctx,
			"UPDATE recurring_rules SET next_due_date = ? WHERE id = ? AND next_due_date = ? AND active = 1",
			adv.To.String(), adv.RuleID, adv.From.String())
		if execErr != nil {
			return fmt.Errorf("advance recurring rule %s: %w", adv.RuleID, execErr)
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return fmt.Errorf("rows affected: %w", raErr)
		}
		if n != 1 {
			return fmt.Errorf("advance recurring rule %s from %s: %w", adv.RuleID, adv.From, ErrStaleRule)
		}
	}

	now := r.now()
	for _, tx := range txs {
		prepared, prepErr := PrepareTransaction(tx, now)
		if prepErr != nil {
			return fmt.Errorf("generated transaction for rule %s: %w", tx.RecurringRuleID, prepErr)
		}
		if insErr := insertTransaction(ctx, dbtx, prepared); insErr != nil {
			return fmt.Errorf("insert generated transaction: %w", insErr)
		}
	}

	if err = dbtx.Commit(); err != nil {
		return fmt.Errorf("commit materialization: %w", err)
	}
	return nil
}
