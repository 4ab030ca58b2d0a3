// Package recurring turns recurring rules into concrete transactions.
//
// Materialize is a pure function of the rules and a reference date: it
// performs no I/O and never reads the wall clock. Persisting the result is
// the caller's job (see storage.Repository.ApplyMaterialization).
package recurring

import (
	"github.com/google/uuid"

	"fintrack/internal/core"
)

// MaxOccurrencesPerRun bounds how many occurrences one rule may emit in a
// single run. A rule further behind catches up over several runs.
const MaxOccurrencesPerRun = 365

// RuleUpdate is a rule whose next due date moved, with the value it had
// before the run.
type RuleUpdate struct {
	Rule            core.RecurringRule
	PreviousDueDate core.Date
}

// Result is the outcome of one Materialize call.
type Result struct {
	// Transactions generated across all rules, in rule order then date order.
	Transactions []core.Transaction
	// Rules is the full input set with next due dates advanced.
	Rules []core.RecurringRule
	// Updated lists only the rules that moved.
	Updated []RuleUpdate
	// Capped holds ids of rules that stopped at MaxOccurrencesPerRun.
	Capped []string
	// Skipped holds ids of active rules with no registered stepper.
	Skipped  []string
	Modified bool
}

type options struct {
	newID func() string
}

// Option customises a Materialize call.
type Option func(*options)

// WithIDGenerator replaces the UUID generator used for new transactions.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// Materialize emits one transaction for every occurrence of every active
// rule that falls on or before today, and advances each rule's next due
// date past the last emitted occurrence.
func Materialize(rules []core.RecurringRule, today core.Date, opts ...Option) Result {
	o := options{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	today = core.DateOf(today.Time)

	res := Result{Rules: make([]core.RecurringRule, 0, len(rules))}
	for _, rule := range rules {
		if !rule.Active {
			res.Rules = append(res.Rules, rule)
			continue
		}
		stepper, err := StepperFor(rule.Frequency)
		if err != nil {
			res.Skipped = append(res.Skipped, rule.ID)
			res.Rules = append(res.Rules, rule)
			continue
		}

		prev := rule.NextDueDate
		cursor := core.DateOf(prev.Time)
		anchor := rule.Anchor()
		n := 0
		for !cursor.After(today) && n < MaxOccurrencesPerRun {
			res.Transactions = append(res.Transactions, occurrence(rule, cursor, o.newID))
			cursor = stepper.Next(cursor, anchor)
			n++
		}
		if n == MaxOccurrencesPerRun && !cursor.After(today) {
			res.Capped = append(res.Capped, rule.ID)
		}

		if n > 0 {
			rule.NextDueDate = cursor
			res.Updated = append(res.Updated, RuleUpdate{Rule: rule, PreviousDueDate: prev})
			res.Modified = true
		}
		res.Rules = append(res.Rules, rule)
	}
	return res
}

func occurrence(rule core.RecurringRule, date core.Date, newID func() string) core.Transaction {
	id := newID()
	for id == "" || id == rule.ID {
		id = uuid.NewString()
	}
	return core.Transaction{
		ID:              id,
		Date:            date,
		Description:     rule.TransactionDescription(),
		Category:        rule.Category,
		Amount:          rule.Amount,
		PaymentMethod:   core.PaymentMethodRecurring,
		RecurringRuleID: rule.ID,
		SyncStatus:      core.SyncPending,
	}
}
