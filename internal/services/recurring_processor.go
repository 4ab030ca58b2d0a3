package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/recurring"
	"fintrack/internal/storage"
)

// staleRetries bounds how often a run reloads rules after losing a race
// with another runner.
const staleRetries = 3

// RecurringProcessor turns due recurring rules into transactions and
// persists them together with the advanced rules.
type RecurringProcessor struct {
	repo      storage.RuleStore
	publisher SyncPublisher
	state     *SyncState
	reports   Invalidator
	opts      []recurring.Option

	mu sync.Mutex
}

// NewRecurringProcessor wires the processor. publisher, state and reports may be nil.
func NewRecurringProcessor(repo storage.RuleStore, publisher SyncPublisher, state *SyncState, reports Invalidator, opts ...recurring.Option) *RecurringProcessor {
	return &RecurringProcessor{
		repo:      repo,
		publisher: publisher,
		state:     state,
		reports:   reports,
		opts:      opts,
	}
}

// Run materializes everything due on or before now's calendar date and
// returns how many transactions were generated.
func (p *RecurringProcessor) Run(ctx context.Context, now time.Time) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != nil {
		p.state.Begin()
	}
	n, err := p.run(ctx, core.DateOf(now))
	if p.state != nil {
		if err != nil {
			p.state.Finish(now, n, fmt.Errorf("sync error: %w", err))
		} else {
			p.state.Finish(now, n, nil)
		}
	}
	return n, err
}

func (p *RecurringProcessor) run(ctx context.Context, today core.Date) (int, error) {
	for attempt := 1; ; attempt++ {
		rules, err := p.repo.ListActiveRules(ctx)
		if err != nil {
			return 0, fmt.Errorf("list active rules: %w", err)
		}

		res := recurring.Materialize(rules, today, p.opts...)
		for _, id := range res.Skipped {
			slog.WarnContext(ctx, "Recurring rule has no scheduler for its frequency", log.FieldRuleID, id)
		}
		for _, id := range res.Capped {
			slog.WarnContext(ctx, "Recurring rule still behind after a full run",
				log.FieldRuleID, id,
				"max_per_run", recurring.MaxOccurrencesPerRun)
		}
		if !res.Modified {
			slog.DebugContext(ctx, "No recurring transactions due", "today", today.String(), "rules", len(rules))
			return 0, nil
		}

		advances := make([]storage.RuleAdvance, 0, len(res.Updated))
		for _, u := range res.Updated {
			advances = append(advances, storage.RuleAdvance{
				RuleID: u.Rule.ID,
				From:   u.PreviousDueDate,
				To:     u.Rule.NextDueDate,
			})
		}

		err = p.repo.ApplyMaterialization(ctx, res.Transactions, advances)
		if errors.Is(err, storage.ErrStaleRule) && attempt < staleRetries {
			slog.InfoContext(ctx, "Recurring rules advanced concurrently, reloading", "attempt", attempt)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("apply materialization: %w", err)
		}

		if p.reports != nil {
			p.reports.Invalidate()
		}
		for _, tx := range res.Transactions {
			publish(ctx, p.publisher, tx.ID, amqp.OpSync)
		}
		slog.InfoContext(ctx, "Recurring transactions generated",
			log.FieldOperation, log.OpMaterialize,
			log.FieldCount, len(res.Transactions),
			"rules_advanced", len(advances),
			"today", today.String())
		return len(res.Transactions), nil
	}
}
