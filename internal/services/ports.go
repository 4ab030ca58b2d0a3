package services

import (
	"context"
	"log/slog"

	"fintrack/internal/amqp"
)

// SyncPublisher announces transaction changes to the sync worker.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id string, op amqp.Op) error
}

// Invalidator is told whenever stored transactions change.
type Invalidator interface {
	Invalidate()
}

// publish sends a sync message if messaging is configured. Failures are
// logged and swallowed: the local write already happened and the polling
// processor will pick the row up.
func publish(ctx context.Context, p SyncPublisher, id string, op amqp.Op) {
	if p == nil {
		return
	}
	if err := p.PublishTransactionSync(ctx, id, op); err != nil {
		slog.WarnContext(ctx, "Failed to publish sync message", "transaction_id", id, "op", op, "error", err)
	}
}
