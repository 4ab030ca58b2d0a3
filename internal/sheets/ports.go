package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for the spreadsheet mirror. The sheet is an append-only ledger:
// one row per transaction, keyed by the transaction id in the last column.
type (
	TransactionWriter interface {
		// Append writes tx as a new row and returns a reference to it.
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}

	TransactionIndex interface {
		// SyncedIDs returns the ids already present in the sheet for year.
		SyncedIDs(ctx context.Context, year int) (map[string]struct{}, error)
	}

	TransactionRemover interface {
		// Remove deletes the row carrying id. A missing row is not an error.
		Remove(ctx context.Context, id string) error
	}

	// Sink is the full surface the sync worker needs.
	Sink interface {
		TransactionWriter
		TransactionIndex
		TransactionRemover
	}
)
