package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

func TestTransactionService_Create(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	pub := &recordingPublisher{}
	inv := &countingInvalidator{}
	svc := NewTransactionService(repo, pub, inv)

	in := newTx("groceries", 4520)
	in.RecurringRuleID = "forged"
	saved, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if saved.ID == "" || saved.SyncStatus != core.SyncPending || saved.CreatedAt.IsZero() {
		t.Fatalf("saved = %+v", saved)
	}
	if saved.RecurringRuleID != "" {
		t.Error("manual transactions must not carry a rule link")
	}
	if len(pub.msgs) != 1 || pub.msgs[0].ID != saved.ID || pub.msgs[0].Op != amqp.OpSync {
		t.Errorf("published %+v", pub.msgs)
	}
	if inv.n != 1 {
		t.Errorf("invalidated %d times", inv.n)
	}
}

func TestTransactionService_CreateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		tx   core.Transaction
		want error
	}{
		{"zero amount", core.Transaction{Date: core.NewDate(2025, 1, 1), Category: "Food"}, core.ErrInvalidAmount},
		{"no category", core.Transaction{Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 1}}, core.ErrEmptyCategory},
		{"no date", core.Transaction{Category: "Food", Amount: core.Money{Cents: 1}}, core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			svc := NewTransactionService(memory.New(), pub, nil)
			_, err := svc.Create(context.Background(), tt.tx)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(pub.msgs) != 0 {
				t.Error("nothing should be published for a rejected write")
			}
		})
	}
}

func TestTransactionService_CreateMany(t *testing.T) {
	ctx := context.Background()
	svc := NewTransactionService(memory.New(), nil, nil)

	saved, err := svc.CreateMany(ctx, []core.Transaction{
		newTx("one", 100),
		newTx("two", -5000),
		{Description: "broken"},
		newTx("never", 300),
	})
	if err == nil {
		t.Fatal("expected error for the third item")
	}
	if len(saved) != 2 {
		t.Fatalf("saved %d before failing, want 2", len(saved))
	}
	all, _ := svc.List(ctx, storage.TransactionFilter{})
	if len(all) != 2 {
		t.Fatalf("stored %d, want 2", len(all))
	}
}

func TestTransactionService_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	pub := &recordingPublisher{}
	svc := NewTransactionService(repo, pub, nil)

	saved, _ := svc.Create(ctx, newTx("taxi", 1800))
	saved.Amount = core.Money{Cents: 2100}
	saved.Category = "Transport"
	updated, err := svc.Update(ctx, saved)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Amount.Cents != 2100 || updated.Category != "Transport" {
		t.Fatalf("updated = %+v", updated)
	}

	if err := svc.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, saved.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get after delete: %v", err)
	}
	last := pub.msgs[len(pub.msgs)-1]
	if last.Op != amqp.OpDelete || last.ID != saved.ID {
		t.Errorf("last message = %+v, want delete of %s", last, saved.ID)
	}

	if err := svc.Delete(ctx, saved.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete: %v", err)
	}
	if _, err := svc.Update(ctx, core.Transaction{ID: "missing", Date: core.NewDate(2025, 1, 1), Category: "x", Amount: core.Money{Cents: 1}}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update of missing id: %v", err)
	}
}

func TestTransactionService_PublishFailureKeepsWrite(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	svc := NewTransactionService(repo, &recordingPublisher{err: errors.New("circuit breaker is open")}, nil)

	saved, err := svc.Create(ctx, newTx("book", 1500))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	pending, _ := repo.ListPendingSync(ctx, 0)
	if len(pending) != 1 || pending[0].ID != saved.ID {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestSyncState(t *testing.T) {
	s := NewSyncState()
	if snap := s.Snapshot(); snap.Status != SyncIdle || !s.Healthy() {
		t.Fatalf("initial snapshot = %+v", snap)
	}
	if body, _ := json.Marshal(s.Snapshot()); strings.Contains(string(body), "lastRun") {
		t.Fatalf("snapshot before any run reports lastRun: %s", body)
	}

	s.Begin()
	if s.Snapshot().Status != SyncSyncing {
		t.Fatal("Begin should mark the state as syncing")
	}

	at := time.Date(2025, 2, 1, 6, 0, 0, 0, time.UTC)
	s.Finish(at, 0, errors.New("sync error: disk full"))
	snap := s.Snapshot()
	if snap.Status != SyncFailed || snap.LastError != "sync error: disk full" || s.Healthy() {
		t.Fatalf("after failure = %+v", snap)
	}

	s.Finish(at.Add(time.Hour), 4, nil)
	snap = s.Snapshot()
	if snap.Status != SyncReady || snap.LastError != "" || snap.Generated != 4 || !s.Healthy() {
		t.Fatalf("after success = %+v", snap)
	}
	if snap.LastRun == nil || !snap.LastRun.Equal(at.Add(time.Hour)) {
		t.Fatalf("lastRun = %v", snap.LastRun)
	}
}
