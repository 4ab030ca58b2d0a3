package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

// Store keeps appended rows per year. It backs local runs without a
// spreadsheet and the worker tests.
type Store struct {
	mu   sync.Mutex
	rows map[int][]core.Transaction
}

var _ ports.Sink = (*Store)(nil)

func New() *Store {
	return &Store{rows: map[int][]core.Transaction{}}
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	year := tx.Date.Year()
	s.rows[year] = append(s.rows[year], tx)
	return fmt.Sprintf("mem:%d:%d", year, len(s.rows[year])), nil
}

func (s *Store) SyncedIDs(_ context.Context, year int) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{}, len(s.rows[year]))
	for _, tx := range s.rows[year] {
		ids[tx.ID] = struct{}{}
	}
	return ids, nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for year, rows := range s.rows {
		for i, tx := range rows {
			if tx.ID == id {
				s.rows[year] = append(rows[:i:i], rows[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

// Rows returns a copy of the rows written for year, in append order.
func (s *Store) Rows(year int) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows[year]...)
}
