package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"fintrack/internal/storage"
)

// table keeps entities in insertion order.
type table[T any] struct {
	kind storage.Kind[T]

	mu    sync.Mutex
	items []T

	// optional hooks
	check    func(T) error
	unique   func(a, b T) bool
	onDelete func(id string)
}

func newTable[T any](kind storage.Kind[T]) *table[T] {
	return &table[T]{kind: kind}
}

func (t *table[T]) index(id string) int {
	for i := range t.items {
		if t.kind.ID(t.items[i]) == id {
			return i
		}
	}
	return -1
}

func (t *table[T]) has(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index(id) >= 0
}

func (t *table[T]) List(context.Context) ([]T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]T(nil), t.items...), nil
}

func (t *table[T]) Get(_ context.Context, id string) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.index(id); i >= 0 {
		return t.items[i], nil
	}
	var zero T
	return zero, fmt.Errorf("get %s %s: %w", t.kind.Name, id, storage.ErrNotFound)
}

func (t *table[T]) validate(v T) error {
	if err := t.kind.Validate(v); err != nil {
		return err
	}
	if t.check != nil {
		return t.check(v)
	}
	return nil
}

func (t *table[T]) conflicts(v T, skip int) bool {
	if t.unique == nil {
		return false
	}
	for i := range t.items {
		if i != skip && t.unique(t.items[i], v) {
			return true
		}
	}
	return false
}

func (t *table[T]) Add(_ context.Context, v T) (T, error) {
	var zero T
	if t.kind.ID(v) == "" {
		t.kind.SetID(&v, uuid.NewString())
	}
	if err := t.validate(v); err != nil {
		return zero, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.index(t.kind.ID(v)) >= 0 || t.conflicts(v, -1) {
		return zero, fmt.Errorf("create %s: %w", t.kind.Name, storage.ErrConflict)
	}
	t.items = append(t.items, v)
	return v, nil
}

func (t *table[T]) Update(_ context.Context, v T) (T, error) {
	var zero T
	if err := t.validate(v); err != nil {
		return zero, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.index(t.kind.ID(v))
	if i < 0 {
		return zero, fmt.Errorf("update %s %s: %w", t.kind.Name, t.kind.ID(v), storage.ErrNotFound)
	}
	if t.conflicts(v, i) {
		return zero, fmt.Errorf("update %s: %w", t.kind.Name, storage.ErrConflict)
	}
	t.items[i] = v
	return v, nil
}

func (t *table[T]) Delete(_ context.Context, id string) error {
	t.mu.Lock()
	i := t.index(id)
	if i < 0 {
		t.mu.Unlock()
		return fmt.Errorf("delete %s %s: %w", t.kind.Name, id, storage.ErrNotFound)
	}
	t.items = append(t.items[:i], t.items[i+1:]...)
	t.mu.Unlock()

	if t.onDelete != nil {
		t.onDelete(id)
	}
	return nil
}

func (t *table[T]) deleteWhere(match func(T) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.items[:0]
	for _, v := range t.items {
		if !match(v) {
			kept = append(kept, v)
		}
	}
	t.items = kept
}
