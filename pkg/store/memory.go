// Package store provides an in-process api.Store.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ArionMiles/spendscan/pkg/api"
)

// ErrMissingID is returned when an expense without an ID is saved.
var ErrMissingID = errors.New("expense has no id")

// Memory keeps expenses in a map keyed by ID. Saving an existing ID replaces it.
type Memory struct {
	mu       sync.RWMutex
	expenses map[string]*api.Expense
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{expenses: make(map[string]*api.Expense)}
}

// Save stores a copy of e.
func (m *Memory) Save(ctx context.Context, e *api.Expense) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == "" {
		return ErrMissingID
	}
	cp := *e

	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[e.ID] = &cp
	return nil
}

// List returns copies of all stored expenses, newest first.
func (m *Memory) List() []api.Expense {
	m.mu.RLock()
	out := make([]api.Expense, 0, len(m.expenses))
	for _, e := range m.expenses {
		out = append(out, *e)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Recent returns at most limit expenses, newest first. A limit <= 0 means all.
func (m *Memory) Recent(ctx context.Context, limit int) ([]api.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := m.List()
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Len returns the number of stored expenses.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.expenses)
}
