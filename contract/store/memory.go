// Package store provides in-memory contract storage.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/aircare/contract-engine/contract"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	contracts map[string]contract.Contract
	order     []string // insertion order
}

var _ contract.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		contracts: make(map[string]contract.Contract),
	}
}

// Save inserts a contract. Duplicate IDs are rejected.
func (m *Memory) Save(_ context.Context, c *contract.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.contracts[c.ID]; exists {
		return fmt.Errorf("contract %s already exists", c.ID)
	}
	m.contracts[c.ID] = clone(*c)
	m.order = append(m.order, c.ID)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*contract.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contracts[id]
	if !ok {
		return nil, errors.Wrapf(contract.ErrNotFound, "id %s", id)
	}
	out := clone(c)
	return &out, nil
}

func (m *Memory) List(_ context.Context) ([]contract.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]contract.Contract, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		result = append(result, clone(m.contracts[m.order[i]]))
	}
	return result, nil
}

func (m *Memory) ListPendingSync(_ context.Context, maxAttempts int) ([]contract.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []contract.Contract
	for _, id := range m.order {
		c := m.contracts[id]
		if c.NeedsSync() && c.SyncAttempts < maxAttempts {
			result = append(result, clone(c))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Memory) UpdateSync(_ context.Context, id string, u contract.SyncUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[id]
	if !ok {
		return errors.Wrapf(contract.ErrNotFound, "id %s", id)
	}
	c.EmailStatus = u.EmailStatus
	c.CRMStatus = u.CRMStatus
	c.SyncAttempts = u.SyncAttempts
	c.LastSyncError = u.LastSyncError
	m.contracts[id] = c
	return nil
}

// clone copies the SEPA mandate so callers cannot mutate stored state.
func clone(c contract.Contract) contract.Contract {
	if c.Sepa != nil {
		sepa := *c.Sepa
		c.Sepa = &sepa
	}
	if c.Quote.Lines != nil {
		c.Quote.Lines = append(c.Quote.Lines[:0:0], c.Quote.Lines...)
	}
	return c
}
