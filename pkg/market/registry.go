package market

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages prediction markets in a thread-safe manner
// Supports registration, lookup, and status updates
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*Market // id -> market
}

// NewRegistry creates an empty market registry
func NewRegistry() *Registry {
	return &Registry{
		markets: make(map[string]*Market),
	}
}

// Register adds a new market to the registry
// Returns error if market with same id already exists
func (r *Registry) Register(m *Market) error {
	if m == nil {
		return fmt.Errorf("cannot register nil market")
	}
	if err := m.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[m.ID]; exists {
		return fmt.Errorf("market %s already registered", m.ID)
	}

	r.markets[m.ID] = m
	return nil
}

// Get retrieves a copy of a market by id
func (r *Registry) Get(id string) (Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.markets[id]
	if !exists {
		return Market{}, fmt.Errorf("market %s not found", id)
	}
	return *m, nil
}

// List returns copies of all registered markets ordered by id
func (r *Registry) List() []Market {
	return r.filter(func(*Market) bool { return true })
}

// ListActive returns only markets with Active status
func (r *Registry) ListActive() []Market {
	return r.filter(func(m *Market) bool { return m.Status == Active })
}

func (r *Registry) filter(keep func(*Market) bool) []Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Market, 0, len(r.markets))
	for _, m := range r.markets {
		if keep(m) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateStatus changes the trading status of a market
func (r *Registry) UpdateStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.markets[id]
	if !exists {
		return fmt.Errorf("market %s not found", id)
	}

	// Resolved is terminal
	if m.Status == Resolved && status != Resolved {
		return fmt.Errorf("cannot change status of market %s from Resolved", id)
	}

	m.Status = status
	return nil
}

// Remove deletes a resolved market from the registry
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.markets[id]
	if !exists {
		return fmt.Errorf("market %s not found", id)
	}
	if m.Status != Resolved {
		return fmt.Errorf("cannot remove market %s with status %s (must be Resolved)", id, m.Status)
	}

	delete(r.markets, id)
	return nil
}

// Count returns the total number of registered markets
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

// Exists checks if a market is registered
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.markets[id]
	return exists
}
