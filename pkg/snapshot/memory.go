package snapshot

import (
	"context"
	"sync"

	"github.com/viralbet/fillsim/pkg/market"
	"github.com/viralbet/fillsim/pkg/util"
)

// MemoryStore keeps the latest snapshot per market outcome in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	books map[string]*Snapshot
	clock util.Clock
}

func NewMemoryStore(clock util.Clock) *MemoryStore {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &MemoryStore{
		books: make(map[string]*Snapshot),
		clock: clock,
	}
}

func (s *MemoryStore) Snapshot(_ context.Context, marketID string, outcome market.Outcome) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.books[key(marketID, outcome)]
	if !ok {
		return nil, ErrNotFound
	}
	return snap, nil
}

// Put decodes raw and replaces the stored snapshot.
func (s *MemoryStore) Put(_ context.Context, marketID string, outcome market.Outcome, raw []byte) (*Snapshot, error) {
	book, ts, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if ts.IsZero() {
		ts = s.clock.Now()
	}
	snap := newSnapshot(marketID, outcome, book, ts)

	s.mu.Lock()
	s.books[key(marketID, outcome)] = snap
	s.mu.Unlock()
	return snap, nil
}

func (s *MemoryStore) Delete(_ context.Context, marketID string, outcome market.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.books, key(marketID, outcome))
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.books)
}

var _ Store = (*MemoryStore)(nil)
