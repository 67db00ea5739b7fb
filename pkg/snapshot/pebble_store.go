package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/viralbet/fillsim/pkg/market"
	"github.com/viralbet/fillsim/pkg/util"
)

// PebbleStore persists the latest snapshot per market outcome on disk.
// keys: ob:<market>:<YES|NO>, values: JSON book as accepted by Decode
type PebbleStore struct {
	db    *pebble.DB
	clock util.Clock
}

func NewPebbleStore(path string, clock util.Clock) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db %s: %w", path, err)
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &PebbleStore{db: db, clock: clock}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) Snapshot(_ context.Context, marketID string, outcome market.Outcome) (*Snapshot, error) {
	val, closer, err := s.db.Get([]byte(key(marketID, outcome)))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	defer closer.Close()

	book, ts, err := Decode(val)
	if err != nil {
		return nil, err
	}
	return newSnapshot(marketID, outcome, book, ts), nil
}

// Put decodes raw and stores its normalized form.
func (s *PebbleStore) Put(_ context.Context, marketID string, outcome market.Outcome, raw []byte) (*Snapshot, error) {
	book, ts, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if ts.IsZero() {
		ts = s.clock.Now()
	}
	snap := newSnapshot(marketID, outcome, book, ts)

	data, err := encode(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.db.Set([]byte(key(marketID, outcome)), data, pebble.Sync); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	return snap, nil
}

func (s *PebbleStore) Delete(_ context.Context, marketID string, outcome market.Outcome) error {
	if err := s.db.Delete([]byte(key(marketID, outcome)), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

var _ Store = (*PebbleStore)(nil)
