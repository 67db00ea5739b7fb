// Package snapshot supplies order book snapshots to the execution simulator.
// Providers fetch, store or cache books; none of them simulate anything.
package snapshot

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/viralbet/fillsim/pkg/execution"
	"github.com/viralbet/fillsim/pkg/market"
)

// ErrNotFound is returned when no book exists for a market outcome.
var ErrNotFound = errors.New("order book snapshot not found")

// DecodeError wraps a payload that cannot be read as an order book.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode order book snapshot: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Snapshot is one immutable order book read. Callers share it and must not
// modify Book.
type Snapshot struct {
	MarketID  string
	Outcome   market.Outcome
	Book      execution.OrderBook
	Timestamp time.Time
	Hash      string
}

// Provider returns the current book for a market outcome.
type Provider interface {
	Snapshot(ctx context.Context, marketID string, outcome market.Outcome) (*Snapshot, error)
}

// Store is a Provider that also accepts raw snapshots from a publisher.
// Deleting a missing book is not an error.
type Store interface {
	Provider
	Put(ctx context.Context, marketID string, outcome market.Outcome, raw []byte) (*Snapshot, error)
	Delete(ctx context.Context, marketID string, outcome market.Outcome) error
}

func key(marketID string, outcome market.Outcome) string {
	return "ob:" + marketID + ":" + outcome.String()
}

// BookHash is the Keccak-256 of the book's canonical JSON encoding.
func BookHash(book execution.OrderBook) string {
	data, _ := json.Marshal(canonical(book))
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// canonical replaces nil sides with empty ones so hashes and encodings
// do not depend on how the book was built.
func canonical(book execution.OrderBook) execution.OrderBook {
	if book.Bids == nil {
		book.Bids = []execution.OrderLevel{}
	}
	if book.Asks == nil {
		book.Asks = []execution.OrderLevel{}
	}
	return book
}

func newSnapshot(marketID string, outcome market.Outcome, book execution.OrderBook, ts time.Time) *Snapshot {
	book = canonical(book)
	return &Snapshot{
		MarketID:  marketID,
		Outcome:   outcome,
		Book:      book,
		Timestamp: ts,
		Hash:      BookHash(book),
	}
}
