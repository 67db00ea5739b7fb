package snapshot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viralbet/fillsim/pkg/execution"
	"github.com/viralbet/fillsim/pkg/market"
	"github.com/viralbet/fillsim/pkg/util"
)

const (
	yesTok = "21742633143463906290569050155826241533067272736897614950488156847949938836455"
	noTok  = "48331043336612883890938759509493159234755048973500640148014422747788308965732"

	sampleBook = `{"market":"0xabc","asset_id":"1","timestamp":"1700000000000",` +
		`"bids":[{"price":"0.48","size":"100"},{"price":"0.47","size":"250"}],` +
		`"asks":[{"price":"0.52","size":"80"}]}`
)

var t0 = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func TestDecode(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		book, ts, err := Decode([]byte(sampleBook))
		require.NoError(t, err)
		assert.Len(t, book.Bids, 2)
		assert.Equal(t, execution.Level("0.52", "80"), book.Asks[0])
		assert.Equal(t, time.UnixMilli(1700000000000), ts)
	})

	t.Run("double encoded string", func(t *testing.T) {
		raw := `"{\"bids\":[{\"price\":\"0.4\",\"size\":\"10\"}],\"asks\":[]}"`
		book, ts, err := Decode([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, []execution.OrderLevel{execution.Level("0.4", "10")}, book.Bids)
		assert.Empty(t, book.Asks)
		assert.True(t, ts.IsZero())
	})

	t.Run("numeric levels", func(t *testing.T) {
		book, _, err := Decode([]byte(`{"asks":[{"price":0.55,"size":12}]}`))
		require.NoError(t, err)
		assert.Equal(t, execution.Level("0.55", "12"), book.Asks[0])
	})

	t.Run("malformed level values read as empty", func(t *testing.T) {
		book, _, err := Decode([]byte(`{"asks":[{"price":true,"size":{}},{"price":null,"size":"3"}]}`))
		require.NoError(t, err)
		assert.Equal(t, execution.Level("", ""), book.Asks[0])
		assert.Equal(t, execution.Level("", "3"), book.Asks[1])
	})

	for name, raw := range map[string]string{
		"empty":            ``,
		"array":            `[1,2,3]`,
		"number":           `42`,
		"bids not a list":  `{"bids":"oops"}`,
		"level not object": `{"asks":[0.5]}`,
		"truncated":        `{"asks":[`,
		"bad string":       `"{\"asks\":`,
	} {
		t.Run("rejects "+name, func(t *testing.T) {
			_, _, err := Decode([]byte(raw))
			var de *DecodeError
			assert.True(t, errors.As(err, &de), "expected DecodeError, got %v", err)
		})
	}
}

func TestBookHashStable(t *testing.T) {
	a := execution.OrderBook{Asks: []execution.OrderLevel{execution.Level("0.5", "1")}}
	b := execution.OrderBook{Bids: []execution.OrderLevel{}, Asks: []execution.OrderLevel{execution.Level("0.5", "1")}}
	assert.Equal(t, BookHash(a), BookHash(b))
	assert.Len(t, BookHash(a), 66)

	c := execution.OrderBook{Asks: []execution.OrderLevel{execution.Level("0.5", "2")}}
	assert.NotEqual(t, BookHash(a), BookHash(c))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(util.NewManualClock(t0))

	_, err := s.Snapshot(ctx, "m1", market.Yes)
	assert.ErrorIs(t, err, ErrNotFound)

	snap, err := s.Put(ctx, "m1", market.Yes, []byte(`{"bids":[],"asks":[{"price":"0.6","size":"5"}]}`))
	require.NoError(t, err)
	assert.Equal(t, t0, snap.Timestamp, "missing timestamp falls back to clock")

	got, err := s.Snapshot(ctx, "m1", market.Yes)
	require.NoError(t, err)
	assert.Equal(t, snap.Hash, got.Hash)

	_, err = s.Snapshot(ctx, "m1", market.No)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Put(ctx, "m1", market.No, []byte(`not json`))
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(context.Background(), "m1", market.Yes))
	assert.Equal(t, 0, s.Len())
}

func TestPebbleStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewPebbleStore(dir, util.NewManualClock(t0))
	require.NoError(t, err)

	put, err := s.Put(ctx, "m1", market.No, []byte(sampleBook))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopen: data must survive
	s, err = NewPebbleStore(dir, util.NewManualClock(t0))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Snapshot(ctx, "m1", market.No)
	require.NoError(t, err)
	assert.Equal(t, put.Hash, got.Hash)
	assert.Equal(t, put.Book, got.Book)
	assert.Equal(t, time.UnixMilli(1700000000000), got.Timestamp)

	_, err = s.Snapshot(ctx, "m1", market.Yes)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(context.Background(), "m1", market.No))
	_, err = s.Snapshot(ctx, "m1", market.No)
	assert.ErrorIs(t, err, ErrNotFound)
}

func newRegistry(t *testing.T) *market.Registry {
	t.Helper()
	reg := market.NewRegistry()
	m, err := market.NewMarket("m1", "Will it rain?", yesTok, noTok)
	require.NoError(t, err)
	require.NoError(t, reg.Register(m))
	return reg
}

func TestCLOBProvider(t *testing.T) {
	const clobBook = `{"market":"0xabc","asset_id":"1",` +
		`"bids":[{"price":"0.01","size":"500"},{"price":"0.48","size":"100"}],` +
		`"asks":[{"price":"0.99","size":"20"},{"price":"0.52","size":"80"}]}`

	var lastToken atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/book" {
			http.NotFound(w, r)
			return
		}
		tok := r.URL.Query().Get("token_id")
		lastToken.Store(tok)
		switch tok {
		case yesTok:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(clobBook))
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"No orderbook exists for the requested token id"}`))
		}
	}))
	defer srv.Close()

	client := NewCLOBClient(srv.URL+"/", srv.Client())
	p := NewCLOBProvider(client, newRegistry(t), time.Second, util.NewManualClock(t0))
	ctx := context.Background()

	snap, err := p.Snapshot(ctx, "m1", market.Yes)
	require.NoError(t, err)
	assert.Equal(t, yesTok, lastToken.Load())
	assert.Equal(t, "m1", snap.MarketID)
	assert.Equal(t, t0, snap.Timestamp)
	require.Len(t, snap.Book.Bids, 2)
	assert.Equal(t, execution.Level("0.48", "100"), snap.Book.Bids[1])
	// CLOB lists levels worst-first; best prices come from the whole side.
	assert.Equal(t, "0.50", execution.FairPrice(snap.Book).StringFixed(2))

	_, err = p.Snapshot(ctx, "m1", market.No)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, noTok, lastToken.Load())

	_, err = p.Snapshot(ctx, "unknown", market.Yes)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCLOBProviderUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	p := NewCLOBProvider(NewCLOBClient(srv.URL, srv.Client()), newRegistry(t), time.Second, nil)
	_, err := p.Snapshot(context.Background(), "m1", market.Yes)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

type countingProvider struct {
	calls atomic.Int32
	err   error
}

func (c *countingProvider) Snapshot(_ context.Context, marketID string, outcome market.Outcome) (*Snapshot, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return newSnapshot(marketID, outcome, execution.OrderBook{}, t0), nil
}

func TestCachedProvider(t *testing.T) {
	ctx := context.Background()
	clock := util.NewManualClock(t0)
	up := &countingProvider{}
	c := NewCachedProvider(up, 2*time.Second, clock)

	_, err := c.Snapshot(ctx, "m1", market.Yes)
	require.NoError(t, err)
	_, err = c.Snapshot(ctx, "m1", market.Yes)
	require.NoError(t, err)
	assert.EqualValues(t, 1, up.calls.Load(), "second read within TTL should hit cache")

	_, _ = c.Snapshot(ctx, "m1", market.No)
	assert.EqualValues(t, 2, up.calls.Load(), "outcomes are cached separately")

	clock.Advance(2 * time.Second)
	_, _ = c.Snapshot(ctx, "m1", market.Yes)
	assert.EqualValues(t, 3, up.calls.Load(), "expired entry should refetch")

	c.Invalidate("m1", market.Yes)
	_, _ = c.Snapshot(ctx, "m1", market.Yes)
	assert.EqualValues(t, 4, up.calls.Load())

	clock.Advance(5 * time.Second)
	assert.Equal(t, 2, c.Purge())
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	up := &countingProvider{err: ErrNotFound}
	c := NewCachedProvider(up, time.Minute, util.NewManualClock(t0))

	for i := 0; i < 3; i++ {
		_, err := c.Snapshot(context.Background(), "m1", market.Yes)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.EqualValues(t, 3, up.calls.Load())
}
