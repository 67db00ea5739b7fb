package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/clobtypes"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/transport"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/types"

	"github.com/viralbet/fillsim/pkg/execution"
	"github.com/viralbet/fillsim/pkg/market"
	"github.com/viralbet/fillsim/pkg/util"
)

const geoblockURL = "https://polymarket.com"

// NewCLOBClient builds an unauthenticated CLOB client; only public
// market-data endpoints are used.
func NewCLOBClient(baseURL string, doer transport.Doer) clob.Client {
	if doer == nil {
		doer = &http.Client{}
	}
	return clob.NewClientWithGeoblock(transport.NewClient(doer, strings.TrimRight(baseURL, "/")), geoblockURL)
}

// CLOBProvider reads books from the Polymarket CLOB,
// resolving market outcomes to token ids through the registry.
type CLOBProvider struct {
	client  clob.Client
	markets *market.Registry
	timeout time.Duration
	clock   util.Clock
}

func NewCLOBProvider(client clob.Client, markets *market.Registry, timeout time.Duration, clock util.Clock) *CLOBProvider {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &CLOBProvider{
		client:  client,
		markets: markets,
		timeout: timeout,
		clock:   clock,
	}
}

func (p *CLOBProvider) Snapshot(ctx context.Context, marketID string, outcome market.Outcome) (*Snapshot, error) {
	m, err := p.markets.Get(marketID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	tokenID := m.TokenID(outcome)
	if tokenID == "" {
		return nil, fmt.Errorf("%w: market %s has no %s token", ErrNotFound, marketID, outcome)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	resp, err := p.client.OrderBook(ctx, &clobtypes.BookRequest{TokenID: tokenID})
	if err != nil {
		var apiErr *types.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: no CLOB book for token %s", ErrNotFound, tokenID)
		}
		return nil, fmt.Errorf("fetch book for token %s: %w", tokenID, err)
	}

	book := execution.OrderBook{
		Bids: fromCLOBLevels(resp.Bids),
		Asks: fromCLOBLevels(resp.Asks),
	}
	return newSnapshot(marketID, outcome, book, p.clock.Now()), nil
}

func fromCLOBLevels(in []clobtypes.PriceLevel) []execution.OrderLevel {
	out := make([]execution.OrderLevel, len(in))
	for i, l := range in {
		out[i] = execution.Level(l.Price, l.Size)
	}
	return out
}

var _ Provider = (*CLOBProvider)(nil)
