package execution

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxExponent bounds the decimal exponent of any price, size or amount.
// Values outside 1e-30..1e30 in scale are rejected before arithmetic.
const MaxExponent = 30

type level struct {
	price decimal.Decimal
	size  decimal.Decimal
}

// ParseDecimal parses s as a finite decimal. The exponent is checked
// before any conversion so inputs like "1e300000000" are cheap to reject.
func ParseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, err
	}
	if !inRange(d) {
		return decimal.Zero, fmt.Errorf("%q is out of range", s)
	}
	return d, nil
}

func inRange(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp > MaxExponent || exp < -MaxExponent {
		return false
	}
	return !math.IsInf(d.InexactFloat64(), 0)
}

// parseAmount never fails: anything that is not a finite decimal reads as zero.
func parseAmount(s string) decimal.Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseLevels returns a private copy of the usable levels.
// Levels with a non-positive price or size contribute nothing and are dropped.
func parseLevels(raw []OrderLevel) []level {
	out := make([]level, 0, len(raw))
	for _, l := range raw {
		p := parseAmount(l.Price)
		sz := parseAmount(l.Size)
		if !p.IsPositive() || !sz.IsPositive() {
			continue
		}
		out = append(out, level{price: p, size: sz})
	}
	return out
}

// sortForSide orders levels best price first: asks ascending, bids descending.
func sortForSide(levels []level, side Side) {
	if side == Buy {
		sort.SliceStable(levels, func(i, j int) bool {
			return levels[i].price.LessThan(levels[j].price)
		})
		return
	}
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].price.GreaterThan(levels[j].price)
	})
}

// BestBid returns the highest usable bid price, or zero.
func BestBid(book OrderBook) decimal.Decimal {
	best := decimal.Zero
	for _, l := range parseLevels(book.Bids) {
		if l.price.GreaterThan(best) {
			best = l.price
		}
	}
	return best
}

// BestAsk returns the lowest usable ask price, or zero.
func BestAsk(book OrderBook) decimal.Decimal {
	best := decimal.Zero
	for _, l := range parseLevels(book.Asks) {
		if best.IsZero() || l.price.LessThan(best) {
			best = l.price
		}
	}
	return best
}

// FairPrice is the mid of best bid and best ask when both exist,
// otherwise whichever side is quoted, otherwise zero.
// It is an approximation: on a thin book the quote being walked is also
// the reference price, so impact against it can under- or overstate slippage.
func FairPrice(book OrderBook) decimal.Decimal {
	bid, ask := BestBid(book), BestAsk(book)
	switch {
	case bid.IsPositive() && ask.IsPositive():
		return bid.Add(ask).Div(two)
	case ask.IsPositive():
		return ask
	case bid.IsPositive():
		return bid
	default:
		return decimal.Zero
	}
}

// Depth sums the usable liquidity on one side: shares and their notional value.
func Depth(levels []OrderLevel) (shares, notional decimal.Decimal) {
	shares, notional = decimal.Zero, decimal.Zero
	for _, l := range parseLevels(levels) {
		shares = shares.Add(l.size)
		notional = notional.Add(l.price.Mul(l.size))
	}
	return shares, notional
}
