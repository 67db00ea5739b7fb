package execution

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Side selects which half of the book a market order consumes.
type Side int8

const (
	Buy  Side = iota // walks asks
	Sell             // walks bids
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return Buy, fmt.Errorf("invalid side %q (expected BUY or SELL)", s)
	}
}

// OrderLevel is one price/size quote as delivered by the feed.
// Values are kept as raw decimal strings and parsed defensively by the walker.
type OrderLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Level builds an OrderLevel from decimal strings.
func Level(price, size string) OrderLevel {
	return OrderLevel{Price: price, Size: size}
}

// LevelFromFloat builds an OrderLevel from numeric values.
func LevelFromFloat(price, size float64) OrderLevel {
	return OrderLevel{
		Price: strconv.FormatFloat(price, 'f', -1, 64),
		Size:  strconv.FormatFloat(size, 'f', -1, 64),
	}
}

// OrderBook is a two-sided snapshot for one market outcome.
// Levels may be in any order; callers' slices are never reordered.
type OrderBook struct {
	Bids []OrderLevel `json:"bids"`
	Asks []OrderLevel `json:"asks"`
}

// Step records the fill taken from a single price level.
type Step struct {
	Side    Side
	Price   decimal.Decimal
	Shares  decimal.Decimal
	Cost    decimal.Decimal
	Partial bool
}

func (s Step) String() string {
	verb := "Bought"
	if s.Side == Sell {
		verb = "Sold"
	}
	if s.Partial {
		verb = "Partially " + strings.ToLower(verb)
	}
	return fmt.Sprintf("%s %s shares at $%s ($%s)",
		verb, s.Shares.StringFixed(4), s.Price.StringFixed(4), s.Cost.StringFixed(2))
}

// Result is the fill summary of one simulated market order.
// Numeric fields are only meaningful when Success is true.
type Result struct {
	Success bool
	Error   string

	VWAP            decimal.Decimal
	TotalCost       decimal.Decimal
	ExecutedShares  decimal.Decimal
	PotentialPayout decimal.Decimal
	PriceImpactPct  decimal.Decimal
	FairPrice       decimal.Decimal

	// Unspent is the part of the budget left over when the book ran out.
	Unspent decimal.Decimal

	Summary string
	Steps   []Step
}

// StepDescriptions renders Steps in order.
func (r Result) StepDescriptions() []string {
	out := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.String()
	}
	return out
}
