// Package execution simulates cost-bounded market orders against an order book
// snapshot. It performs no I/O and keeps no state between calls.
package execution

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// User-facing failure messages.
const (
	ErrMsgNoLiquidity   = "No orders available on the selected side."
	ErrMsgAmountTooLow  = "Investment amount is too low to purchase any shares at current prices."
	ErrMsgInvalidAmount = "Investment amount must be a positive number."
)

var (
	// Epsilon is the budget residue below which the walk stops.
	Epsilon = decimal.New(1, -6)

	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// ComputeFill walks one side of the book, best price first, spending up to
// targetCost. BUY consumes asks, SELL consumes bids. Expected adverse outcomes
// (empty side, budget too small) come back as Success=false, never as panics.
// The book is read-only: sorting happens on a parsed copy.
func ComputeFill(book OrderBook, targetCost decimal.Decimal, side Side) Result {
	if !targetCost.IsPositive() || !inRange(targetCost) {
		return failure(ErrMsgInvalidAmount)
	}

	raw := book.Asks
	if side == Sell {
		raw = book.Bids
	}
	levels := parseLevels(raw)
	if len(levels) == 0 {
		return failure(ErrMsgNoLiquidity)
	}
	sortForSide(levels, side)

	remaining := targetCost
	shares := decimal.Zero
	spent := decimal.Zero
	steps := make([]Step, 0, len(levels))

	for _, lvl := range levels {
		if remaining.LessThan(Epsilon) {
			break
		}

		clearCost := lvl.price.Mul(lvl.size)
		if remaining.GreaterThanOrEqual(clearCost) {
			shares = shares.Add(lvl.size)
			spent = spent.Add(clearCost)
			remaining = remaining.Sub(clearCost)
			steps = append(steps, Step{Side: side, Price: lvl.price, Shares: lvl.size, Cost: clearCost})
			continue
		}

		// Partial fill: the rest of the budget goes into this level.
		partial := remaining.Div(lvl.price)
		shares = shares.Add(partial)
		spent = spent.Add(remaining)
		steps = append(steps, Step{Side: side, Price: lvl.price, Shares: partial, Cost: remaining, Partial: true})
		remaining = decimal.Zero
		break
	}

	if !shares.IsPositive() {
		return failure(ErrMsgAmountTooLow)
	}

	vwap := spent.Div(shares)
	fair := FairPrice(book)
	impact := decimal.Zero
	if fair.IsPositive() {
		impact = vwap.Sub(fair).Div(fair).Mul(hundred)
	}

	res := Result{
		Success:         true,
		VWAP:            vwap,
		TotalCost:       spent,
		ExecutedShares:  shares,
		PotentialPayout: shares, // each winning share redeems for exactly 1
		PriceImpactPct:  impact,
		FairPrice:       fair,
		Unspent:         remaining,
		Steps:           steps,
	}
	res.Summary = summarize(side, targetCost, res)
	return res
}

func failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

func summarize(side Side, target decimal.Decimal, r Result) string {
	sign := ""
	if r.PriceImpactPct.IsPositive() {
		sign = "+"
	}
	s := fmt.Sprintf("%s $%s: %s shares @ avg $%s across %d level(s) (impact %s%s%%)",
		side,
		target.StringFixed(2),
		r.ExecutedShares.StringFixed(4),
		r.VWAP.StringFixed(4),
		len(r.Steps),
		sign,
		r.PriceImpactPct.StringFixed(2),
	)
	if r.Unspent.GreaterThanOrEqual(Epsilon) {
		s += fmt.Sprintf("; book exhausted, $%s unfilled", r.Unspent.StringFixed(2))
	}
	return s
}
