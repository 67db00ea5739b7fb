// Command preview prints the simulated fill of a market order against an
// order book snapshot saved on disk.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/viralbet/fillsim/pkg/execution"
	"github.com/viralbet/fillsim/pkg/snapshot"
)

func main() {
	bookPath := flag.String("book", "", "path to an order book snapshot (JSON)")
	amountRaw := flag.String("amount", "", "dollars to spend (BUY) or raise (SELL)")
	sideRaw := flag.String("side", "BUY", "BUY or SELL")
	asJSON := flag.Bool("json", false, "print the raw result as JSON")
	flag.Parse()

	if *bookPath == "" || *amountRaw == "" {
		flag.Usage()
		os.Exit(2)
	}

	side, err := execution.ParseSide(*sideRaw)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(2)
	}
	amount, err := execution.ParseDecimal(*amountRaw)
	if err != nil || !amount.IsPositive() {
		fmt.Printf("Error: amount must be a positive number, got %q\n", *amountRaw)
		os.Exit(2)
	}

	raw, err := os.ReadFile(*bookPath)
	if err != nil {
		fmt.Printf("Error reading book: %v\n", err)
		os.Exit(1)
	}
	book, _, err := snapshot.Decode(raw)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	res := execution.ComputeFill(book, amount, side)

	if *asJSON {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling JSON: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	fmt.Println("Book:")
	fmt.Printf("  Hash: %s\n", snapshot.BookHash(book))
	fmt.Printf("  Bids: %d  Asks: %d\n", len(book.Bids), len(book.Asks))
	fmt.Printf("  Fair price: %s\n\n", execution.FairPrice(book).StringFixed(4))

	if !res.Success {
		fmt.Printf("✗ %s\n", res.Error)
		os.Exit(1)
	}

	fmt.Println(res.Summary)
	for i, step := range res.Steps {
		fmt.Printf("  %d. %s\n", i+1, step)
	}
	fmt.Println()
	fmt.Printf("  VWAP:             %s\n", res.VWAP.StringFixed(6))
	fmt.Printf("  Total cost:       $%s\n", res.TotalCost.StringFixed(2))
	fmt.Printf("  Shares:           %s\n", res.ExecutedShares.StringFixed(4))
	fmt.Printf("  Potential payout: $%s\n", res.PotentialPayout.StringFixed(2))
	fmt.Printf("  Price impact:     %s%%\n", res.PriceImpactPct.StringFixed(2))
}
