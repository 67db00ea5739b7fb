package api

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// PreviewResponse is the body of GET /execution-preview.
// Numeric fields are omitted when Success is false.
type PreviewResponse struct {
	Success         bool     `json:"success"`
	VWAP            *float64 `json:"vwap,omitempty"`
	TotalCost       *float64 `json:"totalCost,omitempty"`
	ExecutedShares  *float64 `json:"executedShares,omitempty"`
	PotentialPayout *float64 `json:"potentialPayout,omitempty"`
	PriceImpactPct  *float64 `json:"price_impact_pct,omitempty"`
	FairPrice       *float64 `json:"fair_price,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	Steps           []string `json:"steps,omitempty"`
	Error           string   `json:"error,omitempty"`

	MarketID     string `json:"market_id"`
	Outcome      string `json:"outcome"`
	Side         string `json:"side"`
	SnapshotHash string `json:"snapshot_hash,omitempty"`
	RequestID    string `json:"request_id"`
	Timestamp    string `json:"timestamp"` // RFC3339, server time
}

// ErrorResponse is returned for all protocol-level errors (4xx/5xx)
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"` // internal detail, dev mode only for 5xx
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// MarketInfo represents a market's static configuration
type MarketInfo struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	YesTokenID string `json:"yesTokenId,omitempty"`
	NoTokenID  string `json:"noTokenId,omitempty"`
	Status     string `json:"status"` // "Active", "Paused", "Resolved"
}

// MarketStatusRequest is the body of PUT /api/v1/markets/{id}/status
type MarketStatusRequest struct {
	Status string `json:"status"` // "active", "paused" or "resolved"
}

// PriceLevel is one raw [price, size] quote as stored
type PriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// OrderbookSnapshot represents a stored book for one market outcome
type OrderbookSnapshot struct {
	MarketID  string       `json:"market_id"`
	Outcome   string       `json:"outcome"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	BestBid   float64      `json:"best_bid"`
	BestAsk   float64      `json:"best_ask"`
	FairPrice float64      `json:"fair_price"`
	// Usable liquidity per side, in shares and in dollars.
	BidDepth    float64 `json:"bid_depth"`
	AskDepth    float64 `json:"ask_depth"`
	BidNotional float64 `json:"bid_notional"`
	AskNotional float64 `json:"ask_notional"`
	Timestamp   int64   `json:"timestamp"` // Unix milliseconds
	Hash        string  `json:"hash"`
}

// IngestResponse acknowledges a stored snapshot
type IngestResponse struct {
	Status    string `json:"status"` // "stored"
	MarketID  string `json:"market_id"`
	Outcome   string `json:"outcome"`
	Bids      int    `json:"bids"`
	Asks      int    `json:"asks"`
	Hash      string `json:"hash"`
	Timestamp int64  `json:"timestamp"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orderbook:<market>:YES"]
}

// OrderbookUpdate is broadcast whenever a snapshot is ingested
type OrderbookUpdate struct {
	Type      string       `json:"type"` // "orderbook"
	MarketID  string       `json:"market_id"`
	Outcome   string       `json:"outcome"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	FairPrice float64      `json:"fair_price"`
	Timestamp int64        `json:"timestamp"`
	Hash      string       `json:"hash"`
}
