package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/viralbet/fillsim/pkg/execution"
	"github.com/viralbet/fillsim/pkg/market"
	"github.com/viralbet/fillsim/pkg/snapshot"
	"github.com/viralbet/fillsim/pkg/util"
)

const maxIngestBytes = 8 << 20

// Options wires the server's collaborators.
type Options struct {
	Provider snapshot.Provider
	// Store enables PUT ingest when set; it is usually the same object
	// that backs Provider.
	Store       snapshot.Store
	Markets     *market.Registry
	Logger      *zap.SugaredLogger
	Clock       util.Clock
	DevMode     bool
	CORSOrigins []string
}

// invalidator is implemented by caching providers.
type invalidator interface {
	Invalidate(marketID string, outcome market.Outcome)
}

// Server handles REST API and WebSocket connections
type Server struct {
	provider snapshot.Provider
	store    snapshot.Store
	markets  *market.Registry
	log      *zap.SugaredLogger
	clock    util.Clock
	devMode  bool
	origins  []string

	router  *mux.Router
	hub     *Hub
	stopHub context.CancelFunc
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = util.RealClock{}
	}
	if opts.Markets == nil {
		opts.Markets = market.NewRegistry()
	}

	s := &Server{
		provider: opts.Provider,
		store:    opts.Store,
		markets:  opts.Markets,
		log:      opts.Logger,
		clock:    opts.Clock,
		devMode:  opts.DevMode,
		origins:  opts.CORSOrigins,
		router:   mux.NewRouter(),
		hub:      NewHub(opts.Logger),
	}

	hubCtx, cancel := context.WithCancel(context.Background())
	s.stopHub = cancel
	go s.hub.Run(hubCtx)

	s.setupRoutes()
	return s
}

// Close stops the WebSocket hub and disconnects its clients.
func (s *Server) Close() { s.stopHub() }

func (s *Server) setupRoutes() {
	s.router.Use(s.recoverMiddleware)

	s.router.HandleFunc("/execution-preview", s.handleExecutionPreview).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/execution-preview", s.handleExecutionPreview).Methods("GET")

	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{id}", s.handleGetMarket).Methods("GET")
	api.HandleFunc("/markets/{id}", s.handleDeleteMarket).Methods("DELETE")
	api.HandleFunc("/markets/{id}/status", s.handleUpdateMarketStatus).Methods("PUT")
	api.HandleFunc("/markets/{id}/orderbook/{outcome}", s.handleGetOrderbook).Methods("GET")
	if s.store != nil {
		api.HandleFunc("/markets/{id}/orderbook/{outcome}", s.handlePutOrderbook).Methods("PUT")
	}

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "If-None-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Hub exposes the WebSocket hub (for broadcasting from other components).
func (s *Server) Hub() *Hub { return s.hub }

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Infow("api_server_listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ==============================
// Execution preview
// ==============================

func (s *Server) handleExecutionPreview(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	q := r.URL.Query()

	marketID := strings.TrimSpace(q.Get("market_id"))
	outcomeRaw := strings.TrimSpace(q.Get("outcome"))
	amountRaw := strings.TrimSpace(q.Get("amount"))
	sideRaw := strings.TrimSpace(q.Get("side"))

	var missing []string
	for _, p := range []struct{ name, val string }{
		{"market_id", marketID}, {"outcome", outcomeRaw}, {"amount", amountRaw}, {"side", sideRaw},
	} {
		if p.val == "" {
			missing = append(missing, p.name)
		}
	}
	if len(missing) > 0 {
		s.respondError(w, reqID, http.StatusBadRequest, "missing required parameters: "+strings.Join(missing, ", "), nil)
		return
	}

	outcome, err := market.ParseOutcome(outcomeRaw)
	if err != nil {
		s.respondError(w, reqID, http.StatusBadRequest, err.Error(), nil)
		return
	}
	side, err := execution.ParseSide(sideRaw)
	if err != nil {
		s.respondError(w, reqID, http.StatusBadRequest, err.Error(), nil)
		return
	}
	amount, err := parseAmount(amountRaw)
	if err != nil {
		s.respondError(w, reqID, http.StatusBadRequest, err.Error(), nil)
		return
	}

	// Unregistered ids are allowed: ingest-backed stores key books by any id.
	if m, err := s.markets.Get(marketID); err == nil && m.Status != market.Active {
		s.respondError(w, reqID, http.StatusConflict,
			fmt.Sprintf("market %s is %s", marketID, m.Status), nil)
		return
	}

	snap, err := s.provider.Snapshot(r.Context(), marketID, outcome)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			s.respondError(w, reqID, http.StatusNotFound,
				fmt.Sprintf("no order book for market %s outcome %s", marketID, outcome), nil)
			return
		}
		s.log.Errorw("snapshot_fetch_failed", "request_id", reqID, "market_id", marketID, "outcome", outcome.String(), "err", err)
		s.respondError(w, reqID, http.StatusInternalServerError, "failed to load order book", err)
		return
	}

	res := execution.ComputeFill(snap.Book, amount, side)

	s.log.Infow("execution_preview",
		"request_id", reqID,
		"market_id", marketID,
		"outcome", outcome.String(),
		"side", side.String(),
		"amount", amount.String(),
		"success", res.Success,
		"vwap", res.VWAP.String(),
		"impact_pct", res.PriceImpactPct.StringFixed(4),
		"levels", len(res.Steps),
		"snapshot_hash", snap.Hash)

	resp := PreviewResponse{
		Success:      res.Success,
		Error:        res.Error,
		MarketID:     marketID,
		Outcome:      outcome.String(),
		Side:         side.String(),
		SnapshotHash: snap.Hash,
		RequestID:    reqID,
		Timestamp:    s.clock.Now().UTC().Format(time.RFC3339Nano),
	}
	if res.Success {
		resp.VWAP = f64ptr(res.VWAP)
		resp.TotalCost = f64ptr(res.TotalCost)
		resp.ExecutedShares = f64ptr(res.ExecutedShares)
		resp.PotentialPayout = f64ptr(res.PotentialPayout)
		resp.PriceImpactPct = f64ptr(res.PriceImpactPct)
		resp.FairPrice = f64ptr(res.FairPrice)
		resp.Summary = res.Summary
		resp.Steps = res.StepDescriptions()
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// parseAmount accepts a positive, finite decimal string.
func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := execution.ParseDecimal(raw)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be a positive number, got %q", raw)
	}
	return amount, nil
}

func f64ptr(d decimal.Decimal) *float64 {
	v := d.InexactFloat64()
	return &v
}

// ==============================
// Markets & order books
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.markets.List()
	if r.URL.Query().Get("active") == "true" {
		markets = s.markets.ListActive()
	}
	response := make([]MarketInfo, len(markets))
	for i, m := range markets {
		response[i] = toMarketInfo(m)
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m, err := s.markets.Get(id)
	if err != nil {
		s.respondError(w, "", http.StatusNotFound, "market not found", nil)
		return
	}
	s.respondJSON(w, http.StatusOK, toMarketInfo(m))
}

// handleUpdateMarketStatus pauses, resumes or resolves a market.
func (s *Server) handleUpdateMarketStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.markets.Exists(id) {
		s.respondError(w, "", http.StatusNotFound, "market not found", nil)
		return
	}

	var req MarketStatusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil {
		s.respondError(w, "", http.StatusBadRequest, "invalid request body", err)
		return
	}
	status, err := market.ParseStatus(req.Status)
	if err != nil {
		s.respondError(w, "", http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := s.markets.UpdateStatus(id, status); err != nil {
		s.respondError(w, "", http.StatusConflict, err.Error(), nil)
		return
	}

	m, err := s.markets.Get(id)
	if err != nil {
		s.respondError(w, "", http.StatusNotFound, "market not found", nil)
		return
	}
	s.log.Infow("market_status_updated", "market_id", id, "status", m.Status.String())
	s.respondJSON(w, http.StatusOK, toMarketInfo(m))
}

// handleDeleteMarket removes a resolved market and its stored books.
func (s *Server) handleDeleteMarket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.markets.Exists(id) {
		s.respondError(w, "", http.StatusNotFound, "market not found", nil)
		return
	}
	if err := s.markets.Remove(id); err != nil {
		s.respondError(w, "", http.StatusConflict, err.Error(), nil)
		return
	}

	for _, outcome := range []market.Outcome{market.Yes, market.No} {
		if s.store != nil {
			if err := s.store.Delete(r.Context(), id, outcome); err != nil {
				s.log.Errorw("snapshot_delete_failed", "market_id", id, "outcome", outcome.String(), "err", err)
				s.respondError(w, "", http.StatusInternalServerError, "failed to delete order book", err)
				return
			}
		}
		if inv, ok := s.provider.(invalidator); ok {
			inv.Invalidate(id, outcome)
		}
	}

	s.log.Infow("market_removed", "market_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func toMarketInfo(m market.Market) MarketInfo {
	return MarketInfo{
		ID:         m.ID,
		Question:   m.Question,
		YesTokenID: m.YesTokenID,
		NoTokenID:  m.NoTokenID,
		Status:     m.Status.String(),
	}
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	outcome, err := market.ParseOutcome(vars["outcome"])
	if err != nil {
		s.respondError(w, "", http.StatusBadRequest, err.Error(), nil)
		return
	}

	snap, err := s.provider.Snapshot(r.Context(), vars["id"], outcome)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			s.respondError(w, "", http.StatusNotFound, "orderbook not found", nil)
			return
		}
		s.log.Errorw("snapshot_fetch_failed", "market_id", vars["id"], "outcome", outcome.String(), "err", err)
		s.respondError(w, "", http.StatusInternalServerError, "failed to load order book", err)
		return
	}

	etag := `"` + snap.Hash + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	bidShares, bidNotional := execution.Depth(snap.Book.Bids)
	askShares, askNotional := execution.Depth(snap.Book.Asks)

	s.respondJSON(w, http.StatusOK, OrderbookSnapshot{
		MarketID:    snap.MarketID,
		Outcome:     snap.Outcome.String(),
		Bids:        toPriceLevels(snap.Book.Bids),
		Asks:        toPriceLevels(snap.Book.Asks),
		BestBid:     execution.BestBid(snap.Book).InexactFloat64(),
		BestAsk:     execution.BestAsk(snap.Book).InexactFloat64(),
		FairPrice:   execution.FairPrice(snap.Book).InexactFloat64(),
		BidDepth:    bidShares.InexactFloat64(),
		AskDepth:    askShares.InexactFloat64(),
		BidNotional: bidNotional.InexactFloat64(),
		AskNotional: askNotional.InexactFloat64(),
		Timestamp:   snap.Timestamp.UnixMilli(),
		Hash:        snap.Hash,
	})
}

func (s *Server) handlePutOrderbook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	marketID := vars["id"]
	outcome, err := market.ParseOutcome(vars["outcome"])
	if err != nil {
		s.respondError(w, "", http.StatusBadRequest, err.Error(), nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBytes))
	if err != nil {
		s.respondError(w, "", http.StatusBadRequest, "failed to read body", err)
		return
	}

	snap, err := s.store.Put(r.Context(), marketID, outcome, body)
	if err != nil {
		var de *snapshot.DecodeError
		if errors.As(err, &de) {
			s.respondError(w, "", http.StatusBadRequest, "invalid order book payload", err)
			return
		}
		s.log.Errorw("snapshot_store_failed", "market_id", marketID, "outcome", outcome.String(), "err", err)
		s.respondError(w, "", http.StatusInternalServerError, "failed to store order book", err)
		return
	}

	if inv, ok := s.provider.(invalidator); ok {
		inv.Invalidate(marketID, outcome)
	}

	update := OrderbookUpdate{
		Type:      "orderbook",
		MarketID:  marketID,
		Outcome:   outcome.String(),
		Bids:      toPriceLevels(snap.Book.Bids),
		Asks:      toPriceLevels(snap.Book.Asks),
		FairPrice: execution.FairPrice(snap.Book).InexactFloat64(),
		Timestamp: snap.Timestamp.UnixMilli(),
		Hash:      snap.Hash,
	}
	delivered := s.hub.BroadcastToChannel(orderbookChannel(marketID, outcome), update)

	s.log.Infow("snapshot_ingested",
		"market_id", marketID,
		"outcome", outcome.String(),
		"bids", len(snap.Book.Bids),
		"asks", len(snap.Book.Asks),
		"hash", snap.Hash,
		"ws_delivered", delivered)

	s.respondJSON(w, http.StatusOK, IngestResponse{
		Status:    "stored",
		MarketID:  marketID,
		Outcome:   outcome.String(),
		Bids:      len(snap.Book.Bids),
		Asks:      len(snap.Book.Asks),
		Hash:      snap.Hash,
		Timestamp: snap.Timestamp.UnixMilli(),
	})
}

func orderbookChannel(marketID string, outcome market.Outcome) string {
	return "orderbook:" + marketID + ":" + outcome.String()
}

func toPriceLevels(levels []execution.OrderLevel) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price, Size: l.Size}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":     "ok",
		"markets":    s.markets.Count(),
		"ws_clients": s.hub.ClientCount(),
	}
	if counter, ok := s.store.(interface{ Len() int }); ok {
		body["snapshots"] = counter.Len()
	}
	s.respondJSON(w, http.StatusOK, body)
}

// ==============================
// Helper Functions
// ==============================

// recoverMiddleware turns handler panics into 500 responses.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Errorw("handler_panic", "path", r.URL.Path, "panic", rec)
				s.respondError(w, "", http.StatusInternalServerError, "internal server error", fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// respondJSON encodes before writing the header, so an unencodable body
// becomes a 500 instead of an empty 200.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		s.log.Errorw("response_encode_failed", "status", status, "err", err)
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"error":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		s.log.Debugw("response_write_failed", "err", err)
	}
}

// respondError writes an ErrorResponse. cause is only exposed for 4xx
// responses or when the server runs in dev mode.
func (s *Server) respondError(w http.ResponseWriter, reqID string, status int, msg string, cause error) {
	resp := ErrorResponse{
		Success:   false,
		Error:     msg,
		RequestID: reqID,
		Timestamp: s.clock.Now().UTC().Format(time.RFC3339Nano),
	}
	if cause != nil && (status < 500 || s.devMode) {
		resp.Message = cause.Error()
	}
	s.respondJSON(w, status, resp)
}
