package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/viralbet/fillsim/params"
	"github.com/viralbet/fillsim/pkg/api"
	"github.com/viralbet/fillsim/pkg/market"
	"github.com/viralbet/fillsim/pkg/snapshot"
	"github.com/viralbet/fillsim/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := util.NewLoggerWithFile(cfg.Log.File, util.ParseLevel(cfg.Log.Level))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Log.File, "level", cfg.Log.Level)

	clock := util.RealClock{}

	// ---- Markets ----
	markets := market.NewRegistry()
	if cfg.MarketsFile != "" {
		n, err := market.LoadFile(markets, cfg.MarketsFile)
		if err != nil {
			sugar.Fatalw("markets_load_failed", "file", cfg.MarketsFile, "err", err)
		}
		sugar.Infow("markets_loaded", "file", cfg.MarketsFile, "count", n)
	}

	// ---- Snapshot backend ----
	var (
		provider snapshot.Provider
		store    snapshot.Store
	)
	switch cfg.Snapshot.Backend {
	case params.BackendMemory:
		mem := snapshot.NewMemoryStore(clock)
		provider, store = mem, mem
	case params.BackendPebble:
		db, err := snapshot.NewPebbleStore(cfg.Snapshot.DBPath, clock)
		if err != nil {
			sugar.Fatalw("pebble_open_failed", "path", cfg.Snapshot.DBPath, "err", err)
		}
		defer db.Close()
		provider, store = db, db
	case params.BackendCLOB:
		client := snapshot.NewCLOBClient(cfg.CLOB.BaseURL, &http.Client{Timeout: cfg.CLOB.Timeout})
		provider = snapshot.NewCLOBProvider(client, markets, cfg.CLOB.Timeout, clock)
	}
	sugar.Infow("snapshot_backend", "backend", cfg.Snapshot.Backend, "ingest_enabled", store != nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Snapshot.CacheTTL > 0 {
		cached := snapshot.NewCachedProvider(provider, cfg.Snapshot.CacheTTL, clock)
		go cached.RunPurger(ctx, 10*cfg.Snapshot.CacheTTL)
		provider = cached
		sugar.Infow("snapshot_cache_enabled", "ttl_ms", cfg.Snapshot.CacheTTL.Milliseconds())
	}

	// ---- API ----
	server := api.NewServer(api.Options{
		Provider:    provider,
		Store:       store,
		Markets:     markets,
		Logger:      sugar,
		Clock:       clock,
		DevMode:     cfg.API.DevMode,
		CORSOrigins: cfg.API.CORSOrigins,
	})

	start := time.Now()
	// Start closes the server (and its WebSocket hub) on return.
	if err := server.Start(ctx, cfg.API.Addr); err != nil {
		sugar.Errorw("api_server_failed", "err", err)
		return
	}
	sugar.Infow("server_stopped", "uptime", time.Since(start).String())
}
