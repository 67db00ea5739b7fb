package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Snapshot backends
const (
	BackendMemory = "memory" // books pushed through the ingest endpoint, lost on restart
	BackendPebble = "pebble" // books pushed through the ingest endpoint, persisted
	BackendCLOB   = "clob"   // books fetched live from the Polymarket CLOB
)

type API struct {
	Addr        string
	CORSOrigins []string
	// DevMode adds internal error detail to 500 responses.
	DevMode bool
}

type Snapshot struct {
	Backend  string
	DBPath   string
	CacheTTL time.Duration // 0 disables caching
}

type CLOB struct {
	BaseURL string
	Timeout time.Duration
}

type Log struct {
	File  string
	Level string
}

type Config struct {
	API         API
	Snapshot    Snapshot
	CLOB        CLOB
	Log         Log
	MarketsFile string
}

func Default() Config {
	return Config{
		API: API{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Snapshot: Snapshot{
			Backend:  BackendMemory,
			DBPath:   "data/snapshots",
			CacheTTL: 2 * time.Second,
		},
		CLOB: CLOB{
			BaseURL: "https://clob.polymarket.com",
			Timeout: 5 * time.Second,
		},
		Log: Log{
			File:  "data/server.log",
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.API.CORSOrigins = splitList(origins)
	}
	if dev := os.Getenv("DEV_MODE"); dev != "" {
		cfg.API.DevMode = parseBool(dev)
	}

	cfg.Snapshot.Backend = strings.ToLower(getEnv("SNAPSHOT_BACKEND", cfg.Snapshot.Backend))
	cfg.Snapshot.DBPath = getEnv("SNAPSHOT_DB", cfg.Snapshot.DBPath)
	if ttl := os.Getenv("SNAPSHOT_CACHE_TTL_MS"); ttl != "" {
		if ms, err := strconv.Atoi(ttl); err == nil && ms >= 0 {
			cfg.Snapshot.CacheTTL = time.Duration(ms) * time.Millisecond
		}
	}

	cfg.CLOB.BaseURL = getEnv("CLOB_BASE_URL", cfg.CLOB.BaseURL)
	if timeout := os.Getenv("CLOB_TIMEOUT_MS"); timeout != "" {
		if ms, err := strconv.Atoi(timeout); err == nil && ms > 0 {
			cfg.CLOB.Timeout = time.Duration(ms) * time.Millisecond
		}
	}

	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.MarketsFile = getEnv("MARKETS_FILE", cfg.MarketsFile)

	return cfg
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.API.Addr == "" {
		return fmt.Errorf("API_ADDR must not be empty")
	}
	switch c.Snapshot.Backend {
	case BackendMemory:
	case BackendPebble:
		if c.Snapshot.DBPath == "" {
			return fmt.Errorf("SNAPSHOT_DB is required for the pebble backend")
		}
	case BackendCLOB:
		if c.CLOB.BaseURL == "" {
			return fmt.Errorf("CLOB_BASE_URL is required for the clob backend")
		}
		if c.MarketsFile == "" {
			return fmt.Errorf("MARKETS_FILE is required for the clob backend (market -> token mapping)")
		}
	default:
		return fmt.Errorf("unknown SNAPSHOT_BACKEND %q", c.Snapshot.Backend)
	}
	if c.Snapshot.CacheTTL < 0 {
		return fmt.Errorf("snapshot cache ttl must be >= 0")
	}
	return nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "1") || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
