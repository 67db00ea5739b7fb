package params

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9999")
	t.Setenv("SNAPSHOT_BACKEND", "PEBBLE")
	t.Setenv("SNAPSHOT_CACHE_TTL_MS", "750")
	t.Setenv("CLOB_TIMEOUT_MS", "not-a-number")
	t.Setenv("CORS_ORIGINS", "https://viralbet.app, ,https://winbig.app")
	t.Setenv("DEV_MODE", "yes")

	cfg := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))

	if cfg.API.Addr != ":9999" {
		t.Errorf("addr = %s", cfg.API.Addr)
	}
	if cfg.Snapshot.Backend != BackendPebble {
		t.Errorf("backend = %s", cfg.Snapshot.Backend)
	}
	if cfg.Snapshot.CacheTTL != 750*time.Millisecond {
		t.Errorf("cache ttl = %s", cfg.Snapshot.CacheTTL)
	}
	if cfg.CLOB.Timeout != Default().CLOB.Timeout {
		t.Errorf("unparseable timeout should keep default, got %s", cfg.CLOB.Timeout)
	}
	if len(cfg.API.CORSOrigins) != 2 || cfg.API.CORSOrigins[1] != "https://winbig.app" {
		t.Errorf("cors origins = %v", cfg.API.CORSOrigins)
	}
	if !cfg.API.DevMode {
		t.Errorf("dev mode should be enabled")
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LOG_LEVEL=debug\nMARKETS_FILE=markets.json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Keys loaded from the file leak into the process env; clear them afterwards.
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("MARKETS_FILE", "")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("MARKETS_FILE")

	cfg := LoadFromEnv(path)
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %s, want debug", cfg.Log.Level)
	}
	if cfg.MarketsFile != "markets.json" {
		t.Errorf("markets file = %s", cfg.MarketsFile)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"memory ok", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Snapshot.Backend = "redis" }, true},
		{"pebble without path", func(c *Config) { c.Snapshot.Backend = BackendPebble; c.Snapshot.DBPath = "" }, true},
		{"clob without markets", func(c *Config) { c.Snapshot.Backend = BackendCLOB }, true},
		{"clob ok", func(c *Config) { c.Snapshot.Backend = BackendCLOB; c.MarketsFile = "m.json" }, false},
		{"empty addr", func(c *Config) { c.API.Addr = "" }, true},
		{"negative ttl", func(c *Config) { c.Snapshot.CacheTTL = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
