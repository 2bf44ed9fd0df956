package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Expected Port '3000', got '%s'", cfg.Port)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("Expected CacheTTL 30s, got %s", cfg.CacheTTL)
	}
	if cfg.FetchTimeout != 20*time.Second {
		t.Errorf("Expected FetchTimeout 20s, got %s", cfg.FetchTimeout)
	}
	if cfg.ProviderHost != "dex.coinmarketcap.com" {
		t.Errorf("Expected ProviderHost 'dex.coinmarketcap.com', got '%s'", cfg.ProviderHost)
	}
	if cfg.PriceSelector != "[data-qa-id='dex-price']" {
		t.Errorf("Expected default PriceSelector, got '%s'", cfg.PriceSelector)
	}
	if cfg.ChromePath != "" {
		t.Errorf("Expected empty ChromePath, got '%s'", cfg.ChromePath)
	}
	if cfg.CoalesceFetches {
		t.Error("Coalescing should be off by default")
	}
	if cfg.Level() != zerolog.InfoLevel {
		t.Errorf("Expected info level, got %s", cfg.Level())
	}
	if cfg.Addr() != ":3000" {
		t.Errorf("Expected Addr ':3000', got '%s'", cfg.Addr())
	}
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PORT":             "8081",
		"CACHE_TTL":        "1m",
		"FETCH_TIMEOUT":    "5s",
		"PROVIDER_HOST":    "localhost:9999",
		"PRICE_SELECTOR":   "#price",
		"CHROME_PATH":      "/usr/bin/chromium",
		"COALESCE_FETCHES": "true",
		"LOG_LEVEL":        "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "localhost:9999", cfg.ProviderHost)
	assert.Equal(t, "#price", cfg.PriceSelector)
	assert.Equal(t, "/usr/bin/chromium", cfg.ChromePath)
	assert.True(t, cfg.CoalesceFetches)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoadFromInvalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"non-numeric port", map[string]string{"PORT": "http"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"bad ttl", map[string]string{"CACHE_TTL": "soon"}},
		{"zero ttl", map[string]string{"CACHE_TTL": "0s"}},
		{"negative timeout", map[string]string{"FETCH_TIMEOUT": "-1s"}},
		{"bad coalesce flag", map[string]string{"COALESCE_FETCHES": "maybe"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsProcessEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("CACHE_TTL", "45s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.CacheTTL)
}

func TestValidateEmptyStrings(t *testing.T) {
	cfg := &Config{Port: "3000", CacheTTL: time.Second, FetchTimeout: time.Second, LogLevel: "info"}
	assert.Error(t, cfg.Validate(), "missing provider host")

	cfg.ProviderHost = "dex.coinmarketcap.com"
	assert.Error(t, cfg.Validate(), "missing selector")

	cfg.PriceSelector = "#p"
	assert.NoError(t, cfg.Validate())
}
