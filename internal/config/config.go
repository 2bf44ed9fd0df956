// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Config holds all application configuration
type Config struct {
	Port string `env:"PORT" envDefault:"3000"`

	// Cache
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"30s"`

	// Browser fetch
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" envDefault:"20s"`
	ProviderHost    string        `env:"PROVIDER_HOST" envDefault:"dex.coinmarketcap.com"`
	PriceSelector   string        `env:"PRICE_SELECTOR" envDefault:"[data-qa-id='dex-price']"`
	ChromePath      string        `env:"CHROME_PATH"` // empty: let chromedp find Chrome
	CoalesceFetches bool          `env:"COALESCE_FETCHES" envDefault:"false"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from the process environment
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom reads configuration from the given variables only.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: vars})
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the env parser cannot
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid PORT: %v", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1-65535, got %d", port)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	if c.ProviderHost == "" {
		return fmt.Errorf("PROVIDER_HOST must not be empty")
	}
	if c.PriceSelector == "" {
		return fmt.Errorf("PRICE_SELECTOR must not be empty")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %v", err)
	}
	return nil
}

// Level returns the configured log level, info if unparseable
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}
