// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/dexprice/browser"
	"github.com/briangreenhill/dexprice/cache"
	"github.com/briangreenhill/dexprice/internal/config"
	"github.com/briangreenhill/dexprice/internal/http/routes"
	"github.com/briangreenhill/dexprice/price"
)

func main() {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	logger = logger.Level(cfg.Level())

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	// Lives as long as the process; nothing is persisted.
	store := cache.NewMemory()

	chrome := browser.NewChrome(
		browser.WithSelector(cfg.PriceSelector),
		browser.WithExecPath(cfg.ChromePath),
		browser.WithLogger(logger.With().Str("component", "browser").Logger()),
	)

	resolver, err := price.NewResolver(store, chrome,
		price.WithTTL(cfg.CacheTTL),
		price.WithFetchTimeout(cfg.FetchTimeout),
		price.WithProvider(cfg.ProviderHost),
		price.WithCoalescing(cfg.CoalesceFetches),
		price.WithLogger(logger.With().Str("component", "resolver").Logger()),
	)
	if err != nil {
		return err
	}

	s := routes.New(routes.ServerOptions{
		Prices: resolver,
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
		// a fetch may take the whole FetchTimeout before we start writing
		WriteTimeout: cfg.FetchTimeout + 10*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", "http://localhost"+srv.Addr).
			Dur("cache_ttl", cfg.CacheTTL).
			Dur("fetch_timeout", cfg.FetchTimeout).
			Bool("coalesce", cfg.CoalesceFetches).
			Msg("price proxy running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
