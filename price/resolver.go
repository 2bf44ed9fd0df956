// Package price resolves token prices, serving recent results from the cache
// and fetching fresh ones through the browser otherwise.
package price

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/briangreenhill/dexprice/browser"
	"github.com/briangreenhill/dexprice/cache"
)

const (
	DefaultProvider     = "dex.coinmarketcap.com"
	DefaultTTL          = 30 * time.Second
	DefaultFetchTimeout = 20 * time.Second
)

// Quote is the result of a successful resolution.
type Quote struct {
	Price  string `json:"price"`
	Cached bool   `json:"cached"`
}

// ResolveError is returned for every failed resolution, whatever the cause.
type ResolveError struct {
	Key string
	Err error
}

func (e *ResolveError) Error() string { return "failed to fetch price" }

// Details returns the underlying failure message.
func (e *ResolveError) Details() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Resolver coordinates cache lookups and browser fetches.
type Resolver struct {
	store    cache.Store
	fetcher  browser.Fetcher
	provider string
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger

	coalesce bool
	group    singleflight.Group
}

type Option func(*Resolver)

func WithTTL(d time.Duration) Option {
	return func(r *Resolver) { r.ttl = d }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithProvider sets the host the token page URL is built on.
func WithProvider(host string) Option {
	return func(r *Resolver) {
		if host != "" {
			r.provider = host
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// WithCoalescing makes concurrent misses for the same key share one fetch.
func WithCoalescing(on bool) Option {
	return func(r *Resolver) { r.coalesce = on }
}

func NewResolver(store cache.Store, fetcher browser.Fetcher, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("cache store required")
	}
	if fetcher == nil {
		return nil, errors.New("fetcher required")
	}
	r := &Resolver{
		store:    store,
		fetcher:  fetcher,
		provider: DefaultProvider,
		ttl:      DefaultTTL,
		timeout:  DefaultFetchTimeout,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// TokenURL returns the page the price for chain/token is scraped from.
func (r *Resolver) TokenURL(chain, token string) string {
	return fmt.Sprintf("https://%s/token/%s/%s/", r.provider, chain, token)
}

// Resolve returns the price for chain/token. A fresh cache entry is returned
// without fetching; a stale or missing one triggers a fetch whose result is
// stored only on success. Failures are *ResolveError.
func (r *Resolver) Resolve(ctx context.Context, chain, token string) (Quote, error) {
	key := cache.KeyFor(chain, token)
	now := r.now()

	if e, ok := r.store.Get(key); ok && cache.IsFresh(e, now, r.ttl) {
		r.log.Debug().Str("key", key).Msg("cache hit")
		return Quote{Price: e.Price, Cached: true}, nil
	}

	if !r.coalesce {
		price, err := r.fetchAndStore(ctx, key, chain, token, now)
		if err != nil {
			return Quote{}, err
		}
		return Quote{Price: price}, nil
	}

	// The shared fetch must not die with whichever caller started it.
	v, err, shared := r.group.Do(key, func() (any, error) {
		price, err := r.fetchAndStore(context.WithoutCancel(ctx), key, chain, token, now)
		if err != nil {
			return nil, err
		}
		return price, nil
	})
	if err != nil {
		return Quote{}, err
	}
	if shared {
		r.log.Debug().Str("key", key).Msg("joined in-flight fetch")
	}
	return Quote{Price: v.(string)}, nil
}

func (r *Resolver) fetchAndStore(ctx context.Context, key, chain, token string, fetchedAt time.Time) (string, error) {
	target := r.TokenURL(chain, token)
	log := r.log.With().
		Str("key", key).
		Str("url", target).
		Str("fetch_id", uuid.NewString()).
		Logger()

	fctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	price, err := r.fetcher.Fetch(fctx, target)
	dur := time.Since(start)

	if err == nil && price == "" {
		err = fmt.Errorf("%w: empty price", browser.ErrExtraction)
	}
	if err != nil {
		if !errors.Is(err, browser.ErrTimeout) && errors.Is(fctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", browser.ErrTimeout, r.timeout, err)
		}
		log.Warn().Err(err).Dur("duration", dur).Msg("price fetch failed")
		return "", &ResolveError{Key: key, Err: err}
	}

	r.store.Put(key, cache.Entry{Price: price, FetchedAt: fetchedAt})
	log.Info().Str("price", price).Dur("duration", dur).Msg("price fetched")
	return price, nil
}
