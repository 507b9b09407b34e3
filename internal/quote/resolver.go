package quote

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"brokerlink/internal/config"
)

// Result is one resolved price.
type Result struct {
	Price  float64
	Source string
	Cached bool
}

// Resolver produces a best-effort current price for a symbol: cache
// first (unless forced), then each provider in order until one returns
// a valid positive price, which is written back to the cache under that
// provider's name. Provider failures are logged and swallowed.
type Resolver struct {
	cache     *Cache
	providers []Provider
	log       *slog.Logger

	// Injectable for tests so the pre-delay never actually sleeps.
	sleep func(time.Duration)
	randf func() float64
}

// NewResolver creates a resolver over the given cache and provider chain.
func NewResolver(cache *Cache, providers []Provider, log *slog.Logger) *Resolver {
	return &Resolver{
		cache:     cache,
		providers: providers,
		log:       log,
		sleep:     time.Sleep,
		randf:     rand.Float64,
	}
}

// NewResolverFromConfig builds the provider chain from configured
// credentials: Finnhub, Alpha Vantage, Alpaca (when credentials are
// set), then Yahoo as the unauthenticated last resort.
func NewResolverFromConfig(cfg config.Providers, cache *Cache, log *slog.Logger) *Resolver {
	var providers []Provider
	if cfg.FinnhubKey != "" {
		providers = append(providers, NewFinnhubProvider(cfg.FinnhubKey))
	}
	if cfg.AlphaVantageKey != "" {
		providers = append(providers, NewAlphaVantageProvider(cfg.AlphaVantageKey))
	}
	if cfg.AlpacaKey != "" && cfg.AlpacaSecret != "" {
		providers = append(providers, NewAlpacaProvider(cfg.AlpacaKey, cfg.AlpacaSecret))
	}
	providers = append(providers, NewYahooProvider())
	return NewResolver(cache, providers, log)
}

// Resolve returns a price for symbol. With forceRefresh false a cache
// hit is returned regardless of its age; staleness is advisory and
// never triggers a fetch on this path. Returns ok=false when the cache
// misses (or is bypassed) and every provider fails.
func (r *Resolver) Resolve(ctx context.Context, symbol string, forceRefresh bool) (Result, bool) {
	symbol = strings.ToUpper(symbol)

	if !forceRefresh {
		if e, ok := r.cache.Get(symbol); ok {
			r.log.Debug("using cached price", "symbol", symbol, "price", e.Price, "source", e.Source)
			return Result{Price: e.Price, Source: e.Source, Cached: true}, true
		}
	}

	for _, p := range r.providers {
		// Providers known to throttle hard get a 2-5s randomized delay
		// so repeated fallbacks don't get the process banned.
		if rl, ok := p.(rateLimited); ok && rl.RateLimited() {
			delay := time.Duration((2 + 3*r.randf()) * float64(time.Second))
			r.log.Debug("delaying before rate-limited provider", "provider", p.Name(), "delay", delay)
			r.sleep(delay)
		}

		price, err := p.Quote(ctx, symbol)
		if err != nil {
			r.log.Warn("quote provider failed", "provider", p.Name(), "symbol", symbol, "error", err)
			continue
		}

		r.log.Info("resolved price", "provider", p.Name(), "symbol", symbol, "price", price)
		if err := r.cache.Set(symbol, price, p.Name()); err != nil {
			r.log.Error("persisting price cache", "symbol", symbol, "error", err)
		}
		return Result{Price: price, Source: p.Name()}, true
	}

	return Result{}, false
}

// ResolveWithFallback behaves like Resolve but, when the whole chain
// fails and the caller supplied a last-resort value (typically the
// position's entry price), returns that value instead of nothing. The
// fallback is not written to the cache.
func (r *Resolver) ResolveWithFallback(ctx context.Context, symbol string, forceRefresh bool, lastResort *float64) (Result, bool) {
	if res, ok := r.Resolve(ctx, symbol, forceRefresh); ok {
		return res, true
	}
	if lastResort != nil {
		r.log.Warn("all price sources failed, using entry price fallback",
			"symbol", symbol, "price", *lastResort)
		return Result{Price: *lastResort, Source: "entry price"}, true
	}
	return Result{}, false
}

// Cache exposes the underlying quote cache.
func (r *Resolver) Cache() *Cache { return r.cache }
