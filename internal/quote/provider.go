package quote

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider returns a current price for a symbol from one external
// source. Implementations return an error for any unusable answer
// (transport failure, unexpected payload, non-positive price); the
// resolver treats every provider error as "try the next one".
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (float64, error)
}

// rateLimited is implemented by providers that apply aggressive rate
// limiting; the resolver inserts a short randomized delay before
// calling them.
type rateLimited interface {
	RateLimited() bool
}

// Shared client for all HTTP providers.
var httpClient = &http.Client{Timeout: 10 * time.Second}

// errNoPrice is a helper for providers whose payload parsed but carried
// no usable price.
func errNoPrice(provider, symbol string) error {
	return fmt.Errorf("%s returned no usable price for %s", provider, symbol)
}
