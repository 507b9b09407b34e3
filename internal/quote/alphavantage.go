package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"brokerlink/internal/util"
)

// AlphaVantageProvider fetches quotes from the Alpha Vantage
// GLOBAL_QUOTE endpoint. Prices arrive as strings in a numbered-key
// payload. The free tier allows 5 requests per minute, enforced
// client-side so a burst of lookups degrades to waiting instead of
// burning the quota on rejections.
type AlphaVantageProvider struct {
	APIKey  string
	BaseURL string // overridable for tests
	limiter *util.RateLimiter
}

// NewAlphaVantageProvider creates an Alpha Vantage provider with the
// given API key.
func NewAlphaVantageProvider(apiKey string) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		APIKey:  apiKey,
		BaseURL: "https://www.alphavantage.co",
		limiter: util.NewRateLimiter(5),
	}
}

// Name returns "Alpha Vantage".
func (p *AlphaVantageProvider) Name() string { return "Alpha Vantage" }

// Quote fetches the current price for symbol.
func (p *AlphaVantageProvider) Quote(ctx context.Context, symbol string) (float64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	symbol = strings.ToUpper(symbol)
	u := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		p.BaseURL, url.QueryEscape(symbol), p.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("alpha vantage request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("alpha vantage status %d", resp.StatusCode)
	}

	var body struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("alpha vantage decode: %w", err)
	}

	raw, ok := body.GlobalQuote["05. price"]
	if !ok || raw == "" {
		return 0, errNoPrice("alpha vantage", symbol)
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("alpha vantage price %q: %w", raw, err)
	}
	if price <= 0 {
		return 0, errNoPrice("alpha vantage", symbol)
	}
	return price, nil
}
