package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// FinnhubProvider fetches quotes from the Finnhub quote endpoint.
// Free tier: 60 calls/minute, US market data.
type FinnhubProvider struct {
	APIKey  string
	BaseURL string // overridable for tests
}

// NewFinnhubProvider creates a Finnhub provider with the given API key.
func NewFinnhubProvider(apiKey string) *FinnhubProvider {
	return &FinnhubProvider{APIKey: apiKey, BaseURL: "https://finnhub.io/api/v1"}
}

// Name returns "Finnhub".
func (p *FinnhubProvider) Name() string { return "Finnhub" }

// Quote fetches the current price for symbol. Finnhub reports the
// current price in the "c" field; zero means "unknown symbol".
func (p *FinnhubProvider) Quote(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(symbol)
	u := fmt.Sprintf("%s/quote?symbol=%s&token=%s", p.BaseURL, url.QueryEscape(symbol), p.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("finnhub request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("finnhub status %d", resp.StatusCode)
	}

	var body struct {
		Current float64 `json:"c"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("finnhub decode: %w", err)
	}

	if body.Current <= 0 {
		return 0, errNoPrice("finnhub", symbol)
	}
	return body.Current, nil
}
