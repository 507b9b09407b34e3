package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// YahooProvider fetches quotes from the Yahoo Finance chart API. Yahoo
// throttles unauthenticated clients hard, so this provider sits last in
// the chain and is marked rate-limited to get the randomized pre-delay.
type YahooProvider struct {
	BaseURL string // overridable for tests
}

// NewYahooProvider creates a Yahoo Finance provider.
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{BaseURL: "https://query1.finance.yahoo.com"}
}

// Name returns "Yahoo Finance".
func (p *YahooProvider) Name() string { return "Yahoo Finance" }

// RateLimited marks Yahoo as an aggressive rate limiter.
func (p *YahooProvider) RateLimited() bool { return true }

// Quote fetches the current price for symbol, preferring the regular
// market price and falling back to the previous close.
func (p *YahooProvider) Quote(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(symbol)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=1d&interval=1d", p.BaseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("yahoo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("yahoo status %d", resp.StatusCode)
	}

	var body struct {
		Chart struct {
			Result []struct {
				Meta struct {
					RegularMarketPrice float64 `json:"regularMarketPrice"`
					PreviousClose      float64 `json:"chartPreviousClose"`
				} `json:"meta"`
			} `json:"result"`
			Error *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("yahoo decode: %w", err)
	}

	if body.Chart.Error != nil {
		return 0, fmt.Errorf("yahoo error for %s: %s", symbol, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return 0, errNoPrice("yahoo", symbol)
	}

	meta := body.Chart.Result[0].Meta
	if meta.RegularMarketPrice > 0 {
		return meta.RegularMarketPrice, nil
	}
	if meta.PreviousClose > 0 {
		return meta.PreviousClose, nil
	}
	return 0, errNoPrice("yahoo", symbol)
}
