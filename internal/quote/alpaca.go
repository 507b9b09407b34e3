package quote

import (
	"context"
	"fmt"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// AlpacaProvider fetches the latest trade price from the Alpaca
// marketdata API. It joins the chain only when credentials are
// configured.
type AlpacaProvider struct {
	client *marketdata.Client
}

// NewAlpacaProvider creates an Alpaca marketdata provider.
func NewAlpacaProvider(apiKey, apiSecret string) *AlpacaProvider {
	return &AlpacaProvider{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
	}
}

// Name returns "Alpaca".
func (p *AlpacaProvider) Name() string { return "Alpaca" }

// Quote fetches the latest trade price for symbol.
func (p *AlpacaProvider) Quote(_ context.Context, symbol string) (float64, error) {
	symbol = strings.ToUpper(symbol)
	trade, err := p.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return 0, fmt.Errorf("alpaca latest trade: %w", err)
	}
	if trade == nil || trade.Price <= 0 {
		return 0, errNoPrice("alpaca", symbol)
	}
	return trade.Price, nil
}
