// Package brokerlink provides a Go client for the brokerlink-server
// API.
package brokerlink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"brokerlink/internal/domain"
	"brokerlink/internal/reconcile"
	"brokerlink/internal/util"
)

// Client talks to a brokerlink-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// PortfolioOptions mirror the positions endpoint's query flags.
type PortfolioOptions struct {
	UseDummy    bool
	UseFallback bool
	Refresh     bool
}

// Portfolio retrieves the reconciled positions view.
func (c *Client) Portfolio(ctx context.Context, opts PortfolioOptions) (reconcile.PortfolioView, error) {
	q := url.Values{}
	q.Set("useDummy", strconv.FormatBool(opts.UseDummy))
	q.Set("useFallback", strconv.FormatBool(opts.UseFallback))
	q.Set("refresh", strconv.FormatBool(opts.Refresh))

	var view reconcile.PortfolioView
	if err := c.get(ctx, "/api/broker/positions?"+q.Encode(), &view); err != nil {
		return reconcile.PortfolioView{}, err
	}
	return view, nil
}

// Account retrieves the account cash summary.
func (c *Client) Account(ctx context.Context) (domain.AccountSummary, error) {
	var account domain.AccountSummary
	if err := c.get(ctx, "/api/broker/account", &account); err != nil {
		return domain.AccountSummary{}, err
	}
	return account, nil
}

// Price is one entry of a Prices response.
type Price struct {
	Price     *float64 `json:"price"`
	Cached    bool     `json:"cached"`
	Source    string   `json:"source"`
	Timestamp *float64 `json:"timestamp"`
}

// Prices resolves prices for the given symbols. With refresh set, the
// server bypasses its quote cache.
func (c *Client) Prices(ctx context.Context, symbols []string, refresh bool) (map[string]Price, error) {
	if len(symbols) == 0 {
		return map[string]Price{}, nil
	}
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	q.Set("refresh", strconv.FormatBool(refresh))

	var prices map[string]Price
	if err := c.get(ctx, "/api/broker/prices?"+q.Encode(), &prices); err != nil {
		return nil, err
	}
	return prices, nil
}

// Reconnect forces the server to drop its gateway session and dial a
// fresh one with the given client id and port.
func (c *Client) Reconnect(ctx context.Context, clientID int64, port int) error {
	q := url.Values{}
	q.Set("clientId", strconv.FormatInt(clientID, 10))
	q.Set("port", strconv.Itoa(port))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/broker/reconnect?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reconnect: status %d", resp.StatusCode)
	}
	return nil
}

// get fetches and decodes a JSON response, retrying transport-level
// failures with backoff. Error statuses from the server are returned
// as-is.
func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	var resp *http.Response
	err = util.Retry(ctx, 3, 500*time.Millisecond, func() error {
		resp, err = c.httpClient.Do(req)
		return err
	})
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}
