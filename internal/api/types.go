package api

import "brokerlink/internal/domain"

// OpenOrdersResponse wraps the open orders list.
type OpenOrdersResponse struct {
	OpenOrders []domain.OpenOrder `json:"openOrders"`
	Count      int                `json:"count"`
}

// PriceInfo is one resolved price. Price is null when every source
// failed for the symbol.
type PriceInfo struct {
	Price     *float64 `json:"price"`
	Cached    bool     `json:"cached"`
	Source    string   `json:"source,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// CacheStatusResponse is the aggregate view of the quote cache.
type CacheStatusResponse struct {
	TotalSymbols     int            `json:"totalSymbols"`
	StaleSymbols     int            `json:"staleSymbols"`
	MaxAgeHours      float64        `json:"maxAgeHours"`
	Sources          map[string]int `json:"sources"`
	NewestAgeSeconds *float64       `json:"newestAgeSeconds"`
	OldestAgeSeconds *float64       `json:"oldestAgeSeconds"`
	OldestSymbol     string         `json:"oldestSymbol,omitempty"`
	Path             string         `json:"path"`
}

// CacheClearResponse reports how many entries a clear removed.
type CacheClearResponse struct {
	Cleared int `json:"cleared"`
}

// ConnectionDiagnostics describes the cached gateway session, if any.
type ConnectionDiagnostics struct {
	SessionCached bool   `json:"sessionCached"`
	Connected     bool   `json:"connected"`
	Host          string `json:"host,omitempty"`
	Port          int    `json:"port,omitempty"`
	ClientID      int64  `json:"clientId"`
	NextRequestID int64  `json:"nextRequestId"`
}

// CaptureResponse reports the dummy-capture toggle state.
type CaptureResponse struct {
	CaptureEnabled bool `json:"captureEnabled"`
}
