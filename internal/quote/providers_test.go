package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFinnhubQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "AAPL" {
			t.Errorf("symbol = %q, want %q", got, "AAPL")
		}
		if got := r.URL.Query().Get("token"); got != "test-key" {
			t.Errorf("token = %q, want %q", got, "test-key")
		}
		w.Write([]byte(`{"c": 187.5, "h": 190, "l": 185, "o": 186, "pc": 184}`))
	}))
	defer srv.Close()

	p := NewFinnhubProvider("test-key")
	p.BaseURL = srv.URL

	price, err := p.Quote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if price != 187.5 {
		t.Errorf("price = %v, want 187.5", price)
	}
}

func TestFinnhubQuoteZeroPriceIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Finnhub answers unknown symbols with all-zero fields.
		w.Write([]byte(`{"c": 0, "h": 0, "l": 0, "o": 0, "pc": 0}`))
	}))
	defer srv.Close()

	p := NewFinnhubProvider("test-key")
	p.BaseURL = srv.URL

	if _, err := p.Quote(context.Background(), "NOPE"); err == nil {
		t.Error("Quote returned nil error for zero price")
	}
}

func TestAlphaVantageQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("function"); got != "GLOBAL_QUOTE" {
			t.Errorf("function = %q, want %q", got, "GLOBAL_QUOTE")
		}
		w.Write([]byte(`{"Global Quote": {"01. symbol": "MSFT", "05. price": "410.2500", "10. change percent": "0.5%"}}`))
	}))
	defer srv.Close()

	p := NewAlphaVantageProvider("test-key")
	p.BaseURL = srv.URL

	price, err := p.Quote(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if price != 410.25 {
		t.Errorf("price = %v, want 410.25", price)
	}
}

func TestAlphaVantageQuoteMissingPriceIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Rate-limited responses carry a "Note" instead of a quote.
		w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage!"}`))
	}))
	defer srv.Close()

	p := NewAlphaVantageProvider("test-key")
	p.BaseURL = srv.URL

	if _, err := p.Quote(context.Background(), "MSFT"); err == nil {
		t.Error("Quote returned nil error for rate-limit note payload")
	}
}

func TestYahooQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request sent without User-Agent")
		}
		w.Write([]byte(`{"chart": {"result": [{"meta": {"regularMarketPrice": 900.5, "chartPreviousClose": 890.0}}], "error": null}}`))
	}))
	defer srv.Close()

	p := NewYahooProvider()
	p.BaseURL = srv.URL

	price, err := p.Quote(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if price != 900.5 {
		t.Errorf("price = %v, want 900.5", price)
	}
}

func TestYahooQuoteFallsBackToPreviousClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"chart": {"result": [{"meta": {"regularMarketPrice": 0, "chartPreviousClose": 890.0}}], "error": null}}`))
	}))
	defer srv.Close()

	p := NewYahooProvider()
	p.BaseURL = srv.URL

	price, err := p.Quote(context.Background(), "NVDA")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if price != 890.0 {
		t.Errorf("price = %v, want 890.0 (previous close)", price)
	}
}

func TestYahooQuoteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"chart": {"result": [], "error": {"code": "Not Found", "description": "No data found"}}}`))
	}))
	defer srv.Close()

	p := NewYahooProvider()
	p.BaseURL = srv.URL

	if _, err := p.Quote(context.Background(), "NOPE"); err == nil {
		t.Error("Quote returned nil error for chart error payload")
	}
}

func TestProviderHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	fh := NewFinnhubProvider("k")
	fh.BaseURL = srv.URL
	if _, err := fh.Quote(context.Background(), "A"); err == nil {
		t.Error("finnhub Quote returned nil error for HTTP 429")
	}

	av := NewAlphaVantageProvider("k")
	av.BaseURL = srv.URL
	if _, err := av.Quote(context.Background(), "A"); err == nil {
		t.Error("alpha vantage Quote returned nil error for HTTP 429")
	}

	y := NewYahooProvider()
	y.BaseURL = srv.URL
	if _, err := y.Quote(context.Background(), "A"); err == nil {
		t.Error("yahoo Quote returned nil error for HTTP 429")
	}
}
