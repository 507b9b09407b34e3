// Package api exposes the broker connectivity core over HTTP: the
// reconciled portfolio, open orders, account summary, symbol prices,
// quote-cache maintenance, and gateway connection management.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"brokerlink/internal/gateway"
	"brokerlink/internal/quote"
	"brokerlink/internal/reconcile"
)

// Gateway is the slice of the session cache the server manages
// connections through. *gateway.Cache satisfies it.
type Gateway interface {
	Invalidate(clientID int64, port int) (*gateway.Session, error)
	Current() *gateway.Session
}

// Server holds the HTTP handlers over the core components.
type Server struct {
	reconciler *reconcile.Reconciler
	quotes     *quote.Resolver
	sessions   Gateway
	dummy      *reconcile.DummyStore
	maxAge     time.Duration
	log        *slog.Logger
}

// NewServer creates the API server. maxAge is the staleness threshold
// reported by the cache-status endpoint.
func NewServer(reconciler *reconcile.Reconciler, quotes *quote.Resolver, sessions Gateway, dummy *reconcile.DummyStore, maxAge time.Duration, log *slog.Logger) *Server {
	return &Server{
		reconciler: reconciler,
		quotes:     quotes,
		sessions:   sessions,
		dummy:      dummy,
		maxAge:     maxAge,
		log:        log,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/broker/positions", s.handlePositions)
	mux.HandleFunc("GET /api/broker/open-orders", s.handleOpenOrders)
	mux.HandleFunc("GET /api/broker/account", s.handleAccount)
	mux.HandleFunc("GET /api/broker/prices", s.handlePrices)
	mux.HandleFunc("GET /api/broker/cache/status", s.handleCacheStatus)
	mux.HandleFunc("DELETE /api/broker/cache/clear", s.handleCacheClear)
	mux.HandleFunc("POST /api/broker/reconnect", s.handleReconnect)
	mux.HandleFunc("GET /api/broker/diagnostics/connection", s.handleDiagnostics)
	mux.HandleFunc("GET /api/broker/capture", s.handleCapture)
	return corsMiddleware(mux)
}

func optionsFromQuery(r *http.Request) reconcile.Options {
	return reconcile.Options{
		UseDummy:    queryBool(r, "useDummy", false),
		UseFallback: queryBool(r, "useFallback", true),
		Refresh:     queryBool(r, "refresh", false),
	}
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	view, err := s.reconciler.Portfolio(r.Context(), optionsFromQuery(r))
	if err != nil {
		s.log.Error("reconciling portfolio", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleOpenOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.reconciler.OpenOrders(r.Context(), optionsFromQuery(r))
	if err != nil {
		s.log.Error("fetching open orders", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, OpenOrdersResponse{OpenOrders: orders, Count: len(orders)})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.reconciler.Account(r.Context(), optionsFromQuery(r))
	if err != nil {
		s.log.Error("fetching account summary", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, account)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("symbols")
	refresh := queryBool(r, "refresh", false)

	var symbols []string
	for _, sym := range strings.Split(raw, ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			symbols = append(symbols, strings.ToUpper(sym))
		}
	}
	if len(symbols) == 0 {
		http.Error(w, "symbols parameter required", http.StatusBadRequest)
		return
	}

	prices := make(map[string]PriceInfo, len(symbols))
	for _, sym := range symbols {
		res, ok := s.quotes.Resolve(r.Context(), sym, refresh)
		if !ok {
			prices[sym] = PriceInfo{}
			continue
		}
		info := PriceInfo{
			Price:  &res.Price,
			Cached: res.Cached,
			Source: res.Source,
		}
		if e, found := s.quotes.Cache().Get(sym); found {
			info.Timestamp = &e.Timestamp
		}
		prices[sym] = info
	}
	writeJSON(w, prices)
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	entries := s.quotes.Cache().All()

	resp := CacheStatusResponse{
		TotalSymbols: len(entries),
		MaxAgeHours:  s.maxAge.Hours(),
		Sources:      map[string]int{},
		Path:         s.quotes.Cache().Path(),
	}
	now := float64(time.Now().Unix())
	for symbol, e := range entries {
		resp.Sources[e.Source]++
		age := now - e.Timestamp
		if age > s.maxAge.Seconds() {
			resp.StaleSymbols++
		}
		if resp.NewestAgeSeconds == nil || age < *resp.NewestAgeSeconds {
			age := age
			resp.NewestAgeSeconds = &age
		}
		if resp.OldestAgeSeconds == nil || age > *resp.OldestAgeSeconds {
			age := age
			resp.OldestAgeSeconds = &age
			resp.OldestSymbol = symbol
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	cleared := s.quotes.Cache().Len()
	if err := s.quotes.Cache().Clear(); err != nil {
		s.log.Error("clearing quote cache", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("quote cache cleared", "entries", cleared)
	writeJSON(w, CacheClearResponse{Cleared: cleared})
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	clientID := int64(0)
	if v := r.URL.Query().Get("clientId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid clientId", http.StatusBadRequest)
			return
		}
		clientID = id
	}
	port := 0
	if v := r.URL.Query().Get("port"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid port", http.StatusBadRequest)
			return
		}
		port = p
	}

	session, err := s.sessions.Invalidate(clientID, port)
	if err != nil {
		s.log.Error("forced reconnect failed", "clientID", clientID, "port", port, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	// The old session's portfolio must not outlive it.
	s.reconciler.InvalidateView()
	writeJSON(w, diagnosticsFor(session))
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, diagnosticsFor(s.sessions.Current()))
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("enable"); v != "" {
		enable, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid enable parameter", http.StatusBadRequest)
			return
		}
		s.dummy.SetCapture(enable)
	}
	writeJSON(w, CaptureResponse{CaptureEnabled: s.dummy.CaptureEnabled()})
}

func diagnosticsFor(session *gateway.Session) ConnectionDiagnostics {
	if session == nil {
		return ConnectionDiagnostics{}
	}
	return ConnectionDiagnostics{
		SessionCached: true,
		Connected:     session.Connected(),
		Host:          session.Host(),
		Port:          session.Port(),
		ClientID:      session.ClientID(),
		NextRequestID: session.NextRequestID(),
	}
}

func queryBool(r *http.Request, name string, def bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing JSON response", "error", err)
	}
}
