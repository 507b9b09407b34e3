package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"brokerlink/internal/domain"
	"brokerlink/internal/quote"
)

// Market data tick types delivered by the gateway.
const (
	tickBid   = 1
	tickAsk   = 2
	tickLast  = 4
	tickClose = 9
)

// Gateway status codes reported through the error callback that are
// informational, not failures.
var statusCodes = map[int64]bool{2104: true, 2106: true, 2158: true}

const (
	defaultConnectTimeout = 20 * time.Second
	defaultOrderStageWait = 3 * time.Second
	defaultOrderFloorWait = 5 * time.Second
	probeWait             = 2 * time.Second
	probeSymbol           = "AAPL"
)

// Session is one live connection to the broker gateway. It issues
// asynchronous commands through a Commander and collects the replies
// via its EventHandler methods, which run on the SDK's reader
// goroutine; synchronous calls block on per-category signals until the
// matching end-of-stream callback fires. Operations must be serialized
// by the caller: each one clears and reuses the shared reply state.
type Session struct {
	cmd Commander
	log *slog.Logger

	host     string
	port     int
	clientID int64

	connected atomic.Bool
	nextReqID atomic.Int64

	connectReady   *signal
	summaryReady   *signal
	positionsReady *signal
	ordersReady    *signal

	mu            sync.Mutex
	accountValues map[string]map[string]string // account -> tag_currency -> raw value
	positions     []domain.Position
	marketData    map[int64]int // market-data reqID -> index into positions
	openOrders    []domain.OpenOrder

	// Tunable waits, shortened in tests.
	connectTimeout time.Duration
	orderStageWait time.Duration
	orderFloorWait time.Duration
	sleep          func(time.Duration)
}

var _ EventHandler = (*Session)(nil)

// NewSession creates a session driving the given commander. It is not
// connected until Connect succeeds.
func NewSession(cmd Commander, log *slog.Logger) *Session {
	return &Session{
		cmd:            cmd,
		log:            log,
		connectReady:   newSignal(),
		summaryReady:   newSignal(),
		positionsReady: newSignal(),
		ordersReady:    newSignal(),
		accountValues:  map[string]map[string]string{},
		marketData:     map[int64]int{},
		connectTimeout: defaultConnectTimeout,
		orderStageWait: defaultOrderStageWait,
		orderFloorWait: defaultOrderFloorWait,
		sleep:          time.Sleep,
	}
}

// --- Connection lifecycle ---

// Connect opens the gateway socket and blocks until the handshake
// completes, logging progress every second. The handshake is complete
// when the gateway delivers the starting request id. On success a
// throwaway market-data request is issued for a liquid instrument to
// surface permission problems early; its errors are logged, never
// fatal.
func (s *Session) Connect(host string, port int, clientID int64) error {
	s.host, s.port, s.clientID = host, port, clientID
	s.connectReady.Reset()

	s.log.Info("connecting to gateway", "host", host, "port", port, "clientID", clientID)
	if err := s.cmd.Connect(host, port, clientID); err != nil {
		return fmt.Errorf("gateway connect %s:%d: %w", host, port, err)
	}

	start := time.Now()
	for !s.connectReady.Wait(time.Second) {
		elapsed := time.Since(start)
		if elapsed >= s.connectTimeout {
			s.log.Error("gateway handshake timed out",
				"host", host, "port", port, "elapsed", elapsed.Round(time.Second))
			return ErrConnectTimeout
		}
		s.log.Info("waiting for gateway handshake", "elapsed", elapsed.Round(time.Second))
	}

	s.log.Info("connected to gateway",
		"host", host, "port", port, "clientID", clientID, "nextReqID", s.nextReqID.Load())
	s.probeMarketData()
	return nil
}

// probeMarketData requests a tick for a known-liquid instrument purely
// to flush out market-data permission errors while they are still easy
// to attribute.
func (s *Session) probeMarketData() {
	reqID := s.nextID()
	s.log.Info("probing market data permissions", "symbol", probeSymbol, "reqID", reqID)
	s.cmd.ReqMktData(reqID, domain.NewStockContract(probeSymbol))
	s.sleep(probeWait)
	s.cmd.CancelMktData(reqID)
}

// Disconnect closes the gateway socket.
func (s *Session) Disconnect() error {
	s.connected.Store(false)
	return s.cmd.Disconnect()
}

// Connected reports whether the handshake completed and the socket has
// not been closed since.
func (s *Session) Connected() bool { return s.connected.Load() }

// Host returns the gateway host this session dialed.
func (s *Session) Host() string { return s.host }

// Port returns the gateway port this session dialed.
func (s *Session) Port() int { return s.port }

// ClientID returns the client id this session connected with.
func (s *Session) ClientID() int64 { return s.clientID }

// NextRequestID returns the next request id that would be allocated.
func (s *Session) NextRequestID() int64 { return s.nextReqID.Load() }

func (s *Session) nextID() int64 {
	return s.nextReqID.Add(1) - 1
}

// --- Account summary ---

// AccountSummary requests the cash snapshot for the account, waiting up
// to timeout. A timeout is a soft failure: ok is false and the caller
// falls back. When the gateway answered but the expected cash field was
// absent, the generic sentinel record is returned instead.
func (s *Session) AccountSummary(timeout time.Duration) (domain.AccountSummary, bool) {
	if !s.connected.Load() {
		s.log.Warn("cannot request account summary", "error", ErrNotConnected)
		return domain.AccountSummary{}, false
	}

	s.mu.Lock()
	s.accountValues = map[string]map[string]string{}
	s.mu.Unlock()
	s.summaryReady.Reset()

	reqID := s.nextID()
	s.log.Info("requesting account summary", "reqID", reqID)
	s.cmd.ReqAccountSummary(reqID, "All", "TotalCashValue")

	if !s.summaryReady.Wait(timeout) {
		s.log.Warn("account summary timed out", "reqID", reqID, "timeout", timeout)
		return domain.AccountSummary{}, false
	}
	s.cmd.CancelAccountSummary(reqID)

	s.mu.Lock()
	defer s.mu.Unlock()
	for account, tags := range s.accountValues {
		raw, ok := tags["TotalCashValue_USD"]
		if !ok {
			continue
		}
		balance, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.log.Warn("unparseable account balance", "account", account, "value", raw, "error", err)
			continue
		}
		s.log.Info("account summary received", "account", account, "balance", balance)
		return domain.AccountSummary{Name: account, Balance: balance}, true
	}

	s.log.Warn("account summary missing TotalCashValue, returning generic record")
	return domain.GenericAccountSummary(), true
}

// --- Positions ---

// Positions requests the account's positions, waiting up to timeout for
// the position stream to complete. Each position triggers a market-data
// subscription whose ticks fill CurrentPrice opportunistically; after
// the wait, positions still missing a price are filled from the quote
// cache, or, when refresh is true, resolved through the provider chain
// with the entry price as last resort. Derived fields and allocations
// are computed as the final step. A timeout returns an empty list,
// never an error.
func (s *Session) Positions(ctx context.Context, timeout time.Duration, refresh bool, resolver *quote.Resolver) []domain.Position {
	if !s.connected.Load() {
		s.log.Warn("cannot request positions", "error", ErrNotConnected)
		return []domain.Position{}
	}

	s.mu.Lock()
	s.positions = nil
	s.marketData = map[int64]int{}
	s.mu.Unlock()
	s.positionsReady.Reset()

	s.log.Info("requesting positions")
	s.cmd.ReqPositions()

	received := s.positionsReady.Wait(timeout)
	s.cmd.CancelPositions()

	if !received {
		s.cancelMarketData()
		s.log.Warn("positions request timed out", "timeout", timeout)
		return []domain.Position{}
	}

	s.mu.Lock()
	positions := make([]domain.Position, len(s.positions))
	copy(positions, s.positions)
	s.mu.Unlock()
	s.log.Info("positions received", "count", len(positions))

	// Market-data subscriptions stay open through the fill loop so a
	// tick arriving during a slow external lookup can still price a
	// later position.
	for i := range positions {
		if positions[i].CurrentPrice == nil {
			positions[i].CurrentPrice = s.tickedPrice(i)
		}
		s.fillPrice(ctx, &positions[i], refresh, resolver)
		positions[i].Derive()
	}
	s.cancelMarketData()

	domain.ApplyAllocations(positions)
	return positions
}

// tickedPrice re-reads the live position list for a price a late tick
// may have delivered after the snapshot was taken.
func (s *Session) tickedPrice(i int) *float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < len(s.positions) {
		return s.positions[i].CurrentPrice
	}
	return nil
}

func (s *Session) cancelMarketData() {
	s.mu.Lock()
	reqIDs := make([]int64, 0, len(s.marketData))
	for reqID := range s.marketData {
		reqIDs = append(reqIDs, reqID)
	}
	s.mu.Unlock()

	for _, reqID := range reqIDs {
		s.cmd.CancelMktData(reqID)
	}
}

// fillPrice resolves a missing current price for one position. Without
// refresh only the quote cache is consulted; with refresh the cache is
// bypassed and the provider chain runs, falling back to the entry price
// when the whole chain fails.
func (s *Session) fillPrice(ctx context.Context, p *domain.Position, refresh bool, resolver *quote.Resolver) {
	if p.CurrentPrice != nil || resolver == nil {
		return
	}

	if !refresh {
		if e, ok := resolver.Cache().Get(p.Symbol); ok {
			s.log.Debug("using cached price for position", "symbol", p.Symbol, "price", e.Price)
			p.CurrentPrice = domain.Ptr(e.Price)
			return
		}
		s.log.Debug("no cached price, leaving position unpriced", "symbol", p.Symbol)
		return
	}

	var lastResort *float64
	if p.EntryPrice > 0 {
		lastResort = domain.Ptr(p.EntryPrice)
	}
	if res, ok := resolver.ResolveWithFallback(ctx, p.Symbol, true, lastResort); ok {
		p.CurrentPrice = domain.Ptr(res.Price)
	}
}

// --- Open orders ---

// OpenOrders collects outstanding orders through a three-stage
// escalation: orders bound to this client id, then manually placed
// orders, then orders across all client ids with the remaining budget.
// Each stage runs only if the previous produced nothing; the first
// non-empty result short-circuits. Order visibility depends on
// client-id binding semantics outside our control, hence the ladder.
func (s *Session) OpenOrders(timeout time.Duration) []domain.OpenOrder {
	if !s.connected.Load() {
		s.log.Warn("cannot request open orders", "error", ErrNotConnected)
		return []domain.OpenOrder{}
	}

	s.mu.Lock()
	s.openOrders = nil
	s.mu.Unlock()
	s.ordersReady.Reset()

	s.log.Info("requesting open orders for this client")
	s.cmd.ReqOpenOrders()
	received := s.ordersReady.Wait(s.orderStageWait)

	if !received || s.orderCount() == 0 {
		s.ordersReady.Reset()
		s.log.Info("no orders yet, binding to manually placed orders")
		s.cmd.ReqAutoOpenOrders(true)
		received = s.ordersReady.Wait(s.orderStageWait)
	}

	if !received || s.orderCount() == 0 {
		s.ordersReady.Reset()
		remaining := timeout - 2*s.orderStageWait
		if remaining < s.orderFloorWait {
			remaining = s.orderFloorWait
		}
		s.log.Info("still no orders, requesting across all client ids", "wait", remaining)
		s.cmd.ReqAllOpenOrders()
		s.ordersReady.Wait(remaining)
	}

	s.mu.Lock()
	orders := make([]domain.OpenOrder, len(s.openOrders))
	copy(orders, s.openOrders)
	s.mu.Unlock()

	s.log.Info("open orders received", "count", len(orders))
	return orders
}

func (s *Session) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.openOrders)
}

// --- EventHandler ---

// OnConnectReady records the broker-assigned starting request id and
// marks the session connected.
func (s *Session) OnConnectReady(nextReqID int64) {
	s.nextReqID.Store(nextReqID)
	s.connected.Store(true)
	s.connectReady.Fire()
}

// OnConnectionClosed marks the session dead; the session cache will
// replace it on the next acquisition.
func (s *Session) OnConnectionClosed() {
	s.connected.Store(false)
	s.log.Warn("gateway connection closed")
}

// OnAccountSummary stores one summary value keyed by tag and currency.
func (s *Session) OnAccountSummary(reqID int64, account, tag, value, currency string) {
	key := tag
	if currency != "" {
		key = tag + "_" + currency
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountValues[account] == nil {
		s.accountValues[account] = map[string]string{}
	}
	s.accountValues[account][key] = value
}

// OnAccountSummaryEnd fires the summary signal.
func (s *Session) OnAccountSummaryEnd(reqID int64) {
	s.summaryReady.Fire()
}

// OnPosition appends one position and subscribes to market data for its
// contract so ticks can fill the current price.
func (s *Session) OnPosition(account string, contract domain.Contract, shares, avgCost float64) {
	name := contract.LocalSymbol
	if name == "" {
		name = contract.Symbol
	}
	pos := domain.Position{
		Account:    account,
		Symbol:     contract.Symbol,
		Name:       name,
		Shares:     shares,
		EntryPrice: avgCost,
		SecType:    contract.SecType,
		Exchange:   contract.Exchange,
		Currency:   contract.Currency,
	}

	reqID := s.nextID()
	s.mu.Lock()
	s.positions = append(s.positions, pos)
	s.marketData[reqID] = len(s.positions) - 1
	s.mu.Unlock()

	s.cmd.ReqMktData(reqID, contract)
}

// OnPositionEnd fires the positions signal.
func (s *Session) OnPositionEnd() {
	s.positionsReady.Fire()
}

// OnTickPrice updates the current price of the position behind a
// market-data subscription. The last-trade price always wins; close and
// bid/ask only fill a price not yet set, so a lower-priority tick never
// overwrites a higher-priority one.
func (s *Session) OnTickPrice(reqID int64, tickType int64, price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.marketData[reqID]
	if !ok || idx >= len(s.positions) {
		s.log.Debug("tick for unknown reqID", "reqID", reqID, "tickType", tickType, "price", price)
		return
	}
	p := &s.positions[idx]

	switch {
	case tickType == tickLast:
		p.CurrentPrice = domain.Ptr(price)
	case tickType == tickClose && p.CurrentPrice == nil:
		p.CurrentPrice = domain.Ptr(price)
	case (tickType == tickBid || tickType == tickAsk) && p.CurrentPrice == nil:
		p.CurrentPrice = domain.Ptr(price)
	}
}

// OnOpenOrder appends one open order to the current collection.
func (s *Session) OnOpenOrder(order domain.OpenOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openOrders = append(s.openOrders, order)
}

// OnOrderStatus folds a status update into the matching open order.
func (s *Session) OnOrderStatus(orderID int64, status string, filled, remaining, avgFillPrice float64, whyHeld string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.openOrders {
		if s.openOrders[i].OrderID == orderID {
			s.openOrders[i].Status = status
			s.openOrders[i].Filled = filled
			s.openOrders[i].Remaining = remaining
			s.openOrders[i].AvgFillPrice = avgFillPrice
			s.openOrders[i].WhyHeld = whyHeld
			return
		}
	}
}

// OnOpenOrderEnd fires the orders signal.
func (s *Session) OnOpenOrderEnd() {
	s.ordersReady.Fire()
}

// OnError logs gateway errors. A few codes are connection status
// notices, not failures.
func (s *Session) OnError(reqID int64, code int64, msg string) {
	if statusCodes[code] {
		s.log.Info("gateway status", "code", code, "message", msg)
		return
	}
	s.log.Warn("gateway error", "reqID", reqID, "code", code, "message", msg)
}
