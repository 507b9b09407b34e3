package gateway

import (
	"log/slog"
	"math"

	"github.com/hadrianl/ibapi"

	"brokerlink/internal/domain"
)

// Dial connects a fresh session to the gateway over the vendor SDK.
func Dial(host string, port int, clientID int64, log *slog.Logger) (*Session, error) {
	s := NewSession(nil, log)
	s.cmd = NewIBCommander(s)
	if err := s.Connect(host, port, clientID); err != nil {
		_ = s.cmd.Disconnect()
		return nil, err
	}
	return s, nil
}

// IBCommander drives the vendor TWS/Gateway SDK. Reply traffic comes
// back through the wrapper bridge, which forwards the callbacks the
// session cares about to its EventHandler.
type IBCommander struct {
	client *ibapi.IbClient
}

var _ Commander = (*IBCommander)(nil)

// NewIBCommander creates a commander whose gateway replies are
// delivered to h.
func NewIBCommander(h EventHandler) *IBCommander {
	c := &IBCommander{}
	c.client = ibapi.NewIbClient(&wrapperBridge{handler: h})
	return c
}

// Connect opens the socket, performs the protocol handshake, and starts
// the SDK's reader loop in the background. The handshake here is the
// wire-level one; the session-level handshake completes when the
// gateway delivers the starting request id.
func (c *IBCommander) Connect(host string, port int, clientID int64) error {
	if err := c.client.Connect(host, port, clientID); err != nil {
		return err
	}
	if err := c.client.HandShake(); err != nil {
		return err
	}
	if err := c.client.Run(); err != nil {
		return err
	}
	go func() { _ = c.client.LoopUntilDone() }()
	return nil
}

// Disconnect closes the gateway socket.
func (c *IBCommander) Disconnect() error {
	return c.client.Disconnect()
}

// ReqAccountSummary subscribes to summary values for an account group.
func (c *IBCommander) ReqAccountSummary(reqID int64, group, tags string) {
	c.client.ReqAccountSummary(reqID, group, tags)
}

// CancelAccountSummary ends an account summary subscription.
func (c *IBCommander) CancelAccountSummary(reqID int64) {
	c.client.CancelAccountSummary(reqID)
}

// ReqPositions subscribes to the position stream.
func (c *IBCommander) ReqPositions() {
	c.client.ReqPositions()
}

// CancelPositions ends the position subscription.
func (c *IBCommander) CancelPositions() {
	c.client.CancelPositions()
}

// ReqMktData subscribes to ticks for a contract.
func (c *IBCommander) ReqMktData(reqID int64, contract domain.Contract) {
	c.client.ReqMktData(reqID, toIBContract(contract), "", false, false, nil)
}

// CancelMktData ends a tick subscription.
func (c *IBCommander) CancelMktData(reqID int64) {
	c.client.CancelMktData(reqID)
}

// ReqOpenOrders requests orders bound to this client id.
func (c *IBCommander) ReqOpenOrders() {
	c.client.ReqOpenOrders()
}

// ReqAutoOpenOrders additionally binds manually placed orders to this
// client.
func (c *IBCommander) ReqAutoOpenOrders(autoBind bool) {
	c.client.ReqAutoOpenOrders(autoBind)
}

// ReqAllOpenOrders requests orders across all client ids.
func (c *IBCommander) ReqAllOpenOrders() {
	c.client.ReqAllOpenOrders()
}

// wrapperBridge adapts the SDK's wide wrapper interface to the narrow
// EventHandler. The embedded default wrapper absorbs every callback the
// session has no use for.
type wrapperBridge struct {
	ibapi.Wrapper
	handler EventHandler
}

func (w *wrapperBridge) NextValidID(reqID int64) {
	w.handler.OnConnectReady(reqID)
}

func (w *wrapperBridge) ConnectionClosed() {
	w.handler.OnConnectionClosed()
}

func (w *wrapperBridge) Error(reqID int64, errCode int64, errString string) {
	w.handler.OnError(reqID, errCode, errString)
}

func (w *wrapperBridge) AccountSummary(reqID int64, account, tag, value, currency string) {
	w.handler.OnAccountSummary(reqID, account, tag, value, currency)
}

func (w *wrapperBridge) AccountSummaryEnd(reqID int64) {
	w.handler.OnAccountSummaryEnd(reqID)
}

func (w *wrapperBridge) Position(account string, contract *ibapi.Contract, position float64, avgCost float64) {
	w.handler.OnPosition(account, fromIBContract(contract), position, avgCost)
}

func (w *wrapperBridge) PositionEnd() {
	w.handler.OnPositionEnd()
}

func (w *wrapperBridge) TickPrice(reqID int64, tickType int64, price float64, attrib ibapi.TickAttrib) {
	w.handler.OnTickPrice(reqID, tickType, price)
}

func (w *wrapperBridge) OpenOrder(orderID int64, contract *ibapi.Contract, order *ibapi.Order, orderState *ibapi.OrderState) {
	name := contract.LocalSymbol
	if name == "" {
		name = contract.Symbol
	}
	w.handler.OnOpenOrder(domain.OpenOrder{
		OrderID:       orderID,
		Symbol:        contract.Symbol,
		Name:          name,
		Action:        order.Action,
		OrderType:     order.OrderType,
		TotalQuantity: order.TotalQuantity,
		LimitPrice:    optionalPrice(order.LimitPrice),
		StopPrice:     optionalPrice(order.AuxPrice),
		Status:        orderState.Status,
		Remaining:     order.TotalQuantity, // refined by OrderStatus
	})
}

func (w *wrapperBridge) OrderStatus(orderID int64, status string, filled, remaining, avgFillPrice float64, permID int64, parentID int64, lastFillPrice float64, clientID int64, whyHeld string, mktCapPrice float64) {
	w.handler.OnOrderStatus(orderID, status, filled, remaining, avgFillPrice, whyHeld)
}

func (w *wrapperBridge) OpenOrderEnd() {
	w.handler.OnOpenOrderEnd()
}

func toIBContract(c domain.Contract) *ibapi.Contract {
	return &ibapi.Contract{
		Symbol:       c.Symbol,
		SecurityType: c.SecType,
		Exchange:     c.Exchange,
		Currency:     c.Currency,
		LocalSymbol:  c.LocalSymbol,
	}
}

func fromIBContract(c *ibapi.Contract) domain.Contract {
	return domain.Contract{
		Symbol:      c.Symbol,
		SecType:     c.SecurityType,
		Exchange:    c.Exchange,
		Currency:    c.Currency,
		LocalSymbol: c.LocalSymbol,
	}
}

// optionalPrice maps the SDK's zero/unset price sentinels to absent.
func optionalPrice(v float64) *float64 {
	if v <= 0 || v >= math.MaxFloat64/2 {
		return nil
	}
	return domain.Ptr(v)
}
