// Package gateway maintains the live session to the broker gateway
// process. The vendor SDK is asynchronous and callback-driven; Session
// wraps it behind synchronous calls by pairing each request category
// with a completion signal that the matching callback fires. The
// outbound command surface and the inbound event surface are split into
// two interfaces wired together by the session.
package gateway

import (
	"errors"

	"brokerlink/internal/domain"
)

var (
	// ErrNotConnected is returned when an operation needs a live
	// session and there is none.
	ErrNotConnected = errors.New("gateway: not connected")

	// ErrConnectTimeout is returned when the gateway did not complete
	// the handshake within the connect budget.
	ErrConnectTimeout = errors.New("gateway: connect timed out")
)

// Commander is the outbound command surface of the vendor SDK. All
// calls are fire-and-forget; replies arrive through EventHandler.
type Commander interface {
	Connect(host string, port int, clientID int64) error
	Disconnect() error

	ReqAccountSummary(reqID int64, group, tags string)
	CancelAccountSummary(reqID int64)

	ReqPositions()
	CancelPositions()

	ReqMktData(reqID int64, contract domain.Contract)
	CancelMktData(reqID int64)

	ReqOpenOrders()
	ReqAutoOpenOrders(autoBind bool)
	ReqAllOpenOrders()
}

// EventHandler is the inbound event surface: the callbacks a Commander
// implementation delivers gateway replies through. Session implements
// it.
type EventHandler interface {
	// OnConnectReady reports a completed handshake together with the
	// broker-assigned starting request id.
	OnConnectReady(nextReqID int64)
	OnConnectionClosed()

	OnAccountSummary(reqID int64, account, tag, value, currency string)
	OnAccountSummaryEnd(reqID int64)

	OnPosition(account string, contract domain.Contract, shares, avgCost float64)
	OnPositionEnd()

	OnTickPrice(reqID int64, tickType int64, price float64)

	OnOpenOrder(order domain.OpenOrder)
	OnOrderStatus(orderID int64, status string, filled, remaining, avgFillPrice float64, whyHeld string)
	OnOpenOrderEnd()

	OnError(reqID int64, code int64, msg string)
}
