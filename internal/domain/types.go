// Package domain defines the plain records the broker connectivity core
// exchanges with its callers: positions, open orders, account summaries,
// and the contract descriptor used for market-data subscriptions.
package domain

// Contract identifies an instrument at the gateway.
type Contract struct {
	Symbol      string `json:"symbol"`
	SecType     string `json:"secType"`
	Exchange    string `json:"exchange"`
	Currency    string `json:"currency"`
	LocalSymbol string `json:"localSymbol,omitempty"`
}

// NewStockContract creates a contract for a US stock routed through SMART.
func NewStockContract(symbol string) Contract {
	return Contract{
		Symbol:   symbol,
		SecType:  "STK",
		Exchange: "SMART",
		Currency: "USD",
	}
}

// Position is one (account, instrument) holding reported by the gateway.
// Price-derived fields are pointers so that "not yet known" marshals as
// JSON null; they are either all nil or all set, and only set once
// CurrentPrice is known.
type Position struct {
	Account       string   `json:"account,omitempty"`
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	Shares        float64  `json:"shares"` // negative for short positions
	EntryPrice    float64  `json:"entryPrice"`
	CurrentPrice  *float64 `json:"currentPrice"`
	Value         *float64 `json:"value"`
	Allocation    *float64 `json:"allocation"`
	ProfitLoss    *float64 `json:"profitLoss"`
	ProfitLossPct *float64 `json:"profitLossPercent"`
	SecType       string   `json:"secType,omitempty"`
	Exchange      string   `json:"exchange,omitempty"`
	Currency      string   `json:"currency,omitempty"`
}

// IsLong reports whether the position is long (positive share count).
func (p *Position) IsLong() bool { return p.Shares > 0 }

// Derive fills Value, ProfitLoss, and ProfitLossPct from CurrentPrice.
// When the price is unknown all three are reset to nil. ProfitLossPct
// stays nil when EntryPrice is zero or negative, rather than producing a
// divide-by-zero artifact.
func (p *Position) Derive() {
	if p.CurrentPrice == nil {
		p.Value = nil
		p.ProfitLoss = nil
		p.ProfitLossPct = nil
		return
	}

	price := *p.CurrentPrice
	value := price * p.Shares
	pl := (price - p.EntryPrice) * p.Shares
	p.Value = &value
	p.ProfitLoss = &pl

	if p.EntryPrice > 0 {
		pct := (price - p.EntryPrice) / p.EntryPrice * 100
		p.ProfitLossPct = &pct
	} else {
		p.ProfitLossPct = nil
	}
}

// ApplyAllocations sets each position's Allocation to its share of the
// total portfolio value, in percent. The total counts only positions
// whose value is known; positions without a value keep a nil allocation
// but are never removed.
func ApplyAllocations(positions []Position) {
	var total float64
	for i := range positions {
		if positions[i].Value != nil {
			total += *positions[i].Value
		}
	}
	for i := range positions {
		if positions[i].Value != nil && total > 0 {
			positions[i].Allocation = Ptr(*positions[i].Value / total * 100)
		} else {
			positions[i].Allocation = nil
		}
	}
}

// OpenOrder is one outstanding order reported by the gateway.
type OpenOrder struct {
	OrderID       int64    `json:"orderId"`
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name,omitempty"`
	Action        string   `json:"action"`    // BUY or SELL
	OrderType     string   `json:"orderType"` // LMT, STP, STP LMT, MKT, ...
	TotalQuantity float64  `json:"totalQuantity"`
	LimitPrice    *float64 `json:"limitPrice"`
	StopPrice     *float64 `json:"stopPrice"`
	Status        string   `json:"status"`
	Filled        float64  `json:"filled"`
	Remaining     float64  `json:"remaining"`
	AvgFillPrice  float64  `json:"avgFillPrice,omitempty"`
	WhyHeld       string   `json:"whyHeld,omitempty"`
}

// IsSellLimit reports whether the order is a SELL limit order with a
// usable limit price (a take-profit / target order).
func (o *OpenOrder) IsSellLimit() bool {
	return o.Action == "SELL" && o.OrderType == "LMT" && o.LimitPrice != nil && *o.LimitPrice > 0
}

// IsSellStop reports whether the order is a SELL stop or stop-limit
// order with a usable stop price (a stop-loss order).
func (o *OpenOrder) IsSellStop() bool {
	return o.Action == "SELL" &&
		(o.OrderType == "STP" || o.OrderType == "STP LMT") &&
		o.StopPrice != nil && *o.StopPrice > 0
}

// AccountSummary is the cash snapshot for one account.
type AccountSummary struct {
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
}

// GenericAccountSummary is returned when the gateway answered the
// summary request but the expected cash field was missing.
func GenericAccountSummary() AccountSummary {
	return AccountSummary{Name: "IBKR Account", Balance: -1.0}
}

// Ptr returns a pointer to v; convenience for optional decimal fields.
func Ptr(v float64) *float64 { return &v }
