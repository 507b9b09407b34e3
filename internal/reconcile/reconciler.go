// Package reconcile combines raw gateway positions and open orders with
// resolved prices into the enriched portfolio view API callers consume:
// target price and stop loss from matching sell orders, risk/reward,
// allocation, and P/L.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"brokerlink/internal/domain"
	"brokerlink/internal/gateway"
	"brokerlink/internal/quote"
)

const (
	positionsTimeout = 10 * time.Second
	summaryTimeout   = 10 * time.Second
	ordersTimeout    = 15 * time.Second

	// responseTTL bounds how often a burst of portfolio requests hits
	// the gateway.
	responseTTL = 30 * time.Second
)

// Session is the slice of a gateway session the reconciler uses.
// *gateway.Session satisfies it.
type Session interface {
	Positions(ctx context.Context, timeout time.Duration, refresh bool, resolver *quote.Resolver) []domain.Position
	OpenOrders(timeout time.Duration) []domain.OpenOrder
	AccountSummary(timeout time.Duration) (domain.AccountSummary, bool)
}

// SessionSource hands out the current gateway session, reconnecting as
// needed.
type SessionSource interface {
	Get() (Session, error)
}

// CacheSource adapts the gateway session cache to a SessionSource.
func CacheSource(c *gateway.Cache) SessionSource {
	return cacheSource{c}
}

type cacheSource struct{ cache *gateway.Cache }

func (c cacheSource) Get() (Session, error) {
	s, err := c.cache.Get()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// EnrichedPosition is a position annotated with the risk fields derived
// from its matching open sell orders.
type EnrichedPosition struct {
	domain.Position
	TargetPrice     *float64           `json:"targetPrice"`
	StopLoss        *float64           `json:"stopLoss"`
	RiskRewardRatio *float64           `json:"riskRewardRatio"`
	IsShort         bool               `json:"isShort"`
	PriceSource     string             `json:"priceSource"`
	OpenOrders      []domain.OpenOrder `json:"openOrders"`
}

// PortfolioView is the reconciled snapshot returned to API callers.
type PortfolioView struct {
	Account    domain.AccountSummary `json:"account"`
	Positions  []EnrichedPosition    `json:"positions"`
	OpenOrders []domain.OpenOrder    `json:"openOrders"`
}

// Options control one reconciliation request.
type Options struct {
	UseDummy    bool // answer from the dummy dataset without touching the gateway
	UseFallback bool // fall back to the dummy dataset when the gateway yields nothing
	Refresh     bool // resolve missing prices through external providers
}

// Reconciler produces portfolio views from the session cache and the
// quote resolver, with a short response cache in front and a dummy
// dataset behind for when the gateway is unreachable.
type Reconciler struct {
	sessions SessionSource
	quotes   *quote.Resolver
	dummy    *DummyStore
	log      *slog.Logger

	mu           sync.Mutex
	lastView     *PortfolioView
	lastViewTime time.Time

	now func() time.Time
}

// NewReconciler creates a reconciler over the given collaborators.
func NewReconciler(sessions SessionSource, quotes *quote.Resolver, dummy *DummyStore, log *slog.Logger) *Reconciler {
	return &Reconciler{
		sessions: sessions,
		quotes:   quotes,
		dummy:    dummy,
		log:      log,
		now:      time.Now,
	}
}

// Portfolio returns the reconciled positions view. Gateway trouble is
// absorbed when opts.UseFallback is set; otherwise it surfaces as an
// error.
func (r *Reconciler) Portfolio(ctx context.Context, opts Options) (PortfolioView, error) {
	if opts.UseDummy {
		r.log.Info("serving dummy portfolio")
		return r.dummy.View(), nil
	}

	if !opts.Refresh {
		if view, ok := r.cachedView(); ok {
			r.log.Debug("serving recently reconciled portfolio")
			return view, nil
		}
	}

	session, err := r.sessions.Get()
	if err != nil {
		if opts.UseFallback {
			r.log.Warn("gateway unreachable, serving dummy portfolio", "error", err)
			return r.dummy.View(), nil
		}
		return PortfolioView{}, fmt.Errorf("portfolio: %w", err)
	}

	positions := session.Positions(ctx, positionsTimeout, opts.Refresh, r.quotes)
	if len(positions) == 0 && opts.UseFallback {
		r.log.Warn("no positions from gateway, serving dummy portfolio")
		return r.dummy.View(), nil
	}

	account, ok := session.AccountSummary(summaryTimeout)
	if !ok {
		account = domain.GenericAccountSummary()
	}
	orders := session.OpenOrders(ordersTimeout)

	view := PortfolioView{
		Account:    account,
		Positions:  r.enrich(positions, orders),
		OpenOrders: orders,
	}

	r.storeView(view)
	r.dummy.Capture(view)
	return view, nil
}

// OpenOrders returns the current open orders, honoring the dummy and
// fallback flags.
func (r *Reconciler) OpenOrders(ctx context.Context, opts Options) ([]domain.OpenOrder, error) {
	if opts.UseDummy {
		return r.dummy.OpenOrders(), nil
	}

	session, err := r.sessions.Get()
	if err != nil {
		if opts.UseFallback {
			r.log.Warn("gateway unreachable, serving dummy open orders", "error", err)
			return r.dummy.OpenOrders(), nil
		}
		return nil, fmt.Errorf("open orders: %w", err)
	}

	orders := session.OpenOrders(ordersTimeout)
	if len(orders) == 0 && opts.UseFallback {
		r.log.Warn("no open orders from gateway, serving dummy open orders")
		return r.dummy.OpenOrders(), nil
	}
	return orders, nil
}

// Account returns the account cash snapshot, honoring the dummy and
// fallback flags.
func (r *Reconciler) Account(ctx context.Context, opts Options) (domain.AccountSummary, error) {
	if opts.UseDummy {
		return r.dummy.Account(), nil
	}

	session, err := r.sessions.Get()
	if err != nil {
		if opts.UseFallback {
			r.log.Warn("gateway unreachable, serving dummy account", "error", err)
			return r.dummy.Account(), nil
		}
		return domain.AccountSummary{}, fmt.Errorf("account: %w", err)
	}

	summary, ok := session.AccountSummary(summaryTimeout)
	if !ok {
		if opts.UseFallback {
			r.log.Warn("account summary timed out, serving dummy account")
			return r.dummy.Account(), nil
		}
		return domain.AccountSummary{}, fmt.Errorf("account: %w", gateway.ErrNotConnected)
	}
	return summary, nil
}

// enrich annotates each position with target price, stop loss, and
// risk/reward derived from its matching open sell orders. Malformed
// positions are skipped with a warning; positions lacking a price stay
// in the result with the risk fields absent.
func (r *Reconciler) enrich(positions []domain.Position, orders []domain.OpenOrder) []EnrichedPosition {
	enriched := make([]EnrichedPosition, 0, len(positions))
	for _, p := range positions {
		if p.Symbol == "" {
			r.log.Warn("skipping position without symbol", "position", p)
			continue
		}

		target, stop, matched := matchOrders(p, orders)
		e := EnrichedPosition{
			Position:        p,
			TargetPrice:     target,
			StopLoss:        stop,
			RiskRewardRatio: riskReward(p, target, stop),
			IsShort:         !p.IsLong(),
			PriceSource:     r.priceSource(p.Symbol),
			OpenOrders:      matched,
		}
		enriched = append(enriched, e)
	}
	return enriched
}

func (r *Reconciler) priceSource(symbol string) string {
	if e, ok := r.quotes.Cache().Get(symbol); ok {
		return e.Source
	}
	return "Unknown"
}

// matchOrders scans the open orders for the position's symbol and picks
// the most favorable sell limit as the target (highest for a long,
// lowest for a short) and the most conservative sell stop as the stop
// loss (lowest for a long, highest for a short).
func matchOrders(p domain.Position, orders []domain.OpenOrder) (target, stop *float64, matched []domain.OpenOrder) {
	long := p.IsLong()
	for _, o := range orders {
		if o.Symbol != p.Symbol {
			continue
		}
		matched = append(matched, o)

		if o.IsSellLimit() {
			lp := *o.LimitPrice
			if target == nil || (long && lp > *target) || (!long && lp < *target) {
				target = domain.Ptr(lp)
			}
		}
		if o.IsSellStop() {
			sp := *o.StopPrice
			if stop == nil || (long && sp < *stop) || (!long && sp > *stop) {
				stop = domain.Ptr(sp)
			}
		}
	}
	return target, stop, matched
}

// riskReward computes reward/risk from the current price toward the
// target and stop, oriented for long vs short. Absent when any input is
// missing or the measured risk is not positive.
func riskReward(p domain.Position, target, stop *float64) *float64 {
	if target == nil || stop == nil || p.CurrentPrice == nil {
		return nil
	}

	var reward, risk float64
	if p.IsLong() {
		reward = *target - *p.CurrentPrice
		risk = *p.CurrentPrice - *stop
	} else {
		reward = *p.CurrentPrice - *target
		risk = *stop - *p.CurrentPrice
	}
	if risk <= 0 {
		return nil
	}
	return domain.Ptr(reward / risk)
}

// InvalidateView drops the memoized portfolio view so the next request
// hits the gateway again. Called on forced reconnect, which otherwise
// would keep serving the pre-reconnect portfolio for up to the TTL.
func (r *Reconciler) InvalidateView() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastView = nil
	r.lastViewTime = time.Time{}
}

func (r *Reconciler) cachedView() (PortfolioView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastView != nil && r.now().Sub(r.lastViewTime) < responseTTL {
		return *r.lastView, true
	}
	return PortfolioView{}, false
}

func (r *Reconciler) storeView(view PortfolioView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastView = &view
	r.lastViewTime = r.now()
}
