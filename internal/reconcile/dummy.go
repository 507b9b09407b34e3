package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"brokerlink/internal/domain"
)

const (
	dummyPositionsFile = "dummy_positions.json"
	dummyOrdersFile    = "dummy_open_orders.json"
	dummyAccountFile   = "dummy_account.json"
)

// DummyStore serves a canned portfolio for when the gateway is
// unreachable, backed by JSON files under the data directory. With
// capture enabled, real reconciled responses overwrite the files so the
// fallback tracks reality.
type DummyStore struct {
	dir     string
	log     *slog.Logger
	capture atomic.Bool
}

// NewDummyStore opens the dummy dataset under dir, seeding any missing
// file with a default sample. Capture starts disabled.
func NewDummyStore(dir string, log *slog.Logger) (*DummyStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dummy data dir: %w", err)
	}
	d := &DummyStore{dir: dir, log: log}

	if err := d.seed(dummyPositionsFile, defaultDummyPositions()); err != nil {
		return nil, err
	}
	if err := d.seed(dummyOrdersFile, defaultDummyOrders()); err != nil {
		return nil, err
	}
	if err := d.seed(dummyAccountFile, defaultDummyAccount()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DummyStore) seed(name string, v any) error {
	path := filepath.Join(d.dir, name)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return d.write(name, v)
}

func (d *DummyStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func (d *DummyStore) read(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// View assembles the full dummy portfolio view.
func (d *DummyStore) View() PortfolioView {
	return PortfolioView{
		Account:    d.Account(),
		Positions:  d.Positions(),
		OpenOrders: d.OpenOrders(),
	}
}

// Positions returns the dummy positions.
func (d *DummyStore) Positions() []EnrichedPosition {
	var positions []EnrichedPosition
	if err := d.read(dummyPositionsFile, &positions); err != nil {
		d.log.Error("loading dummy positions", "error", err)
		return []EnrichedPosition{}
	}
	return positions
}

// OpenOrders returns the dummy open orders.
func (d *DummyStore) OpenOrders() []domain.OpenOrder {
	var orders []domain.OpenOrder
	if err := d.read(dummyOrdersFile, &orders); err != nil {
		d.log.Error("loading dummy open orders", "error", err)
		return []domain.OpenOrder{}
	}
	return orders
}

// Account returns the dummy account summary.
func (d *DummyStore) Account() domain.AccountSummary {
	var account domain.AccountSummary
	if err := d.read(dummyAccountFile, &account); err != nil {
		d.log.Error("loading dummy account", "error", err)
		return domain.GenericAccountSummary()
	}
	return account
}

// Capture overwrites the dummy dataset with a real reconciled view.
// No-op unless capture is enabled.
func (d *DummyStore) Capture(view PortfolioView) {
	if !d.capture.Load() {
		return
	}
	if err := d.write(dummyPositionsFile, view.Positions); err != nil {
		d.log.Error("capturing positions", "error", err)
	}
	if err := d.write(dummyOrdersFile, view.OpenOrders); err != nil {
		d.log.Error("capturing open orders", "error", err)
	}
	if err := d.write(dummyAccountFile, view.Account); err != nil {
		d.log.Error("capturing account", "error", err)
	}
	d.log.Info("captured live portfolio into dummy dataset",
		"positions", len(view.Positions), "orders", len(view.OpenOrders))
}

// CaptureEnabled reports whether live responses are being captured.
func (d *DummyStore) CaptureEnabled() bool { return d.capture.Load() }

// SetCapture toggles capturing of live responses into the dummy files.
func (d *DummyStore) SetCapture(enabled bool) {
	d.capture.Store(enabled)
	d.log.Info("dummy capture toggled", "enabled", enabled)
}

func defaultDummyPositions() []EnrichedPosition {
	return []EnrichedPosition{
		{
			Position: domain.Position{
				Symbol:       "AAPL",
				Name:         "Apple Inc",
				Shares:       50,
				EntryPrice:   175.50,
				CurrentPrice: domain.Ptr(189.25),
				Value:        domain.Ptr(9462.50),
				Allocation:   domain.Ptr(61.0),
				ProfitLoss:   domain.Ptr(687.50),
				SecType:      "STK",
				Exchange:     "SMART",
				Currency:     "USD",
			},
			TargetPrice:     domain.Ptr(210.0),
			StopLoss:        domain.Ptr(170.0),
			RiskRewardRatio: domain.Ptr(1.08),
			PriceSource:     "Finnhub",
		},
		{
			Position: domain.Position{
				Symbol:       "MSFT",
				Name:         "Microsoft Corp",
				Shares:       15,
				EntryPrice:   390.00,
				CurrentPrice: domain.Ptr(402.10),
				Value:        domain.Ptr(6031.50),
				Allocation:   domain.Ptr(39.0),
				ProfitLoss:   domain.Ptr(181.50),
				SecType:      "STK",
				Exchange:     "SMART",
				Currency:     "USD",
			},
			PriceSource: "Finnhub",
		},
	}
}

func defaultDummyOrders() []domain.OpenOrder {
	return []domain.OpenOrder{
		{
			OrderID:       1001,
			Symbol:        "AAPL",
			Name:          "Apple Inc",
			Action:        "SELL",
			OrderType:     "LMT",
			TotalQuantity: 50,
			LimitPrice:    domain.Ptr(210.0),
			Status:        "Submitted",
			Remaining:     50,
		},
		{
			OrderID:       1002,
			Symbol:        "AAPL",
			Name:          "Apple Inc",
			Action:        "SELL",
			OrderType:     "STP",
			TotalQuantity: 50,
			StopPrice:     domain.Ptr(170.0),
			Status:        "Submitted",
			Remaining:     50,
		},
	}
}

func defaultDummyAccount() domain.AccountSummary {
	return domain.AccountSummary{Name: "U0000000", Balance: 25000.0}
}
