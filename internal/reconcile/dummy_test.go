package reconcile

import (
	"os"
	"path/filepath"
	"testing"

	"brokerlink/internal/domain"
)

func TestDummyStoreSeedsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDummyStore(dir, testLogger())
	if err != nil {
		t.Fatalf("NewDummyStore returned error: %v", err)
	}

	for _, name := range []string{dummyPositionsFile, dummyOrdersFile, dummyAccountFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not seeded: %v", name, err)
		}
	}
	if len(d.Positions()) == 0 {
		t.Error("seeded dummy positions are empty")
	}
	if d.Account().Name == "" {
		t.Error("seeded dummy account has no name")
	}
}

func TestDummyStoreKeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := `{"name": "U7777777", "balance": 123.45}`
	if err := os.WriteFile(filepath.Join(dir, dummyAccountFile), []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := NewDummyStore(dir, testLogger())
	if err != nil {
		t.Fatalf("NewDummyStore returned error: %v", err)
	}
	if got := d.Account(); got.Name != "U7777777" || got.Balance != 123.45 {
		t.Errorf("Account = %+v, want the pre-existing record", got)
	}
}

func TestDummyCaptureDisabledByDefault(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDummyStore(dir, testLogger())
	if err != nil {
		t.Fatalf("NewDummyStore returned error: %v", err)
	}
	if d.CaptureEnabled() {
		t.Fatal("capture enabled by default")
	}

	d.Capture(PortfolioView{Account: domain.AccountSummary{Name: "LIVE", Balance: 1}})
	if got := d.Account(); got.Name == "LIVE" {
		t.Error("Capture wrote files while disabled")
	}
}

func TestDummyCaptureOverwritesDataset(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDummyStore(dir, testLogger())
	if err != nil {
		t.Fatalf("NewDummyStore returned error: %v", err)
	}
	d.SetCapture(true)

	view := PortfolioView{
		Account: domain.AccountSummary{Name: "U5555555", Balance: 9000},
		Positions: []EnrichedPosition{{
			Position: domain.Position{Symbol: "NVDA", Shares: 2, EntryPrice: 800, CurrentPrice: domain.Ptr(900)},
		}},
		OpenOrders: []domain.OpenOrder{{OrderID: 1, Symbol: "NVDA", Action: "SELL", OrderType: "LMT", LimitPrice: domain.Ptr(1000)}},
	}
	d.Capture(view)

	if got := d.Account(); got.Name != "U5555555" {
		t.Errorf("Account = %+v, want captured record", got)
	}
	positions := d.Positions()
	if len(positions) != 1 || positions[0].Symbol != "NVDA" {
		t.Errorf("Positions = %+v, want captured NVDA position", positions)
	}
	if orders := d.OpenOrders(); len(orders) != 1 || orders[0].Symbol != "NVDA" {
		t.Errorf("OpenOrders = %+v, want captured NVDA order", orders)
	}
}
