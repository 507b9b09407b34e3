package quote

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCacheSetGet(t *testing.T) {
	c, err := NewCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewCache returned error: %v", err)
	}

	if err := c.Set("aapl", 187.5, "Finnhub"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	// Lookups are case-insensitive; entries are stored uppercased.
	e, ok := c.Get("AAPL")
	if !ok {
		t.Fatal("Get(AAPL) not found after Set(aapl)")
	}
	if e.Price != 187.5 {
		t.Errorf("Price = %v, want 187.5", e.Price)
	}
	if e.Source != "Finnhub" {
		t.Errorf("Source = %q, want %q", e.Source, "Finnhub")
	}
	if e.Timestamp == 0 {
		t.Error("Timestamp not set")
	}
}

func TestCachePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	log := testLogger()

	c, err := NewCache(dir, log)
	if err != nil {
		t.Fatalf("NewCache returned error: %v", err)
	}
	if err := c.Set("MSFT", 410.0, "Alpha Vantage"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	// A second cache over the same directory sees the persisted entry.
	c2, err := NewCache(dir, log)
	if err != nil {
		t.Fatalf("NewCache (reload) returned error: %v", err)
	}
	e, ok := c2.Get("MSFT")
	if !ok {
		t.Fatal("entry lost across reload")
	}
	if e.Price != 410.0 {
		t.Errorf("Price = %v, want 410.0", e.Price)
	}
}

func TestCacheSetWritesFileSynchronously(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir, testLogger())
	if err != nil {
		t.Fatalf("NewCache returned error: %v", err)
	}
	if err := c.Set("NVDA", 900.0, "Yahoo Finance"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	// The file on disk already contains the entry when Set returns.
	data, err := os.ReadFile(filepath.Join(dir, "price_cache.json"))
	if err != nil {
		t.Fatalf("reading cache file: %v", err)
	}
	var m map[string]Entry
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("cache file not valid JSON: %v", err)
	}
	if m["NVDA"].Price != 900.0 {
		t.Errorf("file entry price = %v, want 900.0", m["NVDA"].Price)
	}
}

func TestCacheLastWriteWins(t *testing.T) {
	c, err := NewCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewCache returned error: %v", err)
	}
	c.Set("TSLA", 200, "Finnhub")
	c.Set("TSLA", 210, "Alpha Vantage")

	e, _ := c.Get("TSLA")
	if e.Price != 210 || e.Source != "Alpha Vantage" {
		t.Errorf("entry = %+v, want price 210 from Alpha Vantage", e)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (one entry per symbol)", c.Len())
	}
}

func TestCacheStaleness(t *testing.T) {
	c, err := NewCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewCache returned error: %v", err)
	}

	// Unknown symbol counts as stale.
	if !c.IsStale("GME", 24*time.Hour) {
		t.Error("IsStale = false for missing symbol, want true")
	}

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("GME", 25, "Finnhub")

	if c.IsStale("GME", 24*time.Hour) {
		t.Error("IsStale = true for fresh entry, want false")
	}

	// Advance the clock past the threshold; entry must still exist.
	c.now = func() time.Time { return base.Add(25 * time.Hour) }
	if !c.IsStale("GME", 24*time.Hour) {
		t.Error("IsStale = false for 25h-old entry with 24h max age")
	}
	if _, ok := c.Get("GME"); !ok {
		t.Error("stale entry was evicted; staleness must not delete")
	}
}

func TestCacheClear(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir, testLogger())
	if err != nil {
		t.Fatalf("NewCache returned error: %v", err)
	}
	c.Set("A", 1, "x")
	c.Set("B", 2, "y")

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", c.Len())
	}

	c2, err := NewCache(dir, testLogger())
	if err != nil {
		t.Fatalf("NewCache (reload) returned error: %v", err)
	}
	if c2.Len() != 0 {
		t.Errorf("reloaded Len() = %d after Clear, want 0", c2.Len())
	}
}

func TestCacheSurvivesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "price_cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	c, err := NewCache(dir, testLogger())
	if err != nil {
		t.Fatalf("NewCache returned error for corrupt file: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d for corrupt file, want 0", c.Len())
	}
}
