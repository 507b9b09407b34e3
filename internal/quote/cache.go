// Package quote resolves current market prices for symbols through a
// persistent file cache and an ordered chain of external providers.
package quote

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is one cached price for a symbol.
type Entry struct {
	Price              float64 `json:"price"`
	Timestamp          float64 `json:"timestamp"` // unix seconds
	TimestampFormatted string  `json:"timestamp_formatted"`
	Source             string  `json:"source"`
}

// Cache is a symbol → Entry map persisted to a single JSON document.
// Every Set rewrites the file before returning, so a price fetched just
// before a crash is never lost. Entries are never evicted; staleness is
// a query-time predicate only.
type Cache struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	entries map[string]Entry

	now func() time.Time // injectable for tests
}

// NewCache loads (or creates) the cache file at dir/price_cache.json.
func NewCache(dir string, log *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	c := &Cache{
		path:    filepath.Join(dir, "price_cache.json"),
		log:     log,
		entries: make(map[string]Entry),
		now:     time.Now,
	}

	data, err := os.ReadFile(c.path)
	switch {
	case os.IsNotExist(err):
		log.Info("no price cache file found, creating a new one", "path", c.path)
		if err := c.persist(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("reading price cache: %w", err)
	default:
		if err := json.Unmarshal(data, &c.entries); err != nil {
			// A corrupt cache is fully reconstructible; start over.
			log.Error("price cache unreadable, starting empty", "path", c.path, "error", err)
			c.entries = make(map[string]Entry)
		} else {
			log.Info("loaded price cache", "symbols", len(c.entries))
		}
	}

	return c, nil
}

// Get returns the cached entry for symbol, if any.
func (c *Cache) Get(symbol string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[strings.ToUpper(symbol)]
	return e, ok
}

// Set stores a price for symbol and persists the cache synchronously.
func (c *Cache) Set(symbol string, price float64, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[strings.ToUpper(symbol)] = Entry{
		Price:              price,
		Timestamp:          float64(now.Unix()),
		TimestampFormatted: now.Format("2006-01-02 15:04:05"),
		Source:             source,
	}
	return c.persist()
}

// IsStale reports whether the cached price for symbol is older than
// maxAge. A symbol with no entry counts as stale.
func (c *Cache) IsStale(symbol string, maxAge time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[strings.ToUpper(symbol)]
	if !ok || e.Timestamp == 0 {
		return true
	}
	age := c.now().Sub(time.Unix(int64(e.Timestamp), 0))
	return age > maxAge
}

// Clear removes all entries and persists the empty cache.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
	return c.persist()
}

// All returns a copy of every cached entry keyed by symbol.
func (c *Cache) All() map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Path returns the location of the backing file.
func (c *Cache) Path() string { return c.path }

// persist rewrites the whole cache file. Caller holds c.mu.
func (c *Cache) persist() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding price cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("writing price cache: %w", err)
	}
	return nil
}
