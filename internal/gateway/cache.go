package gateway

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"brokerlink/internal/config"
)

// sessionTTL is how long a cached session is reused before a fresh
// connect, amortizing the handshake cost across requests.
const sessionTTL = 5 * time.Minute

// Cache holds at most one live session. Acquiring a session through Get
// is the only path to one, which makes the cache the serialization
// boundary for session operations.
type Cache struct {
	log *slog.Logger

	mu          sync.Mutex
	session     *Session
	connectedAt time.Time

	host     string
	port     int
	clientID int64
	ttl      time.Duration

	// Injectable for tests.
	dial func(host string, port int, clientID int64, log *slog.Logger) (*Session, error)
	now  func() time.Time
}

// NewSessionCache creates a session cache dialing the configured
// gateway endpoint.
func NewSessionCache(cfg config.Gateway, log *slog.Logger) *Cache {
	return &Cache{
		log:      log,
		host:     cfg.Host,
		port:     cfg.Port,
		clientID: cfg.ClientID,
		ttl:      sessionTTL,
		dial:     Dial,
		now:      time.Now,
	}
}

// Get returns the current session when it is still connected and
// younger than the TTL; otherwise it discards it and dials a fresh one.
// A failed dial is not cached, so the next call retries immediately.
func (c *Cache) Get() (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.Connected() && c.now().Sub(c.connectedAt) < c.ttl {
		return c.session, nil
	}
	return c.reconnectLocked()
}

// Invalidate forces a reconnect with an explicit client id and,
// optionally, a different port. The discarded session's collected
// positions, orders, and summary state go with it.
func (c *Cache) Invalidate(clientID int64, port int) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clientID = clientID
	if port > 0 {
		c.port = port
	}
	c.log.Info("forcing gateway reconnect", "clientID", c.clientID, "port", c.port)
	return c.reconnectLocked()
}

// Current returns the cached session without dialing; nil when none.
func (c *Cache) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Cache) reconnectLocked() (*Session, error) {
	if c.session != nil {
		if err := c.session.Disconnect(); err != nil {
			c.log.Warn("disconnecting stale session", "error", err)
		}
		c.session = nil
	}

	s, err := c.dial(c.host, c.port, c.clientID, c.log)
	if err != nil {
		return nil, fmt.Errorf("gateway session: %w", err)
	}
	c.session = s
	c.connectedAt = c.now()
	return s, nil
}
