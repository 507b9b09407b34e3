package gateway

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"brokerlink/internal/config"
)

func newTestCache(t *testing.T) (*Cache, *int) {
	t.Helper()
	c := NewSessionCache(config.Gateway{Host: "127.0.0.1", Port: 7496, ClientID: 0}, testLogger())
	dials := 0
	c.dial = func(host string, port int, clientID int64, log *slog.Logger) (*Session, error) {
		dials++
		s := NewSession(&fakeCommander{}, log)
		s.host, s.port, s.clientID = host, port, clientID
		s.OnConnectReady(1)
		return s, nil
	}
	return c, &dials
}

func TestCacheReusesSessionWithinTTL(t *testing.T) {
	c, dials := newTestCache(t)
	now := time.Now()
	c.now = func() time.Time { return now }

	s1, err := c.Get()
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	now = now.Add(4 * time.Minute)
	s2, err := c.Get()
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	if s1 != s2 {
		t.Error("Get returned a different session within the TTL")
	}
	if *dials != 1 {
		t.Errorf("dials = %d, want 1", *dials)
	}
}

func TestCacheReconnectsAfterTTL(t *testing.T) {
	c, dials := newTestCache(t)
	now := time.Now()
	c.now = func() time.Time { return now }

	s1, _ := c.Get()
	now = now.Add(6 * time.Minute)
	s2, err := c.Get()
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	if s1 == s2 {
		t.Error("Get returned the expired session")
	}
	if *dials != 2 {
		t.Errorf("dials = %d, want exactly 2 (one reconnect)", *dials)
	}
	if s1.Connected() {
		t.Error("expired session still connected, want disconnected")
	}
}

func TestCacheReplacesDeadSession(t *testing.T) {
	c, dials := newTestCache(t)

	s1, _ := c.Get()
	s1.OnConnectionClosed() // gateway dropped the socket

	s2, err := c.Get()
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if s1 == s2 {
		t.Error("Get returned the dead session")
	}
	if *dials != 2 {
		t.Errorf("dials = %d, want 2", *dials)
	}
}

func TestCacheDoesNotCacheFailedDial(t *testing.T) {
	c, _ := newTestCache(t)
	fail := true
	good := c.dial
	c.dial = func(host string, port int, clientID int64, log *slog.Logger) (*Session, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return good(host, port, clientID, log)
	}

	if _, err := c.Get(); err == nil {
		t.Fatal("Get returned nil error for failed dial")
	}

	// The failure was not cached; the next call retries immediately.
	fail = false
	if _, err := c.Get(); err != nil {
		t.Fatalf("Get after recovery returned error: %v", err)
	}
}

func TestCacheInvalidateForcesReconnect(t *testing.T) {
	c, dials := newTestCache(t)

	s1, _ := c.Get()
	s2, err := c.Invalidate(5, 7497)
	if err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}

	if s1 == s2 {
		t.Error("Invalidate returned the old session")
	}
	if *dials != 2 {
		t.Errorf("dials = %d, want 2", *dials)
	}
	if s2.ClientID() != 5 || s2.Port() != 7497 {
		t.Errorf("session dialed with clientID=%d port=%d, want 5/7497", s2.ClientID(), s2.Port())
	}
	if s1.Connected() {
		t.Error("old session still connected after Invalidate")
	}
}
