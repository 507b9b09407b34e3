package gateway

import (
	"sync"
	"time"
)

// signal is a one-shot completion notification: the callback side calls
// Fire once, the requesting side blocks in Wait with a bound. Reset
// re-arms it for the next request in the same category.
type signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

// Reset re-arms the signal. Must be called before issuing the request
// the signal will report completion for.
func (s *signal) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.ch:
		s.ch = make(chan struct{})
	default:
	}
}

// Fire marks the signal complete. Firing an already-fired signal is a
// no-op, so a late duplicate callback cannot panic.
func (s *signal) Fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.ch:
	default:
		close(s.ch)
	}
}

// Wait blocks until the signal fires or timeout elapses, reporting
// whether it fired.
func (s *signal) Wait(timeout time.Duration) bool {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}
