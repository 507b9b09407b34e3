package gateway

import (
	"testing"
	"time"
)

func TestSignalWaitTimesOutBeforeFire(t *testing.T) {
	s := newSignal()
	if s.Wait(10 * time.Millisecond) {
		t.Error("Wait = true before Fire")
	}
}

func TestSignalFireWakesWaiter(t *testing.T) {
	s := newSignal()
	go func() {
		time.Sleep(5 * time.Millisecond)
		s.Fire()
	}()
	if !s.Wait(time.Second) {
		t.Error("Wait = false after Fire")
	}
	// Once fired, subsequent waits return immediately.
	if !s.Wait(time.Millisecond) {
		t.Error("Wait = false on already-fired signal")
	}
}

func TestSignalDoubleFireIsHarmless(t *testing.T) {
	s := newSignal()
	s.Fire()
	s.Fire() // a late duplicate callback must not panic
	if !s.Wait(time.Millisecond) {
		t.Error("Wait = false after Fire")
	}
}

func TestSignalResetRearms(t *testing.T) {
	s := newSignal()
	s.Fire()
	s.Reset()
	if s.Wait(10 * time.Millisecond) {
		t.Error("Wait = true after Reset")
	}
	s.Fire()
	if !s.Wait(time.Millisecond) {
		t.Error("Wait = false after re-Fire")
	}
}

func TestSignalResetBeforeFireKeepsChannel(t *testing.T) {
	s := newSignal()
	s.Reset() // no-op on an armed signal
	go s.Fire()
	if !s.Wait(time.Second) {
		t.Error("Wait = false after Fire on reset-but-unfired signal")
	}
}
