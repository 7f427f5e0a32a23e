package hostio

import (
	"testing"
	"time"
)

func TestSignalCIsNonBlockingWhenNoSignal(t *testing.T) {
	s := NewSignal()
	select {
	case <-s.C():
		t.Fatalf("C() delivered a wakeup before Signal was ever called")
	default:
	}
}

func TestSignalDeliversOnC(t *testing.T) {
	s := NewSignal()
	s.Signal()

	select {
	case <-s.C():
	default:
		t.Fatalf("Signal did not produce a wakeup on C()")
	}
}

func TestSignalCoalescesRepeatedSignals(t *testing.T) {
	// the channel is capacity-1 and edge-triggered: calling Signal twice
	// before the waiter wakes up must not block the second call, and must
	// still only deliver one pending wakeup.
	s := NewSignal()
	s.Signal()
	s.Signal()

	select {
	case <-s.C():
	default:
		t.Fatalf("expected a pending wakeup")
	}
	select {
	case <-s.C():
		t.Fatalf("expected only one pending wakeup to have been coalesced")
	default:
	}
}

func TestRealDelayerSleeps(t *testing.T) {
	start := time.Now()
	RealDelayer{}.Sleep(5 * time.Millisecond)
	if time.Since(start) < 5*time.Millisecond {
		t.Errorf("RealDelayer.Sleep returned before the requested duration elapsed")
	}
}

func TestGoAllocatorAllocReturnsRequestedSize(t *testing.T) {
	var a GoAllocator
	buf := a.Alloc(64)
	if len(buf) != 64 {
		t.Errorf("Alloc(64) returned a slice of length %d", len(buf))
	}
	a.Free(buf)
}

func TestIRQServerAddRemoveHandler(t *testing.T) {
	var installed func() (handled bool)
	srv := &fakeIRQServer{add: func(fn func() (handled bool)) { installed = fn }}

	called := false
	srv.AddHandler(func() (handled bool) {
		called = true
		return true
	})
	if installed == nil {
		t.Fatalf("AddHandler did not install a handler")
	}
	if !installed() {
		t.Fatalf("installed handler did not report handled=true")
	}
	if !called {
		t.Fatalf("installed handler body never ran")
	}

	srv.RemoveHandler()
	if !srv.removed {
		t.Fatalf("RemoveHandler was not observed")
	}
}

// fakeIRQServer is a minimal IRQServer used only to exercise the interface
// contract itself; the chained dispatch behavior lives with whatever real
// platform collaborator a host supplies (spec §6/§9).
type fakeIRQServer struct {
	add     func(fn func() (handled bool))
	removed bool
}

func (f *fakeIRQServer) AddHandler(fn func() (handled bool)) { f.add(fn) }
func (f *fakeIRQServer) RemoveHandler()                      { f.removed = true }
