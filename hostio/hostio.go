// Package hostio defines the small facility set this driver expects the
// host environment to supply: a signaling primitive, timed delay, memory
// allocation, mutual exclusion, and interrupt-server registration (spec
// §6). The driver core never reaches into an operating system directly —
// everything it needs from the world outside the chip and its own queues
// arrives through these interfaces, the same boundary tamago draws between
// a SoC driver (soc/nxp/enet) and the board-level glue that supplies its
// clock, PLL and PHY-enable callbacks.
package hostio

import "time"

// Signaler is the Amiga Wait()/Signal() primitive distilled to its Go
// equivalent: a channel used as an edge-triggered wakeup. Signal must never
// block; a full channel means a wakeup is already pending, which is
// sufficient since the worker always re-reads live state after waking.
type Signaler interface {
	// Signal wakes up whatever is waiting on this signaler. Non-blocking.
	Signal()
	// C returns the channel a worker selects on to observe Signal calls.
	C() <-chan struct{}
}

// NewSignal returns a Signaler backed by a capacity-1 channel.
func NewSignal() Signaler {
	return &chanSignal{ch: make(chan struct{}, 1)}
}

type chanSignal struct {
	ch chan struct{}
}

func (s *chanSignal) Signal() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *chanSignal) C() <-chan struct{} {
	return s.ch
}

// Delayer abstracts timed pauses, used by the chip reset sequence (spec
// §4.B: ~25ms / ~10ms pauses around GRR) so that tests can supply an
// instantaneous or simulated-clock implementation instead of sleeping.
type Delayer interface {
	Sleep(d time.Duration)
}

// RealDelayer sleeps on the wall clock.
type RealDelayer struct{}

func (RealDelayer) Sleep(d time.Duration) { time.Sleep(d) }

// Allocator supplies the driver's staging buffers. The Go port has no
// analogue of the source's physically-contiguous DMA pool (spec §9); this
// exists so a host that does need pinned/aligned memory has somewhere to
// plug it in without the chip/unit/queue packages knowing about it.
type Allocator interface {
	Alloc(size int) []byte
	Free(buf []byte)
}

// GoAllocator satisfies Allocator with the garbage collector, the only
// sensible default for a hosted Go process.
type GoAllocator struct{}

func (GoAllocator) Alloc(size int) []byte { return make([]byte, size) }
func (GoAllocator) Free([]byte)           {}

// Locker is the mutual-exclusion primitive spec §6 lists as a host
// facility. sync.Mutex satisfies it directly; it exists as a named type so
// code that accepts "a lock" from the host can be swapped for a
// platform-specific implementation without an import of package sync
// leaking into the public API.
type Locker interface {
	Lock()
	Unlock()
}

// IRQServer registers a bounded, non-blocking interrupt handler and reports
// whether it claimed a given interrupt, mirroring the chained interrupt
// server contract of spec §4.E / §9 ("the ISR returns 'not ours' when ISR &
// IER == 0 ... the platform collaborator chains handlers").
type IRQServer interface {
	// AddHandler installs fn as an additional link in the interrupt
	// server chain for this device's IRQ line. fn must be short,
	// allocation-free, and return true only if it recognized and handled
	// the interrupt.
	AddHandler(fn func() (handled bool))
	// RemoveHandler removes a previously installed handler.
	RemoveHandler()
}
