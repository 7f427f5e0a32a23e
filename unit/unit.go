// Package unit implements the unit state machine of spec §4.G: the
// CONFIG/ONLINE/EXCLUSIVE/LOOPBACK/PROMISC bitfield, the transitions that
// guard it, and the worker lifecycle that online/offline start and stop.
// The structure mirrors soc/nxp/enet's Init()/Enable() split generalized
// to a state machine with explicit preconditions instead of tamago's
// implicit "call Init once at boot" assumption.
package unit

import (
	"net"
	"sync"
	"time"

	"github.com/mos6510/ksz8851/bus"
	"github.com/mos6510/ksz8851/chip"
	"github.com/mos6510/ksz8851/errs"
	"github.com/mos6510/ksz8851/hostio"
	"github.com/mos6510/ksz8851/irq"
	"github.com/mos6510/ksz8851/queue"
)

// State is the unit state bitfield of spec §3/§4.G.
type State uint8

const (
	Config State = 1 << iota
	Online
	Exclusive
	Loopback
	Promisc
)

func (s State) Has(bit State) bool { return s&bit != 0 }

// Unit is the logical port of spec §3.
type Unit struct {
	mu sync.Mutex // device lock: serializes every state transition

	Number      int
	StationAddr net.HardwareAddr
	MTU         int

	state     State
	openCount int
	startTime time.Time

	Chip       *chip.Context
	Dispatcher *queue.Dispatcher
	Pump       *irq.Pump

	delay hostio.Delayer
}

// New returns an unconfigured, offline unit bound to b. delay may be nil.
func New(number int, b bus.Bus, delay hostio.Delayer, signal hostio.Signaler) *Unit {
	if delay == nil {
		delay = hostio.RealDelayer{}
	}
	c := chip.New(b, delay)
	u := &Unit{
		Number:     number,
		MTU:        chip.MTU,
		Chip:       c,
		Dispatcher: queue.NewDispatcher(),
		delay:      delay,
	}
	u.Pump = irq.NewPump(irq.ChipRegisters{Chip: c}, signal)
	return u
}

// State reports the current state bitfield.
func (u *Unit) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Open increments the open-reference count. A unit may be opened more
// than once; it is expunged only once closed all the way down.
func (u *Unit) Open() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.openCount++
}

// Close decrements the open-reference count and reports the count that
// remains, so a caller can decide whether to proceed to offline/expunge.
func (u *Unit) Close() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.openCount > 0 {
		u.openCount--
	}
	return u.openCount
}

// ConfigInterface requires ¬CONFIG, sets the station MAC, sets CONFIG and
// internally invokes Online (spec §4.G).
func (u *Unit) ConfigInterface(mac net.HardwareAddr, deliver func([]byte)) *errs.Error {
	u.mu.Lock()
	if u.state.Has(Config) {
		u.mu.Unlock()
		return errs.New(errs.BadState)
	}
	u.StationAddr = append(net.HardwareAddr(nil), mac...)
	u.state |= Config
	u.mu.Unlock()

	return u.Online(deliver)
}

// Online requires CONFIG: inits the chip, binds the receive callback,
// enables chip interrupts, sets ONLINE, fires S2EVENT_ONLINE, and records
// the start time. Idempotent if already ONLINE (spec §4.G).
func (u *Unit) Online(deliver func([]byte)) *errs.Error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state.Has(Online) {
		return nil
	}
	if !u.state.Has(Config) {
		return errs.New(errs.BadState)
	}

	if err := u.Chip.Probe(); err != nil {
		return errs.New(errs.NoChip)
	}
	if err := u.Chip.Init(u.StationAddr); err != nil {
		return errs.New(errs.NoChip)
	}
	if err := u.Chip.Enable(true, true); err != nil {
		return errs.New(errs.NoChip)
	}

	go u.Pump.Run(irq.Handlers{
		OnLinkChange: func() {},
		OnTX: func() {
			u.Dispatcher.FireEvent(queue.EventTX)
		},
		OnRX: func() {
			if err := u.Chip.Drain(func(frame []byte) {
				if !u.Dispatcher.Deliver(frame) {
					u.Dispatcher.FireEvent(queue.EventRX)
				}
				if deliver != nil {
					deliver(frame)
				}
			}); err != nil {
				u.Chip.Stats.RXOverruns++
			}
		},
		OnOverrun: func() {
			u.Chip.Stats.RXOverruns++
		},
		OnLinkUp: func() {},
	})

	if err := u.Pump.EnableAll(); err != nil {
		return errs.New(errs.NoChip)
	}

	u.state |= Online
	u.startTime = time.Now()
	u.Dispatcher.FireEvent(queue.EventOnline)
	return nil
}

// Offline requires ONLINE: clears ONLINE, fires S2EVENT_OFFLINE, flushes
// all queues, and deinits the chip (spec §4.G).
func (u *Unit) Offline() *errs.Error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.state.Has(Online) {
		return errs.New(errs.BadState)
	}

	u.state &^= Online
	u.Dispatcher.FireEvent(queue.EventOffline)
	u.Dispatcher.Flush()

	if err := u.Pump.Shutdown(); err != nil {
		return errs.New(errs.BadState)
	}
	if err := u.Chip.Enable(false, false); err != nil {
		return errs.New(errs.BadState)
	}
	return nil
}

// Expunge requires ¬ONLINE and open-count = 0 (spec §4.G); the worker is
// already torn down by Offline, so this only validates preconditions.
func (u *Unit) Expunge() *errs.Error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.state.Has(Online) {
		return errs.New(errs.BadState)
	}
	if u.openCount != 0 {
		return errs.New(errs.BadState)
	}
	return nil
}

// SetPromiscuous toggles the PROMISC bit and recomputes the hash filter.
func (u *Unit) SetPromiscuous(on bool) *errs.Error {
	u.mu.Lock()
	if on {
		u.state |= Promisc
	} else {
		u.state &^= Promisc
	}
	u.mu.Unlock()

	if err := u.Chip.ApplyMulticastFilter(u.Dispatcher.MulticastList(), on); err != nil {
		return errs.New(errs.BadState)
	}
	return nil
}

// SetExclusive toggles the EXCLUSIVE bit (single-opener mode).
func (u *Unit) SetExclusive(on bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if on {
		u.state |= Exclusive
	} else {
		u.state &^= Exclusive
	}
}

// SetLoopback toggles the LOOPBACK bit. It only tracks the state bit that
// State reports; no package of the driver reroutes frames in loopback.
func (u *Unit) SetLoopback(on bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if on {
		u.state |= Loopback
	} else {
		u.state &^= Loopback
	}
}

// Uptime reports the duration since Online last succeeded, zero if never
// online.
func (u *Unit) Uptime() time.Duration {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.startTime.IsZero() {
		return 0
	}
	return time.Since(u.startTime)
}
