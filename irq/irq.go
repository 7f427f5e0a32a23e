// Package irq implements the two-level interrupt pump of spec §4.E: a
// bounded, non-blocking ISR that identifies and masks causes, and a
// cooperative worker loop that processes them and re-enables interrupts
// per-cause once done. The split mirrors tamago's imx6/usb interrupt
// handling style — a short hardware-facing routine that only touches
// registers, handed off to goroutine-level work — generalized here since a
// hosted Go process has no real interrupt context: Pump.ISR is invoked by
// whatever the host's IRQServer delivers the line through.
package irq

import (
	"sync"

	"github.com/mos6510/ksz8851/chip"
	"github.com/mos6510/ksz8851/hostio"
	"github.com/mos6510/ksz8851/internal/reg"
)

// Cause bits, in the exact order the worker must observe them (spec §5:
// "two events in one pass fire in ISR/IER bit order: link-change, TX, RX,
// overrun, link-up").
type Cause uint16

const (
	CauseLinkChange Cause = 1 << iota
	CauseTX
	CauseRX
	CauseOverrun
	CauseLinkUp
)

// register offsets and bit positions, duplicated from chip/regs.go's
// unexported constants since this package sits above chip and only needs
// the interrupt-facing subset. Kept numerically identical on purpose.
const (
	regIER = 0x90
	regISR = 0x92

	irqLCIS  = 5
	irqTXIS  = 14
	irqRXIS  = 13
	irqRXOIS = 11
	irqLDIS  = 3
)

// Registers is the minimal bus surface the pump needs: plain reads/writes
// of IER/ISR under the chip's already-established endianness, without
// reaching into package chip's internals.
type Registers interface {
	ReadIER() (uint16, error)
	WriteIER(uint16) error
	ReadISR() (uint16, error)
	WriteISR(uint16) error
}

// ChipRegisters adapts a *chip.Context to Registers via its exported
// register accessors.
type ChipRegisters struct {
	Chip *chip.Context
}

func (r ChipRegisters) ReadIER() (uint16, error)  { return r.Chip.ReadIER() }
func (r ChipRegisters) WriteIER(v uint16) error   { return r.Chip.WriteIER(v) }
func (r ChipRegisters) ReadISR() (uint16, error)  { return r.Chip.ReadISR() }
func (r ChipRegisters) WriteISR(v uint16) error   { return r.Chip.WriteISR(v) }

// Pump owns the ISR/worker split for one unit's chip. It has no public
// fields: everything is driven through ISR (called from interrupt/handler
// context) and Run (the worker loop, run on its own goroutine).
type Pump struct {
	regs   Registers
	signal hostio.Signaler

	mu         sync.Mutex
	pending    Cause // causes observed by the ISR, awaiting the worker
	enableMask uint16

	shutdown chan struct{}
	done     chan struct{}
}

// NewPump constructs a Pump. signal is the worker's wakeup primitive (spec
// §4.E: "waits on a signal mask combining {shutdown, configuration-file-
// changed, chip-event, new-request}" — this package owns only the
// chip-event edge of that mask; the others are the caller's to wire).
func NewPump(regs Registers, signal hostio.Signaler) *Pump {
	return &Pump{
		regs:     regs,
		signal:   signal,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// ISR is the bounded, non-blocking interrupt handler (spec §4.E). It
// returns false ("not ours") when ISR & IER == 0 per the shared-IRQ
// discipline §9 demands be preserved exactly. On a claimed interrupt it
// disables all chip interrupts, clears the edge-triggered TX-done bit, and
// signals the worker.
func (p *Pump) ISR() (handled bool) {
	ier, err := p.regs.ReadIER()
	if err != nil {
		return false
	}
	isr, err := p.regs.ReadISR()
	if err != nil {
		return false
	}

	if isr&ier == 0 {
		return false
	}

	if err := p.regs.WriteIER(0); err != nil {
		return false
	}

	var causes Cause
	if reg.Get16(isr, irqLCIS, 1) != 0 {
		causes |= CauseLinkChange
	}
	if reg.Get16(isr, irqTXIS, 1) != 0 {
		causes |= CauseTX
	}
	if reg.Get16(isr, irqRXIS, 1) != 0 {
		causes |= CauseRX
	}
	if reg.Get16(isr, irqRXOIS, 1) != 0 {
		causes |= CauseOverrun
	}
	if reg.Get16(isr, irqLDIS, 1) != 0 {
		causes |= CauseLinkUp
	}

	// write-1-to-clear the edge-triggered TX-done bit; the others are
	// level-sensitive and clear themselves as the worker services them.
	if causes&CauseTX != 0 {
		_ = p.regs.WriteISR(1 << irqTXIS)
	}

	p.mu.Lock()
	p.pending |= causes
	p.mu.Unlock()

	p.signal.Signal()
	return true
}

// Handlers groups the per-cause callbacks the worker invokes. Any nil
// field is skipped. Handlers run with no chip lock held by this package —
// each handler is responsible for its own synchronization (chip.Context
// and the dispatcher already serialize internally).
type Handlers struct {
	OnLinkChange func()
	OnTX         func()
	OnRX         func()
	OnOverrun    func()
	OnLinkUp     func()
}

// Run is the worker loop (spec §4.E). It blocks on the signal channel,
// processes every cause latched since the last pass, and re-enables
// exactly those causes in IER once all of them have been handled — "a
// cause that fires again during processing will be latched in ISR and
// re-observed on the next wake", so no explicit loop-until-clear is
// needed here. Run returns when Shutdown is called, after aborting via h
// one final time with no causes (nil Handlers-safe) is NOT performed here;
// shutdown sequencing belongs to the caller (spec §4.E: "the worker
// completes the current pass ... aborts all queued requests").
func (p *Pump) Run(h Handlers) {
	defer close(p.done)

	for {
		select {
		case <-p.shutdown:
			return
		case <-p.signal.C():
			p.processPass(h)
		}
	}
}

func (p *Pump) processPass(h Handlers) {
	p.mu.Lock()
	causes := p.pending
	p.pending = 0
	p.mu.Unlock()

	if causes == 0 {
		return
	}

	var mask uint16
	if causes&CauseLinkChange != 0 {
		if h.OnLinkChange != nil {
			h.OnLinkChange()
		}
		mask |= 1 << irqLCIS
	}
	if causes&CauseTX != 0 {
		if h.OnTX != nil {
			h.OnTX()
		}
		mask |= 1 << irqTXIS
	}
	if causes&CauseRX != 0 {
		if h.OnRX != nil {
			h.OnRX()
		}
		mask |= 1 << irqRXIS
	}
	if causes&CauseOverrun != 0 {
		if h.OnOverrun != nil {
			h.OnOverrun()
		}
		mask |= 1 << irqRXOIS
	}
	if causes&CauseLinkUp != 0 {
		if h.OnLinkUp != nil {
			h.OnLinkUp()
		}
		mask |= 1 << irqLDIS
	}

	p.mu.Lock()
	p.enableMask |= mask
	enable := p.enableMask
	p.mu.Unlock()

	_ = p.regs.WriteIER(enable)
}

// EnableAll sets the full interrupt enable mask this pump understands,
// used by Unit.online to turn interrupts on for the first time.
func (p *Pump) EnableAll() error {
	mask := uint16(1<<irqLCIS | 1<<irqTXIS | 1<<irqRXIS | 1<<irqRXOIS | 1<<irqLDIS)
	p.mu.Lock()
	p.enableMask = mask
	p.mu.Unlock()
	return p.regs.WriteIER(mask)
}

// Shutdown stops the worker after it finishes its current pass and clears
// chip interrupts (spec §4.E cancellation contract). It blocks until Run
// has returned.
func (p *Pump) Shutdown() error {
	close(p.shutdown)
	<-p.done
	return p.regs.WriteIER(0)
}
