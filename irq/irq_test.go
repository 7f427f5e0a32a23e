package irq

import (
	"sync"
	"testing"
	"time"

	"github.com/mos6510/ksz8851/hostio"
)

// fakeRegs is a minimal in-memory Registers double, standing in for a
// *chip.Context so the pump's register protocol can be tested without a bus.
type fakeRegs struct {
	mu  sync.Mutex
	ier uint16
	isr uint16
}

func (r *fakeRegs) ReadIER() (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ier, nil
}

func (r *fakeRegs) WriteIER(v uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ier = v
	return nil
}

func (r *fakeRegs) ReadISR() (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isr, nil
}

func (r *fakeRegs) WriteISR(v uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// write-1-to-clear semantics, matching the real ISR register.
	r.isr &^= v
	return nil
}

func TestISRRejectsWhenNotOurs(t *testing.T) {
	regs := &fakeRegs{ier: 1 << irqRXIS, isr: 0}
	p := NewPump(regs, hostio.NewSignal())

	if p.ISR() {
		t.Fatalf("ISR claimed an interrupt with ISR & IER == 0")
	}
}

func TestISRClaimsAndDisablesIER(t *testing.T) {
	regs := &fakeRegs{ier: 1 << irqRXIS, isr: 1 << irqRXIS}
	p := NewPump(regs, hostio.NewSignal())

	if !p.ISR() {
		t.Fatalf("ISR did not claim a matching interrupt")
	}
	if regs.ier != 0 {
		t.Fatalf("ISR did not disable IER: %#x", regs.ier)
	}

	p.mu.Lock()
	pending := p.pending
	p.mu.Unlock()
	if pending&CauseRX == 0 {
		t.Fatalf("RX cause not latched: %#x", pending)
	}
}

func TestISRClearsEdgeTriggeredTXBit(t *testing.T) {
	regs := &fakeRegs{ier: 1 << irqTXIS, isr: 1 << irqTXIS}
	p := NewPump(regs, hostio.NewSignal())

	if !p.ISR() {
		t.Fatalf("ISR did not claim the TX interrupt")
	}
	if regs.isr&(1<<irqTXIS) != 0 {
		t.Fatalf("edge-triggered TX bit was not cleared: %#x", regs.isr)
	}
}

func TestISRIdentifiesAllCausesTogether(t *testing.T) {
	all := uint16(1<<irqLCIS | 1<<irqTXIS | 1<<irqRXIS | 1<<irqRXOIS | 1<<irqLDIS)
	regs := &fakeRegs{ier: all, isr: all}
	p := NewPump(regs, hostio.NewSignal())

	if !p.ISR() {
		t.Fatalf("ISR did not claim a fully-set ISR")
	}

	p.mu.Lock()
	pending := p.pending
	p.mu.Unlock()

	want := CauseLinkChange | CauseTX | CauseRX | CauseOverrun | CauseLinkUp
	if pending != want {
		t.Fatalf("causes = %#x, want %#x", pending, want)
	}
}

func TestRunDispatchesHandlersAndReenablesIER(t *testing.T) {
	regs := &fakeRegs{ier: 1 << irqRXIS, isr: 1 << irqRXIS}
	p := NewPump(regs, hostio.NewSignal())

	rxCh := make(chan struct{}, 1)
	go p.Run(Handlers{
		OnRX: func() { rxCh <- struct{}{} },
	})
	defer p.Shutdown()

	if !p.ISR() {
		t.Fatalf("ISR did not claim the RX interrupt")
	}

	select {
	case <-rxCh:
	case <-time.After(time.Second):
		t.Fatalf("OnRX handler was never invoked")
	}

	deadline := time.Now().Add(time.Second)
	for {
		regs.mu.Lock()
		ier := regs.ier
		regs.mu.Unlock()
		if ier&(1<<irqRXIS) != 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker did not re-enable IER for the RX cause")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEnableAllSetsFullMask(t *testing.T) {
	regs := &fakeRegs{}
	p := NewPump(regs, hostio.NewSignal())

	if err := p.EnableAll(); err != nil {
		t.Fatalf("EnableAll: %v", err)
	}

	want := uint16(1<<irqLCIS | 1<<irqTXIS | 1<<irqRXIS | 1<<irqRXOIS | 1<<irqLDIS)
	if regs.ier != want {
		t.Fatalf("IER = %#x, want %#x", regs.ier, want)
	}
}

func TestShutdownBlocksUntilWorkerExits(t *testing.T) {
	regs := &fakeRegs{}
	p := NewPump(regs, hostio.NewSignal())

	started := make(chan struct{})
	go func() {
		close(started)
		p.Run(Handlers{})
	}()
	<-started

	done := make(chan struct{})
	go func() {
		if err := p.Shutdown(); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Shutdown did not return")
	}

	if regs.ier != 0 {
		t.Fatalf("Shutdown did not clear IER: %#x", regs.ier)
	}
}
