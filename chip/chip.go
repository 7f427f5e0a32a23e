// Package chip implements the KSZ8851-16MLL control engine (spec §4.B):
// probe and endianness detection, soft reset, init sequencing, MAC filter
// programming, and DMA-aligned FIFO transfer, plus the transmit (§4.C) and
// receive (§4.D) paths built on top of it.
//
// The structure mirrors tamago's soc/nxp/enet package: a hardware struct
// embedding sync.Mutex, a Init()/setup() split, and register constants as
// package consts (soc/nxp/enet/enet.go) — generalized here for a bus that
// can flip endianness at runtime instead of being fixed at compile time.
package chip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mos6510/ksz8851/bus"
	"github.com/mos6510/ksz8851/hostio"
	"github.com/mos6510/ksz8851/internal/reg"
)

// MTU and frame size limits (spec §3, §4.C).
const (
	MTU            = 1500
	MinFrameLen    = 46
	MaxFrameLen    = 1518
	headerLen      = 14
	fcsLen         = 4
	stagingPadding = 4 // DMA alignment slack, spec §3
)

// DefaultMAC is the fallback station address used when none has been
// configured (spec §9 Open Question — config-supplied MACADDR takes
// priority over this constant, never the reverse).
var DefaultMAC = net.HardwareAddr{0x02, 0x34, 0x56, 0x78, 0x9a, 0xbc}

// Stats are the diagnostic counters spec §3 asks ChipContext to carry.
type Stats struct {
	IRQsObserved uint32
	RXOverruns   uint32
}

// Context is the ChipContext of spec §3: bus handle, current endianness,
// frame-id counter, RX staging buffer, and diagnostic counters. Exactly one
// exists per Unit.
type Context struct {
	mu sync.Mutex

	Bus   bus.Bus
	Delay hostio.Delayer

	bigEndian bool
	frameID   uint8

	stagingBuf []byte

	Stats Stats
}

// New returns a Context ready for Probe. delay may be nil to use a real
// wall-clock sleep.
func New(b bus.Bus, delay hostio.Delayer) *Context {
	if delay == nil {
		delay = hostio.RealDelayer{}
	}
	return &Context{
		Bus:        b,
		Delay:      delay,
		stagingBuf: make([]byte, MaxFrameLen+fcsLen+stagingPadding),
	}
}

// ErrNoChip reports that probe failed to confirm the chip identity in
// either endian mode after a full global reset attempt (spec §7: NoChip).
var ErrNoChip = errors.New("ksz8851: chip not found")

// BigEndian reports the endianness probe/reset last settled on.
func (c *Context) BigEndian() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bigEndian
}

func (c *Context) readReg(offset uint16) (uint16, error) {
	return c.Bus.ReadReg(offset, c.bigEndian)
}

func (c *Context) writeReg(offset uint16, v uint16) error {
	return c.Bus.WriteReg(offset, c.bigEndian, v)
}

func (c *Context) identityMatches() bool {
	v, err := c.readReg(regCIDER)
	return err == nil && v&ciderIDMask == ciderIDValue
}

// Probe runs the probe/reset sequence of spec §4.B: read CIDER; on mismatch
// flip the endian guess and read again; on continued mismatch issue a
// global soft reset in each mode and retry; fail with ErrNoChip if the
// identity still does not match.
func (c *Context) Probe() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identityMatches() {
		return nil
	}

	c.bigEndian = !c.bigEndian
	if c.identityMatches() {
		return nil
	}

	for _, be := range []bool{false, true} {
		c.bigEndian = be
		if err := c.resetLocked(ResetGlobal); err != nil {
			return err
		}
		if c.identityMatches() {
			return nil
		}
	}

	return ErrNoChip
}

// Reset performs a soft reset of the given kind (spec §4.B: save ISR mask,
// clear ISR, pulse GRR, pause ~25ms/~10ms, re-detect endianness, restore
// ISR mask).
func (c *Context) Reset(kind ResetKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetLocked(kind)
}

func (c *Context) resetLocked(kind ResetKind) error {
	savedIER, err := c.readReg(regIER)
	if err != nil {
		return err
	}
	if err := c.writeReg(regISR, 0); err != nil {
		return err
	}

	bitPos := grrGlobal
	if kind == ResetQMUOnly {
		bitPos = grrQMU
	}

	if err := c.writeReg(regGRR, 1<<bitPos); err != nil {
		return err
	}
	c.Delay.Sleep(25 * time.Millisecond)
	if err := c.writeReg(regGRR, 0); err != nil {
		return err
	}
	c.Delay.Sleep(10 * time.Millisecond)

	if kind == ResetGlobal {
		// the chip returns to its power-on endianness; re-detect rather
		// than assume little-endian, since a prior run may have left a
		// latched EMS bit the reset doesn't clear on every silicon rev.
		c.bigEndian = false
		if !c.identityMatches() {
			c.bigEndian = true
		}
	}

	return c.writeReg(regIER, savedIER)
}

// setBigEndian sets or clears the RXFDPR EMS bit, switching word order
// until the next reset (spec §4.B: "the bit is write-only; software must
// track the current mode in ChipContext").
func (c *Context) setBigEndian(on bool) error {
	v, err := c.readReg(regRXFDPR)
	if err != nil {
		return err
	}
	v = reg.SetTo16(v, rxfdprEMS, on)
	if err := c.writeReg(regRXFDPR, v); err != nil {
		return err
	}
	c.bigEndian = on
	return nil
}

// Init runs the post-probe configuration sequence of spec §4.B. Interrupts
// remain globally masked; irq.Pump owns enabling them.
func (c *Context) Init(mac net.HardwareAddr) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// force BE mode, preferred on big-endian hosts (spec §4.B).
	if err := c.setBigEndian(true); err != nil {
		return err
	}

	if err := c.setMACLocked(mac); err != nil {
		return err
	}

	txcr := uint16(0)
	txcr = reg.Set16(txcr, txcrTXFCE)
	txcr = reg.Set16(txcr, txcrTXPE)
	txcr = reg.Set16(txcr, txcrTXCE)
	if err := c.writeReg(regTXCR, txcr); err != nil {
		return err
	}

	txfdpr := uint16(0)
	txfdpr = reg.Set16(txfdpr, txfdprTXFPAI)
	if err := c.writeReg(regTXFDPR, txfdpr); err != nil {
		return err
	}

	rxcr1 := uint16(0)
	rxcr1 = reg.Set16(rxcr1, rxcr1RXUE)
	rxcr1 = reg.Set16(rxcr1, rxcr1RXFCE)
	rxcr1 = reg.Set16(rxcr1, rxcr1RXBE)
	rxcr1 = reg.Set16(rxcr1, rxcr1RXME)
	if err := c.writeReg(regRXCR1, rxcr1); err != nil {
		return err
	}

	rxcr2 := reg.SetN16(0, rxcr2RXBurstLenShift, rxcr2RXBurstLenMask, 0x4)
	if err := c.writeReg(regRXCR2, rxcr2); err != nil {
		return err
	}

	rxqcr := uint16(0)
	rxqcr = reg.Set16(rxqcr, rxqcrADRFE)
	rxqcr = reg.SetN16(rxqcr, rxqcrRXDBCTShift, rxqcrRXDBCTMask, rxdbctTwoBytePad)
	if err := c.writeReg(regRXQCR, rxqcr); err != nil {
		return err
	}

	rxfdpr, err := c.readReg(regRXFDPR)
	if err != nil {
		return err
	}
	if err := c.writeReg(regRXFDPR, reg.Set16(rxfdpr, rxfdprRXFPAI)); err != nil {
		return err
	}

	if err := c.writeReg(regRXFCTR, 1); err != nil {
		return err
	}

	if err := c.writeReg(regP1CR, 0); err != nil { // force duplex = auto
		return err
	}
	p1cr, err := c.readReg(regP1CR)
	if err != nil {
		return err
	}
	return c.writeReg(regP1CR, reg.Set16(p1cr, p1crRestartAN))
}

// SetMAC programs MARH/MARM/MARL (spec §4.B, §9).
func (c *Context) SetMAC(mac net.HardwareAddr) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setMACLocked(mac)
}

func (c *Context) setMACLocked(mac net.HardwareAddr) error {
	if len(mac) != 6 {
		return fmt.Errorf("ksz8851: invalid MAC address %v", mac)
	}

	h := binary.BigEndian.Uint16(mac[0:2])
	m := binary.BigEndian.Uint16(mac[2:4])
	l := binary.BigEndian.Uint16(mac[4:6])

	if err := c.writeReg(regMARH, h); err != nil {
		return err
	}
	if err := c.writeReg(regMARM, m); err != nil {
		return err
	}
	return c.writeReg(regMARL, l)
}

// Enable sets the TX/RX enable bits (spec §4.G online transition).
func (c *Context) Enable(tx, rx bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	txcr, err := c.readReg(regTXCR)
	if err != nil {
		return err
	}
	if err := c.writeReg(regTXCR, reg.SetTo16(txcr, txcrTXE, tx)); err != nil {
		return err
	}

	rxcr1, err := c.readReg(regRXCR1)
	if err != nil {
		return err
	}
	return c.writeReg(regRXCR1, reg.SetTo16(rxcr1, rxcr1RXE, rx))
}

// LinkStatus is the link info decoded from P1SR (spec §4.E worker loop:
// "update link info").
type LinkStatus struct {
	Up      bool
	Speed   int
	Duplex  bool // true = full duplex
}

// ReadLinkStatus reads the PHY1 special control/status register.
func (c *Context) ReadLinkStatus() (LinkStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.readReg(regP1SR)
	if err != nil {
		return LinkStatus{}, err
	}

	speed := 10
	if reg.Get16(v, p1srSpeed100, 1) != 0 {
		speed = 100
	}

	return LinkStatus{
		Up:     reg.Get16(v, p1srLinkGood, 1) != 0,
		Speed:  speed,
		Duplex: reg.Get16(v, p1srDuplexFull, 1) != 0,
	}, nil
}
