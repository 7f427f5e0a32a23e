// Package simbus implements bus.Bus as an in-memory simulation of the
// KSZ8851-16MLL register file, FIFO windows and endian-dependent lane
// behavior. It exists purely to drive the package tests and the end-to-end
// scenarios of spec §8 without real hardware — the same role tamago's
// bare-metal addressing plays for membus, just backed by maps and slices
// instead of a pointer into physical memory.
package simbus

import (
	"sync"

	"github.com/mos6510/ksz8851/bus"
)

// Register offsets this simulator gives special FIFO/reset semantics to;
// everything else is a plain read/write slot. See spec §6 for the full map.
const (
	regGRR     = 0x26
	regRXFDPR  = 0x86
	regCIDER   = 0xC0
	regRXQCR   = 0x82
	regTXQCR   = 0x80
	regRXFHSR  = 0x7C
	regRXFHBCR = 0x7E
	regRXFCTR  = 0x9C

	emsBit = 11 // RXFDPR: big-endian select
	sdaBit = 3  // RXQCR/TXQCR: start DMA
)

const identity = 0x8870 // CIDER value this simulated chip reports

// Bus is a simulated register file implementing bus.Bus.
type Bus struct {
	mu   sync.Mutex
	regs map[uint16]uint16
	real bool // the simulated chip's actual current endianness (BE if true)

	rxQueue  [][]byte // frames waiting to be peeked/dequeued, oldest first
	rxStream []byte   // bytes of the frame currently being pulled through the FIFO window
	rxPos    int

	txStream []byte   // bytes accumulated while TXQCR.SDA is set
	sent     [][]byte // frames completed by a TXQCR.METFE pulse

	freeTXMem uint16 // TXMIR value reported to the driver
}

// New returns a simulated chip starting in little-endian mode with
// identity register pre-populated, as a freshly powered KSZ8851 would be.
func New() *Bus {
	b := &Bus{
		regs:      make(map[uint16]uint16),
		freeTXMem: 0x1FFF,
	}
	b.regs[regCIDER] = identity
	return b
}

// InjectFrame queues a raw Ethernet frame (dst+src+type+payload, no FCS) to
// be delivered on the next RXQ drain, with the given frame-header status
// word (spec §4.D bit layout; 0x8000 marks "frame valid" with no errors).
//
// The queued bytes mirror exactly what ksz8851ReceivePacket pulls through
// the FIFO window on real hardware: 2 dummy bytes, then the status and
// byte-count words, then the 2-byte alignment pad, the frame, and the FCS
// placeholder, with everything after the byte-count word rounded up to a
// DWORD (servicetool/ksz8851.c) — the same length chip's pullFrameLocked
// reads.
func (b *Bus) InjectFrame(frame []byte, status uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()

	byteCount := len(frame) + 4 // + FCS

	hdr := make([]byte, 0, 10+len(frame)+4)
	hdr = append(hdr, 0, 0) // 2 dummy bytes ahead of the status word
	hdr = append(hdr, byte(status), byte(status>>8))
	hdr = append(hdr, byte(byteCount), byte(byteCount>>8))
	hdr = append(hdr, 0, 0) // 2 alignment bytes ahead of the frame
	hdr = append(hdr, frame...)
	hdr = append(hdr, 0, 0, 0, 0) // FCS placeholder

	for (len(hdr)-6)%4 != 0 {
		hdr = append(hdr, 0)
	}

	b.rxQueue = append(b.rxQueue, hdr)
}

// PendingFrames reports how many frames remain queued, undrained.
func (b *Bus) PendingFrames() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rxQueue)
}

// SentFrames returns frames completed by a TXQCR.METFE pulse, in send order.
func (b *Bus) SentFrames() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.sent))
	copy(out, b.sent)
	return out
}

// SetFreeTXMemory configures the value reported by TXMIR, used to exercise
// the NoSpace path (spec §4.C).
func (b *Bus) SetFreeTXMemory(free uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.freeTXMem = free
}

func swap16(v uint16) uint16 { return v<<8 | v>>8 }

// WriteReg applies bigEndian-lane-mismatch garbling exactly like real
// hardware would: a write composed under the wrong endian guess lands with
// its bytes swapped relative to what the caller intended.
func (b *Bus) WriteReg(offset uint16, bigEndian bool, value uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	effective := value
	if bigEndian != b.real {
		effective = swap16(value)
	}

	switch offset {
	case bus.DataReg:
		return b.writeData(effective)
	case regGRR:
		return b.writeGRR(effective)
	case regRXFDPR:
		if effective&(1<<emsBit) != 0 {
			b.real = true
		}
		b.regs[offset] = effective
	case regTXQCR:
		prev := b.regs[offset]
		b.regs[offset] = effective
		// a rising METFE bit (bit 0) kicks transmission of whatever was
		// streamed into the data register while RXQCR.SDA was set; the bit
		// then self-clears so the next frame's pulse is again a rising edge.
		if prev&1 == 0 && effective&1 != 0 {
			b.finishTx()
			b.regs[offset] &^= 1
		}
	case regRXQCR:
		prev := b.regs[offset]
		b.regs[offset] = effective
		// a rising RRXEF bit (bit 0) drops the head-of-queue frame without
		// streaming it through the data register.
		if prev&1 == 0 && effective&1 != 0 && len(b.rxQueue) > 0 {
			b.rxQueue = b.rxQueue[1:]
			b.regs[offset] &^= 1
		}
	default:
		b.regs[offset] = effective
	}

	return nil
}

func (b *Bus) writeGRR(effective uint16) error {
	const (
		grrGlobal = 0
		grrQMU    = 1
	)
	prev := b.regs[regGRR]
	b.regs[regGRR] = effective

	wasSet := prev&(1<<grrGlobal) != 0 || prev&(1<<grrQMU) != 0
	nowClear := effective == 0

	if wasSet && nowClear {
		if prev&(1<<grrGlobal) != 0 {
			// a global reset returns the chip to its power-on endianness.
			b.real = false
		}
		b.rxQueue = nil
		b.rxStream = nil
		b.txStream = nil
	}
	return nil
}

func (b *Bus) writeData(effective uint16) error {
	// both TXQ writes and RXQ reads are gated by RXQCR.SDA: the two
	// queues share the single data-register FIFO port (spec §4.B).
	sda := b.regs[regRXQCR]&(1<<sdaBit) != 0
	if sda {
		b.txStream = append(b.txStream, byte(effective), byte(effective>>8))
	}
	return nil
}

func (b *Bus) finishTx() {
	if len(b.txStream) == 0 {
		return
	}
	frame := make([]byte, len(b.txStream))
	copy(frame, b.txStream)
	b.sent = append(b.sent, frame)
	b.txStream = nil
}

// ReadReg reports garbled values when bigEndian disagrees with the chip's
// real mode, and serves the RXQ FIFO window / head-of-queue peek registers
// specially.
func (b *Bus) ReadReg(offset uint16, bigEndian bool) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var raw uint16

	switch offset {
	case bus.DataReg:
		raw = b.readData()
	case regRXFHSR:
		raw = b.peekHeader(2) // offset 0-1 is the 2 dummy bytes ahead of status
	case regRXFHBCR:
		raw = b.peekHeader(4) &^ 0xF000 // byteCount is masked to 12 bits on the wire
	case regRXFCTR:
		raw = uint16(len(b.rxQueue)) << 8
	case 0x78: // TXMIR
		raw = b.freeTXMem
	case regRXQCR, regTXQCR:
		raw = b.regs[offset]
	default:
		raw = b.regs[offset]
	}

	if bigEndian != b.real {
		raw = swap16(raw)
	}
	return raw, nil
}

func (b *Bus) peekHeader(byteOff int) uint16 {
	if len(b.rxQueue) == 0 {
		return 0
	}
	hdr := b.rxQueue[0]
	return uint16(hdr[byteOff]) | uint16(hdr[byteOff+1])<<8
}

func (b *Bus) readData() uint16 {
	sda := b.regs[regRXQCR]&(1<<sdaBit) != 0
	if !sda {
		return 0
	}

	if b.rxStream == nil {
		if len(b.rxQueue) == 0 {
			return 0
		}
		b.rxStream = b.rxQueue[0]
		b.rxQueue = b.rxQueue[1:]
		b.rxPos = 0
	}

	if b.rxPos+2 > len(b.rxStream) {
		return 0
	}

	v := uint16(b.rxStream[b.rxPos]) | uint16(b.rxStream[b.rxPos+1])<<8
	b.rxPos += 2

	if b.rxPos >= len(b.rxStream) {
		b.rxStream = nil
		b.rxPos = 0
	}

	return v
}

var _ bus.Bus = (*Bus)(nil)
