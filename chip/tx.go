package chip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/mos6510/ksz8851/bus"
	"github.com/mos6510/ksz8851/internal/reg"
)

// ErrInvalidLength reports a frame outside [MinFrameLen, MaxFrameLen]
// (spec §7: InvalidLength).
var ErrInvalidLength = errors.New("ksz8851: invalid frame length")

// ErrNoSpace reports insufficient TXQ memory (spec §7: NoSpace).
var ErrNoSpace = errors.New("ksz8851: no TXQ space")

// Send transmits a complete Ethernet frame (destination, source, ethertype,
// payload — no FCS, the chip appends it) under the chip lock (spec §4.C).
// On NoSpace the function returns before any register write, leaving chip
// state untouched.
func (c *Context) Send(frame []byte) error {
	if len(frame) < MinFrameLen || len(frame) > MaxFrameLen {
		return fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(frame))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	free, err := c.readReg(regTXMIR)
	if err != nil {
		return err
	}
	if int(free) < len(frame)+8 {
		return ErrNoSpace
	}

	control := reg.Set16(0, txICBit)
	control = reg.SetN16(control, 0, txFIDMask, uint16(c.frameID))
	c.frameID++

	byteCount := uint16(len(frame))

	padded := make([]byte, 0, 4+len(frame)+3)
	padded = binary.LittleEndian.AppendUint16(padded, control)
	padded = binary.LittleEndian.AppendUint16(padded, byteCount)
	padded = append(padded, frame...)
	for len(padded)%4 != 0 {
		padded = append(padded, 0)
	}

	rxqcr, err := c.readReg(regRXQCR)
	if err != nil {
		return err
	}
	if err := c.writeReg(regRXQCR, reg.Set16(rxqcr, rxqcrSDA)); err != nil {
		return err
	}

	for i := 0; i < len(padded); i += 2 {
		word := binary.LittleEndian.Uint16(padded[i : i+2])
		if err := c.writeReg(bus.DataReg, word); err != nil {
			return err
		}
	}

	rxqcr, err = c.readReg(regRXQCR)
	if err != nil {
		return err
	}
	if err := c.writeReg(regRXQCR, reg.Clear16(rxqcr, rxqcrSDA)); err != nil {
		return err
	}

	txqcr, err := c.readReg(regTXQCR)
	if err != nil {
		return err
	}
	return c.writeReg(regTXQCR, reg.Set16(txqcr, txqcrMETFE))
}

// SendCooked builds a frame from its header fields and payload, zero-
// padding short payloads up to MinFrameLen inside the chip's own staging
// buffer — never by reading past the caller's buffer (spec §9 Open
// Question) — and transmits it.
func (c *Context) SendCooked(dst, src net.HardwareAddr, ethertype uint16, payload []byte) error {
	if len(dst) != 6 || len(src) != 6 {
		return fmt.Errorf("ksz8851: invalid hardware address")
	}
	if len(payload) > MTU {
		return fmt.Errorf("%w: payload %d bytes exceeds MTU", ErrInvalidLength, len(payload))
	}

	c.mu.Lock()
	buf := c.stagingBuf[:0]
	c.mu.Unlock()

	buf = append(buf, dst...)
	buf = append(buf, src...)
	buf = binary.BigEndian.AppendUint16(buf, ethertype)
	buf = append(buf, payload...)

	for len(buf) < headerLen+MinFrameLen {
		buf = append(buf, 0)
	}

	frame := make([]byte, len(buf))
	copy(frame, buf)

	return c.Send(frame)
}
