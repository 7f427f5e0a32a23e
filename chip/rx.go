package chip

import (
	"encoding/binary"

	"github.com/mos6510/ksz8851/bus"
	"github.com/mos6510/ksz8851/internal/reg"
)

// Drain pulls every frame currently pending in RXQ (spec §4.D), validating
// each one's frame-header status and byte count before streaming it into
// the staging buffer. deliver is called once per good frame with a copy
// of the frame taken out of the staging buffer — outside the chip lock, mirroring "re-enable interrupts around the
// delivery callback (the chip FIFO is not being accessed while a client's
// copy hook runs)".
func (c *Context) Drain(deliver func(frame []byte)) error {
	for {
		c.mu.Lock()
		pending, err := c.readReg(regRXFCTR)
		if err != nil {
			c.mu.Unlock()
			return err
		}
		count := pending >> 8
		if count == 0 {
			c.mu.Unlock()
			return nil
		}

		frame, ok, err := c.pullOneLocked()
		c.mu.Unlock()

		if err != nil {
			return err
		}
		if ok {
			deliver(frame)
		}
	}
}

// pullOneLocked handles exactly one queued frame: peek, validate, and
// either discard it or stream it into the staging buffer. Must be called
// with c.mu held.
func (c *Context) pullOneLocked() (frame []byte, ok bool, err error) {
	status, err := c.readReg(regRXFHSR)
	if err != nil {
		return nil, false, err
	}
	byteCount, err := c.readReg(regRXFHBCR)
	if err != nil {
		return nil, false, err
	}
	byteCount &= rxfhbcrByteCountMask

	if reg.Get16(status, rxfhsrValid, 1) == 0 || status&frameErrorMask != 0 || byteCount == 0 || byteCount > MaxFrameLen+fcsLen {
		return nil, false, c.discardLocked()
	}

	return c.pullFrameLocked(byteCount)
}

// discardLocked releases the head-of-queue RX frame via RRXEF without
// pulling it through the FIFO window (spec §4.D).
func (c *Context) discardLocked() error {
	v, err := c.readReg(regRXQCR)
	if err != nil {
		return err
	}
	return c.writeReg(regRXQCR, reg.Set16(v, rxqcrRRXEF))
}

// pullFrameLocked streams byteCount bytes of the head-of-queue frame
// through the FIFO data-register window into the staging buffer (spec
// §4.B: 2 dummy bytes, 2-word header, byteCount payload bytes,
// DWORD-aligned).
func (c *Context) pullFrameLocked(byteCount uint16) ([]byte, bool, error) {
	// reset RX pointer to 0 (write-back preserves the EMS bit already set).
	rxfdpr, err := c.readReg(regRXFDPR)
	if err != nil {
		return nil, false, err
	}
	if err := c.writeReg(regRXFDPR, rxfdpr); err != nil {
		return nil, false, err
	}

	rxqcr, err := c.readReg(regRXQCR)
	if err != nil {
		return nil, false, err
	}
	if err := c.writeReg(regRXQCR, reg.Set16(rxqcr, rxqcrSDA)); err != nil {
		return nil, false, err
	}

	if _, err := c.readReg(bus.DataReg); err != nil { // 2 dummy bytes
		return nil, false, err
	}
	if _, err := c.readReg(bus.DataReg); err != nil { // status (already known)
		return nil, false, err
	}
	if _, err := c.readReg(bus.DataReg); err != nil { // byteCount (already known)
		return nil, false, err
	}

	// byteCount already includes the 4-byte FCS; the 2-byte alignment pad
	// ahead of the frame data is part of the window and rounds the whole
	// read up to a DWORD boundary together with it.
	total := int(byteCount) + 2
	for total%4 != 0 {
		total++
	}

	buf := c.stagingBuf[:0]
	for read := 0; read < total; read += 2 {
		v, err := c.readReg(bus.DataReg)
		if err != nil {
			return nil, false, err
		}
		var word [2]byte
		binary.LittleEndian.PutUint16(word[:], v)
		buf = append(buf, word[:]...)
	}

	if err := c.writeReg(regRXQCR, reg.Clear16(rxqcr, rxqcrSDA)); err != nil {
		return nil, false, err
	}

	// strip the 2-byte alignment pad, the 4-byte FCS and any DWORD
	// rounding after it, leaving the raw Ethernet frame (dst+src+type+payload).
	payloadEnd := 2 + int(byteCount) - fcsLen
	if payloadEnd < 2 || payloadEnd > len(buf) {
		return nil, false, nil
	}

	frame := make([]byte, payloadEnd-2)
	copy(frame, buf[2:payloadEnd])

	return frame, true, nil
}
