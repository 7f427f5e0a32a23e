// Package membus implements bus.Bus over a real memory-mapped I/O window,
// the hosted-Linux equivalent of the raw `unsafe.Pointer(uintptr(addr))`
// access tamago's internal/reg performs on bare metal: where tamago casts a
// fixed physical address to a register pointer, membus mmaps a physical
// address range through a file descriptor (typically /dev/mem or a
// platform-specific UIO device) with golang.org/x/sys/unix and indexes into
// the resulting byte slice.
package membus

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/mos6510/ksz8851/bus"
)

// WindowSize is the span of chip register space this driver addresses
// (spec §6: offsets 0x00 through 0xFE).
const WindowSize = 0x100

// Bus mmaps a physical address window and exposes it as bus.Bus.
type Bus struct {
	f      *os.File
	window []byte
}

// Open mmaps size bytes of mem at the given physical offset through path
// (e.g. "/dev/mem" on a board with that access enabled, or a UIO device
// node). The caller must call Close when done.
func Open(path string, physBase int64) (*Bus, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("membus: open %s: %w", path, err)
	}

	mem, err := unix.Mmap(int(f.Fd()), physBase, WindowSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("membus: mmap %s@%#x: %w", path, physBase, err)
	}

	return &Bus{f: f, window: mem}, nil
}

// Close unmaps the window and releases the backing file descriptor.
func (b *Bus) Close() error {
	err := unix.Munmap(b.window)
	if cerr := b.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func (b *Bus) rawWrite16(offset uint16, v uint16) {
	binary.LittleEndian.PutUint16(b.window[offset:offset+2], v)
}

func (b *Bus) rawRead16(offset uint16) uint16 {
	return binary.LittleEndian.Uint16(b.window[offset : offset+2])
}

// WriteReg issues a command/data write pair. Both accesses happen without
// any intervening call back into the bus, preserving the command/data
// invariant spec §4.A requires.
func (b *Bus) WriteReg(offset uint16, bigEndian bool, value uint16) error {
	b.rawWrite16(bus.CmdReg, bus.CommandWire(offset, bigEndian))
	b.rawWrite16(bus.DataReg, value)
	return nil
}

// ReadReg issues a command/data read pair.
func (b *Bus) ReadReg(offset uint16, bigEndian bool) (uint16, error) {
	b.rawWrite16(bus.CmdReg, bus.CommandWire(offset, bigEndian))
	return b.rawRead16(bus.DataReg), nil
}

var _ bus.Bus = (*Bus)(nil)
