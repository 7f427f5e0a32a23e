package chip

import (
	"net"
)

// MaxMulticast is the fixed multicast filter table capacity (spec §3: N=10).
const MaxMulticast = 10

// crc32MSBFirst implements the exact CRC-32 reduction spec §4.B calls for:
// polynomial 0x04C11DB7, MSB-first shift register, init 0xFFFFFFFF, no
// final XOR. This is deliberately not stdlib hash/crc32: that package's
// IEEE table computes the complementary (final-XOR'd) Ethernet-FCS variant
// of this polynomial, which does not reproduce the bit pattern the
// multicast hash reduction needs. Grounded bit-for-bit on
// original_source/KSZ8851/servicetool/ksz8851.c:ksz8851CalcCrc.
func crc32MSBFirst(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		for j := 0; j < 8; j++ {
			bit := (b >> uint(j)) & 1
			if (crc>>31)^uint32(bit) != 0 {
				crc = (crc << 1) ^ 0x04C11DB7
			} else {
				crc = crc << 1
			}
		}
	}
	return crc
}

// HashIndex returns the 6-bit hash table index (bits 31..26 of the CRC) for
// a multicast address, per spec §4.B.
func HashIndex(mac net.HardwareAddr) uint8 {
	return uint8(crc32MSBFirst(mac) >> 26)
}

// HashTable computes the 64-entry, four-register multicast hash table
// (spec §4.B) for a list of enabled multicast addresses.
func HashTable(macs []net.HardwareAddr) [4]uint16 {
	var bits [64]bool
	for _, mac := range macs {
		bits[HashIndex(mac)] = true
	}

	var regs [4]uint16
	for i := 0; i < 64; i++ {
		if bits[i] {
			regs[i/16] |= 1 << uint(i%16)
		}
	}
	return regs
}

// ApplyMulticastFilter programs MAHTR0..3 from the hash table of macs. When
// promisc is true the hash is disabled entirely (all-ones), per spec §4.B.
func (c *Context) ApplyMulticastFilter(macs []net.HardwareAddr, promisc bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var regs [4]uint16
	if promisc {
		regs = [4]uint16{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF}
	} else {
		regs = HashTable(macs)
	}

	offsets := [4]uint16{regMAHTR0, regMAHTR1, regMAHTR2, regMAHTR3}
	for i, off := range offsets {
		if err := c.writeReg(off, regs[i]); err != nil {
			return err
		}
	}
	return nil
}
