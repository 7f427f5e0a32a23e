// Package reg provides bit-level helpers for composing and decoding the
// fixed-width register values of the KSZ8851-16MLL, the same Get/Set/SetN
// idiom the tamago corpus uses for raw hardware addresses
// (internal/reg/reg16.go), generalized here to operate on a value already
// moved across the bus rather than a raw pointer — addressing is the job of
// the bus.Bus implementations, which lets the identical bit math run
// against real hardware or a simulated register file.
package reg

import "time"

// Get16 extracts the mask-wide field at bit position pos from v.
func Get16(v uint16, pos int, mask uint16) uint16 {
	return (v >> pos) & mask
}

// Set16 returns v with the single bit at pos set.
func Set16(v uint16, pos int) uint16 {
	return v | (1 << uint(pos))
}

// Clear16 returns v with the single bit at pos cleared.
func Clear16(v uint16, pos int) uint16 {
	return v &^ (1 << uint(pos))
}

// SetTo16 returns v with the bit at pos set or cleared according to on.
func SetTo16(v uint16, pos int, on bool) uint16 {
	if on {
		return Set16(v, pos)
	}
	return Clear16(v, pos)
}

// SetN16 returns v with the mask-wide field at pos replaced by val.
func SetN16(v uint16, pos int, mask uint16, val uint16) uint16 {
	return (v &^ (mask << uint(pos))) | ((val & mask) << uint(pos))
}

// WaitFor polls read, sleeping poll between attempts, until it reports a
// value whose mask-wide field at pos equals val or the timeout expires. The
// returned bool reports whether the condition was observed.
func WaitFor(timeout, poll time.Duration, read func() uint16, pos int, mask uint16, val uint16) bool {
	deadline := time.Now().Add(timeout)

	for {
		if Get16(read(), pos, mask) == val {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(poll)
	}
}
