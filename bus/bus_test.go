package bus

import "testing"

func TestCommandLaneSelectFlipsWithEndianness(t *testing.T) {
	le := Command(0x82, false)
	be := Command(0x82, true)
	if le == be {
		t.Fatalf("lane select did not change with endianness: %#x", le)
	}
}

func TestCommandPanicsOnOddOffset(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on odd offset")
		}
	}()
	Command(0x83, false)
}

func TestCommandPanicsOnOutOfRangeOffset(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on out-of-range offset")
		}
	}()
	Command(0x100, false)
}

func TestCommandWireIsByteSwapped(t *testing.T) {
	cmd := Command(0x82, false)
	wire := CommandWire(0x82, false)
	if wire == cmd {
		t.Fatalf("CommandWire did not swap bytes: %#x", wire)
	}
	if got := swap16(wire); got != cmd {
		t.Fatalf("CommandWire is not a byte-swap of Command: got %#x want %#x", got, cmd)
	}
}
