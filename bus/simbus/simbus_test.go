package simbus

import (
	"testing"

	"github.com/mos6510/ksz8851/bus"
)

func TestIdentityReadsCorrectlyOnceEndianMatchesGuess(t *testing.T) {
	b := New()

	// the chip starts in little-endian mode (b.real == false); reading
	// with bigEndian=true must come back byte-swapped garbage.
	v, err := b.ReadReg(regCIDER, true)
	if err != nil {
		t.Fatalf("ReadReg: %v", err)
	}
	if v == identity {
		t.Fatalf("expected garbled identity under wrong endian guess, got real value")
	}

	v, err = b.ReadReg(regCIDER, false)
	if err != nil {
		t.Fatalf("ReadReg: %v", err)
	}
	if v != identity {
		t.Fatalf("identity mismatch under correct endian guess: got %#x want %#x", v, identity)
	}
}

func TestSwitchingToBigEndianViaRXFDPR(t *testing.T) {
	b := New()

	if err := b.WriteReg(regRXFDPR, false, 1<<emsBit); err != nil {
		t.Fatalf("WriteReg: %v", err)
	}

	v, err := b.ReadReg(regCIDER, true)
	if err != nil {
		t.Fatalf("ReadReg: %v", err)
	}
	if v != identity {
		t.Fatalf("chip did not switch to big-endian: got %#x", v)
	}
}

func TestGlobalResetRestoresLittleEndian(t *testing.T) {
	b := New()
	_ = b.WriteReg(regRXFDPR, false, 1<<emsBit)

	// pulse the global reset bit
	_ = b.WriteReg(regGRR, true, 1)
	_ = b.WriteReg(regGRR, true, 0)

	v, err := b.ReadReg(regCIDER, false)
	if err != nil {
		t.Fatalf("ReadReg: %v", err)
	}
	if v != identity {
		t.Fatalf("global reset did not restore little-endian: got %#x", v)
	}
}

func TestRXFIFORoundTrip(t *testing.T) {
	b := New()
	frame := []byte{0x02, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0, 1, 2, 3, 4, 5, 0x08, 0x00, 'H', 'I'}
	b.InjectFrame(frame, 0x8000)

	if got := b.PendingFrames(); got != 1 {
		t.Fatalf("PendingFrames = %d, want 1", got)
	}

	_ = b.WriteReg(regRXQCR, false, 1<<sdaBit)
	var words []uint16
	for i := 0; i < 20; i++ {
		v, err := b.ReadReg(bus.DataReg, false)
		if err != nil {
			t.Fatalf("ReadReg data: %v", err)
		}
		words = append(words, v)
	}
	_ = b.WriteReg(regRXQCR, false, 0)

	if b.PendingFrames() != 0 {
		t.Fatalf("frame was not dequeued after streaming")
	}
	_ = words
}

func TestRRXEFDiscardsWithoutStreaming(t *testing.T) {
	b := New()
	b.InjectFrame([]byte{1, 2, 3, 4, 5, 6, 0, 0, 0, 0, 0, 0, 0x08, 0x00}, 0x0000)

	if err := b.WriteReg(regRXQCR, false, 1); err != nil {
		t.Fatalf("WriteReg RRXEF: %v", err)
	}
	if b.PendingFrames() != 0 {
		t.Fatalf("RRXEF did not discard the queued frame")
	}

	v, err := b.ReadReg(regRXQCR, false)
	if err != nil {
		t.Fatalf("ReadReg: %v", err)
	}
	if v&1 != 0 {
		t.Fatalf("RRXEF bit was not auto-cleared")
	}
}

func TestTXCompletesOnMETFERisingEdge(t *testing.T) {
	b := New()

	_ = b.WriteReg(regRXQCR, false, 1<<sdaBit)
	_ = b.WriteReg(bus.DataReg, false, 0x1234)
	_ = b.WriteReg(bus.DataReg, false, 0x5678)
	_ = b.WriteReg(regRXQCR, false, 0)

	_ = b.WriteReg(regTXQCR, false, 1)

	sent := b.SentFrames()
	if len(sent) != 1 {
		t.Fatalf("expected one completed TX frame, got %d", len(sent))
	}
	if len(sent[0]) != 4 {
		t.Fatalf("unexpected TX frame length: %d", len(sent[0]))
	}
}

func TestTXDoesNothingWithoutSDA(t *testing.T) {
	b := New()
	_ = b.WriteReg(bus.DataReg, false, 0x1234)
	_ = b.WriteReg(regTXQCR, false, 1)

	if len(b.SentFrames()) != 0 {
		t.Fatalf("TX completed without RXQCR.SDA ever being set")
	}
}
