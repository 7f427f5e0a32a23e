package queue

import (
	"testing"

	"github.com/mos6510/ksz8851/errs"
)

func TestRequestCompleteIsIdempotent(t *testing.T) {
	req := NewRequest(CmdRead)
	req.Complete(errs.New(errs.Aborted))
	req.Complete(nil) // must be ignored; the first result wins

	if !req.Completed() {
		t.Fatalf("request not marked completed")
	}
	if got := req.Wait(); got == nil || got.Kind != errs.Aborted {
		t.Fatalf("got %v, want the first completion's error", got)
	}
}

func TestRequestWaitReturnsSuccess(t *testing.T) {
	req := NewRequest(CmdWrite)
	go req.Complete(nil)

	if got := req.Wait(); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestMatchesTypeExactAndClassMatch(t *testing.T) {
	cases := []struct {
		want, got uint16
		match     bool
	}{
		{0x0800, 0x0800, true},
		{0x0800, 0x0806, false},
		{60, 100, true},   // both <= 1500: IEEE 802.3 length-field class match
		{1500, 1500, true},
		{1500, 0x0800, false},
	}
	for _, c := range cases {
		if got := matchesType(c.want, c.got); got != c.match {
			t.Errorf("matchesType(%#x, %#x) = %v, want %v", c.want, c.got, got, c.match)
		}
	}
}
