package queue

import (
	"net"
	"testing"

	"github.com/mos6510/ksz8851/errs"
)

func testFrame() []byte {
	frame := make([]byte, 14+5)
	copy(frame[0:6], []byte{0x02, 0x34, 0x56, 0x78, 0x9a, 0xbc}) // dst
	copy(frame[6:12], []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}) // src
	frame[12] = 0x08
	frame[13] = 0x00 // ethertype 0x0800
	copy(frame[14:], []byte("HELLO"))
	return frame
}

func TestClientEnqueueReadStampsHooks(t *testing.T) {
	called := false
	hooks := Hooks{
		CopyToClient: func(dst interface{}, src []byte) bool { called = true; return true },
	}
	c := NewClient(hooks)
	req := NewRequest(CmdRead)
	req.PacketType = 0x0800
	c.EnqueueRead(req)

	meta, cooked := parseFrame(testFrame())
	if !c.tryDeliver(meta, testFrame(), cooked, nil) {
		t.Fatalf("tryDeliver did not accept a matching read")
	}
	if !called {
		t.Fatalf("stamped hooks were not the ones invoked")
	}
	if err := req.Wait(); err != nil {
		t.Fatalf("request completed with error: %v", err)
	}
}

func TestClientTryDeliverSkipsOnTypeMismatch(t *testing.T) {
	c := NewClient(Hooks{})
	req := NewRequest(CmdRead)
	req.PacketType = 0x0806 // ARP, frame below is 0x0800
	c.EnqueueRead(req)

	meta, cooked := parseFrame(testFrame())
	if c.tryDeliver(meta, testFrame(), cooked, nil) {
		t.Fatalf("tryDeliver accepted a non-matching packet type")
	}
	if req.Completed() {
		t.Fatalf("request should remain pending on type mismatch")
	}
}

func TestClientTryDeliverVetoedByFilter(t *testing.T) {
	c := NewClient(Hooks{
		PacketFilter: func(req *Request, raw []byte) bool { return false },
	})
	req := NewRequest(CmdRead)
	req.PacketType = 0x0800
	c.EnqueueRead(req)

	meta, cooked := parseFrame(testFrame())
	if c.tryDeliver(meta, testFrame(), cooked, nil) {
		t.Fatalf("tryDeliver accepted a frame its filter vetoed")
	}
	if req.Completed() {
		t.Fatalf("filter veto must leave the request pending (spec invariant)")
	}
}

func TestClientAbortRemovesFromQueue(t *testing.T) {
	c := NewClient(Hooks{})
	req := NewRequest(CmdRead)
	c.EnqueueRead(req)

	if !c.Abort(req) {
		t.Fatalf("Abort did not find the queued request")
	}
	if err := req.Wait(); err == nil || err.Kind != errs.Aborted {
		t.Fatalf("got %v, want Aborted", err)
	}
	if c.Abort(req) {
		t.Fatalf("Abort should not find an already-removed request")
	}
}

func TestClientFlushAbortsEverything(t *testing.T) {
	c := NewClient(Hooks{})
	reqs := []*Request{NewRequest(CmdRead), NewRequest(CmdRead), NewRequest(CmdRead)}
	for _, r := range reqs {
		c.EnqueueRead(r)
	}

	c.Flush()

	for _, r := range reqs {
		if err := r.Wait(); err == nil || err.Kind != errs.Aborted {
			t.Fatalf("request not aborted by Flush: %v", err)
		}
	}
}

func TestDeliverToCopiesRawWhenRequestIsRaw(t *testing.T) {
	var gotLen int
	req := NewRequest(CmdRead)
	req.Raw = true
	req.hooks = Hooks{
		CopyToClient: func(dst interface{}, src []byte) bool { gotLen = len(src); return true },
	}.withDefaults()

	frame := testFrame()
	meta, cooked := parseFrame(frame)
	deliverTo(req, meta, frame, cooked, nil)

	if gotLen != len(frame) {
		t.Fatalf("raw request got %d bytes copied, want the full frame (%d)", gotLen, len(frame))
	}
	if req.SrcAddr.String() != net.HardwareAddr(meta.src).String() {
		t.Fatalf("SrcAddr not populated from frame")
	}
}

func TestDeliverToCompletesNoSpaceAndFiresBufferEventWhenCopyFails(t *testing.T) {
	req := NewRequest(CmdRead)
	req.hooks = Hooks{
		CopyToClient: func(dst interface{}, src []byte) bool { return false },
	}.withDefaults()

	var firedMask uint32
	fireEvent := func(mask uint32) { firedMask = mask }

	frame := testFrame()
	meta, cooked := parseFrame(frame)
	deliverTo(req, meta, frame, cooked, fireEvent)

	if err := req.Wait(); err == nil || err.Kind != errs.NoSpace {
		t.Fatalf("got %v, want NoSpace", err)
	}
	if firedMask != EventBufferExhaustion {
		t.Fatalf("fireEvent mask = %#x, want EventBufferExhaustion", firedMask)
	}
}
