package queue

import (
	"container/list"
	"sync"

	"github.com/mos6510/ksz8851/errs"
)

// Hooks is the client hook set supplied at open (spec §6): copy-to-client
// and copy-from-client move bytes across the opaque buffer boundary,
// PacketFilter previews a raw frame before a pending read accepts it. A
// missing hook defaults to a no-op that succeeds; a missing filter
// defaults to accept-all, matching spec §6 exactly.
type Hooks struct {
	CopyToClient   func(dst interface{}, src []byte) bool
	CopyFromClient func(dst []byte, src interface{}) bool
	PacketFilter   func(req *Request, raw []byte) bool

	// Optional direct-DMA variants (spec §6); nil means "not supported",
	// not "defaults to no-op" — callers must check for nil themselves
	// before choosing the DMA path.
	DMACopyFromClient func(src interface{}) []byte
	DMACopyToClient   func(dst interface{}) []byte
}

func (h Hooks) withDefaults() Hooks {
	if h.CopyToClient == nil {
		h.CopyToClient = func(interface{}, []byte) bool { return true }
	}
	if h.CopyFromClient == nil {
		h.CopyFromClient = func([]byte, interface{}) bool { return true }
	}
	if h.PacketFilter == nil {
		h.PacketFilter = func(*Request, []byte) bool { return true }
	}
	return h
}

// Client is one stack's open handle on the unit (spec §3: BufferManagement).
// Its read queue is private; the dispatcher never reaches into another
// client's queue.
type Client struct {
	hooks Hooks

	mu    sync.Mutex
	reads *list.List // *Request
}

// NewClient returns a Client with hooks filled in per the default rules
// above.
func NewClient(h Hooks) *Client {
	return &Client{
		hooks: h.withDefaults(),
		reads: list.New(),
	}
}

func (c *Client) Hooks() Hooks { return c.hooks }

// EnqueueRead appends a read request to this client's queue, stamping it
// with this client's hooks so later delivery (possibly via the orphan
// queue, which is unit-wide rather than per-client) still reaches the
// right copy/filter callbacks.
func (c *Client) EnqueueRead(req *Request) {
	req.hooks = c.hooks
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads.PushBack(req)
}

// Abort removes req from this client's read queue if present, completing
// it with Aborted. Reports whether it was found.
func (c *Client) Abort(req *Request) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for e := c.reads.Front(); e != nil; e = e.Next() {
		if e.Value.(*Request) == req {
			c.reads.Remove(e)
			req.Complete(errs.New(errs.Aborted))
			return true
		}
	}
	return false
}

// Flush aborts every pending read in this client's queue.
func (c *Client) Flush() {
	c.mu.Lock()
	pending := make([]*Request, 0, c.reads.Len())
	for e := c.reads.Front(); e != nil; e = e.Next() {
		pending = append(pending, e.Value.(*Request))
	}
	c.reads.Init()
	c.mu.Unlock()

	for _, req := range pending {
		req.Complete(errs.New(errs.Aborted))
	}
}

// tryDeliver scans this client's read queue in FIFO order for the first
// request whose packet type matches meta.EtherType and whose filter hook
// accepts the raw frame, completes it, and removes it (spec §4.F steps
// 2-4). It reports whether a request accepted the frame. fireEvent is
// invoked if the accepted request's copy-to-client hook fails, so the
// buffer-exhaustion event still reaches the unit's event waiters.
func (c *Client) tryDeliver(meta frameMeta, raw, cooked []byte, fireEvent func(uint32)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for e := c.reads.Front(); e != nil; e = e.Next() {
		req := e.Value.(*Request)
		if !matchesType(req.PacketType, meta.etherType) {
			continue
		}
		if !req.hooks.PacketFilter(req, raw) {
			continue
		}

		deliverTo(req, meta, raw, cooked, fireEvent)
		c.reads.Remove(e)
		return true
	}
	return false
}

// deliverTo populates req's address/flag/length fields, invokes its
// stamped copy-to-client hook, and completes it (spec §4.F step 4). It is
// a free function (not a *Client method) because orphan requests are
// delivered after leaving their owning client's queue. A copy-hook
// failure completes the request with NoSpace and fires
// EventBufferExhaustion through fireEvent (spec §4.F step 4).
func deliverTo(req *Request, meta frameMeta, raw, cooked []byte, fireEvent func(uint32)) {
	req.SrcAddr = meta.src
	req.DstAddr = meta.dst
	req.Broadcast = meta.broadcast
	req.Multicast = meta.multicast

	payload := cooked
	if req.Raw {
		payload = raw
	}
	req.DataLength = len(payload)

	if !req.hooks.CopyToClient(req.Buffer, payload) {
		req.Complete(errs.New(errs.NoSpace))
		if fireEvent != nil {
			fireEvent(EventBufferExhaustion)
		}
		return
	}
	req.Complete(nil)
}
