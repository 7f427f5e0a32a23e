// Package queue implements the request-queue multiplexer of spec §4.F:
// per-client read queues, the unit-wide orphan/event/track/multicast
// queues, and the read-fulfillment and event-fulfillment
// algorithms that tie them together. Queue storage uses container/list,
// the direct Go analogue of the intrusive doubly-linked lists spec §9
// calls for ("O(1) removal of an interior element given a handle").
package queue

import (
	"net"
	"sync"

	"github.com/mos6510/ksz8851/errs"
)

// Command is one of the externally defined request tags (spec §6).
type Command int

const (
	CmdRead Command = iota
	CmdWrite
	CmdFlush
	CmdDeviceQuery
	CmdGetStationAddress
	CmdConfigInterface
	CmdMulticastWrite
	CmdBroadcast
	CmdTrackType
	CmdUntrackType
	CmdGetGlobalStats
	CmdOnEvent
	CmdReadOrphan
	CmdOnline
	CmdOffline
	CmdNSDeviceQuery
	CmdGetSpecialStats
)

// Event bits a CmdOnEvent request may wait on (wire-error mask convention,
// spec §4.F "Event fulfillment").
const (
	EventOnline uint32 = 1 << iota
	EventOffline
	EventBufferExhaustion
	EventTX
	EventRX
)

// Request is one unit of I/O (spec §3). Buffer is opaque to the driver;
// it is only ever touched through the Hooks a Request's owning Client
// supplies.
type Request struct {
	Command    Command
	PacketType uint16 // read match key
	Raw        bool   // raw vs cooked framing
	QuickReply bool
	EventMask  uint32 // CmdOnEvent: events this request is waiting for

	SrcAddr    net.HardwareAddr
	DstAddr    net.HardwareAddr
	DataLength int
	Broadcast  bool
	Multicast  bool

	Buffer interface{} // opaque handle passed to client hooks

	hooks Hooks // stamped by Client.EnqueueRead / EnqueueOrphan

	mu        sync.Mutex
	completed bool
	result    *errs.Error
	done      chan *errs.Error
}

// NewRequest returns a pending Request for the given command.
func NewRequest(cmd Command) *Request {
	return &Request{Command: cmd, done: make(chan *errs.Error, 1)}
}

// Complete marks the request done with the given error (nil on success).
// Completing an already-completed request is a no-op (spec §3 invariant:
// "once completed, its ownership returns to the caller and the driver
// must not touch it").
func (r *Request) Complete(err *errs.Error) {
	r.mu.Lock()
	if r.completed {
		r.mu.Unlock()
		return
	}
	r.completed = true
	r.result = err
	r.mu.Unlock()
	r.done <- err
}

// Wait blocks until the request is completed and returns its result.
func (r *Request) Wait() *errs.Error {
	return <-r.done
}

// Completed reports whether Complete has already run.
func (r *Request) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// matchesType implements the packet-type match rule of spec §4.F step 2:
// exact equality, or both values are an IEEE 802.3 length field (<=1500),
// which is treated as a class match.
func matchesType(want, got uint16) bool {
	if want == got {
		return true
	}
	return want <= 1500 && got <= 1500
}
