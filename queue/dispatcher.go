package queue

import (
	"container/list"
	"encoding/binary"
	"net"
	"sync"

	"github.com/mos6510/ksz8851/errs"
)

// frameMeta is the parsed header view of a staged frame (spec §4.F step 1).
type frameMeta struct {
	dst, src  net.HardwareAddr
	etherType uint16
	broadcast bool
	multicast bool
}

func parseFrame(frame []byte) (frameMeta, []byte) {
	dst := net.HardwareAddr(append([]byte(nil), frame[0:6]...))
	src := net.HardwareAddr(append([]byte(nil), frame[6:12]...))
	etherType := binary.BigEndian.Uint16(frame[12:14])

	cooked := frame[14:]
	const mtu = 1500
	if len(cooked) > mtu {
		cooked = cooked[:mtu]
	}

	return frameMeta{
		dst:       dst,
		src:       src,
		etherType: etherType,
		broadcast: dst[0] == 0xFF && dst[1] == 0xFF && dst[2] == 0xFF && dst[3] == 0xFF && dst[4] == 0xFF && dst[5] == 0xFF,
		multicast: dst[0]&1 != 0,
	}, cooked
}

// TrackEntry is a per-ethertype statistics entry (spec §4.F "Tracking").
type TrackEntry struct {
	EtherType uint16
	RXCount   uint64
	TXCount   uint64
}

// Dispatcher owns every unit-wide queue plus the client list, and
// implements the read/event fulfillment algorithms of spec §4.F. A
// Dispatcher belongs to exactly one Unit.
type Dispatcher struct {
	clientsMu sync.Mutex // client-list lock; may be held while acquiring a per-client lock (spec §5)
	clients   []*Client

	orphanMu sync.Mutex
	orphan   *list.List // *Request

	eventMu sync.Mutex
	events  *list.List // *Request

	trackMu sync.Mutex
	tracks  map[uint16]*TrackEntry
	ipTrack *TrackEntry // the 0x0800 fast pointer, spec §4.F

	mcastMu sync.Mutex
	mcast   []net.HardwareAddr
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		orphan: list.New(),
		events: list.New(),
		tracks: make(map[uint16]*TrackEntry),
	}
	d.ipTrack = &TrackEntry{EtherType: 0x0800}
	d.tracks[0x0800] = d.ipTrack
	return d
}

// AddClient registers a newly opened client.
func (d *Dispatcher) AddClient(c *Client) {
	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()
	d.clients = append(d.clients, c)
}

// RemoveClient unregisters a client at close, flushing its read queue.
func (d *Dispatcher) RemoveClient(c *Client) {
	d.clientsMu.Lock()
	for i, cl := range d.clients {
		if cl == c {
			d.clients = append(d.clients[:i], d.clients[i+1:]...)
			break
		}
	}
	d.clientsMu.Unlock()
	c.Flush()
}

// EnqueueOrphan appends a read-orphan request, stamping it with hooks so
// it can still be delivered after the client that submitted it is no
// longer in the picture (the orphan queue is unit-wide, not per-client).
func (d *Dispatcher) EnqueueOrphan(req *Request, hooks Hooks) {
	req.hooks = hooks.withDefaults()
	d.orphanMu.Lock()
	defer d.orphanMu.Unlock()
	d.orphan.PushBack(req)
}

// EnqueueEvent appends an on-event request. If the request's EventMask
// already matches the current state (callers pass the live state mask),
// it short-circuits and completes immediately (spec §4.F: "on-online/
// on-offline requests short-circuit").
func (d *Dispatcher) EnqueueEvent(req *Request, currentState uint32) {
	if req.EventMask&currentState != 0 {
		req.Complete(nil)
		return
	}
	d.eventMu.Lock()
	defer d.eventMu.Unlock()
	d.events.PushBack(req)
}

// Abort locates req in whichever queue it occupies and completes it with
// Aborted (spec §5 "Cancellation"). If the request already completed,
// Abort is a silent success and reports false.
func (d *Dispatcher) Abort(req *Request) bool {
	if req.Completed() {
		return false
	}

	d.clientsMu.Lock()
	clients := append([]*Client(nil), d.clients...)
	d.clientsMu.Unlock()
	for _, c := range clients {
		if c.Abort(req) {
			return true
		}
	}

	if removeFromQueue(&d.orphanMu, d.orphan, req) {
		return true
	}
	if removeFromQueue(&d.eventMu, d.events, req) {
		return true
	}
	return false
}

func removeFromQueue(mu *sync.Mutex, l *list.List, req *Request) bool {
	mu.Lock()
	defer mu.Unlock()
	for e := l.Front(); e != nil; e = e.Next() {
		if e.Value.(*Request) == req {
			l.Remove(e)
			req.Complete(errs.New(errs.Aborted))
			return true
		}
	}
	return false
}

// Flush aborts every request in every queue of the unit (spec §4.F
// "Flush" — the teardown primitive used by close/offline).
func (d *Dispatcher) Flush() {
	d.clientsMu.Lock()
	clients := append([]*Client(nil), d.clients...)
	d.clientsMu.Unlock()
	for _, c := range clients {
		c.Flush()
	}

	drain := func(mu *sync.Mutex, l *list.List) {
		mu.Lock()
		pending := make([]*Request, 0, l.Len())
		for e := l.Front(); e != nil; e = e.Next() {
			pending = append(pending, e.Value.(*Request))
		}
		l.Init()
		mu.Unlock()
		for _, req := range pending {
			req.Complete(errs.New(errs.Aborted))
		}
	}
	drain(&d.orphanMu, d.orphan)
	drain(&d.eventMu, d.events)
}

// Deliver implements the read-fulfillment algorithm of spec §4.F, called
// from the RX drain path (§4.D) once a frame is staged. It returns true
// if some request (typed or orphan) accepted the frame.
func (d *Dispatcher) Deliver(frame []byte) bool {
	meta, cooked := parseFrame(frame)

	d.trackMu.Lock()
	if t, ok := d.tracks[meta.etherType]; ok {
		t.RXCount++
	}
	d.trackMu.Unlock()

	d.clientsMu.Lock()
	clients := append([]*Client(nil), d.clients...)
	d.clientsMu.Unlock()

	for _, c := range clients {
		if c.tryDeliver(meta, frame, cooked, d.FireEvent) {
			return true
		}
	}

	// orphan precedence: only consulted once no typed client queue
	// accepted the frame (spec §8 "Orphan precedence").
	// an orphan read matches any packet type; its stamped filter hook
	// still gets a look (spec §4.F uses the same "present, then decide"
	// protocol for every read, typed or orphan), and a veto leaves it
	// queued.
	d.orphanMu.Lock()
	var orphanReq *Request
	if e := d.orphan.Front(); e != nil {
		if req := e.Value.(*Request); req.hooks.PacketFilter(req, frame) {
			orphanReq = req
			d.orphan.Remove(e)
		}
	}
	d.orphanMu.Unlock()

	if orphanReq == nil {
		return false
	}
	deliverTo(orphanReq, meta, frame, cooked, d.FireEvent)
	return true
}

// FireEvent walks the event queue, completing every request whose
// EventMask intersects mask (spec §4.F "Event fulfillment").
func (d *Dispatcher) FireEvent(mask uint32) {
	d.eventMu.Lock()
	var hit []*list.Element
	for e := d.events.Front(); e != nil; e = e.Next() {
		req := e.Value.(*Request)
		if req.EventMask&mask != 0 {
			hit = append(hit, e)
		}
	}
	for _, e := range hit {
		d.events.Remove(e)
	}
	d.eventMu.Unlock()

	for _, e := range hit {
		e.Value.(*Request).Complete(nil)
	}
}

// Track adds a tracked ethertype. AlreadyTracked is returned if it exists.
func (d *Dispatcher) Track(etherType uint16) *errs.Error {
	d.trackMu.Lock()
	defer d.trackMu.Unlock()
	if _, ok := d.tracks[etherType]; ok {
		return errs.New(errs.AlreadyTracked)
	}
	d.tracks[etherType] = &TrackEntry{EtherType: etherType}
	return nil
}

// Untrack removes a tracked ethertype. NotTracked is returned if absent.
func (d *Dispatcher) Untrack(etherType uint16) *errs.Error {
	d.trackMu.Lock()
	defer d.trackMu.Unlock()
	if _, ok := d.tracks[etherType]; !ok {
		return errs.New(errs.NotTracked)
	}
	delete(d.tracks, etherType)
	return nil
}

// TrackEntries returns a snapshot of the current track list.
func (d *Dispatcher) TrackEntries() []TrackEntry {
	d.trackMu.Lock()
	defer d.trackMu.Unlock()
	out := make([]TrackEntry, 0, len(d.tracks))
	for _, t := range d.tracks {
		out = append(out, *t)
	}
	return out
}

// SetMulticastList replaces the unit's enabled multicast address list
// (spec §4.B hash recomputation input).
func (d *Dispatcher) SetMulticastList(macs []net.HardwareAddr) {
	d.mcastMu.Lock()
	defer d.mcastMu.Unlock()
	d.mcast = append([]net.HardwareAddr(nil), macs...)
}

// MulticastList returns the current enabled multicast address list.
func (d *Dispatcher) MulticastList() []net.HardwareAddr {
	d.mcastMu.Lock()
	defer d.mcastMu.Unlock()
	return append([]net.HardwareAddr(nil), d.mcast...)
}
