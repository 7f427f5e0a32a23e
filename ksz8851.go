// Package ksz8851 is the public facade over the KSZ8851-16MLL driver
// core: it wires a bus.Bus, a chip.Context, a queue.Dispatcher and a
// unit.Unit together into the single device Interface spec §3 describes,
// and exposes the request-tag surface of spec §6.
//
// The shape follows tamago's soc/nxp/enet: a single exported struct with
// an Init-like entry point (here Open), small accessor methods, and the
// heavy lifting delegated to lower packages (chip, irq, queue, unit).
package ksz8851

import (
	"log"
	"net"

	"github.com/mos6510/ksz8851/bus"
	"github.com/mos6510/ksz8851/chip"
	"github.com/mos6510/ksz8851/errs"
	"github.com/mos6510/ksz8851/hostio"
	"github.com/mos6510/ksz8851/internal/config"
	"github.com/mos6510/ksz8851/queue"
	"github.com/mos6510/ksz8851/unit"
)

// DeviceQuery is the SANA-II device-query result (spec §6).
type DeviceQuery struct {
	AddrFieldSize int
	MTU           int
	BPS           int64
	HardwareType  int
}

// Ethernet-typical constants backing DeviceQuery (spec §6).
const (
	hardwareTypeEthernet = 1
	bps10M               = 10000000 // 10 Mbps, the rate device-query reports
)

// NSDeviceQuery is the ns-device-query result (spec §6).
type NSDeviceQuery struct {
	Type              int
	SubType           int
	SupportedCommands []queue.Command
}

const nsTypeSANA2 = 2

// Interface is the singleton device instance of spec §3.
type Interface struct {
	Unit *unit.Unit

	multicast []net.HardwareAddr
}

// Open creates and configures an Interface over bus b (spec §4.G init ->
// config-interface -> online). delay and signal may be nil to use the
// real-clock/real-channel defaults. cfg may be nil; when supplied, a
// MACADDR line (internal/config) is used as the station address whenever
// the caller did not pass an explicit mac (spec §9 MACADDR resolution:
// explicit mac wins, then the config file, then chip.DefaultMAC).
func Open(b bus.Bus, mac net.HardwareAddr, cfg *config.Config, delay hostio.Delayer, signal hostio.Signaler) (*Interface, *errs.Error) {
	if signal == nil {
		signal = hostio.NewSignal()
	}

	u := unit.New(0, b, delay, signal)
	iface := &Interface{Unit: u}

	if mac == nil && cfg != nil && cfg.MACAddr != nil {
		mac = cfg.MACAddr
	}
	if mac == nil {
		mac = chip.DefaultMAC
	}

	if err := u.ConfigInterface(mac, nil); err != nil {
		log.Printf("ksz8851: config-interface failed: %v", err)
		return nil, err
	}

	return iface, nil
}

// Close runs the offline/expunge sequence (spec §4.G).
func (i *Interface) Close() *errs.Error {
	if i.Unit.State().Has(unit.Online) {
		if err := i.Unit.Offline(); err != nil {
			return err
		}
	}
	return i.Unit.Expunge()
}

// NewClient opens a client handle (spec §3 Client/BufferManagement).
func (i *Interface) NewClient(hooks queue.Hooks) *queue.Client {
	c := queue.NewClient(hooks)
	i.Unit.Dispatcher.AddClient(c)
	i.Unit.Open()
	return c
}

// CloseClient closes a previously opened client, flushing its queue, and
// decrements the unit's open-reference count.
func (i *Interface) CloseClient(c *queue.Client) {
	i.Unit.Dispatcher.RemoveClient(c)
	i.Unit.Close()
}

// Read submits a typed read request against a client's queue (spec §6
// `read`; dispatch policy: handled inline, no worker hop).
func (i *Interface) Read(c *queue.Client, req *queue.Request) {
	req.Command = queue.CmdRead
	c.EnqueueRead(req)
}

// ReadOrphan submits a catch-all read to the unit-wide orphan queue (spec
// §6 `read-orphan`).
func (i *Interface) ReadOrphan(c *queue.Client, req *queue.Request) {
	req.Command = queue.CmdReadOrphan
	i.Unit.Dispatcher.EnqueueOrphan(req, c.Hooks())
}

// Write submits a frame for transmission (spec §6 `write`; dispatch
// policy: handled inline — building the TX header and kicking TXQ is
// immediate, no worker hop needed).
func (i *Interface) Write(req *queue.Request, frame []byte) {
	req.Command = queue.CmdWrite
	if err := i.Unit.Chip.Send(frame); err != nil {
		kind := errs.InvalidLength
		if err == chip.ErrNoSpace {
			kind = errs.NoSpace
		}
		i.Unit.Dispatcher.FireEvent(queue.EventTX | queue.EventBufferExhaustion)
		req.Complete(errs.New(kind))
		return
	}
	i.Unit.Dispatcher.FireEvent(queue.EventTX)
	req.Complete(nil)
}

// Broadcast is Write with the destination forced to the all-ones address
// (spec §6 `broadcast`).
func (i *Interface) Broadcast(req *queue.Request, src net.HardwareAddr, ethertype uint16, payload []byte) {
	req.Command = queue.CmdBroadcast
	dst := net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if err := i.Unit.Chip.SendCooked(dst, src, ethertype, payload); err != nil {
		req.Complete(errs.New(errs.InvalidLength))
		return
	}
	i.Unit.Dispatcher.FireEvent(queue.EventTX)
	req.Complete(nil)
}

// Flush aborts every queued request on the unit (spec §6 `flush`).
func (i *Interface) Flush() {
	i.Unit.Dispatcher.Flush()
}

// Abort cancels a pending request wherever it is queued (spec §5
// cancellation contract).
func (i *Interface) Abort(req *queue.Request) bool {
	return i.Unit.Dispatcher.Abort(req)
}

// DeviceQuery answers the `device-query` command (spec §6).
func (i *Interface) DeviceQuery() DeviceQuery {
	return DeviceQuery{
		AddrFieldSize: 48,
		MTU:           chip.MTU,
		BPS:           bps10M,
		HardwareType:  hardwareTypeEthernet,
	}
}

// NSDeviceQuery answers the `ns-device-query` command (spec §6).
func (i *Interface) NSDeviceQuery() NSDeviceQuery {
	return NSDeviceQuery{
		Type:    nsTypeSANA2,
		SubType: 0,
		SupportedCommands: []queue.Command{
			queue.CmdRead, queue.CmdWrite, queue.CmdFlush, queue.CmdDeviceQuery,
			queue.CmdGetStationAddress, queue.CmdConfigInterface, queue.CmdMulticastWrite,
			queue.CmdBroadcast, queue.CmdTrackType, queue.CmdUntrackType,
			queue.CmdGetGlobalStats, queue.CmdOnEvent, queue.CmdReadOrphan,
			queue.CmdOnline, queue.CmdOffline, queue.CmdNSDeviceQuery,
			queue.CmdGetSpecialStats,
		},
	}
}

// GetStationAddress answers the `get-station-address` command.
func (i *Interface) GetStationAddress() net.HardwareAddr {
	return append(net.HardwareAddr(nil), i.Unit.StationAddr...)
}

// MulticastWrite replaces the enabled multicast address list and
// reprograms the chip hash filter (spec §6 `multicast-write`).
func (i *Interface) MulticastWrite(macs []net.HardwareAddr) *errs.Error {
	if len(macs) > chip.MaxMulticast {
		return errs.New(errs.BadArgument)
	}
	i.multicast = append([]net.HardwareAddr(nil), macs...)
	i.Unit.Dispatcher.SetMulticastList(macs)
	promisc := i.Unit.State().Has(unit.Promisc)
	if err := i.Unit.Chip.ApplyMulticastFilter(macs, promisc); err != nil {
		return errs.New(errs.BadState)
	}
	return nil
}

// TrackType adds a tracked ethertype (spec §6 `track-type`).
func (i *Interface) TrackType(etherType uint16) *errs.Error {
	return i.Unit.Dispatcher.Track(etherType)
}

// UntrackType removes a tracked ethertype (spec §6 `untrack-type`).
func (i *Interface) UntrackType(etherType uint16) *errs.Error {
	return i.Unit.Dispatcher.Untrack(etherType)
}

// GlobalStats answers the `get-global-stats` command.
type GlobalStats struct {
	IRQsObserved uint32
	RXOverruns   uint32
}

func (i *Interface) GetGlobalStats() GlobalStats {
	return GlobalStats{
		IRQsObserved: i.Unit.Chip.Stats.IRQsObserved,
		RXOverruns:   i.Unit.Chip.Stats.RXOverruns,
	}
}

// GetSpecialStats answers the `get-special-stats` command: per-tracked-type
// counters (spec §4.F "Tracking").
func (i *Interface) GetSpecialStats() []queue.TrackEntry {
	return i.Unit.Dispatcher.TrackEntries()
}

// OnEvent submits an event-wait request (spec §6 `on-event`).
func (i *Interface) OnEvent(req *queue.Request, mask uint32) {
	req.Command = queue.CmdOnEvent
	req.EventMask = mask

	var current uint32
	if i.Unit.State().Has(unit.Online) {
		current |= queue.EventOnline
	} else {
		current |= queue.EventOffline
	}
	i.Unit.Dispatcher.EnqueueEvent(req, current)
}

// Online answers the `online` command.
func (i *Interface) Online() *errs.Error {
	return i.Unit.Online(nil)
}

// Offline answers the `offline` command.
func (i *Interface) Offline() *errs.Error {
	return i.Unit.Offline()
}
