// Package simnet is a gVisor channel-endpoint test harness standing in
// for "an external protocol stack" talking to the driver (spec §3:
// "external stacks submit I/O requests"). It is grounded on tamago's
// imx6/usb/ethernet.NIC, which wires the same channel.Endpoint between a
// USB transport and gVisor's stack; here the transport is the driver's
// own Send/Drain instead of USB bulk endpoints.
package simnet

import (
	"encoding/binary"
	"net"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/buffer"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/stack"
)

// Stack is a minimal client simulation: a channel.Endpoint fed by
// InjectReceived (standing in for the driver's RX delivery) and drained
// by Outbound (standing in for the driver's TX path picking up a write).
type Stack struct {
	Local  net.HardwareAddr
	Remote net.HardwareAddr

	Link *channel.Endpoint
}

// NewStack returns a Stack with a channel endpoint sized for qDepth
// queued packets, mirroring channel.New's signature.
func NewStack(local, remote net.HardwareAddr, qDepth int, mtu uint32) *Stack {
	return &Stack{
		Local:  local,
		Remote: remote,
		Link:   channel.New(qDepth, mtu, tcpip.LinkAddress(local)),
	}
}

// InjectReceived hands a cooked Ethernet frame (header + payload) to the
// stack as if the driver had just delivered it through a read request.
func (s *Stack) InjectReceived(dst, src net.HardwareAddr, ethertype uint16, payload []byte) {
	hdr := buffer.NewViewFromBytes(frameHeader(dst, src, ethertype))
	proto := tcpip.NetworkProtocolNumber(ethertype)

	pkt := &stack.PacketBuffer{
		LinkHeader: hdr,
		Data:       buffer.NewViewFromBytes(payload).ToVectorisedView(),
	}

	s.Link.InjectInbound(proto, pkt)
}

// Outbound pulls the next packet the stack queued for transmission and
// renders it as a complete Ethernet frame ready for chip.Context.Send.
func (s *Stack) Outbound() ([]byte, bool) {
	info, valid := s.Link.Read()
	if !valid {
		return nil, false
	}

	hdr := info.Pkt.Header.View()
	payload := info.Pkt.Data.ToView()

	proto := make([]byte, 2)
	binary.BigEndian.PutUint16(proto, uint16(info.Proto))

	frame := make([]byte, 0, len(hdr)+len(proto)+len(payload)+12)
	frame = append(frame, s.Remote...)
	frame = append(frame, s.Local...)
	frame = append(frame, proto...)
	frame = append(frame, hdr...)
	frame = append(frame, payload...)

	return frame, true
}

func frameHeader(dst, src net.HardwareAddr, ethertype uint16) []byte {
	hdr := make([]byte, 14)
	copy(hdr[0:6], dst)
	copy(hdr[6:12], src)
	binary.BigEndian.PutUint16(hdr[12:14], ethertype)
	return hdr
}
