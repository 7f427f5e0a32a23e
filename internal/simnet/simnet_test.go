package simnet

import (
	"net"
	"testing"

	"gvisor.dev/gvisor/pkg/tcpip/stack"
)

func testMACs() (local, remote net.HardwareAddr) {
	return net.HardwareAddr{0x02, 0x34, 0x56, 0x78, 0x9a, 0xbc},
		net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
}

func TestNewStackWiresAddressesAndEndpoint(t *testing.T) {
	local, remote := testMACs()
	s := NewStack(local, remote, 4, 1500)

	if s.Local.String() != local.String() {
		t.Errorf("Local = %v, want %v", s.Local, local)
	}
	if s.Remote.String() != remote.String() {
		t.Errorf("Remote = %v, want %v", s.Remote, remote)
	}
	if s.Link == nil {
		t.Fatal("Link endpoint was not constructed")
	}
	// channel.Endpoint must still satisfy stack.LinkEndpoint, the contract
	// InjectReceived/Outbound are built on.
	var _ stack.LinkEndpoint = s.Link
}

func TestFrameHeaderLayout(t *testing.T) {
	local, remote := testMACs()
	hdr := frameHeader(local, remote, 0x0800)

	if len(hdr) != 14 {
		t.Fatalf("header length = %d, want 14", len(hdr))
	}
	if net.HardwareAddr(hdr[0:6]).String() != local.String() {
		t.Errorf("dst field = %v, want %v", net.HardwareAddr(hdr[0:6]), local)
	}
	if net.HardwareAddr(hdr[6:12]).String() != remote.String() {
		t.Errorf("src field = %v, want %v", net.HardwareAddr(hdr[6:12]), remote)
	}
	if hdr[12] != 0x08 || hdr[13] != 0x00 {
		t.Errorf("ethertype field = %#x %#x, want 0x08 0x00", hdr[12], hdr[13])
	}
}
