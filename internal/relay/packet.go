// Package relay implements the connection table, UDP socket wrapper, and
// poll loop that turn raw datagrams into a fan-out relay: every connected
// peer's Data packets are forwarded to every other connected peer.
//
// Grounded on the original net/{connection,connection_manager,socket,peer}.rs
// (HashMap<SocketAddr, Connection> keyed connection table, manual_poll's
// receive -> relay -> update-all -> evict cycle) and on the teacher's
// listener.go receiveLoop (SetReadDeadline-based polling instead of a
// cancellable read, sync.RWMutex-guarded maps, atomic counters).
package relay

import "net"

// Packet pairs a peer address with a payload, for both directions: as
// received (addr is the sender) and as queued to send (addr is the
// destination).
type Packet struct {
	Addr    *net.UDPAddr
	Payload []byte
}

// NewPacket builds a Packet. payload is not copied.
func NewPacket(addr *net.UDPAddr, payload []byte) Packet {
	return Packet{Addr: addr, Payload: payload}
}
