package relay

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vanderian/physync/internal/metrics"
	"github.com/vanderian/physync/internal/perr"
	"github.com/vanderian/physync/internal/protover"
	"github.com/vanderian/physync/internal/wire"
)

// ConnectionManager owns the connection table and runs one cycle of the
// relay: receive one packet, fan incoming Data out to every other ready
// connection, advance every connection's handshake/heartbeat, then evict
// whoever should be dropped.
//
// Grounded on the original net/connection_manager.rs ConnectionManager,
// adapted from its single-threaded tokio task to a single-threaded poll
// loop driven by the caller (no internal goroutine of its own, matching
// manual_poll being called in a loop by Peer.InLoop).
type ConnectionManager struct {
	mu          sync.Mutex
	connections map[string]*Connection
	buffer      []byte
	socket      *Socket
	metrics     *metrics.Collector
	log         *zap.Logger
}

// NewConnectionManager wraps socket with an empty connection table.
func NewConnectionManager(socket *Socket, m *metrics.Collector, log *zap.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		buffer:      make([]byte, protover.MTU),
		socket:      socket,
		metrics:     m,
		log:         log,
	}
}

// ManualPoll runs one receive/relay/update/evict cycle.
func (m *ConnectionManager) ManualPoll(now time.Time) error {
	payload, peer, timedOut, err := m.socket.ReceivePacket(m.buffer)
	if err != nil {
		m.log.Error("read socket error", zap.Error(err))
	} else if !timedOut {
		if err := m.handleIncoming(payload, peer, now); err != nil {
			m.log.Debug("dropping packet", zap.Error(err), zap.Stringer("peer", peer))
			if !errors.Is(err, perr.ErrSessionMismatch) {
				m.metrics.ProtocolMismatches.Inc()
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, con := range m.connections {
		if pkt := con.Update(now); pkt != nil {
			if err := m.socket.SendPacket(pkt.Addr, pkt.Payload); err != nil {
				m.log.Error("send on update failed", zap.Error(err))
			}
		}
	}

	for key, con := range m.connections {
		if con.ShouldDrop(now) {
			delete(m.connections, key)
			m.metrics.ConnectionsEvicted.WithLabelValues(dropReason(con, now)).Inc()
			m.metrics.ActiveConnections.Dec()
		}
	}

	return nil
}

func (m *ConnectionManager) handleIncoming(payload []byte, peer *net.UDPAddr, now time.Time) error {
	m.mu.Lock()
	key := peer.String()
	con, existed := m.connections[key]
	if !existed {
		con = NewConnection(peer, now, m.log)
		m.connections[key] = con
		m.metrics.ActiveConnections.Inc()
	}
	m.mu.Unlock()

	wasConnected := con.connectivity.IsConnected()

	relayed, err := con.ProcessIn(payload, now)
	if err != nil {
		return err
	}

	if !wasConnected && con.connectivity.IsConnected() {
		m.metrics.HandshakesCompleted.Inc()
	}

	if relayed != nil {
		return m.pushToAll(*relayed, now)
	}
	return nil
}

// pushToAll relays pkt to every ready connection other than its sender.
func (m *ConnectionManager) pushToAll(pkt Packet, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, con := range m.connections {
		if !con.IsReady(pkt.Addr) {
			continue
		}
		out := con.ProcessOut(pkt.Payload, wire.PacketData, now)
		if err := m.socket.SendPacket(out.Addr, out.Payload); err != nil {
			m.log.Error("relay send failed", zap.Error(err))
			continue
		}
		m.metrics.PacketsRelayed.Inc()
	}
	return nil
}

// Connect registers addr as a new connection and sends it the initial
// handshake packet; used by the client role only.
func (m *ConnectionManager) Connect(addr *net.UDPAddr, now time.Time) error {
	m.mu.Lock()
	con := NewConnection(addr, now, m.log)
	m.connections[addr.String()] = con
	m.metrics.ActiveConnections.Inc()
	m.mu.Unlock()

	pkt := con.Update(now)
	if pkt == nil {
		return nil
	}
	return m.socket.SendPacket(pkt.Addr, pkt.Payload)
}

// SendData wraps payload as a Data packet for addr's connection and sends it
// directly, without fanning out to anyone else. Used by the client role to
// originate traffic; the server never calls this, it only relays via
// pushToAll. Returns an error if no connection for addr exists yet -- the
// caller must Connect first.
func (m *ConnectionManager) SendData(addr *net.UDPAddr, payload []byte, now time.Time) error {
	m.mu.Lock()
	con, ok := m.connections[addr.String()]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("send data to %s: %w", addr, errNoSuchConnection)
	}
	out := con.ProcessOut(payload, wire.PacketData, now)
	return m.socket.SendPacket(out.Addr, out.Payload)
}

// errNoSuchConnection is returned by SendData when addr has no connection
// yet.
var errNoSuchConnection = errors.New("physync: no connection for address")

// Socket exposes the underlying socket, mainly so Peer can report its local
// address.
func (m *ConnectionManager) Socket() *Socket {
	return m.socket
}

func dropReason(con *Connection, now time.Time) string {
	if con.connectivity.ShouldDrop() {
		return "disconnected"
	}
	if con.LastSeen(now) >= protover.DefaultIdleTimeout {
		return "idle_timeout"
	}
	return "unknown"
}
