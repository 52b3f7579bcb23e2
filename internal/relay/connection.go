package relay

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/vanderian/physync/internal/connectivity"
	"github.com/vanderian/physync/internal/perr"
	"github.com/vanderian/physync/internal/protover"
	"github.com/vanderian/physync/internal/wire"
)

// Connection is one peer's handshake state plus liveness bookkeeping. It is
// not safe for concurrent use; the ConnectionManager that owns it serializes
// all access from the poll loop.
type Connection struct {
	peerAddr *net.UDPAddr
	lastSeen time.Time
	lastSent time.Time

	connectivity *connectivity.Handler

	log *zap.Logger
}

// NewConnection starts a fresh, Pending connection for peerAddr.
func NewConnection(peerAddr *net.UDPAddr, now time.Time, log *zap.Logger) *Connection {
	return &Connection{
		peerAddr:     peerAddr,
		lastSeen:     now,
		lastSent:     now,
		connectivity: connectivity.NewHandler(),
		log:          log.With(zap.Stringer("peer", peerAddr)),
	}
}

// LastSeen is how long ago this peer was last heard from, relative to now.
func (c *Connection) LastSeen(now time.Time) time.Duration {
	return now.Sub(c.lastSeen)
}

// LastSent is how long ago we last sent this peer anything, relative to now.
func (c *Connection) LastSent(now time.Time) time.Duration {
	return now.Sub(c.lastSent)
}

// ProcessIn advances the handshake and, for Data packets once Connected,
// returns the payload to fan out to every other connection.
func (c *Connection) ProcessIn(raw []byte, now time.Time) (*Packet, error) {
	c.lastSeen = now

	r := wire.NewReader(raw)
	base, err := r.ReadBaseHeader()
	if err != nil {
		return nil, err
	}
	if !base.IsCurrentProtocol() {
		return nil, perr.ErrProtocolVersionMismatch
	}

	session, err := r.ReadSessionHeader()
	if err != nil {
		return nil, err
	}

	var peerID *wire.SessionHeader
	if base.Type == wire.PacketConnect {
		id, err := r.ReadIDHeader()
		if err != nil {
			return nil, err
		}
		peerID = &id
	}

	c.log.Debug("incoming", zap.Stringer("type", base.Type))

	if err := c.connectivity.ProcessIn(base, session, peerID, len(r.ReadPayload())); err != nil {
		return nil, err
	}

	if base.Type == wire.PacketData {
		payload := r.ReadPayload()
		pkt := NewPacket(c.peerAddr, payload)
		return &pkt, nil
	}

	return nil, nil
}

// ProcessOut wraps payload in the wire format for this connection's current
// session id and records the send time.
func (c *Connection) ProcessOut(payload []byte, t wire.PacketType, now time.Time) Packet {
	c.lastSent = now

	out := wire.NewOutgoingPacketBuilder(payload).
		WithBaseHeader(t).
		WithSessionHeader(c.connectivity.SessionID()).
		Build()

	return NewPacket(c.peerAddr, out.Contents())
}

// Update returns the next packet this connection needs sent -- a handshake
// step while Pending, or a heartbeat once the heartbeat interval has
// elapsed -- or nil if nothing is due.
func (c *Connection) Update(now time.Time) *Packet {
	if connect := c.connectivity.CreateConnectionPacket(); connect != nil {
		c.log.Debug("connect")
		c.lastSent = now
		pkt := NewPacket(c.peerAddr, connect.Contents())
		return &pkt
	}
	if c.LastSent(now) >= protover.DefaultHeartbeat {
		c.log.Debug("heartbeat")
		out := c.ProcessOut(nil, wire.PacketHeartbeat, now)
		return &out
	}
	return nil
}

// ShouldDrop reports whether this connection has gone idle or completed
// disconnection and should be evicted from the table.
func (c *Connection) ShouldDrop(now time.Time) bool {
	drop := c.LastSeen(now) >= protover.DefaultIdleTimeout || c.connectivity.ShouldDrop()
	if drop {
		c.log.Debug("dropping", zap.Duration("last_seen", c.LastSeen(now)))
	}
	return drop
}

// IsReady reports whether this connection is Connected and not the sender
// of the packet being relayed (so a peer never receives its own traffic
// echoed back).
func (c *Connection) IsReady(sender *net.UDPAddr) bool {
	return c.connectivity.IsConnected() && sender.String() != c.peerAddr.String()
}

func (c *Connection) String() string {
	return fmt.Sprintf("%s", c.peerAddr)
}
