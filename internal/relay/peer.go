package relay

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/vanderian/physync/internal/metrics"
)

// Peer is the top-level handle a caller binds once and then either polls in
// a loop (server role) or drives a single Connect call against (client
// role). It owns the socket and the connection manager.
//
// Grounded on the original net/peer.rs Peer (bind/bind_any/in_loop/connect),
// adapted from tokio's async UdpSocket to a blocking net.UDPConn driven from
// its own goroutine. The closed flag follows nspcc-dev-neo-go's
// pkg/consensus/watchdog.go convention of an atomic.Bool rather than a raw
// sync/atomic word for a lock-free started/closed flag.
type Peer struct {
	manager *ConnectionManager
	log     *zap.Logger
	closed  atomic.Bool
}

// Bind opens a UDP socket at addr and wraps it in a Peer.
func Bind(addr string, m *metrics.Collector, log *zap.Logger) (*Peer, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	return newPeer(conn, m, log), nil
}

// BindAny opens a UDP socket on an ephemeral loopback port; used by clients
// that only need an outbound socket.
func BindAny(m *metrics.Collector, log *zap.Logger) (*Peer, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		return nil, fmt.Errorf("listen udp ephemeral: %w", err)
	}
	return newPeer(conn, m, log), nil
}

func newPeer(conn *net.UDPConn, m *metrics.Collector, log *zap.Logger) *Peer {
	socket := NewSocket(conn)
	return &Peer{
		manager: NewConnectionManager(socket, m, log),
		log:     log,
	}
}

// InLoop runs ManualPoll forever, until stop is closed or the peer is Closed.
func (p *Peer) InLoop(stop <-chan struct{}) {
	for !p.closed.Load() {
		select {
		case <-stop:
			return
		default:
		}
		if err := p.manager.ManualPoll(time.Now()); err != nil {
			p.log.Error("poll error", zap.Error(err))
		}
	}
}

// ManualPoll runs a single poll cycle, for callers (tests, or a custom
// driver loop) that want to control pacing themselves.
func (p *Peer) ManualPoll(now time.Time) error {
	return p.manager.ManualPoll(now)
}

// Connect registers addr as a peer to relay to/from and sends the initial
// handshake packet.
func (p *Peer) Connect(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}
	return p.manager.Connect(udpAddr, time.Now())
}

// SendData sends payload as application data to addr, which must already be
// Connect-ed. Exported for any client-style caller that wants to originate
// traffic; the core relay loop never calls this itself (it only relays via
// the manager's internal pushToAll).
func (p *Peer) SendData(addr string, payload []byte) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}
	return p.manager.SendData(udpAddr, payload, time.Now())
}

// LocalAddr is the address this peer's socket is bound to.
func (p *Peer) LocalAddr() *net.UDPAddr {
	return p.manager.Socket().LocalAddr()
}

// Close releases the underlying socket. Idempotent: a second call is a
// no-op.
func (p *Peer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.manager.Socket().Close()
}
