package relay

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/vanderian/physync/internal/protover"
)

// Socket wraps a bound UDP connection with a read timeout so the poll loop
// can periodically regain control even when no packet arrives.
type Socket struct {
	conn    *net.UDPConn
	timeout time.Duration
}

// NewSocket wraps an already-bound connection, using the protocol's default
// idle timeout as the per-read deadline.
func NewSocket(conn *net.UDPConn) *Socket {
	return NewSocketWithTimeout(conn, protover.DefaultIdleTimeout)
}

// NewSocketWithTimeout wraps conn with an explicit read deadline. Mainly
// useful in tests, where a short deadline keeps an idle-eviction scenario
// from taking the full production timeout to observe.
func NewSocketWithTimeout(conn *net.UDPConn, timeout time.Duration) *Socket {
	return &Socket{conn: conn, timeout: timeout}
}

// SendPacket writes payload to addr.
func (s *Socket) SendPacket(addr *net.UDPAddr, payload []byte) error {
	_, err := s.conn.WriteToUDP(payload, addr)
	if err != nil {
		return fmt.Errorf("send to %s: %w", addr, err)
	}
	return nil
}

// ReceivePacket reads one datagram into buf, blocking up to the read
// timeout. A timeout is reported via the returned bool so callers can
// distinguish "nothing arrived" from a real socket error.
func (s *Socket) ReceivePacket(buf []byte) (payload []byte, addr *net.UDPAddr, timedOut bool, err error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return nil, nil, false, fmt.Errorf("set read deadline: %w", err)
	}
	n, raddr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil, true, nil
		}
		return nil, nil, false, fmt.Errorf("read from udp: %w", err)
	}
	return buf[:n], raddr, false, nil
}

// LocalAddr is the address this socket is bound to.
func (s *Socket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Close releases the underlying connection.
func (s *Socket) Close() error {
	return s.conn.Close()
}
