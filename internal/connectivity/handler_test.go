package connectivity

import (
	"errors"
	"testing"

	"github.com/vanderian/physync/internal/perr"
	"github.com/vanderian/physync/internal/protover"
	"github.com/vanderian/physync/internal/wire"
)

func TestNewHandlerStartsPending(t *testing.T) {
	h := NewHandler()
	if h.State() != StatePending {
		t.Fatalf("State() = %v, want Pending", h.State())
	}
	if h.IsConnected() {
		t.Fatal("IsConnected() = true, want false")
	}
	if h.ShouldDrop() {
		t.Fatal("ShouldDrop() = true, want false")
	}
}

func TestCreateConnectionPacketWhilePending(t *testing.T) {
	h := NewHandler()
	pkt := h.CreateConnectionPacket()
	if pkt == nil {
		t.Fatal("CreateConnectionPacket() = nil, want a packet while Pending")
	}
	r := wire.NewReader(pkt.Contents())
	base, err := r.ReadBaseHeader()
	if err != nil {
		t.Fatalf("ReadBaseHeader: %v", err)
	}
	if base.Type != wire.PacketConnect {
		t.Errorf("Type = %v, want Connect", base.Type)
	}
	if _, err := r.ReadSessionHeader(); err != nil {
		t.Fatalf("ReadSessionHeader: %v", err)
	}
	if _, err := r.ReadIDHeader(); err != nil {
		t.Fatalf("ReadIDHeader: %v", err)
	}
	if got := len(r.ReadPayload()); got != protover.ConnectPayloadSize {
		t.Errorf("payload len = %d, want %d", got, protover.ConnectPayloadSize)
	}
}

// connectBase is a Connect packet's BaseHeader; the tests pass the peer's id
// header alongside it, as relay.Connection does for any Connect.
func connectBase() wire.BaseHeader { return wire.BaseHeader{Type: wire.PacketConnect} }

func TestFullHandshake(t *testing.T) {
	client := NewHandler()
	server := NewHandler()

	// Client's Connect packet carries its salt as the id header; the server
	// learns it from the peerID argument, session still unconfirmed (0).
	clientID := wire.SessionHeader{SessionID: clientSalt(client)}
	if err := server.ProcessIn(connectBase(), wire.SessionHeader{SessionID: 0}, &clientID, protover.ConnectPayloadSize); err != nil {
		t.Fatalf("server.ProcessIn (initial): %v", err)
	}
	if server.IsConnected() {
		t.Fatal("server connected after learning only the client's salt")
	}

	// Server's Connect packet carries its own salt as the id header; the
	// client learns it the same way.
	serverIDHdr := wire.SessionHeader{SessionID: serverSalt(server)}
	if err := client.ProcessIn(connectBase(), wire.SessionHeader{SessionID: 0}, &serverIDHdr, protover.ConnectPayloadSize); err != nil {
		t.Fatalf("client.ProcessIn (initial): %v", err)
	}

	if client.SessionID() != server.SessionID() {
		t.Fatalf("session ids diverge: client=%d server=%d", client.SessionID(), server.SessionID())
	}

	// Now both sides quote the agreed session id on ordinary packets; each
	// transitions to Connected.
	sid := client.SessionID()
	if err := client.ProcessIn(wire.BaseHeader{Type: wire.PacketData}, wire.SessionHeader{SessionID: sid}, nil, 0); err != nil {
		t.Fatalf("client.ProcessIn (confirm): %v", err)
	}
	if err := server.ProcessIn(wire.BaseHeader{Type: wire.PacketData}, wire.SessionHeader{SessionID: sid}, nil, 0); err != nil {
		t.Fatalf("server.ProcessIn (confirm): %v", err)
	}

	if !client.IsConnected() || !server.IsConnected() {
		t.Fatalf("expected both connected, client=%v server=%v", client.State(), server.State())
	}
	if client.CreateConnectionPacket() != nil {
		t.Fatal("CreateConnectionPacket() != nil once Connected")
	}
}

func TestChallengePayloadSizeRejected(t *testing.T) {
	h := NewHandler()
	peerID := wire.SessionHeader{SessionID: 42}
	err := h.ProcessIn(connectBase(), wire.SessionHeader{SessionID: 0}, &peerID, protover.ConnectPayloadSize-1)
	var decodeErr *perr.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("err = %v, want *perr.DecodeError", err)
	}
}

func TestSessionMismatchRejected(t *testing.T) {
	h := NewHandler()
	peerID := wire.SessionHeader{SessionID: 42}
	if err := h.ProcessIn(connectBase(), wire.SessionHeader{SessionID: 0}, &peerID, protover.ConnectPayloadSize); err != nil {
		t.Fatalf("ProcessIn (initial): %v", err)
	}
	err := h.ProcessIn(wire.BaseHeader{Type: wire.PacketData}, wire.SessionHeader{SessionID: h.SessionID() + 1}, nil, 0)
	if !errors.Is(err, perr.ErrSessionMismatch) {
		t.Fatalf("err = %v, want ErrSessionMismatch", err)
	}
	if !h.ShouldDrop() {
		t.Fatal("ShouldDrop() = false after a session mismatch")
	}
}

func TestDisconnectMarksShouldDrop(t *testing.T) {
	h := NewHandler()
	peerID := wire.SessionHeader{SessionID: 7}
	if err := h.ProcessIn(connectBase(), wire.SessionHeader{SessionID: 0}, &peerID, protover.ConnectPayloadSize); err != nil {
		t.Fatalf("ProcessIn (initial): %v", err)
	}
	sid := h.SessionID()
	if err := h.ProcessIn(wire.BaseHeader{Type: wire.PacketDisconnect}, wire.SessionHeader{SessionID: sid}, nil, 0); err != nil {
		t.Fatalf("ProcessIn (disconnect): %v", err)
	}
	if !h.ShouldDrop() {
		t.Fatal("ShouldDrop() = false after Disconnect packet")
	}
}

func clientSalt(h *Handler) uint64 { return h.id }
func serverSalt(h *Handler) uint64 { return h.id }
