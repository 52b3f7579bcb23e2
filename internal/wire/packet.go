// Package wire implements the fixed-layout physync packet codec: the
// BaseHeader/SessionHeader types, a stateful positional Reader, and an
// OutgoingPacketBuilder.
//
// Grounded on the teacher's transport/internet/gametunnel/packet.go (manual
// offset bookkeeping over a byte slice with encoding/binary, Marshal/
// Unmarshal free functions) and on the original net/constants.rs +
// packet/header/{base_header,session_header}.rs + packet/packet_reader.rs +
// packet/outgoing.rs, whose fixed read order (base -> session -> id ->
// payload) this reader preserves exactly.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/vanderian/physync/internal/perr"
	"github.com/vanderian/physync/internal/protover"
)

// PacketType tags the kind of a physync datagram.
type PacketType uint8

const (
	PacketData PacketType = iota
	PacketConnect
	PacketDisconnect
	PacketHeartbeat
)

func (t PacketType) String() string {
	switch t {
	case PacketData:
		return "Data"
	case PacketConnect:
		return "Connect"
	case PacketDisconnect:
		return "Disconnect"
	case PacketHeartbeat:
		return "Heartbeat"
	default:
		return fmt.Sprintf("PacketType(%d)", uint8(t))
	}
}

func packetTypeFromByte(b byte) (PacketType, error) {
	switch PacketType(b) {
	case PacketData, PacketConnect, PacketDisconnect, PacketHeartbeat:
		return PacketType(b), nil
	default:
		return 0, &perr.DecodeError{Kind: "packet type"}
	}
}

// BaseHeader is the 3-byte prefix (protocol fingerprint + packet type)
// present on every physync datagram.
type BaseHeader struct {
	ProtocolVersion uint16
	Type            PacketType
}

// NewBaseHeader builds a BaseHeader stamped with this build's protocol
// fingerprint.
func NewBaseHeader(t PacketType) BaseHeader {
	return BaseHeader{ProtocolVersion: protover.CRC16(), Type: t}
}

// IsCurrentProtocol reports whether this header's fingerprint matches the
// fingerprint of the running build.
func (h BaseHeader) IsCurrentProtocol() bool {
	return protover.Valid(h.ProtocolVersion)
}

func (h BaseHeader) appendTo(buf []byte) []byte {
	buf = binary.BigEndian.AppendUint16(buf, h.ProtocolVersion)
	return append(buf, byte(h.Type))
}

// SessionHeader is a single big-endian u64, reused both as the established
// session id and, during the handshake, as a peer's local salt.
type SessionHeader struct {
	SessionID uint64
}

func NewSessionHeader(id uint64) SessionHeader {
	return SessionHeader{SessionID: id}
}

func (h SessionHeader) appendTo(buf []byte) []byte {
	return binary.BigEndian.AppendUint64(buf, h.SessionID)
}
