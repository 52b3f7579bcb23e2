package wire

import (
	"encoding/binary"

	"github.com/vanderian/physync/internal/perr"
	"github.com/vanderian/physync/internal/protover"
)

// Reader is a stateful positional parser over a borrowed buffer. Callers
// must read in the fixed order the wire format imposes: base header, then
// session header, then (Connect only) the id header, then the payload.
// Each Read*Header call repositions the cursor to that field's fixed offset
// before reading, so out-of-order calls silently re-read from the wrong
// place rather than panicking -- this mirrors the original packet_reader.rs,
// whose cursor is likewise "a function of the last call you made".
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for reading. buf is not copied.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// CanRead reports whether at least n more bytes are available from the
// cursor's current position.
func (r *Reader) CanRead(n int) bool {
	return len(r.buf)-r.pos >= n
}

// ReadBaseHeader reads the BaseHeader from offset 0.
func (r *Reader) ReadBaseHeader() (BaseHeader, error) {
	r.pos = 0
	if !r.CanRead(protover.BaseHeaderSize) {
		return BaseHeader{}, &perr.HeaderReadError{Which: "base"}
	}
	version := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	t, err := packetTypeFromByte(r.buf[r.pos])
	r.pos++
	if err != nil {
		return BaseHeader{}, err
	}
	return BaseHeader{ProtocolVersion: version, Type: t}, nil
}

// ReadSessionHeader reads the primary SessionHeader, immediately after the
// base header.
func (r *Reader) ReadSessionHeader() (SessionHeader, error) {
	return r.sessionHeaderAt(protover.BaseHeaderSize, "session id")
}

// ReadIDHeader reads the secondary SessionHeader (the peer-id/salt carried
// by Connect packets), immediately after the primary session header.
func (r *Reader) ReadIDHeader() (SessionHeader, error) {
	return r.sessionHeaderAt(protover.BaseHeaderSize+protover.SessionHeaderSize, "peer id")
}

func (r *Reader) sessionHeaderAt(pos int, which string) (SessionHeader, error) {
	r.pos = pos
	if !r.CanRead(protover.SessionHeaderSize) {
		return SessionHeader{}, &perr.HeaderReadError{Which: which}
	}
	id := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += protover.SessionHeaderSize
	return SessionHeader{SessionID: id}, nil
}

// ReadPayload returns a fresh copy of everything from the cursor's current
// position to the end of the buffer.
func (r *Reader) ReadPayload() []byte {
	out := make([]byte, len(r.buf)-r.pos)
	copy(out, r.buf[r.pos:])
	return out
}
