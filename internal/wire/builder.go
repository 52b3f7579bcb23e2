package wire

// OutgoingPacketBuilder accumulates header segments, in order, ahead of a
// caller-supplied payload. Calling WithSessionHeader twice in succession is
// legal and is exactly how the handshake is built: the first call writes the
// session id, the second the local peer id.
type OutgoingPacketBuilder struct {
	header  []byte
	payload []byte
}

// NewOutgoingPacketBuilder starts a builder for the given payload. payload is
// not copied; callers must not mutate it before calling Build/Contents.
func NewOutgoingPacketBuilder(payload []byte) *OutgoingPacketBuilder {
	return &OutgoingPacketBuilder{payload: payload}
}

// WithBaseHeader appends a BaseHeader of the given type.
func (b *OutgoingPacketBuilder) WithBaseHeader(t PacketType) *OutgoingPacketBuilder {
	b.header = NewBaseHeader(t).appendTo(b.header)
	return b
}

// WithSessionHeader appends one SessionHeader carrying id.
func (b *OutgoingPacketBuilder) WithSessionHeader(id uint64) *OutgoingPacketBuilder {
	b.header = NewSessionHeader(id).appendTo(b.header)
	return b
}

// Build materializes the OutgoingPacket.
func (b *OutgoingPacketBuilder) Build() OutgoingPacket {
	return OutgoingPacket{header: b.header, payload: b.payload}
}

// OutgoingPacket is a packet ready to be sent: header segments followed by
// payload.
type OutgoingPacket struct {
	header  []byte
	payload []byte
}

// Contents returns header bytes followed by payload bytes, concatenated into
// one fresh slice.
func (p OutgoingPacket) Contents() []byte {
	out := make([]byte, 0, len(p.header)+len(p.payload))
	out = append(out, p.header...)
	out = append(out, p.payload...)
	return out
}
