package packet

import (
	"encoding/binary"
)

// Header represents the SDP link header: the addressing and routing
// envelope of every packet. Chip coordinates travel as the 16-bit value
// (x<<8 | y) in little-endian byte order, so y precedes x on the wire.
type Header struct {
	// ReplyExpected requests an acknowledgement from the destination.
	ReplyExpected bool

	// Tag is the IPTag used when the packet leaves the machine.
	Tag uint8

	// DestPort is the SDP port on the destination core (0-7).
	DestPort uint8

	// DestCore is the destination logical core (0-18, or CoreAny).
	DestCore uint8

	// SrcPort is the SDP port of the sender (0-7).
	SrcPort uint8

	// SrcCore is the source logical core (0-18, or CoreAny).
	SrcCore uint8

	// DestX and DestY address the destination chip.
	DestX, DestY uint8

	// SrcX and SrcY address the source chip.
	SrcX, SrcY uint8
}

// Validate checks that every port and core field is within its range.
// Chip coordinates are range-limited by their type.
func (h *Header) Validate() error {
	if h.DestPort > MaxPort {
		return &RangeError{Field: "dest_port", Value: int(h.DestPort)}
	}
	if !validCore(h.DestCore) {
		return &RangeError{Field: "dest_core", Value: int(h.DestCore)}
	}
	if h.SrcPort > MaxPort {
		return &RangeError{Field: "src_port", Value: int(h.SrcPort)}
	}
	if !validCore(h.SrcCore) {
		return &RangeError{Field: "src_core", Value: int(h.SrcCore)}
	}
	return nil
}

func validCore(core uint8) bool {
	return core <= MaxCore || core == CoreAny
}

// Flags returns the wire flags byte for this header.
func (h *Header) Flags() Flags {
	return flagsFor(h.ReplyExpected)
}

// EncodeTo serialises the header into buf, which must be at least
// LinkHeaderSize bytes long. Returns the number of bytes written.
func (h *Header) EncodeTo(buf []byte) int {
	buf[0] = uint8(h.Flags())
	buf[1] = h.Tag
	buf[2] = packPortCore(h.DestPort, h.DestCore)
	buf[3] = packPortCore(h.SrcPort, h.SrcCore)
	binary.LittleEndian.PutUint16(buf[4:], uint16(h.DestX)<<8|uint16(h.DestY))
	binary.LittleEndian.PutUint16(buf[6:], uint16(h.SrcX)<<8|uint16(h.SrcY))
	return LinkHeaderSize
}

// decode parses the first LinkHeaderSize bytes of data.
func (h *Header) decode(data []byte) error {
	if len(data) < LinkHeaderSize {
		return ErrPacketTooShort
	}

	flags := Flags(data[0])
	if !flags.IsValid() {
		return ErrInvalidFlags
	}
	h.ReplyExpected = flags == FlagsReply
	h.Tag = data[1]
	h.DestPort, h.DestCore = unpackPortCore(data[2])
	h.SrcPort, h.SrcCore = unpackPortCore(data[3])

	dest := binary.LittleEndian.Uint16(data[4:])
	h.DestX, h.DestY = uint8(dest>>8), uint8(dest)
	src := binary.LittleEndian.Uint16(data[6:])
	h.SrcX, h.SrcY = uint8(src>>8), uint8(src)

	return nil
}

func packPortCore(port, core uint8) uint8 {
	return (port&portMask)<<portShift | core&coreMask
}

func unpackPortCore(b uint8) (port, core uint8) {
	return (b >> portShift) & portMask, b & coreMask
}

// LinkPacket is a bare SDP packet: a link header and an opaque payload.
type LinkPacket struct {
	Header
	Data []byte
}

// NewLinkPacket validates the header and returns the packet.
func NewLinkPacket(h Header, data []byte) (LinkPacket, error) {
	if err := h.Validate(); err != nil {
		return LinkPacket{}, err
	}
	return LinkPacket{Header: h, Data: data}, nil
}

// Size returns the encoded size of the packet.
func (p *LinkPacket) Size() int {
	return LinkHeaderSize + len(p.Data)
}

// Encode serialises the packet.
func (p *LinkPacket) Encode() []byte {
	buf := make([]byte, p.Size())
	n := p.Header.EncodeTo(buf)
	copy(buf[n:], p.Data)
	return buf
}

// DecodeLinkPacket parses an SDP packet. The payload is copied so the
// result does not alias data.
func DecodeLinkPacket(data []byte) (LinkPacket, error) {
	var p LinkPacket
	if err := p.Header.decode(data); err != nil {
		return LinkPacket{}, err
	}
	p.Data = cloneBytes(data[LinkHeaderSize:])
	return p, nil
}

// cloneBytes returns a copy of b, or nil when b is empty.
func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
