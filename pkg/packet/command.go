package packet

import (
	"encoding/binary"
)

// CommandPacket is an SCP packet: an SDP link header followed by a
// little-endian command header, up to three arguments and a payload.
//
// On requests Code carries the command; on responses it carries the
// result code. Args holds the present arguments in order; an argument
// that is absent on the wire is simply not in the slice.
type CommandPacket struct {
	Header

	// Code is the command (requests) or result code (responses).
	Code uint16

	// Seq is the sequence number correlating a response with its request.
	Seq uint16

	// Args are the present 32-bit arguments (at most MaxArgs).
	Args []uint32

	// Data is the payload following the arguments.
	Data []byte
}

// NewCommandPacket validates the header and argument count and returns
// the packet.
func NewCommandPacket(h Header, code, seq uint16, args []uint32, data []byte) (CommandPacket, error) {
	if err := h.Validate(); err != nil {
		return CommandPacket{}, err
	}
	if len(args) > MaxArgs {
		return CommandPacket{}, ErrTooManyArgs
	}
	return CommandPacket{
		Header: h,
		Code:   code,
		Seq:    seq,
		Args:   args,
		Data:   data,
	}, nil
}

// Arg returns argument i and whether it is present.
func (p *CommandPacket) Arg(i int) (uint32, bool) {
	if i < 0 || i >= len(p.Args) {
		return 0, false
	}
	return p.Args[i], true
}

// Size returns the encoded size of the packet.
func (p *CommandPacket) Size() int {
	return MinCommandPacketSize + len(p.Args)*ArgSize + len(p.Data)
}

// Encode serialises the packet.
func (p *CommandPacket) Encode() []byte {
	buf := make([]byte, p.Size())
	p.EncodeTo(buf)
	return buf
}

// EncodeTo serialises the packet into buf, which must be at least Size()
// bytes long. Returns the number of bytes written.
func (p *CommandPacket) EncodeTo(buf []byte) int {
	offset := p.Header.EncodeTo(buf)

	binary.LittleEndian.PutUint16(buf[offset:], p.Code)
	offset += 2
	binary.LittleEndian.PutUint16(buf[offset:], p.Seq)
	offset += 2

	for _, arg := range p.Args {
		binary.LittleEndian.PutUint32(buf[offset:], arg)
		offset += ArgSize
	}

	offset += copy(buf[offset:], p.Data)
	return offset
}

// DecodeCommandPacket parses an SCP packet.
//
// expectedArgs is the number of arguments the caller knows the packet to
// carry; it cannot be inferred from the length because the payload may
// itself be word aligned. Arguments are read while expectedArgs is not
// exhausted and at least ArgSize bytes remain; an argument that does not
// fit is left absent and its bytes become payload.
func DecodeCommandPacket(data []byte, expectedArgs int) (CommandPacket, error) {
	if expectedArgs < 0 || expectedArgs > MaxArgs {
		return CommandPacket{}, ErrInvalidArgCount
	}
	if len(data) < MinCommandPacketSize {
		return CommandPacket{}, ErrPacketTooShort
	}

	var p CommandPacket
	if err := p.Header.decode(data); err != nil {
		return CommandPacket{}, err
	}

	offset := LinkHeaderSize
	p.Code = binary.LittleEndian.Uint16(data[offset:])
	offset += 2
	p.Seq = binary.LittleEndian.Uint16(data[offset:])
	offset += 2

	for i := 0; i < expectedArgs && len(data)-offset >= ArgSize; i++ {
		p.Args = append(p.Args, binary.LittleEndian.Uint32(data[offset:]))
		offset += ArgSize
	}

	p.Data = cloneBytes(data[offset:])
	return p, nil
}

// PeekCommandHeader reads the code and sequence number of an SCP packet
// from their fixed offsets without decoding the rest. The flags byte is
// still checked so that stray traffic is rejected early.
func PeekCommandHeader(data []byte) (code, seq uint16, err error) {
	if len(data) < MinCommandPacketSize {
		return 0, 0, ErrPacketTooShort
	}
	if !Flags(data[0]).IsValid() {
		return 0, 0, ErrInvalidFlags
	}
	code = binary.LittleEndian.Uint16(data[LinkHeaderSize:])
	seq = binary.LittleEndian.Uint16(data[LinkHeaderSize+2:])
	return code, seq, nil
}
