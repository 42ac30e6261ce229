// Package packet implements the wire format of the SpiNNaker control plane.
// Two nested framing layers are handled here:
//   - the SDP link header, an 8-byte addressing and routing envelope
//   - the SCP command header carried inside it: a command or result code,
//     a sequence number, up to three 32-bit arguments and a payload
//
// The package is pure and stateless; it performs no I/O. The constant
// 2-byte pad that precedes every SDP header on a UDP socket is not part of
// this codec, it is applied at the socket boundary by pkg/transport.
package packet

// Flags is the first byte of an SDP link header.
type Flags uint8

const (
	// FlagsReply marks a packet for which the receiver must send a reply.
	FlagsReply Flags = 0x87

	// FlagsNoReply marks a packet that must not be acknowledged.
	FlagsNoReply Flags = 0x07
)

// String returns a human-readable name for the flags value.
func (f Flags) String() string {
	switch f {
	case FlagsReply:
		return "Reply"
	case FlagsNoReply:
		return "NoReply"
	default:
		return "Unknown"
	}
}

// IsValid returns true if f is one of the two defined flag values.
func (f Flags) IsValid() bool {
	return f == FlagsReply || f == FlagsNoReply
}

// flagsFor maps the reply-expected bit onto the wire flags byte.
func flagsFor(replyExpected bool) Flags {
	if replyExpected {
		return FlagsReply
	}
	return FlagsNoReply
}
