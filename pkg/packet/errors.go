package packet

import (
	"errors"
	"fmt"
)

// ErrDecode is the root of all decoding failures. Malformed datagrams are
// never a protocol error: receivers discard them.
var ErrDecode = errors.New("packet: decode failed")

// Decoding errors.
var (
	ErrPacketTooShort  = fmt.Errorf("%w: data too short", ErrDecode)
	ErrInvalidFlags    = fmt.Errorf("%w: unrecognised flags byte", ErrDecode)
	ErrInvalidArgCount = fmt.Errorf("%w: expected argument count outside 0-3", ErrDecode)
)

// ErrOutOfRange is returned when a header field does not fit its declared
// range. It reports a caller mistake, not a fault on the wire.
var ErrOutOfRange = errors.New("packet: field out of range")

// ErrTooManyArgs is returned when more than MaxArgs arguments are supplied.
var ErrTooManyArgs = fmt.Errorf("%w: more than %d arguments", ErrOutOfRange, MaxArgs)

// RangeError describes a single out-of-range field.
type RangeError struct {
	Field string
	Value int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("packet: %s=%d out of range", e.Field, e.Value)
}

// Unwrap makes errors.Is(err, ErrOutOfRange) hold.
func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}

// Wire format constants.
const (
	// LinkHeaderSize is the size of the SDP header in bytes.
	// Flags (1) + Tag (1) + Dest port/core (1) + Src port/core (1) +
	// Dest chip (2) + Src chip (2) = 8
	LinkHeaderSize = 8

	// CommandHeaderSize is the size of the fixed SCP fields in bytes.
	// Code (2) + Sequence number (2) = 4
	CommandHeaderSize = 4

	// ArgSize is the size of one SCP argument.
	ArgSize = 4

	// MaxArgs is the maximum number of SCP arguments.
	MaxArgs = 3

	// MinCommandPacketSize is the smallest decodable SCP packet.
	MinCommandPacketSize = LinkHeaderSize + CommandHeaderSize

	// MaxHeaderSize is the largest header preceding the SCP payload.
	MaxHeaderSize = MinCommandPacketSize + MaxArgs*ArgSize
)

// Field ranges.
const (
	// MaxPort is the largest SDP port number.
	MaxPort = 7

	// MaxCore is the largest addressable logical core on a chip.
	MaxCore = 18

	// CoreAny is the special core id meaning "any core" (used as the
	// source core of packets originating outside the machine).
	CoreAny = 31

	// DefaultTag is the IPTag value used for packets entering the machine.
	DefaultTag = 0xff
)

// Bit layout of the port/core byte.
const (
	portShift = 5
	portMask  = 0x07
	coreMask  = 0x1f
)
