package scp

import (
	"fmt"
	"time"

	"github.com/backkem/scp/pkg/packet"
)

// Fixed addressing of packets sent from the host into the machine.
const (
	// hostPort and hostCore mark the source as outside the machine.
	hostPort = packet.MaxPort
	hostCore = packet.CoreAny

	// monitorPort is the destination port of SC&MP and SARK.
	monitorPort = 0
)

// Core addresses one core of one chip.
type Core struct {
	X, Y uint8
	P    uint8
}

// String returns "(x, y, p)".
func (c Core) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.X, c.Y, c.P)
}

// Request is one SCP command to be sent by the engine.
type Request struct {
	// Target is the destination core.
	Target Core

	// Command is the command code.
	Command Command

	// Args are the present arguments, at most packet.MaxArgs.
	Args []uint32

	// Data is the payload following the arguments.
	Data []byte

	// ExpectedArgs is the number of arguments the response carries (0-3).
	ExpectedArgs int

	// ExtraTimeout is added to the connection timeout for this request.
	ExtraTimeout time.Duration

	// Callback, if set, is invoked exactly once with the decoded response.
	// A returned error aborts the burst.
	Callback func(packet.CommandPacket) error
}

// header returns the link header of a request sent from the host.
func (r *Request) header() packet.Header {
	return packet.Header{
		ReplyExpected: true,
		Tag:           packet.DefaultTag,
		DestPort:      monitorPort,
		DestCore:      r.Target.P,
		SrcPort:       hostPort,
		SrcCore:       hostCore,
		DestX:         r.Target.X,
		DestY:         r.Target.Y,
	}
}

// validate checks everything that would otherwise fail on the wire.
func (r *Request) validate() error {
	h := r.header()
	if err := h.Validate(); err != nil {
		return err
	}
	if len(r.Args) > packet.MaxArgs {
		return packet.ErrTooManyArgs
	}
	if r.ExpectedArgs < 0 || r.ExpectedArgs > packet.MaxArgs {
		return &packet.RangeError{Field: "expected_args", Value: r.ExpectedArgs}
	}
	if r.ExtraTimeout < 0 {
		return fmt.Errorf("%w: negative extra timeout %v", ErrInvalidConfig, r.ExtraTimeout)
	}
	return nil
}

// encode builds the datagram for the request with sequence number seq.
func (r *Request) encode(seq uint16) ([]byte, error) {
	p, err := packet.NewCommandPacket(r.header(), uint16(r.Command), seq, r.Args, r.Data)
	if err != nil {
		return nil, err
	}
	return p.Encode(), nil
}
