package scp

import (
	"errors"
	"fmt"
)

// Root errors. Every failure of a burst wraps exactly one of these.
var (
	// ErrProtocol is the root of all errors reported by the board through
	// a result code.
	ErrProtocol = errors.New("scp: board reported an error")

	// ErrTimeout is returned when a request was not answered after the
	// configured number of tries.
	ErrTimeout = errors.New("scp: request timed out")

	// ErrInvalidConfig is returned when a Config or a call argument is
	// unusable. It is always raised before any I/O.
	ErrInvalidConfig = errors.New("scp: invalid configuration")

	// ErrShortResponse is returned when a response lacks the arguments or
	// payload its command must carry.
	ErrShortResponse = errors.New("scp: response shorter than expected")
)

// Configuration errors.
var (
	ErrNoDestination = fmt.Errorf("%w: host or conn required", ErrInvalidConfig)
	ErrInvalidWindow = fmt.Errorf("%w: window size must be positive", ErrInvalidConfig)
)

// Result code errors, each wrapping ErrProtocol.
var (
	ErrBadPacketLength = fmt.Errorf("%w: bad packet length", ErrProtocol)
	ErrBadChecksum     = fmt.Errorf("%w: bad checksum", ErrProtocol)
	ErrInvalidCommand  = fmt.Errorf("%w: invalid command", ErrProtocol)
	ErrInvalidArgs     = fmt.Errorf("%w: invalid arguments", ErrProtocol)
	ErrInvalidPort     = fmt.Errorf("%w: invalid port", ErrProtocol)
	ErrNoRoute         = fmt.Errorf("%w: no route to core", ErrProtocol)
	ErrInvalidCore     = fmt.Errorf("%w: invalid core", ErrProtocol)
)

// errorRegistry maps the result codes that abort a burst to their kind.
// Codes not listed, ResultOK included, are treated as success.
var errorRegistry = map[ResultCode]error{
	ResultBadLength:   ErrBadPacketLength,
	ResultBadChecksum: ErrBadChecksum,
	ResultBadCommand:  ErrInvalidCommand,
	ResultBadArgs:     ErrInvalidArgs,
	ResultBadPort:     ErrInvalidPort,
	ResultNoRoute:     ErrNoRoute,
	ResultBadCore:     ErrInvalidCore,
}

// LookupError returns the error kind registered for a result code.
func LookupError(code uint16) (error, bool) {
	err, ok := errorRegistry[ResultCode(code)]
	return err, ok
}

// ProtocolError is returned when the board answers with a registered
// error result code.
type ProtocolError struct {
	// Code is the result code received.
	Code ResultCode

	// Seq is the sequence number of the error response.
	Seq uint16

	// Command is the command of the outstanding request with that sequence
	// number. It is zero (CmdSver) when Matched is false.
	Command Command

	// Matched reports whether Seq belonged to an outstanding request.
	Matched bool

	// Kind is the registered error for Code.
	Kind error
}

func (e *ProtocolError) Error() string {
	if e.Matched {
		return fmt.Sprintf("%v (code %#x, %s seq %d)", e.Kind, uint16(e.Code), e.Command, e.Seq)
	}
	return fmt.Sprintf("%v (code %#x, seq %d)", e.Kind, uint16(e.Code), e.Seq)
}

// Unwrap returns Kind, so errors.Is matches both Kind and ErrProtocol.
func (e *ProtocolError) Unwrap() error {
	return e.Kind
}

// TimeoutError is returned when a request exhausted its tries.
type TimeoutError struct {
	// Tries is the number of times the request was transmitted.
	Tries int

	// Seq is the last sequence number the request was sent with.
	Seq uint16

	// Command is the request's command.
	Command Command
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("scp: %s (seq %d) not acknowledged after %d tries", e.Command, e.Seq, e.Tries)
}

// Unwrap makes errors.Is(err, ErrTimeout) hold.
func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
