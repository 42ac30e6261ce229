package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrNoData is returned by Recv when no datagram arrived before the timeout.
	ErrNoData = errors.New("transport: no data")

	// ErrInvalidAddress is returned when no peer address is configured.
	ErrInvalidAddress = errors.New("transport: invalid address")

	// ErrAlreadyStarted is returned when Start is called on an already running transport.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrMissingPad is returned for a datagram too short to hold the pad.
	ErrMissingPad = errors.New("transport: datagram shorter than pad")

	// ErrMessageTooLarge is returned when a packet exceeds MaxDatagramSize.
	ErrMessageTooLarge = errors.New("transport: message too large")
)
