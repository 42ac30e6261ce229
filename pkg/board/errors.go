package board

import "errors"

// Board errors.
var (
	// ErrNoConn is returned when Config.Conn is nil.
	ErrNoConn = errors.New("board: conn required")

	// ErrClosed is returned when an operation is attempted on a closed board.
	ErrClosed = errors.New("board: closed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("board: already started")

	// ErrInvalidGeometry is returned for a machine with no chips or cores.
	ErrInvalidGeometry = errors.New("board: invalid geometry")

	// ErrInvalidBufferSize is returned for a payload size that does not fit
	// in a datagram.
	ErrInvalidBufferSize = errors.New("board: invalid buffer size")
)
