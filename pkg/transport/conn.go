// Package transport provides the single-peer datagram socket used to talk
// to a SpiNNaker board.
//
// Every datagram exchanged with a board carries a constant 2-byte zero pad
// in front of the SDP link header. This package owns that framing: Send
// prepends the pad and Recv strips it, so the packet codec and everything
// above it only ever see bare SDP packets.
//
// Reads happen on a background goroutine and are handed over through a
// bounded queue, which gives callers a timed receive on any net.PacketConn
// (including in-memory pipes that do not honour read deadlines).
package transport

import (
	"net"
	"time"
)

// Well-known board ports.
const (
	// SCPPort is the UDP port on which a booted board accepts SCP commands.
	SCPPort = 17893

	// BootPort is the UDP port on which an unbooted board accepts boot packets.
	BootPort = 54321
)

// Framing constants.
const (
	// PadSize is the length of the zero pad preceding every SDP header.
	PadSize = 2

	// MaxDatagramSize is the largest UDP payload over IPv4 and the size of
	// every socket read. Recv truncates into the caller's buffer, so the
	// effective read size is the length of the buffer passed to Recv.
	MaxDatagramSize = 65507

	// DefaultQueueSize bounds the number of received datagrams waiting to
	// be consumed by Recv.
	DefaultQueueSize = 64
)

// Conn is a datagram connection to exactly one peer.
type Conn interface {
	// Send transmits one SDP packet to the peer.
	Send(data []byte) error

	// Recv copies the next SDP packet from the peer into buf and returns
	// its length. Packets longer than buf are truncated. A timeout of zero
	// polls without blocking. ErrNoData is returned when nothing arrived
	// in time.
	Recv(buf []byte, timeout time.Duration) (int, error)

	// LocalAddr returns the local socket address.
	LocalAddr() net.Addr

	// Close releases the socket. Blocked and later Recv calls return ErrClosed.
	Close() error
}
