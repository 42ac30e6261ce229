// Package board simulates the device side of the SCP control plane: a
// machine of chips that answers sver, read and write commands against a
// sparse memory.
//
// It is used by package tests across the module and by cmd/scpsim. Test
// code can intercept requests with a Hook to script delays, losses, wrong
// sequence numbers or error result codes.
package board

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/backkem/scp/pkg/packet"
	"github.com/backkem/scp/pkg/scp"
	"github.com/backkem/scp/pkg/transport"
	"github.com/pion/logging"
)

// Default board parameters.
const (
	DefaultBufferSize = 256
	DefaultCores      = 18
	DefaultVersion    = scp.Version(133)
	DefaultIdentity   = "SC&MP/SpiNNaker"
)

// Hook intercepts a decoded request before the board handles it. When
// handled is true the board sends replies (possibly none) instead of its
// own response.
type Hook func(req packet.CommandPacket) (replies []packet.CommandPacket, handled bool)

// Config configures a Board.
type Config struct {
	// Conn is the socket the board serves. Required.
	Conn net.PacketConn

	// Width and Height give the extent of the machine in chips
	// (default: 1x1).
	Width, Height int

	// Cores is the number of cores per chip (default: DefaultCores).
	Cores int

	// BufferSize is the SCP payload limit reported by sver and enforced
	// on read and write (default: DefaultBufferSize).
	BufferSize int

	// Version and VersionString are reported by sver
	// (default: DefaultVersion, DefaultIdentity).
	Version       scp.Version
	VersionString string

	// BuildDate is reported by sver (default: Unix epoch).
	BuildDate time.Time

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.Width == 0 {
		c.Width = 1
	}
	if c.Height == 0 {
		c.Height = 1
	}
	if c.Cores == 0 {
		c.Cores = DefaultCores
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Version == 0 {
		c.Version = DefaultVersion
	}
	if c.VersionString == "" {
		c.VersionString = DefaultIdentity
	}
	if c.BuildDate.IsZero() {
		c.BuildDate = time.Unix(0, 0).UTC()
	}
}

// chip identifies a chip by position.
type chip struct {
	x, y uint8
}

// Board is a simulated machine serving one PacketConn.
type Board struct {
	conn   net.PacketConn
	config Config
	log    logging.LeveledLogger

	memMu  sync.Mutex
	memory map[chip]*Memory

	hookMu sync.RWMutex
	hook   Hook

	received atomic.Int64
	replied  atomic.Int64

	mu      sync.Mutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// New creates a board. Call Start to begin serving.
func New(config Config) (*Board, error) {
	if config.Conn == nil {
		return nil, ErrNoConn
	}
	if config.Width < 0 || config.Width > 256 || config.Height < 0 || config.Height > 256 {
		return nil, ErrInvalidGeometry
	}
	if config.Cores < 0 || config.Cores > packet.MaxCore+1 {
		return nil, ErrInvalidGeometry
	}
	if config.BufferSize < 0 || config.BufferSize > scp.MaxBufferSize {
		return nil, ErrInvalidBufferSize
	}
	config.applyDefaults()

	b := &Board{
		conn:   config.Conn,
		config: config,
		memory: make(map[chip]*Memory),
	}
	if config.LoggerFactory != nil {
		b.log = config.LoggerFactory.NewLogger("board")
	}
	return b, nil
}

// Start begins serving requests on a background goroutine.
func (b *Board) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.started {
		return ErrAlreadyStarted
	}
	b.started = true

	if b.log != nil {
		b.log.Infof("serving %dx%d machine on %s", b.config.Width, b.config.Height, b.conn.LocalAddr())
	}

	b.wg.Add(1)
	go b.serve()
	return nil
}

// Close stops serving and closes the socket.
func (b *Board) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	// Unblock a pending read so serve sees the close.
	b.conn.SetReadDeadline(time.Now())
	err := b.conn.Close()
	b.wg.Wait()
	return err
}

// SetHook installs h, replacing any previous hook. nil removes it.
func (b *Board) SetHook(h Hook) {
	b.hookMu.Lock()
	defer b.hookMu.Unlock()
	b.hook = h
}

// Memory returns the memory of chip (x, y), creating it if needed.
// Every core of a chip shares its memory.
func (b *Board) Memory(x, y uint8) *Memory {
	b.memMu.Lock()
	defer b.memMu.Unlock()

	key := chip{x, y}
	m, ok := b.memory[key]
	if !ok {
		m = NewMemory()
		b.memory[key] = m
	}
	return m
}

// Received returns the number of datagrams received so far, including
// retransmissions and malformed ones.
func (b *Board) Received() int {
	return int(b.received.Load())
}

// Replied returns the number of datagrams sent so far.
func (b *Board) Replied() int {
	return int(b.replied.Load())
}

// LocalAddr returns the address the board serves on.
func (b *Board) LocalAddr() net.Addr {
	return b.conn.LocalAddr()
}

// serve reads requests until the socket is closed.
func (b *Board) serve() {
	defer b.wg.Done()

	buf := make([]byte, transport.MaxDatagramSize)
	for {
		n, addr, err := b.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || b.isClosed() {
				return
			}
			if b.log != nil {
				b.log.Warnf("read error: %v", err)
			}
			continue
		}
		b.received.Add(1)

		data, err := transport.StripPad(buf[:n])
		if err != nil {
			continue
		}
		req, err := packet.DecodeCommandPacket(data, packet.MaxArgs)
		if err != nil {
			if b.log != nil {
				b.log.Debugf("discarding %d byte datagram from %v: %v", n, addr, err)
			}
			continue
		}

		for _, reply := range b.dispatch(req) {
			if _, err := b.conn.WriteTo(transport.AddPad(reply.Encode()), addr); err != nil {
				if b.log != nil {
					b.log.Warnf("reply to %v failed: %v", addr, err)
				}
				continue
			}
			b.replied.Add(1)
		}
	}
}

func (b *Board) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// dispatch runs the hook, then the built-in handler, and returns the
// replies to send.
func (b *Board) dispatch(req packet.CommandPacket) []packet.CommandPacket {
	b.hookMu.RLock()
	hook := b.hook
	b.hookMu.RUnlock()

	if hook != nil {
		if replies, handled := hook(req); handled {
			return replies
		}
	}
	if !req.ReplyExpected {
		return nil
	}
	return []packet.CommandPacket{b.handle(req)}
}
