package scp

import (
	"time"

	"github.com/backkem/scp/pkg/packet"
	"github.com/backkem/scp/pkg/transport"
	"github.com/pion/logging"
)

// Connection is an SCP engine bound to one board.
//
// It owns the transport, the sequence allocator and the burst window. It
// is not safe for concurrent use.
type Connection struct {
	conn       transport.Conn
	tries      int
	timeout    time.Duration
	bufferSize int

	// dataLength is the board-reported payload size, 0 until known.
	dataLength int

	seq *SequenceAllocator
	log logging.LeveledLogger
}

// NewConnection validates config, applies defaults and opens the
// transport if none was supplied.
func NewConnection(config Config) (*Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	c := &Connection{
		conn:       config.Conn,
		tries:      config.Tries,
		timeout:    config.Timeout,
		bufferSize: config.BufferSize,
		seq:        NewSequenceAllocator(),
	}

	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("scp")
	}

	if c.conn == nil {
		u, err := transport.DialUDP(config.Host, config.Port, config.LoggerFactory)
		if err != nil {
			return nil, err
		}
		c.conn = u
	}

	if c.log != nil {
		c.log.Infof("connection ready: tries=%d timeout=%v buffer=%d",
			c.tries, c.timeout, c.bufferSize)
	}

	return c, nil
}

// Close releases the transport. A burst blocked in another goroutine
// fails with transport.ErrClosed.
func (c *Connection) Close() error {
	if c.log != nil {
		c.log.Info("closing connection")
	}
	return c.conn.Close()
}

// Send transmits a single request and waits for its response, decoded
// with req.ExpectedArgs. req.Callback, if set, is also invoked.
func (c *Connection) Send(req Request) (packet.CommandPacket, error) {
	var resp packet.CommandPacket
	user := req.Callback
	req.Callback = func(p packet.CommandPacket) error {
		resp = p
		if user != nil {
			return user(p)
		}
		return nil
	}

	if err := c.SendBurst(1, []Request{req}); err != nil {
		return packet.CommandPacket{}, err
	}
	return resp, nil
}

// BufferSize returns the payload size used for chunking and receive
// sizing: the negotiated value when known, the configured one otherwise.
func (c *Connection) BufferSize() int {
	if c.dataLength > 0 {
		return c.dataLength
	}
	return c.bufferSize
}
