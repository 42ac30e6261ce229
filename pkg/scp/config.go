package scp

import (
	"fmt"
	"time"

	"github.com/backkem/scp/pkg/transport"
	"github.com/pion/logging"
)

// Default connection parameters.
const (
	// DefaultTries is the number of transmissions of a request before it
	// is declared lost.
	DefaultTries = 5

	// DefaultTimeout is how long to wait for a response before
	// retransmitting.
	DefaultTimeout = 500 * time.Millisecond

	// DefaultBufferSize is the SCP payload size assumed until the board
	// reports its own through sver.
	DefaultBufferSize = 256

	// DefaultWindowSize is the number of outstanding requests used by the
	// memory operations when the caller passes zero.
	DefaultWindowSize = 8
)

// Config configures a Connection.
type Config struct {
	// Host is the board's hostname or IP address. Ignored when Conn is set.
	Host string

	// Port is the board's SCP port (default: transport.SCPPort).
	Port int

	// Conn is an optional pre-built transport. The Connection takes
	// ownership of it and closes it on Close.
	Conn transport.Conn

	// Tries is the maximum number of transmissions per request
	// (default: DefaultTries).
	Tries int

	// Timeout is the per-transmission response timeout
	// (default: DefaultTimeout).
	Timeout time.Duration

	// BufferSize is the SCP payload size used until a negotiated value is
	// known (default: DefaultBufferSize, at most MaxBufferSize).
	BufferSize int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors. Zero values are accepted
// and replaced by defaults.
func (c *Config) Validate() error {
	if c.Conn == nil && c.Host == "" {
		return ErrNoDestination
	}
	if c.Port < 0 || c.Port > 0xffff {
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Port)
	}
	if c.Tries < 0 {
		return fmt.Errorf("%w: tries %d", ErrInvalidConfig, c.Tries)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout %v", ErrInvalidConfig, c.Timeout)
	}
	if c.BufferSize < 0 || c.BufferSize > MaxBufferSize {
		return fmt.Errorf("%w: buffer size %d (max %d)", ErrInvalidConfig, c.BufferSize, MaxBufferSize)
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = transport.SCPPort
	}

	if c.Tries == 0 {
		c.Tries = DefaultTries
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
}
