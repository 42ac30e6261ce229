package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pion/logging"
)

// UDP is a Conn over a net.PacketConn. It only exchanges datagrams with
// the configured peer; datagrams from any other address are dropped.
type UDP struct {
	conn    net.PacketConn
	peer    net.Addr
	recvCh  chan []byte
	closeCh chan struct{}
	wg      sync.WaitGroup
	log     logging.LeveledLogger

	mu      sync.RWMutex
	started bool
	closed  bool
}

// UDPConfig configures the UDP transport.
type UDPConfig struct {
	// Conn is an optional pre-existing PacketConn to use.
	// If nil, a new connection will be created using ListenAddr.
	Conn net.PacketConn

	// ListenAddr is the local address to bind (e.g., ":0").
	// Ignored if Conn is provided.
	ListenAddr string

	// PeerAddr is the board address. Required.
	PeerAddr net.Addr

	// QueueSize bounds the receive queue (default: DefaultQueueSize).
	QueueSize int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewUDP creates a new UDP transport with the given configuration.
// Call Start to begin receiving.
func NewUDP(config UDPConfig) (*UDP, error) {
	if config.PeerAddr == nil {
		return nil, ErrInvalidAddress
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	u := &UDP{
		conn:    config.Conn,
		peer:    config.PeerAddr,
		recvCh:  make(chan []byte, config.QueueSize),
		closeCh: make(chan struct{}),
	}

	if config.LoggerFactory != nil {
		u.log = config.LoggerFactory.NewLogger("transport-udp")
	}

	if u.conn == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0" // Use ephemeral port
		}

		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return nil, err
		}
		u.conn = conn
	}

	return u, nil
}

// DialUDP resolves host:port, binds an ephemeral local port and starts the
// transport.
func DialUDP(host string, port int, loggerFactory logging.LoggerFactory) (*UDP, error) {
	peer, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", host, err)
	}

	u, err := NewUDP(UDPConfig{
		PeerAddr:      peer,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		return nil, err
	}
	if err := u.Start(); err != nil {
		u.conn.Close()
		return nil, err
	}
	return u, nil
}

// Start begins the read loop.
func (u *UDP) Start() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	if u.started {
		u.mu.Unlock()
		return ErrAlreadyStarted
	}
	u.started = true
	u.mu.Unlock()

	if u.log != nil {
		u.log.Infof("starting UDP transport on %s, peer %s", u.conn.LocalAddr(), u.peer)
	}

	u.wg.Add(1)
	go u.readLoop()

	return nil
}

// Close stops the read loop and closes the socket.
func (u *UDP) Close() error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	u.closed = true
	u.mu.Unlock()

	if u.log != nil {
		u.log.Info("stopping UDP transport")
	}

	close(u.closeCh)

	// Set a short deadline to unblock any pending reads
	u.conn.SetReadDeadline(time.Now())
	err := u.conn.Close()
	u.wg.Wait()

	return err
}

// Send pads and transmits an SDP packet to the peer.
func (u *UDP) Send(data []byte) error {
	u.mu.RLock()
	if u.closed {
		u.mu.RUnlock()
		return ErrClosed
	}
	u.mu.RUnlock()

	if len(data)+PadSize > MaxDatagramSize {
		return ErrMessageTooLarge
	}

	if u.log != nil {
		u.log.Tracef("sending %d bytes to %v", len(data), u.peer)
	}

	if _, err := u.conn.WriteTo(AddPad(data), u.peer); err != nil {
		if u.log != nil {
			u.log.Warnf("send failed: %v", err)
		}
		return err
	}

	return nil
}

// Recv implements Conn.
func (u *UDP) Recv(buf []byte, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		select {
		case data := <-u.recvCh:
			return copy(buf, data), nil
		case <-u.closeCh:
			return 0, ErrClosed
		default:
			return 0, ErrNoData
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-u.recvCh:
		return copy(buf, data), nil
	case <-u.closeCh:
		return 0, ErrClosed
	case <-timer.C:
		return 0, ErrNoData
	}
}

// LocalAddr returns the local address the transport is bound to.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// PeerAddr returns the board address.
func (u *UDP) PeerAddr() net.Addr {
	return u.peer
}

// readLoop reads datagrams from the socket and queues those from the peer.
func (u *UDP) readLoop() {
	defer u.wg.Done()

	buf := make([]byte, MaxDatagramSize)

	for {
		select {
		case <-u.closeCh:
			return
		default:
		}

		n, addr, err := u.conn.ReadFrom(buf)
		if err != nil {
			// Check if we're shutting down
			select {
			case <-u.closeCh:
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				if u.log != nil {
					u.log.Warnf("UDP socket closed underneath transport: %v", err)
				}
				return
			}
			if u.log != nil {
				u.log.Warnf("UDP read error: %v", err)
			}
			continue
		}

		if addr == nil || addr.String() != u.peer.String() {
			if u.log != nil {
				u.log.Debugf("dropping %d bytes from unexpected peer %v", n, addr)
			}
			continue
		}

		data, err := StripPad(buf[:n])
		if err != nil {
			if u.log != nil {
				u.log.Debugf("dropping %d byte datagram: %v", n, err)
			}
			continue
		}

		// Make a copy of the data for the consumer
		pkt := make([]byte, len(data))
		copy(pkt, data)

		if u.log != nil {
			u.log.Tracef("received %d bytes from %v", len(pkt), addr)
		}

		select {
		case u.recvCh <- pkt:
		case <-u.closeCh:
			return
		default:
			if u.log != nil {
				u.log.Warnf("receive queue full, dropping %d bytes", len(pkt))
			}
		}
	}
}

// AddPad returns data prefixed with the zero pad.
func AddPad(data []byte) []byte {
	out := make([]byte, PadSize+len(data))
	copy(out[PadSize:], data)
	return out
}

// StripPad removes the pad from a received datagram. The returned slice
// aliases datagram.
func StripPad(datagram []byte) ([]byte, error) {
	if len(datagram) < PadSize {
		return nil, ErrMissingPad
	}
	return datagram[PadSize:], nil
}

// Verify UDP implements Conn.
var _ Conn = (*UDP)(nil)
