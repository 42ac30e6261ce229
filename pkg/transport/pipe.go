package transport

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures network behavior simulation.
// Use this to test retransmission under adverse network conditions.
type NetworkCondition struct {
	// DropRate is the probability of dropping a packet (0.0 - 1.0).
	DropRate float64

	// DelayMin is the minimum delay to add to each packet.
	DelayMin time.Duration

	// DelayMax is the maximum delay to add to each packet.
	// Actual delay is uniformly distributed between DelayMin and DelayMax.
	DelayMax time.Duration

	// DuplicateRate is the probability of duplicating a packet (0.0 - 1.0).
	DuplicateRate float64
}

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic message delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor checks for messages.
	// Default: 1ms
	ProcessInterval time.Duration
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe provides bidirectional in-memory datagram delivery between two
// endpoints. It wraps pion's test.Bridge and adds network condition
// simulation. Closing either endpoint tears down the whole pipe.
//
// Bridge conns ignore deadlines and only see EOF on a later Tick, so each
// endpoint is drained into an inbox that readers select on together with
// the pipe's done channel and their own read deadline.
type Pipe struct {
	bridge *test.Bridge
	inbox  [2]chan []byte
	done   chan struct{}

	mu              sync.RWMutex
	condition       NetworkCondition
	closed          bool
	rng             *rand.Rand
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new bidirectional pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		inbox:           [2]chan []byte{make(chan []byte, DefaultQueueSize), make(chan []byte, DefaultQueueSize)},
		done:            make(chan struct{}),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}

	if config.ProcessInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}

	go p.drain(p.bridge.GetConn0(), p.inbox[0])
	go p.drain(p.bridge.GetConn1(), p.inbox[1])

	if p.autoProcess {
		p.startAutoProcess()
	}

	return p
}

// startAutoProcess starts the background delivery goroutine.
func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}()
}

// drain copies datagrams delivered to one bridge conn into its inbox
// until the bridge reports EOF or the pipe closes. Once the pipe is closed
// it may stay parked in Read; nothing waits for it.
func (p *Pipe) drain(conn net.Conn, inbox chan<- []byte) {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		select {
		case inbox <- pkt:
		case <-p.done:
			return
		}
	}
}

// SetAutoProcess enables or disables automatic message delivery.
// When disabled, Tick or Process must be called manually.
func (p *Pipe) SetAutoProcess(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.autoProcess == enabled {
		return
	}

	p.autoProcess = enabled

	if enabled {
		p.stopCh = make(chan struct{})
		p.startAutoProcess()
	} else {
		close(p.stopCh)
		p.wg.Wait()
	}
}

// AutoProcess returns whether auto-processing is enabled.
func (p *Pipe) AutoProcess() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoProcess
}

// SetCondition configures network condition simulation.
// The conditions apply to packets in both directions.
func (p *Pipe) SetCondition(cond NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = cond
}

// Condition returns the current network condition configuration.
func (p *Pipe) Condition() NetworkCondition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.condition
}

// Tick delivers one packet in each direction (if available).
// Returns the number of packets delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued packets.
// Returns the number of packets delivered.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close stops auto-processing and closes both endpoints. Blocked readers
// return net.ErrClosed. It is idempotent.
func (p *Pipe) Close() error {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)

	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	// Wait for goroutine outside lock
	p.wg.Wait()

	var errs []error
	if err := p.bridge.GetConn0().Close(); err != nil {
		errs = append(errs, err)
	}
	if err := p.bridge.GetConn1().Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// fate decides, under the pipe lock, what happens to one outgoing packet.
func (p *Pipe) fate() (drop, duplicate bool, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cond := p.condition
	if cond.DropRate > 0 && p.rng.Float64() < cond.DropRate {
		return true, false, 0
	}
	if cond.DelayMax > 0 {
		delay = cond.DelayMin
		if cond.DelayMax > cond.DelayMin {
			delay += time.Duration(p.rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
		}
	}
	duplicate = cond.DuplicateRate > 0 && p.rng.Float64() < cond.DuplicateRate
	return false, duplicate, delay
}

// PacketConn returns a net.PacketConn for endpoint id (0 or 1). Reads
// report the other endpoint, at port, as the source address.
func (p *Pipe) PacketConn(id int, port int) *PipePacketConn {
	conn := p.bridge.GetConn0()
	if id == 1 {
		conn = p.bridge.GetConn1()
	}
	return &PipePacketConn{
		conn:     conn,
		inbox:    p.inbox[id],
		localID:  id,
		port:     port,
		peerAddr: PipeAddr{ID: 1 - id, Port: port},
		pipe:     p,
		wake:     make(chan struct{}),
	}
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID   int // Endpoint ID (0 or 1)
	Port int // Logical port number
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d:%d", a.ID, a.Port) }

// PipePacketConn wraps a Pipe endpoint to implement net.PacketConn.
type PipePacketConn struct {
	conn     net.Conn
	inbox    <-chan []byte
	localID  int
	port     int
	peerAddr net.Addr
	pipe     *Pipe

	mu           sync.Mutex
	readDeadline time.Time
	wake         chan struct{} // closed and replaced when the deadline changes
}

// ReadFrom reads a packet from the pipe. The returned address is the
// peer's address. A packet longer than b is truncated.
func (c *PipePacketConn) ReadFrom(b []byte) (int, net.Addr, error) {
	for {
		c.mu.Lock()
		deadline, wake := c.readDeadline, c.wake
		c.mu.Unlock()

		var timer *time.Timer
		var expired <-chan time.Time
		if !deadline.IsZero() {
			d := time.Until(deadline)
			if d <= 0 {
				return 0, c.peerAddr, os.ErrDeadlineExceeded
			}
			timer = time.NewTimer(d)
			expired = timer.C
		}

		var (
			n     int
			err   error
			rearm bool
		)
		select {
		case pkt := <-c.inbox:
			n = copy(b, pkt)
		case <-c.pipe.done:
			err = net.ErrClosed
		case <-expired:
			err = os.ErrDeadlineExceeded
		case <-wake:
			rearm = true
		}
		if timer != nil {
			timer.Stop()
		}
		if !rearm {
			return n, c.peerAddr, err
		}
	}
}

// WriteTo writes a packet to the pipe.
// The addr parameter is ignored since the pipe has only one peer.
func (c *PipePacketConn) WriteTo(b []byte, addr net.Addr) (n int, err error) {
	drop, duplicate, delay := c.pipe.fate()
	if drop {
		return len(b), nil // Silently drop
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if duplicate {
		if _, err := c.conn.Write(b); err != nil {
			return 0, err
		}
	}
	return c.conn.Write(b)
}

// Close tears down the pipe, closing both endpoints.
func (c *PipePacketConn) Close() error {
	return c.pipe.Close()
}

// LocalAddr returns the local address.
func (c *PipePacketConn) LocalAddr() net.Addr {
	return PipeAddr{ID: c.localID, Port: c.port}
}

// PeerAddr returns the address reported for packets from the other end.
func (c *PipePacketConn) PeerAddr() net.Addr {
	return c.peerAddr
}

// SetDeadline sets the read and write deadlines.
func (c *PipePacketConn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline, waking any blocked ReadFrom.
// A zero value disables the deadline.
func (c *PipePacketConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = t
	close(c.wake)
	c.wake = make(chan struct{})
	return nil
}

// SetWriteDeadline sets the write deadline.
func (c *PipePacketConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

// Verify PipePacketConn implements net.PacketConn.
var _ net.PacketConn = (*PipePacketConn)(nil)

// PipePair is a host-side UDP transport wired to a board-side PacketConn
// through an in-memory Pipe.
//
// Example:
//
//	pair, _ := transport.NewPipePair(transport.DefaultPipeConfig(), nil)
//	defer pair.Close()
//	go serve(pair.Board)             // board end, sees padded datagrams
//	pair.Host.Send(sdpPacket)        // host end, a transport.Conn
type PipePair struct {
	Pipe  *Pipe
	Host  *UDP
	Board *PipePacketConn
}

// NewPipePair creates a started host transport and the matching board
// connection.
func NewPipePair(config PipeConfig, loggerFactory logging.LoggerFactory) (*PipePair, error) {
	pipe := NewPipeWithConfig(config)
	hostConn := pipe.PacketConn(0, SCPPort)
	boardConn := pipe.PacketConn(1, SCPPort)

	host, err := NewUDP(UDPConfig{
		Conn:          hostConn,
		PeerAddr:      hostConn.PeerAddr(),
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		pipe.Close()
		return nil, err
	}
	if err := host.Start(); err != nil {
		pipe.Close()
		return nil, err
	}

	return &PipePair{Pipe: pipe, Host: host, Board: boardConn}, nil
}

// Close stops the host transport and closes the pipe.
func (p *PipePair) Close() error {
	// The host may already have been closed by its owner.
	p.Host.Close()
	return p.Pipe.Close()
}
