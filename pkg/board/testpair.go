package board

import (
	"time"

	"github.com/backkem/scp/pkg/scp"
	"github.com/backkem/scp/pkg/transport"
	"github.com/pion/logging"
)

// =============================================================================
// Exported Test Infrastructure for E2E Testing
// =============================================================================

// TestPair is an scp.Connection wired to a simulated Board through an
// in-memory pipe:
// scp.Connection -> transport.UDP -> pipe -> Board
//
// Usage:
//
//	pair, _ := board.NewTestPair(board.TestPairConfig{})
//	defer pair.Close()
//
//	pair.Board.Memory(0, 0).Write(0x60000000, []byte{1, 2, 3, 4})
//	data, _ := pair.Conn.Read(scp.Core{}, 0x60000000, 4, 1)
type TestPair struct {
	Board *Board
	Conn  *scp.Connection
	Pipe  *transport.Pipe

	pipes *transport.PipePair
}

// TestPairConfig configures a TestPair. Zero values select the package
// and scp defaults, except Timeout which defaults to 50ms to keep tests
// fast.
type TestPairConfig struct {
	// Board configures the simulated machine. Conn is ignored.
	Board Config

	// Tries and Timeout configure the connection.
	Tries   int
	Timeout time.Duration

	// BufferSize is the connection's payload size before negotiation.
	BufferSize int

	// LoggerFactory is passed to every component. If nil, logging is
	// disabled.
	LoggerFactory logging.LoggerFactory
}

// NewTestPair creates and starts a connected connection and board.
func NewTestPair(config TestPairConfig) (*TestPair, error) {
	if config.Timeout == 0 {
		config.Timeout = 50 * time.Millisecond
	}

	pipes, err := transport.NewPipePair(transport.DefaultPipeConfig(), config.LoggerFactory)
	if err != nil {
		return nil, err
	}

	boardConfig := config.Board
	boardConfig.Conn = pipes.Board
	if boardConfig.LoggerFactory == nil {
		boardConfig.LoggerFactory = config.LoggerFactory
	}
	b, err := New(boardConfig)
	if err != nil {
		pipes.Close()
		return nil, err
	}

	conn, err := scp.NewConnection(scp.Config{
		Conn:          pipes.Host,
		Tries:         config.Tries,
		Timeout:       config.Timeout,
		BufferSize:    config.BufferSize,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		pipes.Close()
		return nil, err
	}

	if err := b.Start(); err != nil {
		pipes.Close()
		return nil, err
	}

	return &TestPair{
		Board: b,
		Conn:  conn,
		Pipe:  pipes.Pipe,
		pipes: pipes,
	}, nil
}

// Close tears down the connection, the board and the pipe.
func (p *TestPair) Close() error {
	p.Conn.Close()
	p.Board.Close()
	return p.pipes.Close()
}
