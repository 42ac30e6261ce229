// Package integration runs scp connections against a simulated board over
// real loopback UDP sockets.
package integration

import (
	"net"
	"testing"
	"time"

	"github.com/backkem/scp/pkg/board"
	"github.com/backkem/scp/pkg/scp"
	"github.com/pion/logging"
)

// UDPPair is a board served on a loopback UDP socket and a connection
// dialled to it by host and port.
type UDPPair struct {
	Board *board.Board
	Conn  *scp.Connection
}

// NewUDPPair starts a board on 127.0.0.1 and connects to it. Both are
// closed when the test ends.
func NewUDPPair(t *testing.T, boardConfig board.Config, config scp.Config) *UDPPair {
	t.Helper()

	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}

	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = logging.LogLevelWarn

	boardConfig.Conn = pc
	if boardConfig.LoggerFactory == nil {
		boardConfig.LoggerFactory = lf
	}
	b, err := board.New(boardConfig)
	if err != nil {
		pc.Close()
		t.Fatalf("board.New() error = %v", err)
	}
	if err := b.Start(); err != nil {
		pc.Close()
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { b.Close() })

	config.Host = "127.0.0.1"
	config.Port = pc.LocalAddr().(*net.UDPAddr).Port
	if config.Timeout == 0 {
		config.Timeout = 200 * time.Millisecond
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = lf
	}
	conn, err := scp.NewConnection(config)
	if err != nil {
		t.Fatalf("NewConnection() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &UDPPair{Board: b, Conn: conn}
}
