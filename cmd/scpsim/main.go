// scpsim serves a simulated SpiNNaker board over UDP.
//
// The board answers sver, read and write on every chip and core of its
// geometry, keeping memory for the life of the process.
//
// Usage:
//
//	scpsim [options]
//
// Options:
//
//	-listen  UDP listen address (default: 127.0.0.1:17893)
//	-width   chips in x (default: 1)
//	-height  chips in y (default: 1)
//	-cores   cores per chip (default: 18)
//	-buffer  SCP payload size (default: 256)
//	-v       debug logging
//
// Example:
//
//	scpsim -listen 127.0.0.1:17893 -width 2 -height 2 &
//	scpctl -host 127.0.0.1 sver
package main

import (
	"flag"
	"fmt"
	"log"
	"net"

	"github.com/backkem/scp/examples/common"
	"github.com/backkem/scp/pkg/board"
	"github.com/backkem/scp/pkg/transport"
)

func main() {
	var (
		listen  string
		width   int
		height  int
		cores   int
		buffer  int
		verbose bool
	)
	flag.StringVar(&listen, "listen", fmt.Sprintf("127.0.0.1:%d", transport.SCPPort), "UDP listen address")
	flag.IntVar(&width, "width", 1, "Chips in x")
	flag.IntVar(&height, "height", 1, "Chips in y")
	flag.IntVar(&cores, "cores", board.DefaultCores, "Cores per chip")
	flag.IntVar(&buffer, "buffer", board.DefaultBufferSize, "SCP payload size")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging")
	flag.Parse()

	conn, err := net.ListenPacket("udp", listen)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", listen, err)
	}

	b, err := board.New(board.Config{
		Conn:          conn,
		Width:         width,
		Height:        height,
		Cores:         cores,
		BufferSize:    buffer,
		LoggerFactory: common.NewLoggerFactory(verbose),
	})
	if err != nil {
		conn.Close()
		log.Fatalf("Failed to create board: %v", err)
	}
	if err := b.Start(); err != nil {
		conn.Close()
		log.Fatalf("Failed to start board: %v", err)
	}

	log.Printf("Board %dx%d serving on %s", width, height, b.LocalAddr())
	common.WaitForSignal()

	b.Close()
	log.Printf("Served %d requests", b.Received())
}
