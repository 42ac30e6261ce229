package scp

import (
	"sync"
	"testing"
	"time"

	"github.com/backkem/scp/pkg/packet"
	"github.com/backkem/scp/pkg/transport"
)

// responder scripts the board side of a test: it receives every decoded
// request and returns the packets to send back.
type responder func(req packet.CommandPacket) []packet.CommandPacket

// fakeBoard serves the board end of a pipe with a responder.
type fakeBoard struct {
	conn    *transport.PipePacketConn
	respond responder

	mu       sync.Mutex
	requests []packet.CommandPacket
	raw      [][]byte // extra datagrams sent verbatim before the next replies
}

func (f *fakeBoard) serve() {
	buf := make([]byte, transport.MaxDatagramSize)
	for {
		n, addr, err := f.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		data, err := transport.StripPad(buf[:n])
		if err != nil {
			continue
		}
		req, err := packet.DecodeCommandPacket(data, packet.MaxArgs)
		if err != nil {
			continue
		}

		f.mu.Lock()
		f.requests = append(f.requests, req)
		raw := f.raw
		f.raw = nil
		f.mu.Unlock()

		for _, d := range raw {
			f.conn.WriteTo(transport.AddPad(d), addr)
		}
		for _, reply := range f.respond(req) {
			f.conn.WriteTo(transport.AddPad(reply.Encode()), addr)
		}
	}
}

// Requests returns a copy of every request received so far.
func (f *fakeBoard) Requests() []packet.CommandPacket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]packet.CommandPacket(nil), f.requests...)
}

// inject queues datagrams to be sent ahead of the replies to the next request.
func (f *fakeBoard) inject(datagrams ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw = append(f.raw, datagrams...)
}

// newTestConnection returns a Connection talking to a fakeBoard.
func newTestConnection(t *testing.T, config Config, respond responder) (*Connection, *fakeBoard, *transport.Pipe) {
	t.Helper()

	pair, err := transport.NewPipePair(transport.DefaultPipeConfig(), nil)
	if err != nil {
		t.Fatalf("NewPipePair() error = %v", err)
	}
	t.Cleanup(func() { pair.Close() })

	config.Conn = pair.Host
	if config.Timeout == 0 {
		config.Timeout = 50 * time.Millisecond
	}
	c, err := NewConnection(config)
	if err != nil {
		t.Fatalf("NewConnection() error = %v", err)
	}

	board := &fakeBoard{conn: pair.Board, respond: respond}
	go board.serve()

	return c, board, pair.Pipe
}

// reply builds a response to req.
func reply(req packet.CommandPacket, code ResultCode, args []uint32, data []byte) packet.CommandPacket {
	return packet.CommandPacket{
		Header: packet.Header{
			Tag:      req.Tag,
			DestPort: req.SrcPort,
			DestCore: req.SrcCore,
			SrcPort:  req.DestPort,
			SrcCore:  req.DestCore,
			DestX:    req.SrcX,
			DestY:    req.SrcY,
			SrcX:     req.DestX,
			SrcY:     req.DestY,
		},
		Code: uint16(code),
		Seq:  req.Seq,
		Args: args,
		Data: data,
	}
}

// echo answers every request with OK and its own arguments.
func echo(req packet.CommandPacket) []packet.CommandPacket {
	return []packet.CommandPacket{reply(req, ResultOK, req.Args, req.Data)}
}

// silent never answers.
func silent(packet.CommandPacket) []packet.CommandPacket {
	return nil
}
