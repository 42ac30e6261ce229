package board

import (
	"github.com/backkem/scp/pkg/packet"
	"github.com/backkem/scp/pkg/scp"
)

// Reply builds a response to req from the core it addressed, carrying
// code and req's sequence number.
func Reply(req packet.CommandPacket, code scp.ResultCode, args []uint32, data []byte) packet.CommandPacket {
	return packet.CommandPacket{
		Header: packet.Header{
			ReplyExpected: false,
			Tag:           req.Tag,
			DestPort:      req.SrcPort,
			DestCore:      req.SrcCore,
			SrcPort:       req.DestPort,
			SrcCore:       req.DestCore,
			DestX:         req.SrcX,
			DestY:         req.SrcY,
			SrcX:          req.DestX,
			SrcY:          req.DestY,
		},
		Code: uint16(code),
		Seq:  req.Seq,
		Args: args,
		Data: data,
	}
}

// handle answers one request with the built-in command set.
func (b *Board) handle(req packet.CommandPacket) packet.CommandPacket {
	if int(req.DestX) >= b.config.Width || int(req.DestY) >= b.config.Height {
		return b.reject(req, scp.ResultNoRoute)
	}
	if req.DestCore == packet.CoreAny || int(req.DestCore) >= b.config.Cores {
		return b.reject(req, scp.ResultBadCore)
	}

	switch scp.Command(req.Code) {
	case scp.CmdSver:
		return b.handleSver(req)
	case scp.CmdRead:
		return b.handleRead(req)
	case scp.CmdWrite:
		return b.handleWrite(req)
	default:
		return b.reject(req, scp.ResultBadCommand)
	}
}

func (b *Board) reject(req packet.CommandPacket, code scp.ResultCode) packet.CommandPacket {
	if b.log != nil {
		b.log.Debugf("rejecting %s seq=%d to (%d, %d, %d): %s",
			scp.Command(req.Code), req.Seq, req.DestX, req.DestY, req.DestCore, code)
	}
	return Reply(req, code, nil, nil)
}

func (b *Board) handleSver(req packet.CommandPacket) packet.CommandPacket {
	info := scp.CoreInfo{
		X:             req.DestX,
		Y:             req.DestY,
		PhysicalCore:  req.DestCore,
		VirtualCore:   req.DestCore,
		Version:       b.config.Version,
		BufferSize:    b.config.BufferSize,
		BuildDate:     b.config.BuildDate,
		VersionString: b.config.VersionString,
	}
	args, data := info.Encode()
	return Reply(req, scp.ResultOK, args, data)
}

// memoryArgs checks the (address, length, granularity) arguments of a
// read or write.
func (b *Board) memoryArgs(req packet.CommandPacket) (address uint32, length int, code scp.ResultCode) {
	if len(req.Args) < 3 {
		return 0, 0, scp.ResultBadLength
	}
	address, length = req.Args[0], int(req.Args[1])
	g := scp.Granularity(req.Args[2])

	if length > b.config.BufferSize {
		return 0, 0, scp.ResultBadArgs
	}
	if !g.IsValid() || address%uint32(g.Size()) != 0 || length%g.Size() != 0 {
		return 0, 0, scp.ResultBadArgs
	}
	return address, length, scp.ResultOK
}

func (b *Board) handleRead(req packet.CommandPacket) packet.CommandPacket {
	address, length, code := b.memoryArgs(req)
	if code != scp.ResultOK {
		return b.reject(req, code)
	}

	data := make([]byte, length)
	b.Memory(req.DestX, req.DestY).Read(address, data)
	return Reply(req, scp.ResultOK, nil, data)
}

func (b *Board) handleWrite(req packet.CommandPacket) packet.CommandPacket {
	if len(req.Data) > b.config.BufferSize {
		return b.reject(req, scp.ResultBadLength)
	}
	address, length, code := b.memoryArgs(req)
	if code != scp.ResultOK {
		return b.reject(req, code)
	}
	if len(req.Data) != length {
		return b.reject(req, scp.ResultBadLength)
	}

	b.Memory(req.DestX, req.DestY).Write(address, req.Data)
	return Reply(req, scp.ResultOK, nil, nil)
}
