package scp

import (
	"fmt"

	"github.com/backkem/scp/pkg/packet"
)

// Chunk is one read or write command of a larger memory operation.
type Chunk struct {
	// Address is the chunk's start address on the board.
	Address uint32

	// Offset is the chunk's position within the caller's buffer.
	Offset int

	// Length is the number of bytes in the chunk.
	Length int

	// Granularity is the access width used for the chunk.
	Granularity Granularity
}

// GranularityFor returns the widest access that suits both the start
// address and the length of a transfer.
func GranularityFor(address uint32, length int) Granularity {
	switch {
	case address%4 == 0 && length%4 == 0:
		return GranularityWord
	case address%2 == 0 && length%2 == 0:
		return GranularityShort
	default:
		return GranularityByte
	}
}

// PlanChunks splits the range [address, address+length) into consecutive
// chunks of at most bufferSize bytes. It returns nil if length or
// bufferSize is not positive.
func PlanChunks(address uint32, length, bufferSize int) []Chunk {
	if length <= 0 || bufferSize <= 0 {
		return nil
	}

	chunks := make([]Chunk, 0, (length+bufferSize-1)/bufferSize)
	for offset := 0; offset < length; offset += bufferSize {
		n := min(bufferSize, length-offset)
		addr := address + uint32(offset)
		chunks = append(chunks, Chunk{
			Address:     addr,
			Offset:      offset,
			Length:      n,
			Granularity: GranularityFor(addr, n),
		})
	}
	return chunks
}

// Read reads length bytes starting at address from target's memory.
func (c *Connection) Read(target Core, address uint32, length, window int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrInvalidConfig, length)
	}
	buf := make([]byte, length)
	if err := c.ReadInto(target, address, buf, window); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadInto fills buf from target's memory starting at address. On error
// buf may be partially filled. A window of zero selects DefaultWindowSize.
func (c *Connection) ReadInto(target Core, address uint32, buf []byte, window int) error {
	chunks := PlanChunks(address, len(buf), c.BufferSize())
	requests := make([]Request, len(chunks))
	for i, chunk := range chunks {
		dst := buf[chunk.Offset : chunk.Offset+chunk.Length]
		requests[i] = Request{
			Target:  target,
			Command: CmdRead,
			Args:    chunkArgs(chunk),
			Callback: func(p packet.CommandPacket) error {
				if len(p.Data) < len(dst) {
					return fmt.Errorf("%w: read of %d bytes at %#x returned %d",
						ErrShortResponse, len(dst), chunk.Address, len(p.Data))
				}
				copy(dst, p.Data)
				return nil
			},
		}
	}

	if c.log != nil {
		c.log.Debugf("read %d bytes at %#x from %s in %d chunks", len(buf), address, target, len(chunks))
	}
	return c.SendBurst(windowOrDefault(window), requests)
}

// Write writes data to target's memory starting at address. A window of
// zero selects DefaultWindowSize.
func (c *Connection) Write(target Core, address uint32, data []byte, window int) error {
	chunks := PlanChunks(address, len(data), c.BufferSize())
	requests := make([]Request, len(chunks))
	for i, chunk := range chunks {
		requests[i] = Request{
			Target:  target,
			Command: CmdWrite,
			Args:    chunkArgs(chunk),
			Data:    data[chunk.Offset : chunk.Offset+chunk.Length],
		}
	}

	if c.log != nil {
		c.log.Debugf("write %d bytes at %#x to %s in %d chunks", len(data), address, target, len(chunks))
	}
	return c.SendBurst(windowOrDefault(window), requests)
}

// chunkArgs returns the (address, length, granularity) arguments shared by
// CmdRead and CmdWrite.
func chunkArgs(chunk Chunk) []uint32 {
	return []uint32{chunk.Address, uint32(chunk.Length), uint32(chunk.Granularity)}
}

func windowOrDefault(window int) int {
	if window == 0 {
		return DefaultWindowSize
	}
	return window
}
