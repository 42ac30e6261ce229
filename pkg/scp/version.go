package scp

import (
	"bytes"
	"fmt"
	"time"

	"github.com/backkem/scp/pkg/packet"
)

// Version is a software version number in hundredths: 133 is "1.33".
type Version uint16

// Major returns the integer part of the version.
func (v Version) Major() int { return int(v) / 100 }

// Minor returns the fractional part of the version, in hundredths.
func (v Version) Minor() int { return int(v) % 100 }

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%02d", v.Major(), v.Minor())
}

// CoreInfo is the decoded response to CmdSver.
type CoreInfo struct {
	// X, Y is the chip's position in the machine, as seen by the core.
	X, Y uint8

	// PhysicalCore and VirtualCore identify the responding core.
	PhysicalCore uint8
	VirtualCore  uint8

	// Version is the monitor software version.
	Version Version

	// BufferSize is the largest SCP payload the core accepts.
	BufferSize int

	// BuildDate is when the monitor software was built.
	BuildDate time.Time

	// VersionString is the monitor's free-form identification.
	VersionString string
}

// DecodeCoreInfo decodes a CmdSver response. The packet must carry three
// arguments.
func DecodeCoreInfo(p packet.CommandPacket) (CoreInfo, error) {
	if len(p.Args) < 3 {
		return CoreInfo{}, fmt.Errorf("%w: sver carried %d arguments", ErrShortResponse, len(p.Args))
	}
	arg1, arg2, arg3 := p.Args[0], p.Args[1], p.Args[2]

	p2p := uint16(arg1 >> 16)
	return CoreInfo{
		X:             uint8(p2p >> 8),
		Y:             uint8(p2p),
		PhysicalCore:  uint8(arg1 >> 8),
		VirtualCore:   uint8(arg1),
		Version:       Version(arg2 >> 16),
		BufferSize:    int(arg2 & 0xffff),
		BuildDate:     time.Unix(int64(arg3), 0).UTC(),
		VersionString: string(bytes.TrimRight(p.Data, "\x00")),
	}, nil
}

// Encode returns the (arg1, arg2, arg3) and payload of a CmdSver response
// describing info.
func (info CoreInfo) Encode() (args []uint32, data []byte) {
	arg1 := uint32(info.X)<<24 | uint32(info.Y)<<16 | uint32(info.PhysicalCore)<<8 | uint32(info.VirtualCore)
	arg2 := uint32(info.Version)<<16 | uint32(info.BufferSize&0xffff)
	arg3 := uint32(info.BuildDate.Unix())
	return []uint32{arg1, arg2, arg3}, append([]byte(info.VersionString), 0)
}

// SoftwareVersion queries the monitor software running on target.
func (c *Connection) SoftwareVersion(target Core) (CoreInfo, error) {
	resp, err := c.Send(Request{
		Target:       target,
		Command:      CmdSver,
		ExpectedArgs: 3,
	})
	if err != nil {
		return CoreInfo{}, err
	}
	return DecodeCoreInfo(resp)
}

// DataLength returns the board's SCP payload size, querying the monitor
// on chip (0, 0) the first time and caching the answer. Later reads and
// writes chunk by this size. A reported size above MaxBufferSize is
// clamped.
func (c *Connection) DataLength() (int, error) {
	if c.dataLength > 0 {
		return c.dataLength, nil
	}

	info, err := c.SoftwareVersion(Core{})
	if err != nil {
		return 0, err
	}
	if info.BufferSize <= 0 {
		return 0, fmt.Errorf("%w: sver reported buffer size %d", ErrShortResponse, info.BufferSize)
	}

	if c.log != nil {
		c.log.Infof("board reports %s (%s), buffer size %d", info.Version, info.VersionString, info.BufferSize)
	}
	c.dataLength = info.BufferSize
	if c.dataLength > MaxBufferSize {
		if c.log != nil {
			c.log.Warnf("clamping buffer size %d to %d", c.dataLength, MaxBufferSize)
		}
		c.dataLength = MaxBufferSize
	}
	return c.dataLength, nil
}

// SetDataLength seeds the cached payload size, skipping the sver query.
// Zero clears the cache.
func (c *Connection) SetDataLength(n int) error {
	if n < 0 || n > MaxBufferSize {
		return fmt.Errorf("%w: data length %d (max %d)", ErrInvalidConfig, n, MaxBufferSize)
	}
	c.dataLength = n
	return nil
}
