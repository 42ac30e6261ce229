package scp

import (
	"github.com/backkem/scp/pkg/packet"
	"github.com/backkem/scp/pkg/transport"
)

// FramingOverhead is the number of bytes a datagram may carry on top of
// its payload: the pad, the link and command headers, and three arguments.
const FramingOverhead = transport.PadSize + packet.MaxHeaderSize

// MaxBufferSize is the largest payload size whose datagrams fit in
// transport.MaxDatagramSize.
const MaxBufferSize = transport.MaxDatagramSize - FramingOverhead

// ReceiveLength returns the receive buffer size for a payload size: the
// smallest power of two not below bufferSize plus FramingOverhead.
func ReceiveLength(bufferSize int) int {
	need := bufferSize + FramingOverhead
	n := 1
	for n < need {
		n <<= 1
	}
	return n
}
