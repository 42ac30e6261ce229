// Package scp implements the SpiNNaker Command Protocol engine: windowed,
// sequence-numbered and retried request/response exchange with a single
// board over UDP, and chunked memory access built on top of it.
//
// A Connection is owned by one goroutine. Send, SendBurst, Read and Write
// must not be called concurrently on the same Connection.
package scp

import "fmt"

// Command is an SCP command code.
type Command uint16

// Command codes understood by SC&MP.
const (
	CmdSver      Command = 0  // Get the software version
	CmdRead      Command = 2  // Read memory
	CmdWrite     Command = 3  // Write memory
	CmdLED       Command = 25 // Change the state of an LED
	CmdIPTag     Command = 26 // Get, set or clear an IPTag
	CmdAllocFree Command = 28 // Allocate or free SDRAM and routing table entries
)

// String returns a human-readable name for the command.
func (c Command) String() string {
	switch c {
	case CmdSver:
		return "Sver"
	case CmdRead:
		return "Read"
	case CmdWrite:
		return "Write"
	case CmdLED:
		return "LED"
	case CmdIPTag:
		return "IPTag"
	case CmdAllocFree:
		return "AllocFree"
	default:
		return fmt.Sprintf("Command(%d)", uint16(c))
	}
}

// ResultCode is the code carried by a response in place of the command.
type ResultCode uint16

// Result codes.
const (
	ResultOK          ResultCode = 0x80
	ResultBadLength   ResultCode = 0x81
	ResultBadChecksum ResultCode = 0x82
	ResultBadCommand  ResultCode = 0x83
	ResultBadArgs     ResultCode = 0x84
	ResultBadPort     ResultCode = 0x85
	ResultNoRoute     ResultCode = 0x87
	ResultBadCore     ResultCode = 0x88
)

// String returns a human-readable name for the result code.
func (r ResultCode) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultBadLength:
		return "BadLength"
	case ResultBadChecksum:
		return "BadChecksum"
	case ResultBadCommand:
		return "BadCommand"
	case ResultBadArgs:
		return "BadArgs"
	case ResultBadPort:
		return "BadPort"
	case ResultNoRoute:
		return "NoRoute"
	case ResultBadCore:
		return "BadCore"
	default:
		return fmt.Sprintf("ResultCode(%#x)", uint16(r))
	}
}

// Granularity is the access width of a memory read or write, carried as
// the third argument of CmdRead and CmdWrite.
type Granularity uint32

const (
	GranularityByte  Granularity = 0
	GranularityShort Granularity = 1
	GranularityWord  Granularity = 2
)

// Size returns the access width in bytes.
func (g Granularity) Size() int {
	switch g {
	case GranularityShort:
		return 2
	case GranularityWord:
		return 4
	default:
		return 1
	}
}

// String returns a human-readable name for the granularity.
func (g Granularity) String() string {
	switch g {
	case GranularityByte:
		return "Byte"
	case GranularityShort:
		return "Short"
	case GranularityWord:
		return "Word"
	default:
		return "Unknown"
	}
}

// IsValid returns true if g is a defined granularity.
func (g Granularity) IsValid() bool {
	return g <= GranularityWord
}
