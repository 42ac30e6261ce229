package packet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var (
	scpVectorHeader = []byte{0x87, 0xf0, 0xef, 0xee, 0x5a, 0xa5, 0xf0, 0x0f}
	scpVectorFixed  = []byte{0xad, 0xde, 0xef, 0xbe} // code 0xdead, seq 0xbeef
	scpVectorArgs   = []byte{
		0xb7, 0xb7, 0xa5, 0xa5,
		0xfe, 0xca, 0xfe, 0xca,
		0x7b, 0x7b, 0x5a, 0x5a,
	}
	scpVectorData = []byte{0xfe, 0xed, 0xde, 0xaf, 0x01}
)

const (
	vectorArg1 = 0xa5a5b7b7
	vectorArg2 = 0xcafecafe
	vectorArg3 = 0x5a5a7b7b
)

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestDecodeCommandPacketVectors(t *testing.T) {
	full := concat(scpVectorHeader, scpVectorFixed, scpVectorArgs, scpVectorData)

	tests := []struct {
		name         string
		data         []byte
		expectedArgs int
		wantArgs     []uint32
		wantData     []byte
	}{
		{
			name:         "header only",
			data:         concat(scpVectorHeader, scpVectorFixed),
			expectedArgs: 3,
		},
		{
			name:         "three args and payload",
			data:         full,
			expectedArgs: 3,
			wantArgs:     []uint32{vectorArg1, vectorArg2, vectorArg3},
			wantData:     scpVectorData,
		},
		{
			name:         "zero args",
			data:         full,
			expectedArgs: 0,
			wantData:     concat(scpVectorArgs, scpVectorData),
		},
		{
			name:         "one arg",
			data:         full,
			expectedArgs: 1,
			wantArgs:     []uint32{vectorArg1},
			wantData:     concat(scpVectorArgs[4:], scpVectorData),
		},
		{
			name:         "two args",
			data:         full,
			expectedArgs: 2,
			wantArgs:     []uint32{vectorArg1, vectorArg2},
			wantData:     concat(scpVectorArgs[8:], scpVectorData),
		},
		{
			name:         "one arg present of three expected",
			data:         concat(scpVectorHeader, scpVectorFixed, scpVectorArgs[:4]),
			expectedArgs: 3,
			wantArgs:     []uint32{vectorArg1},
		},
		{
			name:         "two args present of three expected",
			data:         concat(scpVectorHeader, scpVectorFixed, scpVectorArgs[:8]),
			expectedArgs: 3,
			wantArgs:     []uint32{vectorArg1, vectorArg2},
		},
		{
			name:         "partial argument is payload",
			data:         concat(scpVectorHeader, scpVectorFixed, scpVectorArgs[:6]),
			expectedArgs: 3,
			wantArgs:     []uint32{vectorArg1},
			wantData:     scpVectorArgs[4:6],
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := DecodeCommandPacket(tc.data, tc.expectedArgs)
			if err != nil {
				t.Fatalf("DecodeCommandPacket() error = %v", err)
			}

			want := CommandPacket{
				Header: vectorHeader(),
				Code:   0xdead,
				Seq:    0xbeef,
				Args:   tc.wantArgs,
				Data:   tc.wantData,
			}
			if diff := cmp.Diff(want, p, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("DecodeCommandPacket() mismatch (-want +got):\n%s", diff)
			}

			// Re-encoding reproduces the original bytes.
			if got := p.Encode(); !bytes.Equal(got, tc.data) {
				t.Errorf("Encode() = %x, want %x", got, tc.data)
			}
		})
	}
}

func TestDecodeCommandPacketErrors(t *testing.T) {
	full := concat(scpVectorHeader, scpVectorFixed)

	tests := []struct {
		name         string
		data         []byte
		expectedArgs int
		wantErr      error
	}{
		{"link header only", scpVectorHeader, 0, ErrPacketTooShort},
		{"truncated command header", full[:10], 0, ErrPacketTooShort},
		{"bad flags", concat([]byte{0x47}, full[1:]), 0, ErrInvalidFlags},
		{"negative args", full, -1, ErrInvalidArgCount},
		{"four args", full, 4, ErrInvalidArgCount},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeCommandPacket(tc.data, tc.expectedArgs)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("DecodeCommandPacket() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCommandPacketRoundtrip(t *testing.T) {
	headers := map[string]Header{
		"zero": {},
		"max": {
			ReplyExpected: true,
			Tag:           255,
			DestPort:      MaxPort,
			DestCore:      MaxCore,
			SrcPort:       MaxPort,
			SrcCore:       CoreAny,
			DestX:         255,
			DestY:         255,
			SrcX:          255,
			SrcY:          255,
		},
	}
	argSets := [][]uint32{
		nil,
		{0},
		{0, 0xffffffff},
		{0xffffffff, 1, 0x80000000},
	}
	payloads := [][]byte{nil, {0x01}, {1, 2, 3, 4}, bytes.Repeat([]byte{0xaa}, 256)}
	codes := []uint16{0, 0xffff}

	for hname, h := range headers {
		for _, args := range argSets {
			for _, data := range payloads {
				for _, code := range codes {
					p, err := NewCommandPacket(h, code, ^code, args, data)
					if err != nil {
						t.Fatalf("NewCommandPacket() error = %v", err)
					}

					decoded, err := DecodeCommandPacket(p.Encode(), len(args))
					if err != nil {
						t.Fatalf("DecodeCommandPacket() error = %v", err)
					}
					if diff := cmp.Diff(p, decoded, cmpopts.EquateEmpty()); diff != "" {
						t.Errorf("%s/%d args/%d bytes: roundtrip mismatch (-want +got):\n%s",
							hname, len(args), len(data), diff)
					}
				}
			}
		}
	}
}

func TestNewCommandPacketValidation(t *testing.T) {
	if _, err := NewCommandPacket(Header{}, 0, 0, []uint32{1, 2, 3, 4}, nil); !errors.Is(err, ErrTooManyArgs) {
		t.Errorf("NewCommandPacket(4 args) error = %v, want %v", err, ErrTooManyArgs)
	}
	if _, err := NewCommandPacket(Header{}, 0, 0, []uint32{1, 2, 3, 4}, nil); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("NewCommandPacket(4 args) error = %v, want ErrOutOfRange family", err)
	}
	if _, err := NewCommandPacket(Header{DestCore: 20}, 0, 0, nil, nil); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("NewCommandPacket(core 20) error = %v, want ErrOutOfRange", err)
	}
}

func TestCommandPacketArg(t *testing.T) {
	p := CommandPacket{Args: []uint32{10, 20}}

	if v, ok := p.Arg(0); !ok || v != 10 {
		t.Errorf("Arg(0) = %d, %v, want 10, true", v, ok)
	}
	if v, ok := p.Arg(1); !ok || v != 20 {
		t.Errorf("Arg(1) = %d, %v, want 20, true", v, ok)
	}
	if _, ok := p.Arg(2); ok {
		t.Error("Arg(2) present, want absent")
	}
	if _, ok := p.Arg(-1); ok {
		t.Error("Arg(-1) present, want absent")
	}
}

func TestPeekCommandHeader(t *testing.T) {
	data := concat(scpVectorHeader, scpVectorFixed, scpVectorArgs)

	code, seq, err := PeekCommandHeader(data)
	if err != nil {
		t.Fatalf("PeekCommandHeader() error = %v", err)
	}
	if code != 0xdead || seq != 0xbeef {
		t.Errorf("PeekCommandHeader() = %#x, %#x, want 0xdead, 0xbeef", code, seq)
	}

	if _, _, err := PeekCommandHeader(data[:11]); !errors.Is(err, ErrPacketTooShort) {
		t.Errorf("PeekCommandHeader(short) error = %v, want %v", err, ErrPacketTooShort)
	}
	if _, _, err := PeekCommandHeader(concat([]byte{0}, data[1:])); !errors.Is(err, ErrInvalidFlags) {
		t.Errorf("PeekCommandHeader(bad flags) error = %v, want %v", err, ErrInvalidFlags)
	}
}
