// scpctl sends SCP commands to a SpiNNaker board.
//
// Usage:
//
//	scpctl [options] <command> [args]
//
// Commands:
//
//	sver  [x y p]                 query the monitor software version
//	read  <x> <y> <p> <addr> <n>  read n bytes and print a hex dump
//	write <x> <y> <p> <addr> <hex> write hex-encoded bytes
//
// Options:
//
//	-host    board hostname or IP address
//	-port    SCP port (default: 17893)
//	-tries   transmissions per request (default: 5)
//	-timeout response timeout (default: 500ms)
//	-buffer  SCP payload size, 0 to ask the board (default: 0)
//	-window  outstanding requests (default: 8)
//	-config  TOML file with the same settings
//	-v       debug logging
//
// Example:
//
//	scpctl -host 192.168.240.253 read 0 0 0 0x60000000 64
package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/backkem/scp/examples/common"
	"github.com/backkem/scp/pkg/scp"
)

const commands = "sver [x y p] | read <x> <y> <p> <addr> <n> | write <x> <y> <p> <addr> <hex>"

func main() {
	opts, args, err := common.ParseFlags()
	if err != nil {
		common.PrintUsage(commands)
		log.Fatal(err)
	}
	if len(args) == 0 {
		common.PrintUsage(commands)
		os.Exit(2)
	}

	conn, err := common.Connect(opts)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if err := run(conn, opts.Window, args); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func run(conn *scp.Connection, window int, args []string) error {
	switch args[0] {
	case "sver":
		var core scp.Core
		if len(args) > 1 {
			c, _, err := parseCore(args[1:])
			if err != nil {
				return err
			}
			core = c
		}
		info, err := conn.SoftwareVersion(core)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s at (%d, %d, %d), buffer %d bytes, built %s\n",
			info.VersionString, info.Version, info.X, info.Y, info.PhysicalCore,
			info.BufferSize, info.BuildDate.Format("2006-01-02 15:04:05"))
		return nil

	case "read":
		core, rest, err := parseCore(args[1:])
		if err != nil {
			return err
		}
		if len(rest) != 2 {
			return fmt.Errorf("want <addr> <n>")
		}
		addr, err := parseAddress(rest[0])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("length %q: %w", rest[1], err)
		}
		data, err := conn.Read(core, addr, n, window)
		if err != nil {
			return err
		}
		fmt.Print(hex.Dump(data))
		return nil

	case "write":
		core, rest, err := parseCore(args[1:])
		if err != nil {
			return err
		}
		if len(rest) != 2 {
			return fmt.Errorf("want <addr> <hex>")
		}
		addr, err := parseAddress(rest[0])
		if err != nil {
			return err
		}
		data, err := hex.DecodeString(strings.TrimPrefix(rest[1], "0x"))
		if err != nil {
			return fmt.Errorf("data: %w", err)
		}
		if err := conn.Write(core, addr, data, window); err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes at %#08x\n", len(data), addr)
		return nil
	}
	return fmt.Errorf("unknown command")
}

// parseCore reads "x y p" from the front of args.
func parseCore(args []string) (scp.Core, []string, error) {
	if len(args) < 3 {
		return scp.Core{}, nil, fmt.Errorf("want <x> <y> <p>")
	}
	var v [3]uint8
	for i, name := range []string{"x", "y", "p"} {
		n, err := strconv.ParseUint(args[i], 0, 8)
		if err != nil {
			return scp.Core{}, nil, fmt.Errorf("%s %q: %w", name, args[i], err)
		}
		v[i] = uint8(n)
	}
	return scp.Core{X: v[0], Y: v[1], P: v[2]}, args[3:], nil
}

func parseAddress(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("address %q: %w", s, err)
	}
	return uint32(n), nil
}
