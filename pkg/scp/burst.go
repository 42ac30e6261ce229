package scp

import (
	"errors"
	"fmt"
	"time"

	"github.com/backkem/scp/pkg/packet"
	"github.com/backkem/scp/pkg/transport"
)

// inFlight is a request that has been transmitted and awaits a response.
type inFlight struct {
	req *Request

	// datagram is the encoded packet, retransmitted unchanged.
	datagram []byte

	seq uint16

	// sentAt is the time of the latest transmission.
	sentAt time.Time

	// sendCount is the number of transmissions so far.
	// Starts at 1 for initial transmission, incremented on each retry.
	sendCount int
}

// burst is the state of one SendBurst call.
type burst struct {
	c          *Connection
	requests   []Request
	next       int // index of the first unsent request
	windowSize int
	window     map[uint16]*inFlight
	buf        []byte
}

// SendBurst transmits requests keeping at most windowSize of them
// outstanding, and returns once every request has been answered.
//
// All requests are validated before anything is sent. Responses may
// arrive in any order; each request's Callback runs once, on the first
// response carrying its sequence number. A request that goes unanswered is
// retransmitted after the connection timeout plus its ExtraTimeout, up to
// the configured number of tries.
//
// The burst stops at the first failure: a *ProtocolError when the board
// returns an error result code, a *TimeoutError when a request exhausts
// its tries, or the error returned by a Callback. Requests still
// outstanding at that point are abandoned.
func (c *Connection) SendBurst(windowSize int, requests []Request) error {
	if windowSize < 1 {
		return ErrInvalidWindow
	}
	for i := range requests {
		if err := requests[i].validate(); err != nil {
			return fmt.Errorf("request %d: %w", i, err)
		}
	}
	if len(requests) == 0 {
		return nil
	}

	// Never hold more requests than there are sequence numbers.
	if span := c.seq.Span(); windowSize > span {
		windowSize = span
	}

	b := &burst{
		c:          c,
		requests:   requests,
		windowSize: windowSize,
		window:     make(map[uint16]*inFlight, windowSize),
		buf:        make([]byte, ReceiveLength(c.BufferSize())),
	}
	return b.run()
}

// run is the burst event loop: fill the window, wait for one datagram,
// handle it, retransmit what expired.
func (b *burst) run() error {
	for b.next < len(b.requests) || len(b.window) > 0 {
		if err := b.fill(); err != nil {
			return err
		}

		n, err := b.c.conn.Recv(b.buf, b.wait(time.Now()))
		switch {
		case err == nil:
			if err := b.handle(b.buf[:n]); err != nil {
				return err
			}
		case errors.Is(err, transport.ErrNoData):
			// Nothing arrived before the earliest deadline.
		default:
			return err
		}

		if err := b.expire(time.Now()); err != nil {
			return err
		}
	}
	return nil
}

// fill transmits unsent requests until the window is full.
func (b *burst) fill() error {
	for b.next < len(b.requests) && len(b.window) < b.windowSize {
		req := &b.requests[b.next]

		seq := b.c.seq.NextFree(func(v uint16) bool {
			_, busy := b.window[v]
			return busy
		})

		datagram, err := req.encode(seq)
		if err != nil {
			return err
		}

		if b.c.log != nil {
			b.c.log.Debugf("send %s seq=%d to %s (%d bytes)", req.Command, seq, req.Target, len(datagram))
		}
		if err := b.c.conn.Send(datagram); err != nil {
			return err
		}

		b.window[seq] = &inFlight{
			req:       req,
			datagram:  datagram,
			seq:       seq,
			sentAt:    time.Now(),
			sendCount: 1,
		}
		b.next++
	}
	return nil
}

// wait returns how long to block for a datagram: until the earliest
// outstanding request expires.
func (b *burst) wait(now time.Time) time.Duration {
	var earliest time.Time
	for _, f := range b.window {
		d := f.sentAt.Add(b.c.timeout + f.req.ExtraTimeout)
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	if wait := earliest.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// handle processes one received datagram.
func (b *burst) handle(data []byte) error {
	code, seq, err := packet.PeekCommandHeader(data)
	if err != nil {
		if b.c.log != nil {
			b.c.log.Debugf("discarding %d byte datagram: %v", len(data), err)
		}
		return nil
	}

	if kind, ok := LookupError(code); ok {
		perr := &ProtocolError{Code: ResultCode(code), Seq: seq, Kind: kind}
		if f, ok := b.window[seq]; ok {
			perr.Command = f.req.Command
			perr.Matched = true
		}
		return perr
	}

	f, ok := b.window[seq]
	if !ok {
		// A late duplicate of something already answered, or stray traffic.
		if b.c.log != nil {
			b.c.log.Debugf("discarding response with unknown seq=%d", seq)
		}
		return nil
	}

	resp, err := packet.DecodeCommandPacket(data, f.req.ExpectedArgs)
	if err != nil {
		if b.c.log != nil {
			b.c.log.Debugf("discarding seq=%d: %v", seq, err)
		}
		return nil
	}

	delete(b.window, seq)

	if b.c.log != nil {
		b.c.log.Debugf("recv seq=%d result=%s after %d tries", seq, ResultCode(code), f.sendCount)
	}

	if f.req.Callback != nil {
		if err := f.req.Callback(resp); err != nil {
			return err
		}
	}
	return nil
}

// expire retransmits every request whose deadline passed, failing the
// burst if one has already been sent the maximum number of times.
func (b *burst) expire(now time.Time) error {
	for seq, f := range b.window {
		if now.Sub(f.sentAt) <= b.c.timeout+f.req.ExtraTimeout {
			continue
		}

		if f.sendCount >= b.c.tries {
			if b.c.log != nil {
				b.c.log.Warnf("%s seq=%d to %s timed out after %d tries", f.req.Command, seq, f.req.Target, f.sendCount)
			}
			return &TimeoutError{Tries: f.sendCount, Seq: seq, Command: f.req.Command}
		}

		if b.c.log != nil {
			b.c.log.Warnf("retransmitting %s seq=%d (try %d of %d)", f.req.Command, seq, f.sendCount+1, b.c.tries)
		}
		if err := b.c.conn.Send(f.datagram); err != nil {
			return err
		}
		f.sendCount++
		f.sentAt = now
	}
	return nil
}
