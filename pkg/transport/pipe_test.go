package transport

import (
	"bytes"
	"errors"
	"net"
	"os"
	"testing"
	"time"
)

// readAsync reads one datagram from conn on a goroutine.
func readAsync(conn net.PacketConn) <-chan []byte {
	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 100)
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			close(done)
			return
		}
		done <- buf[:n]
	}()
	return done
}

// TestPipe_AutoProcess verifies that messages flow automatically by default.
func TestPipe_AutoProcess(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	if !p.AutoProcess() {
		t.Fatal("AutoProcess should be true by default")
	}

	conn0 := p.PacketConn(0, SCPPort)
	conn1 := p.PacketConn(1, SCPPort)

	testData := []byte("auto-delivered datagram")
	done := readAsync(conn1)

	if _, err := conn0.WriteTo(testData, conn0.PeerAddr()); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	select {
	case got := <-done:
		if !bytes.Equal(got, testData) {
			t.Errorf("ReadFrom() = %q, want %q", got, testData)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout - auto-process may not be working")
	}
}

// TestPipe_ManualProcess verifies that manual processing works when auto-process is disabled.
func TestPipe_ManualProcess(t *testing.T) {
	p := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer p.Close()

	if p.AutoProcess() {
		t.Fatal("AutoProcess should be false")
	}

	conn0 := p.PacketConn(0, SCPPort)
	conn1 := p.PacketConn(1, SCPPort)

	done := readAsync(conn1)
	conn0.WriteTo([]byte("manual"), nil)

	select {
	case <-done:
		t.Fatal("datagram delivered without Process() - auto-process may be on")
	case <-time.After(50 * time.Millisecond):
	}

	if n := p.Process(); n == 0 {
		t.Error("Process() delivered nothing")
	}

	select {
	case got := <-done:
		if string(got) != "manual" {
			t.Errorf("ReadFrom() = %q, want %q", got, "manual")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout after Process()")
	}
}

func TestPipe_SetAutoProcess(t *testing.T) {
	p := NewPipeWithConfig(PipeConfig{AutoProcess: false})
	defer p.Close()

	p.SetAutoProcess(true)
	if !p.AutoProcess() {
		t.Error("SetAutoProcess(true) did not enable auto-process")
	}
	p.SetAutoProcess(false)
	if p.AutoProcess() {
		t.Error("SetAutoProcess(false) did not disable auto-process")
	}
}

func TestPipePacketConn_Addrs(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	conn0 := p.PacketConn(0, SCPPort)
	conn1 := p.PacketConn(1, SCPPort)

	if got, want := conn0.LocalAddr(), (PipeAddr{ID: 0, Port: SCPPort}); got != want {
		t.Errorf("conn0.LocalAddr() = %v, want %v", got, want)
	}
	if got, want := conn0.PeerAddr(), conn1.LocalAddr(); got != want {
		t.Errorf("conn0.PeerAddr() = %v, want %v", got, want)
	}
	if got := conn1.LocalAddr().Network(); got != "pipe" {
		t.Errorf("Network() = %q, want %q", got, "pipe")
	}
}

func TestPipeAddr_String(t *testing.T) {
	addr := PipeAddr{ID: 1, Port: SCPPort}
	if got, want := addr.String(), "pipe:1:17893"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestNetworkCondition_DropRate(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	p.SetCondition(NetworkCondition{DropRate: 1.0})

	conn0 := p.PacketConn(0, SCPPort)
	conn1 := p.PacketConn(1, SCPPort)

	done := readAsync(conn1)

	testData := []byte("dropped datagram")
	n, err := conn0.WriteTo(testData, nil)
	if err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if n != len(testData) {
		t.Errorf("WriteTo() = %d, want %d", n, len(testData))
	}

	select {
	case got, ok := <-done:
		if ok {
			t.Errorf("received %q despite 100%% drop rate", got)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNetworkCondition_Delay(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	delay := 50 * time.Millisecond
	p.SetCondition(NetworkCondition{DelayMin: delay, DelayMax: delay})
	if got := p.Condition().DelayMin; got != delay {
		t.Errorf("Condition().DelayMin = %v, want %v", got, delay)
	}

	conn0 := p.PacketConn(0, SCPPort)
	conn1 := p.PacketConn(1, SCPPort)
	done := readAsync(conn1)

	// The delay happens in WriteTo.
	start := time.Now()
	conn0.WriteTo([]byte("delayed"), nil)
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("elapsed %v, want at least %v", elapsed, delay)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("datagram should arrive after delay")
	}
}

func TestNetworkCondition_Duplicate(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	p.SetCondition(NetworkCondition{DuplicateRate: 1.0})

	conn0 := p.PacketConn(0, SCPPort)
	conn1 := p.PacketConn(1, SCPPort)

	conn0.WriteTo([]byte("twice"), nil)

	for i := 0; i < 2; i++ {
		select {
		case got := <-readAsync(conn1):
			if string(got) != "twice" {
				t.Errorf("copy %d = %q, want %q", i, got, "twice")
			}
		case <-time.After(200 * time.Millisecond):
			t.Fatalf("copy %d not delivered", i)
		}
	}
}

func TestPipe_Close(t *testing.T) {
	p := NewPipe()
	conn0 := p.PacketConn(0, SCPPort)

	if err := conn0.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	// Closing again through the pipe is a no-op.
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

// readErr runs ReadFrom on a goroutine and reports its error.
func readErr(conn net.PacketConn) <-chan error {
	done := make(chan error, 1)
	go func() {
		_, _, err := conn.ReadFrom(make([]byte, 16))
		done <- err
	}()
	return done
}

func TestPipe_CloseUnblocksReaders(t *testing.T) {
	p := NewPipe()
	conn0 := p.PacketConn(0, SCPPort)
	conn1 := p.PacketConn(1, SCPPort)

	done0, done1 := readErr(conn0), readErr(conn1)
	time.Sleep(10 * time.Millisecond)

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for i, done := range []<-chan error{done0, done1} {
		select {
		case err := <-done:
			if !errors.Is(err, net.ErrClosed) {
				t.Errorf("conn%d ReadFrom() error = %v, want %v", i, err, net.ErrClosed)
			}
		case <-time.After(time.Second):
			t.Fatalf("conn%d ReadFrom() still blocked after Close", i)
		}
	}
}

func TestPipePacketConn_ReadDeadline(t *testing.T) {
	p := NewPipe()
	defer p.Close()
	conn := p.PacketConn(1, SCPPort)

	// An expired deadline fails immediately.
	conn.SetReadDeadline(time.Now().Add(-time.Second))
	if _, _, err := conn.ReadFrom(make([]byte, 16)); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("ReadFrom() error = %v, want %v", err, os.ErrDeadlineExceeded)
	}

	// A future deadline expires while blocked.
	conn.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	start := time.Now()
	if _, _, err := conn.ReadFrom(make([]byte, 16)); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("ReadFrom() error = %v, want %v", err, os.ErrDeadlineExceeded)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("ReadFrom() returned after %v, want about 20ms", elapsed)
	}

	// Moving the deadline to now wakes a blocked reader.
	conn.SetReadDeadline(time.Time{})
	done := readErr(conn)
	time.Sleep(10 * time.Millisecond)
	conn.SetReadDeadline(time.Now())
	select {
	case err := <-done:
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			t.Errorf("ReadFrom() error = %v, want %v", err, os.ErrDeadlineExceeded)
		}
	case <-time.After(time.Second):
		t.Fatal("SetReadDeadline() did not wake the reader")
	}
}

func TestPipePacketConn_LargeDatagram(t *testing.T) {
	p := NewPipe()
	defer p.Close()
	conn0 := p.PacketConn(0, SCPPort)
	conn1 := p.PacketConn(1, SCPPort)

	data := make([]byte, 9000)
	for i := range data {
		data[i] = byte(i)
	}
	if _, err := conn0.WriteTo(data, conn0.PeerAddr()); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	conn1.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, MaxDatagramSize)
	n, _, err := conn1.ReadFrom(buf)
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	if !bytes.Equal(buf[:n], data) {
		t.Errorf("ReadFrom() returned %d bytes, want %d", n, len(data))
	}
}

func TestPipePair(t *testing.T) {
	pair, err := NewPipePair(DefaultPipeConfig(), nil)
	if err != nil {
		t.Fatalf("NewPipePair() error = %v", err)
	}
	defer pair.Close()

	// Host to board: the board sees the pad.
	if err := pair.Host.Send([]byte{0xaa, 0xbb}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case got := <-readAsync(pair.Board):
		if want := []byte{0, 0, 0xaa, 0xbb}; !bytes.Equal(got, want) {
			t.Errorf("board received %x, want %x", got, want)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("board did not receive datagram")
	}

	// Board to host: the host strips the pad.
	if _, err := pair.Board.WriteTo([]byte{0, 0, 0xcc}, pair.Board.PeerAddr()); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	buf := make([]byte, 16)
	n, err := pair.Host.Recv(buf, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if !bytes.Equal(buf[:n], []byte{0xcc}) {
		t.Errorf("Recv() = %x, want cc", buf[:n])
	}
}
