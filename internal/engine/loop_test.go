package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/latticekv/lattice/internal/telemetry/logger"
	"github.com/latticekv/lattice/internal/wire"
)

// startEngine boots an engine on an ephemeral port and tears it down with
// the test.
func startEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	cfg.Addr = ":0"

	e := New(cfg, logger.Nop(), nil)
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	go func() { _ = e.Run() }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return e
}

func dialEngine(t *testing.T, e *Engine) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", e.Port()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// do sends one command and reads one response over conn.
func do(t *testing.T, conn net.Conn, cmd ...string) *wire.Response {
	t.Helper()

	buf := wire.NewBuffer()
	if err := wire.NewRequest(cmd...).Marshal(buf); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := conn.Write(buf.Data()); err != nil {
		t.Fatalf("write: %v", err)
	}
	return readResponse(t, conn)
}

func readResponse(t *testing.T, conn net.Conn) *wire.Response {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	// Read exactly one frame, so the bytes of later pipelined responses
	// stay in the socket for the next call.
	frame := make([]byte, wire.RequestHeaderLen)
	if _, err := io.ReadFull(conn, frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	payload := binary.LittleEndian.Uint32(frame)
	frame = append(frame, make([]byte, payload)...)
	if _, err := io.ReadFull(conn, frame[wire.RequestHeaderLen:]); err != nil {
		t.Fatalf("read: %v", err)
	}

	resp, _, err := wire.UnmarshalResponse(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

// ============================================================
// End-to-end scenarios
// ============================================================

func TestEngine_EndToEnd(t *testing.T) {
	e := startEngine(t, DefaultConfig())
	conn := dialEngine(t, e)

	steps := []struct {
		cmd  []string
		want string
	}{
		{[]string{"set", "name", "tyler"}, "(string) OK"},
		{[]string{"get", "name"}, "(string) tyler"},
		{[]string{"del", "name"}, "(integer) 1"},
		{[]string{"get", "name"}, "(nil)"},
		{[]string{"zadd", "myset", "10", "tyler"}, "(integer) 1"},
		{[]string{"zadd", "myset", "20", "tyler"}, "(integer) 1"},
		{[]string{"zscore", "myset", "tyler"}, "(string) 20.000000"},
		{[]string{"foo", "bar", "baz"}, "(error) unknown command"},
	}

	for _, s := range steps {
		if got := do(t, conn, s.cmd...); got.String() != s.want {
			t.Errorf("%v = %q, want %q", s.cmd, got.String(), s.want)
		}
	}
}

func TestEngine_PipeliningPreservesOrder(t *testing.T) {
	e := startEngine(t, DefaultConfig())
	conn := dialEngine(t, e)

	buf := wire.NewBuffer()
	for i := 0; i < 10; i++ {
		if err := wire.NewRequest("set", fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i)).Marshal(buf); err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if err := wire.NewRequest("get", fmt.Sprintf("k%d", i)).Marshal(buf); err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	if _, err := conn.Write(buf.Data()); err != nil {
		t.Fatalf("write: %v", err)
	}

	for i := 0; i < 10; i++ {
		if got := readResponse(t, conn); got.String() != "(string) OK" {
			t.Fatalf("set %d = %q, want OK", i, got.String())
		}
		want := fmt.Sprintf("(string) v%d", i)
		if got := readResponse(t, conn); got.String() != want {
			t.Fatalf("get %d = %q, want %q", i, got.String(), want)
		}
	}
}

func TestEngine_ChunkedRequestMatchesWhole(t *testing.T) {
	e := startEngine(t, DefaultConfig())
	conn := dialEngine(t, e)

	buf := wire.NewBuffer()
	if err := wire.NewRequest("set", "chunked", "value").Marshal(buf); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	data := buf.Data()
	for _, b := range data {
		if _, err := conn.Write([]byte{b}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	if got := readResponse(t, conn); got.String() != "(string) OK" {
		t.Errorf("chunked set = %q, want OK", got.String())
	}
}

// ============================================================
// Timers
// ============================================================

func TestEngine_TTLReap(t *testing.T) {
	e := startEngine(t, DefaultConfig())
	conn := dialEngine(t, e)

	do(t, conn, "set", "ephemeral", "v")
	do(t, conn, "expire", "ephemeral", "1")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if got := do(t, conn, "get", "ephemeral"); got.String() == "(nil)" {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("entry not reaped after TTL elapsed")
}

func TestEngine_IdleReap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = 200 * time.Millisecond
	e := startEngine(t, cfg)
	conn := dialEngine(t, e)

	// No traffic: the server must close us within timeout + one tick.
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	one := make([]byte, 1)
	if _, err := conn.Read(one); err == nil {
		t.Fatal("expected idle close, got data")
	}
}

// ============================================================
// Lifecycle
// ============================================================

func TestEngine_ShutdownClosesConnections(t *testing.T) {
	e := New(DefaultConfig(), logger.Nop(), nil)
	e.cfg.Addr = ":0"
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	runDone := make(chan error, 1)
	go func() { runDone <- e.Run() }()

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", e.Port()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("Run returned %v, want nil on shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	one := make([]byte, 1)
	if _, err := conn.Read(one); err == nil {
		t.Error("connection still open after shutdown")
	}

	// Shutdown is idempotent.
	if err := e.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
