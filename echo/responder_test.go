package echo

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/echobeat/config"
	"github.com/vinayprograms/echobeat/errors"
	"github.com/vinayprograms/echobeat/logging"
)

// syncBuffer is a bytes.Buffer safe for the logger and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// pickFreePort returns an available TCP port on 127.0.0.1.
func pickFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T, period time.Duration) config.Config {
	cfg := config.DefaultConfig()
	cfg.BindAddress = "127.0.0.1"
	cfg.Port = pickFreePort(t)
	cfg.Period = config.Duration(period)
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// startResponder listens and serves until the test ends.
func startResponder(t *testing.T, cfg config.Config) (*Responder, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	logger := logging.New(out)
	logger.SetLevel(logging.LevelDebug)

	r, err := NewResponder(cfg, logger)
	if err != nil {
		t.Fatalf("NewResponder error: %v", err)
	}
	if err := r.Listen(); err != nil {
		t.Fatalf("Listen error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after cancel")
		}
	})
	return r, out
}

func dial(t *testing.T, r *Responder) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", r.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readN(t *testing.T, c net.Conn, n int) string {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, n)
	if _, err := io.ReadFull(c, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(buf)
}

// --- Unit Tests ---

func TestNewResponder_Invalid(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ChunkSize = 0
	if _, err := NewResponder(cfg, logging.New(io.Discard)); err == nil {
		t.Error("expected error for invalid config")
	}
	if _, err := NewResponder(config.DefaultConfig(), nil); err == nil {
		t.Error("expected error for missing logger")
	}
}

func TestResponder_ServeBeforeListen(t *testing.T) {
	r, _ := NewResponder(config.DefaultConfig(), logging.New(io.Discard))
	if r.Addr() != nil {
		t.Error("Addr() should be nil before Listen")
	}
	err := r.Serve(context.Background())
	if !errors.Is(err, errors.ErrCodeInvalidState) {
		t.Fatalf("Serve error = %v, want INVALID_STATE", err)
	}
}

func TestResponder_BindConflict(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer taken.Close()

	cfg := config.DefaultConfig()
	cfg.BindAddress = "127.0.0.1"
	cfg.Port = taken.Addr().(*net.TCPAddr).Port

	r, _ := NewResponder(cfg, logging.New(io.Discard))
	err = r.Listen()
	if !errors.Is(err, errors.ErrCodeBindFailed) {
		t.Fatalf("Listen error = %v, want BIND_FAILED", err)
	}
	if !errors.IsFatal(err) {
		t.Error("bind failure must be fatal")
	}
}

func TestResponder_CloseIdempotent(t *testing.T) {
	r, _ := NewResponder(testConfig(t, time.Second), logging.New(io.Discard))
	if err := r.Listen(); err != nil {
		t.Fatalf("Listen error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := r.Close(); err != nil {
			t.Fatalf("Close #%d error: %v", i+1, err)
		}
	}
	if err := r.Listen(); !errors.Is(err, errors.ErrCodeInvalidState) {
		t.Errorf("Listen after Close error = %v, want INVALID_STATE", err)
	}
}

// --- Integration Tests ---

func TestResponder_EchoesPing(t *testing.T) {
	r, out := startResponder(t, testConfig(t, time.Second))
	c := dial(t, r)

	if _, err := c.Write([]byte("PING")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readN(t, c, 4); got != "PING" {
		t.Errorf("echo = %q, want PING", got)
	}

	waitFor(t, "send log", func() bool { return strings.Contains(out.String(), `sent: "PING"`) })
	logs := out.String()
	if !strings.Contains(logs, `received: "PING"`) {
		t.Errorf("missing receipt log:\n%s", logs)
	}
	if !strings.Contains(logs, "connected by 127.0.0.1:") {
		t.Errorf("missing peer address log:\n%s", logs)
	}

	stats := r.Stats()
	if stats.Accepted != 1 || stats.BytesEchoed != 4 || stats.ChunksEchoed != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestResponder_EchoIsByteExact(t *testing.T) {
	r, _ := startResponder(t, testConfig(t, time.Second))
	c := dial(t, r)

	payload := make([]byte, 5000) // larger than one chunk
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	go c.Write(payload)

	got := readN(t, c, len(payload))
	if got != string(payload) {
		t.Error("echoed bytes differ from sent bytes")
	}
}

func TestResponder_PeerShutdown(t *testing.T) {
	r, out := startResponder(t, testConfig(t, time.Second))

	c := dial(t, r)
	c.Close()

	waitFor(t, "connection lost log", func() bool {
		return strings.Contains(out.String(), "connection with client lost")
	})
	// Back in the accept loop.
	waitFor(t, "second accept", func() bool {
		return strings.Count(out.String(), "waiting for client connection...") >= 2
	})
	if r.Stats().PeerClosed != 1 {
		t.Errorf("PeerClosed = %d, want 1", r.Stats().PeerClosed)
	}

	// And able to serve the next client.
	next := dial(t, r)
	next.Write([]byte("again"))
	if got := readN(t, next, 5); got != "again" {
		t.Errorf("echo = %q, want again", got)
	}
}

func TestResponder_IdleTimeout(t *testing.T) {
	// 6 x 10ms of silence closes the connection.
	r, out := startResponder(t, testConfig(t, 10*time.Millisecond))
	c := dial(t, r)

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := c.Read(make([]byte, 1))
	if err != io.EOF {
		t.Fatalf("client read error = %v, want EOF from server close", err)
	}

	waitFor(t, "timeout log", func() bool {
		return strings.Contains(out.String(), "client communication timeout")
	})
	if r.Stats().Timeouts != 1 {
		t.Errorf("Timeouts = %d, want 1", r.Stats().Timeouts)
	}
}

func TestResponder_SerialConnections(t *testing.T) {
	r, _ := startResponder(t, testConfig(t, time.Second))

	first := dial(t, r)
	first.Write([]byte("A"))
	if got := readN(t, first, 1); got != "A" {
		t.Fatalf("first echo = %q", got)
	}

	// The kernel completes the handshake, but nobody serves the second
	// connection while the first is open.
	second := dial(t, r)
	second.Write([]byte("B"))
	second.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if n, err := second.Read(make([]byte, 1)); err == nil {
		t.Fatalf("second connection served concurrently (%d bytes)", n)
	}

	first.Close()
	if got := readN(t, second, 1); got != "B" {
		t.Errorf("second echo = %q, want B", got)
	}
}

func TestResponder_CancelWithActiveConnection(t *testing.T) {
	cfg := testConfig(t, time.Minute)
	r, err := NewResponder(cfg, logging.New(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Listen(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	c := dial(t, r)
	waitFor(t, "active connection", func() bool { return r.Current() != nil })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	c.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := c.Read(make([]byte, 1)); err == nil {
		t.Error("connection should be closed after cancel")
	}
}
