// Package link models one heartbeat connection: its lifecycle state, the
// per-connection sequence counter and the bounded readiness waits that
// replace blocking reads and writes.
package link

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/echobeat/errors"
)

// Conn is a single bidirectional byte stream. It is owned by one goroutine;
// the mutex only guards state for observers such as Stats and tests.
type Conn struct {
	id     string
	remote string

	mu           sync.Mutex
	state        State
	nc           net.Conn
	seq          uint64
	lastActivity time.Time
	closeDone    chan struct{}
	now          func() time.Time
}

// New returns a Disconnected Conn with a fresh id.
func New(remote string) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		remote: remote,
		state:  Disconnected,
		now:    time.Now,
	}
}

// Accepted wraps a connection handed out by a listener. It walks the
// lifecycle up to Connected.
func Accepted(nc net.Conn) *Conn {
	c := New(nc.RemoteAddr().String())
	_ = c.Begin()
	_ = c.Attach(nc)
	return c
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the remote address.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// State returns the current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastActivity returns the time of the last successful read or write.
func (c *Conn) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

func (c *Conn) transition(to State) error {
	if !CanTransition(c.state, to) {
		return errors.InvalidState(c.state.String(), to.String(), errors.WithConnID(c.id))
	}
	c.state = to
	return nil
}

// Begin moves Disconnected -> Connecting. A Conn stays Connecting across
// failed dial attempts; it is discarded if the attempts are abandoned.
func (c *Conn) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transition(Connecting)
}

// Attach binds the transport and moves Connecting -> Connected.
// The sequence counter starts at zero.
func (c *Conn) Attach(nc net.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transition(Connected); err != nil {
		return err
	}
	c.nc = nc
	c.seq = 0
	c.lastActivity = c.now()
	return nil
}

// NextSequence returns the current heartbeat sequence number and advances it.
func (c *Conn) NextSequence() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.seq
	c.seq++
	return n
}

// Sequence returns the next sequence number without advancing it.
func (c *Conn) Sequence() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

func (c *Conn) transport() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Connected || c.nc == nil {
		return nil, errors.New(errors.ErrCodeNetworkErr, "connection not established",
			errors.WithConnID(c.id))
	}
	return c.nc, nil
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastActivity = c.now()
	c.mu.Unlock()
}

// WaitWrite writes p, waiting at most wait for the stream to accept it.
// A wait that runs the full duration is a TIMEOUT.
func (c *Conn) WaitWrite(wait time.Duration, p []byte) (int, error) {
	nc, err := c.transport()
	if err != nil {
		return 0, err
	}
	if err := nc.SetWriteDeadline(c.now().Add(wait)); err != nil {
		return 0, errors.Classify(err, errors.WithConnID(c.id))
	}
	n, err := nc.Write(p)
	if err != nil {
		return n, errors.Classify(err, errors.WithConnID(c.id))
	}
	c.touch()
	return n, nil
}

// WaitRead reads at most len(buf) bytes, waiting at most wait for data.
// An orderly peer shutdown is reported as PEER_CLOSED and an expired wait
// as TIMEOUT. Bytes are returned even when the read also ends the stream.
func (c *Conn) WaitRead(wait time.Duration, buf []byte) (int, error) {
	nc, err := c.transport()
	if err != nil {
		return 0, err
	}
	if err := nc.SetReadDeadline(c.now().Add(wait)); err != nil {
		return 0, errors.Classify(err, errors.WithConnID(c.id))
	}
	n, err := nc.Read(buf)
	if n > 0 {
		c.touch()
	}
	if err != nil {
		return n, errors.Classify(err, errors.WithConnID(c.id))
	}
	if n == 0 {
		return 0, errors.FromCode(errors.ErrCodePeerClosed, errors.WithConnID(c.id))
	}
	return n, nil
}

// Close tears the connection down: Connected -> Closing -> Disconnected.
// A Close that overlaps another returns once the Conn is Disconnected.
// Closing a Conn that is not connected is a no-op.
func (c *Conn) Close() error {
	c.mu.Lock()
	switch c.state {
	case Connected:
	case Closing:
		done := c.closeDone
		c.mu.Unlock()
		<-done
		return nil
	default:
		c.mu.Unlock()
		return nil
	}
	c.state = Closing
	nc := c.nc
	c.nc = nil
	done := make(chan struct{})
	c.closeDone = done
	c.mu.Unlock()

	err := nc.Close()

	c.mu.Lock()
	c.state = Disconnected
	c.mu.Unlock()
	close(done)

	if err != nil {
		return errors.Classify(err, errors.WithConnID(c.id))
	}
	return nil
}
