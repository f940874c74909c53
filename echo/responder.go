package echo

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/echobeat/config"
	"github.com/vinayprograms/echobeat/errors"
	"github.com/vinayprograms/echobeat/link"
	"github.com/vinayprograms/echobeat/logging"
)

// acceptPause is the pause after a failed Accept before the next one.
const acceptPause = 100 * time.Millisecond

// Stats counts responder activity since construction.
type Stats struct {
	Accepted     int64
	BytesEchoed  int64
	ChunksEchoed int64
	Timeouts     int64
	PeerClosed   int64
	Errors       int64
}

// Responder accepts connections serially and echoes what it reads.
type Responder struct {
	cfg config.Config
	log *logging.Logger

	mu     sync.Mutex
	ln     net.Listener
	closed bool

	current  atomic.Pointer[link.Conn]
	accepted atomic.Int64
	bytes    atomic.Int64
	chunks   atomic.Int64
	timeouts atomic.Int64
	eof      atomic.Int64
	failures atomic.Int64
}

// NewResponder creates a responder for cfg.ListenAddress().
func NewResponder(cfg config.Config, logger *logging.Logger) (*Responder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, errors.InvalidInput("responder needs a logger")
	}
	return &Responder{
		cfg: cfg,
		log: logger.WithComponent("responder"),
	}, nil
}

// Listen binds the listening socket. Failure is fatal (BIND_FAILED).
func (r *Responder) Listen() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New(errors.ErrCodeInvalidState, "responder closed")
	}
	if r.ln != nil {
		return errors.New(errors.ErrCodeInvalidState, "responder already listening")
	}
	addr := r.cfg.ListenAddress()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.BindFailed(addr, err)
	}
	r.ln = ln
	r.log.Info("bind successful", map[string]interface{}{
		"addr": ln.Addr().String(),
	})
	r.log.Info("listening", map[string]interface{}{
		"host":    r.cfg.BindAddress,
		"port":    r.cfg.Port,
		"backlog": r.cfg.Backlog,
	})
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (r *Responder) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ln == nil {
		return nil
	}
	return r.ln.Addr()
}

// Current returns the connection being served, or nil while accepting.
func (r *Responder) Current() *link.Conn {
	return r.current.Load()
}

// Stats returns a snapshot of the counters.
func (r *Responder) Stats() Stats {
	return Stats{
		Accepted:     r.accepted.Load(),
		BytesEchoed:  r.bytes.Load(),
		ChunksEchoed: r.chunks.Load(),
		Timeouts:     r.timeouts.Load(),
		PeerClosed:   r.eof.Load(),
		Errors:       r.failures.Load(),
	}
}

// Serve accepts one connection at a time and runs EchoLoop on it. It
// returns nil when ctx is cancelled or the responder is closed.
func (r *Responder) Serve(ctx context.Context) error {
	r.mu.Lock()
	ln := r.ln
	r.mu.Unlock()
	if ln == nil {
		return errors.New(errors.ErrCodeInvalidState, "responder is not listening")
	}

	stop := context.AfterFunc(ctx, func() { _ = r.Close() })
	defer stop()

	for {
		r.log.Info("waiting for client connection...")
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || r.isClosed() {
				return nil
			}
			r.log.Warn("accept failed", map[string]interface{}{"error": err})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(acceptPause):
			}
			continue
		}

		c := link.Accepted(nc)
		r.accepted.Add(1)
		r.log.WithConn(c.ID()).Info("connected by " + c.RemoteAddr())
		_ = r.EchoLoop(ctx, c)

		if ctx.Err() != nil {
			return nil
		}
	}
}

// EchoLoop writes every chunk read from c back to it until c goes idle for
// ResponderTimeout, the peer shuts down, the transport fails or ctx is
// cancelled. It always closes c and returns the coded reason.
func (r *Responder) EchoLoop(ctx context.Context, c *link.Conn) error {
	log := r.log.WithConn(c.ID())
	r.current.Store(c)
	defer r.current.CompareAndSwap(c, nil)

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	timeout := r.cfg.ResponderTimeout()
	buf := make([]byte, r.cfg.ChunkSize)
	for {
		log.Debug("receiving from client...")
		n, err := c.WaitRead(timeout, buf)
		if n > 0 {
			log.Received(buf[:n])
			if _, werr := c.WaitWrite(timeout, buf[:n]); werr != nil {
				r.failures.Add(1)
				return r.teardown(ctx, log, c, "exception sending data, closing connection with client", werr)
			}
			r.chunks.Add(1)
			r.bytes.Add(int64(n))
			log.Sent(buf[:n])
		}
		if err == nil {
			continue
		}

		switch {
		case errors.Is(err, errors.ErrCodePeerClosed):
			r.eof.Add(1)
			return r.teardown(ctx, log, c, "connection with client lost", err)
		case errors.Is(err, errors.ErrCodeTimeout):
			r.timeouts.Add(1)
			return r.teardown(ctx, log, c, "client communication timeout, closing connection", err)
		default:
			r.failures.Add(1)
			return r.teardown(ctx, log, c, "exception, closing connection with client", err)
		}
	}
}

func (r *Responder) teardown(ctx context.Context, log *logging.Logger, c *link.Conn, reason string, err error) error {
	_ = c.Close()
	if ctx.Err() != nil {
		log.Closed("cancelled")
		return errors.Wrap(ctx.Err(), "echo cancelled", errors.WithConnID(c.ID()))
	}
	log.Info(reason)
	log.Closed(string(errors.Code(err)))
	return err
}

// Close stops accepting. It does not wait for Serve to return and is safe to
// call more than once.
func (r *Responder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.ln == nil {
		r.closed = true
		return nil
	}
	r.closed = true
	if err := r.ln.Close(); err != nil {
		return errors.Classify(err)
	}
	return nil
}

func (r *Responder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
