package heartbeat

import (
	"bytes"
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vinayprograms/echobeat/config"
	"github.com/vinayprograms/echobeat/errors"
	"github.com/vinayprograms/echobeat/link"
	"github.com/vinayprograms/echobeat/logging"
)

// Dialer opens transport connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Stats counts initiator activity since construction.
type Stats struct {
	Sessions         int64
	FailedAttempts   int64
	HeartbeatsSent   int64
	RepliesReceived  int64
	RepliesMismatch  int64
	SessionsTornDown int64
}

// Initiator drives the heartbeat towards one responder.
type Initiator struct {
	cfg    config.Config
	log    *logging.Logger
	dialer Dialer
	sleep  func(ctx context.Context, d time.Duration) error

	sessions  atomic.Int64
	failed    atomic.Int64
	sent      atomic.Int64
	received  atomic.Int64
	mismatch  atomic.Int64
	torndown  atomic.Int64
	connected atomic.Pointer[link.Conn]
}

// Option configures an Initiator.
type Option func(*Initiator)

// WithDialer replaces the default net.Dialer.
func WithDialer(d Dialer) Option {
	return func(i *Initiator) {
		i.dialer = d
	}
}

// NewInitiator creates an initiator for cfg.Endpoint().
func NewInitiator(cfg config.Config, logger *logging.Logger, opts ...Option) (*Initiator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, errors.InvalidInput("initiator needs a logger")
	}

	i := &Initiator{
		cfg:    cfg,
		log:    logger.WithComponent("initiator"),
		dialer: &net.Dialer{},
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Stats returns a snapshot of the counters.
func (i *Initiator) Stats() Stats {
	return Stats{
		Sessions:         i.sessions.Load(),
		FailedAttempts:   i.failed.Load(),
		HeartbeatsSent:   i.sent.Load(),
		RepliesReceived:  i.received.Load(),
		RepliesMismatch:  i.mismatch.Load(),
		SessionsTornDown: i.torndown.Load(),
	}
}

// Current returns the active connection, or nil between sessions.
func (i *Initiator) Current() *link.Conn {
	return i.connected.Load()
}

// Connect dials the endpoint until it succeeds, the attempt budget
// (MaxConnectAttempts, zero for unlimited) is used up, or ctx is cancelled.
// Every failure is logged with its category and followed by a pause of
// RetryInterval.
func (i *Initiator) Connect(ctx context.Context) (*link.Conn, error) {
	endpoint := i.cfg.Endpoint()
	c := link.New(endpoint)
	if err := c.Begin(); err != nil {
		return nil, err
	}

	var policy backoff.BackOff = backoff.NewConstantBackOff(i.cfg.RetryInterval.Std())
	if limit := i.cfg.MaxConnectAttempts; limit > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(limit-1))
	}
	policy = backoff.WithContext(policy, ctx)

	attempt := 0
	dial := func() (net.Conn, error) {
		attempt++
		i.log.ConnectAttempt(endpoint, attempt)

		nc, err := i.dialer.DialContext(ctx, "tcp", endpoint)
		if err == nil {
			return nc, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}

		i.failed.Add(1)
		coded := errors.Classify(err, errors.WithConnID(c.ID()))
		reason := errors.ErrCodeNetworkErr.Description()
		if coded.Code() == errors.ErrCodeConnRefused {
			reason = errors.ErrCodeConnRefused.Description()
		}
		i.log.ConnectFailed(reason, err)
		return nil, coded
	}
	notify := func(_ error, next time.Duration) {
		i.log.RetryScheduled(next)
	}

	nc, err := backoff.RetryNotifyWithData(dial, policy, notify)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "connect cancelled")
		}
		return nil, errors.New(errors.ErrCodeExhausted,
			"connect attempts exhausted",
			errors.WithCause(err),
			errors.WithMetadata("endpoint", endpoint))
	}

	if err := c.Attach(nc); err != nil {
		_ = nc.Close()
		return nil, err
	}
	i.log.WithConn(c.ID()).Connected(nc.RemoteAddr().String())
	return c, nil
}

// RunSession sends heartbeats on c until a wait expires, the peer shuts
// down, the transport fails or ctx is cancelled. It always closes c and
// returns the coded reason.
func (i *Initiator) RunSession(ctx context.Context, c *link.Conn) error {
	log := i.log.WithConn(c.ID())
	i.sessions.Add(1)
	i.connected.Store(c)
	defer i.connected.CompareAndSwap(c, nil)

	// Unblock a pending wait when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	teardown := func(reason string, err error) error {
		_ = c.Close()
		i.torndown.Add(1)
		if ctx.Err() != nil {
			err = errors.Wrap(ctx.Err(), "session cancelled", errors.WithConnID(c.ID()))
			reason = "cancelled"
		}
		log.Closed(reason)
		return err
	}

	buf := make([]byte, i.cfg.ChunkSize)
	for {
		seq := c.NextSequence()
		payload := Payload(seq)

		log.Debug("sending hello message to server")
		if _, err := c.WaitWrite(i.cfg.SendWait(), payload); err != nil {
			return teardown(sendReason(err), err)
		}
		i.sent.Add(1)
		log.Sent(payload)

		log.Debug("receiving answer from server")
		n, err := c.WaitRead(i.cfg.ReceiveWait(), buf)
		if n > 0 {
			i.recordReply(log, seq, buf[:n])
		}
		if err != nil {
			return teardown(receiveReason(err), err)
		}

		if err := i.sleep(ctx, i.cfg.Period.Std()); err != nil {
			return teardown("cancelled", err)
		}
	}
}

// recordReply counts a reply and notes when it is not the echo of heartbeat
// seq. Without framing a reply may be partial, coalesced or stale.
func (i *Initiator) recordReply(log *logging.Logger, seq uint64, reply []byte) {
	i.received.Add(1)
	log.Received(reply)

	sent := Payload(seq)
	if bytes.Equal(sent, reply) {
		return
	}
	i.mismatch.Add(1)
	fields := map[string]interface{}{
		"sent_bytes":  len(sent),
		"reply_bytes": len(reply),
	}
	if msg, err := Unmarshal(reply); err == nil {
		fields["reply_sequence"] = msg.Sequence
	} else {
		fields["malformed"] = true
	}
	log.Debug("reply differs from last heartbeat", fields)
}

// Run repeats Connect and RunSession until ctx is cancelled, in which case
// it returns nil, or until a connect cycle exhausts its attempt budget.
// Per-connection failures never escape Run.
func (i *Initiator) Run(ctx context.Context) error {
	for {
		c, err := i.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err = i.RunSession(ctx, c)
		if ctx.Err() != nil {
			return nil
		}
		i.log.Info("restarting connect cycle", map[string]interface{}{
			"reason": errors.Code(err),
		})
	}
}

func sendReason(err error) string {
	if errors.Is(err, errors.ErrCodeTimeout) {
		return "timeout trying to send data"
	}
	return "error sending data"
}

func receiveReason(err error) string {
	switch {
	case errors.Is(err, errors.ErrCodeTimeout):
		return "timeout trying to receive data"
	case errors.Is(err, errors.ErrCodePeerClosed):
		return "empty read, server closed the connection"
	default:
		return "error receiving data"
	}
}

// sleepContext waits d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
