// Package echo implements the responder role of the heartbeat echo protocol.
//
// The responder listens on a fixed port, accepts exactly one connection at a
// time and writes back every chunk it reads, byte for byte. There is no
// framing: a chunk may hold part of a heartbeat or several coalesced ones.
// A connection is closed when it stays idle for ResponderTimeout, when the
// peer shuts it down or on any transport error; the responder then returns
// to accepting.
//
//	r, _ := echo.NewResponder(cfg, logger)
//	if err := r.Listen(); err != nil {
//	    // BIND_FAILED: fatal
//	}
//	err := r.Serve(ctx) // returns nil once ctx is cancelled
package echo
