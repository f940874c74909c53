// Package errors provides the structured error taxonomy shared by the
// heartbeat initiator and the echo responder.
//
// # Error Categories
//
// Every error carries a category that decides what the owning role does next:
//
//   - Transient: the connection is torn down and the connect cycle restarts
//   - Closed: the peer shut the stream down in order; teardown, not a failure
//   - Fatal: a startup resource could not be acquired; the process exits
//   - Permanent: retrying will not help (bad input, invalid state)
//
// # Error Codes
//
//   - CONN_REFUSED: nobody listens on the endpoint
//   - NETWORK_ERR: reset, broken pipe and other transport failures
//   - TIMEOUT: a readiness wait expired
//   - PEER_CLOSED: zero-length read
//   - BIND_FAILED, LOG_SINK: startup resource failures
//
// # Usage
//
// Raw errors from the net package are mapped with Classify:
//
//	n, err := conn.Read(buf)
//	if err != nil {
//	    err = errors.Classify(err)
//	    if errors.Is(err, errors.ErrCodePeerClosed) {
//	        // orderly shutdown
//	    }
//	}
//
// Startup code checks IsFatal to decide whether to abort:
//
//	if errors.IsFatal(err) {
//	    os.Exit(1)
//	}
package errors
