// Package heartbeat implements the initiator role of the heartbeat echo
// protocol.
//
// # Overview
//
// The initiator dials a fixed endpoint, retrying at a constant interval
// until a responder answers. Once connected it sends one heartbeat per
// period and waits for the responder to echo it back:
//
//	┌─────────────┐   Hello, world! (#n)\n   ┌─────────────┐
//	│  Initiator  │ ───────────────────────> │  Responder  │
//	│             │ <─────────────────────── │   (echo)    │
//	└─────────────┘      identical bytes     └─────────────┘
//
// Sends and receives strictly alternate. Every wait is bounded; when a
// bound expires, the peer shuts down or the transport fails, the connection
// is closed and the whole connect cycle starts over with the sequence
// counter back at zero.
//
// # Usage
//
//	init, _ := heartbeat.NewInitiator(cfg, logger)
//	err := init.Run(ctx) // returns nil once ctx is cancelled
//
// # Wire Format
//
// The payload is plain text with no framing. A read may return part of a
// reply or several replies coalesced; the echo preserves bytes, not
// message boundaries.
package heartbeat
