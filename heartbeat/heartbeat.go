package heartbeat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned by Unmarshal for anything but one whole heartbeat.
var ErrMalformed = errors.New("malformed heartbeat")

const (
	payloadPrefix = "Hello, world! (#"
	payloadSuffix = ")\n"
)

// Message is one heartbeat sent by the initiator.
type Message struct {
	// Sequence counts heartbeats on the current connection, from zero.
	Sequence uint64
}

// Payload returns the wire form of the heartbeat with sequence seq.
func Payload(seq uint64) []byte {
	return Message{Sequence: seq}.Marshal()
}

// Marshal returns the wire form "Hello, world! (#<seq>)\n".
func (m Message) Marshal() []byte {
	return []byte(fmt.Sprintf("%s%d%s", payloadPrefix, m.Sequence, payloadSuffix))
}

// Unmarshal parses exactly one heartbeat.
func Unmarshal(data []byte) (Message, error) {
	s := string(data)
	if !strings.HasPrefix(s, payloadPrefix) || !strings.HasSuffix(s, payloadSuffix) {
		return Message{}, ErrMalformed
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(s, payloadPrefix), payloadSuffix)
	seq, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Message{Sequence: seq}, nil
}
