package link

// State is the lifecycle state of a Conn.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// next holds the only permitted successor of each state.
var next = map[State]State{
	Disconnected: Connecting,
	Connecting:   Connected,
	Connected:    Closing,
	Closing:      Disconnected,
}

// CanTransition reports whether from -> to is permitted.
func CanTransition(from, to State) bool {
	n, ok := next[from]
	return ok && n == to
}
