package syncagent

// State is the agent's connection state. There is no terminal state; the
// agent retries until its context ends.
type State int

const (
	Connecting State = iota
	Open
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Signal is something that happened to the connection.
type Signal int

const (
	// Dialed means the handshake completed.
	Dialed Signal = iota
	// DialFailed means the handshake did not complete.
	DialFailed
	// Lost means an open connection closed or errored.
	Lost
	// DelayElapsed means the reconnect delay is over.
	DelayElapsed
)

func (s Signal) String() string {
	switch s {
	case Dialed:
		return "dialed"
	case DialFailed:
		return "dial failed"
	case Lost:
		return "lost"
	case DelayElapsed:
		return "delay elapsed"
	default:
		return "unknown"
	}
}

// Transition returns the state that follows s on sig. Signals that do not
// apply to s leave it unchanged.
func Transition(s State, sig Signal) State {
	switch {
	case s == Connecting && sig == Dialed:
		return Open
	case s == Connecting && sig == DialFailed:
		return Reconnecting
	case s == Open && sig == Lost:
		return Reconnecting
	case s == Reconnecting && sig == DelayElapsed:
		return Connecting
	default:
		return s
	}
}
