package core

// State is the connection lifecycle state of a Session.
type State int

const (
	// StateDisconnected is the initial and final state.
	StateDisconnected State = iota
	// StateConnecting covers dialing, proxy negotiation and the TLS handshake.
	StateConnecting
	// StateRegistering is between transport connect and the welcome numeric.
	StateRegistering
	// StateRegistered means the server accepted us; channel joins happen here.
	StateRegistered
	// StateBackoff waits before the next connection attempt.
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the session's mutable fields.
type Snapshot struct {
	State   State
	Nick    string
	Channel string
	Pending int
}
