package session

// State is the conversational state of a session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateListening
	StateProcessing
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// IsConnected reports whether the service has accepted the session.
func (s State) IsConnected() bool {
	return s >= StateConnected
}
