package connection

// State represents connection state
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	// Degraded means the transport was found dead and a reconnection is in progress
	Degraded
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Degraded:
		return "degraded"
	}
	return "unknown"
}
