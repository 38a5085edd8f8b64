package connection

// Status describes the lifecycle of the channel.
type Status uint8

const (
	StatusInitial Status = iota
	StatusConnecting
	StatusConnected
	StatusDisconnected
	// StatusShutDown is terminal: Connect does nothing once it is reached.
	StatusShutDown
)

func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusShutDown:
		return "shut down"
	default:
		return "unknown"
	}
}
