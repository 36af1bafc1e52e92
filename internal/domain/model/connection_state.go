package model

type ConnectionState int32

const (
	// [ZERO_VALUE_GUARD] A fresh owner starts out disconnected.
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	// StateShutDown is terminal and only reachable through an explicit teardown.
	StateShutDown
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateShutDown:
		return "shut_down"
	default:
		return "invalid"
	}
}

// CanTransition reports whether moving from one state to another is a legal
// edge of the connection lifecycle:
//
//	Disconnected --connect--> Connecting --open--> Connected
//	Connected    --close/error--> Disconnected
//	Connecting   --error--> Disconnected
//	any          --shutdown--> ShutDown
func CanTransition(from, to ConnectionState) bool {
	if from == StateShutDown {
		return false
	}
	if to == StateShutDown {
		return true
	}

	switch from {
	case StateDisconnected:
		return to == StateConnecting
	case StateConnecting:
		return to == StateConnected || to == StateDisconnected
	case StateConnected:
		return to == StateDisconnected
	}
	return false
}
