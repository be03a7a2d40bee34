package server

import "net"

// State is the native lifecycle state of a Server.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateStarted
	StateStopping
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateStarted:
		return "Started"
	case StateStopping:
		return "Stopping"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// LifeCycle is the view of a server handed to observers.
type LifeCycle interface {
	State() State
	Addr() net.Addr
}

// Observer receives native lifecycle notifications.
type Observer interface {
	LifeCycleStarting(lc LifeCycle)
	LifeCycleStarted(lc LifeCycle)
	LifeCycleFailure(lc LifeCycle, err error)
	LifeCycleStopping(lc LifeCycle)
	LifeCycleStopped(lc LifeCycle)
}
