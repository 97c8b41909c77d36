package ws

import "sync/atomic"

// ConnState tracks where a supervised connection is in its lifecycle.
type ConnState int32

const (
	// StateDisconnected means no socket is open and no attempt is running.
	StateDisconnected ConnState = iota
	// StateConnecting means a dial attempt is in flight.
	StateConnecting
	// StateConnected means the socket is open.
	StateConnected
	// StateReconnecting means the supervisor is backing off before a retry.
	StateReconnecting
	// StateClosed means the owning session was shut down.
	StateClosed
)

func (s ConnState) String() string {
	return [...]string{
		"disconnected",
		"connecting",
		"connected",
		"reconnecting",
		"closed",
	}[s]
}

// State is an atomic ConnState holder shared between the supervisor
// and its observers.
type State struct {
	v atomic.Int32
}

// Load returns the current state.
func (s *State) Load() ConnState {
	return ConnState(s.v.Load())
}

// Store sets the state.
func (s *State) Store(state ConnState) {
	s.v.Store(int32(state))
}
