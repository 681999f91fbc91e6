// Package domain contains core concepts of the realtime layer.
// This file defines the Session lifecycle and its legal transitions.
// No runtime, network, or UI logic should be added here.
package domain

type SessionState string

const (
	Connecting    SessionState = "CONNECTING"
	Authenticated SessionState = "AUTHENTICATED"
	Active        SessionState = "ACTIVE"
	Disconnected  SessionState = "DISCONNECTED"
	Reconnecting  SessionState = "RECONNECTING"
	Terminated    SessionState = "TERMINATED"
)

// transitions lists the states reachable from each state.
// Terminated is terminal: explicit logout or credential revocation.
var transitions = map[SessionState][]SessionState{
	Connecting:    {Authenticated, Terminated},
	Authenticated: {Active, Disconnected, Terminated},
	Active:        {Disconnected, Terminated},
	Disconnected:  {Reconnecting, Terminated},
	Reconnecting:  {Authenticated, Terminated},
	Terminated:    nil,
}

// CanTransition reports whether moving from one session state to another
// is legal under the lifecycle.
func CanTransition(from, to SessionState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
