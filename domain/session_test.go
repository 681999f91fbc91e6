package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	req := require.New(t)

	// The nominal path
	req.True(CanTransition(Connecting, Authenticated))
	req.True(CanTransition(Authenticated, Active))
	req.True(CanTransition(Active, Disconnected))
	req.True(CanTransition(Disconnected, Reconnecting))
	req.True(CanTransition(Reconnecting, Authenticated))

	// Every state may terminate except Terminated itself
	for _, state := range []SessionState{Connecting, Authenticated, Active, Disconnected, Reconnecting} {
		req.True(CanTransition(state, Terminated), string(state))
	}

	// Terminated is terminal
	req.False(CanTransition(Terminated, Authenticated))
	req.False(CanTransition(Terminated, Reconnecting))

	// No shortcuts
	req.False(CanTransition(Connecting, Active))
	req.False(CanTransition(Disconnected, Active))
}
