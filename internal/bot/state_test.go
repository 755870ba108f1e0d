package bot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()

	require.False(t, s.IsAwaitingRequest(1))

	s.SetAwaitingRequest(1)
	require.True(t, s.IsAwaitingRequest(1))
	require.False(t, s.IsAwaitingRequest(2))

	s.Clear(1)
	require.False(t, s.IsAwaitingRequest(1))

	// Повторный Clear безвреден.
	s.Clear(1)
}
