package services

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateState(t *testing.T) {
	t.Run("generates valid base64url state", func(t *testing.T) {
		state, err := generateState()

		require.NoError(t, err)
		decoded, err := base64.RawURLEncoding.DecodeString(state)
		require.NoError(t, err, "state should be valid base64url")
		assert.Len(t, decoded, stateLength)
	})

	t.Run("uses URL-safe characters without padding", func(t *testing.T) {
		state, err := generateState()

		require.NoError(t, err)
		assert.False(t, strings.ContainsAny(state, "=+/"))
	})

	t.Run("generates unique values", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			state, err := generateState()
			require.NoError(t, err)
			assert.False(t, seen[state], "state values should not repeat")
			seen[state] = true
		}
	})
}
