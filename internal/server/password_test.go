package server

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordManagerStartsWithSecret(t *testing.T) {
	passwords := NewPasswordManager()

	current := passwords.Current()
	require.NotEmpty(t, current)
	_, err := uuid.Parse(current)
	assert.NoError(t, err)
	assert.True(t, passwords.Matches(current))
}

func TestRotateInvalidatesPreviousPassword(t *testing.T) {
	passwords := NewPasswordManager()
	stale := passwords.Current()

	next := passwords.Rotate()
	require.NotEqual(t, stale, next)
	assert.Equal(t, next, passwords.Current())
	assert.True(t, passwords.Matches(next))
	assert.False(t, passwords.Matches(stale))
}

func TestMatchesRejectsGarbage(t *testing.T) {
	passwords := NewPasswordManager()
	assert.False(t, passwords.Matches(""))
	assert.False(t, passwords.Matches("not-the-password"))
}
