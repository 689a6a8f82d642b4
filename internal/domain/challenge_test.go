package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChallenge(t *testing.T) {
	ch, err := NewChallenge(PurposeRegistration, nil, 90*time.Second)
	require.NoError(t, err)

	raw, err := ch.RawValue()
	require.NoError(t, err)
	assert.Len(t, raw, ChallengeByteLength)
	assert.Equal(t, PurposeRegistration, ch.Purpose)
	assert.Nil(t, ch.Subject)
	assert.False(t, ch.Consumed)
	assert.False(t, ch.IsExpired())
	assert.WithinDuration(t, ch.IssuedAt.Add(90*time.Second), ch.ExpiresAt, time.Second)
}

func TestNewChallenge_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ch, err := NewChallenge(PurposeAuthentication, nil, time.Minute)
		require.NoError(t, err)
		assert.False(t, seen[ch.Value], "challenge value repeated")
		seen[ch.Value] = true
	}
}

func TestChallenge_IsExpired(t *testing.T) {
	ch, err := NewChallenge(PurposeRegistration, nil, -time.Second)
	require.NoError(t, err)
	assert.True(t, ch.IsExpired())
}

func TestChallenge_BoundTo(t *testing.T) {
	owner := NewUserID()
	other := NewUserID()

	bound, err := NewChallenge(PurposeAuthentication, &owner, time.Minute)
	require.NoError(t, err)
	assert.True(t, bound.BoundTo(owner))
	assert.False(t, bound.BoundTo(other))

	unbound, err := NewChallenge(PurposeAuthentication, nil, time.Minute)
	require.NoError(t, err)
	assert.False(t, unbound.BoundTo(owner))
}
