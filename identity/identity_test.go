package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentitySigns(t *testing.T) {
	id, err := New("alice", [32]byte{1})
	require.NoError(t, err)

	sig, err := id.Sign([]byte("hello"))
	require.NoError(t, err)
	assert.NoError(t, id.signing.Verify([]byte("hello"), sig))
}

func TestDeriveChannelIdentityDeterministic(t *testing.T) {
	a, err := DeriveChannelIdentity("alice", "chan-1")
	require.NoError(t, err)
	b, err := DeriveChannelIdentity("alice", "chan-1")
	require.NoError(t, err)
	assert.Equal(t, a.Bytes, b.Bytes)

	c, err := DeriveChannelIdentity("alice", "chan-2")
	require.NoError(t, err)
	assert.NotEqual(t, a.Bytes, c.Bytes)
}

func TestThrowawayIdentityUnique(t *testing.T) {
	a, err := NewThrowawayIdentity()
	require.NoError(t, err)
	b, err := NewThrowawayIdentity()
	require.NoError(t, err)
	assert.NotEqual(t, a.Bytes, b.Bytes)
}
