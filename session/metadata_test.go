package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacepanda-project/spacepanda/discovery"
)

func TestPairingMetadataBuilder(t *testing.T) {
	alice := discovery.PeerID("peer-alice")
	bob := discovery.PeerID("peer-bob")

	t.Run("DefaultValues", func(t *testing.T) {
		m := NewPairingMetadataBuilder(alice, bob).Build()

		require.NotEmpty(t, m.ID)
		require.Contains(t, m.ID, GeneralPrefix)
		require.Equal(t, alice, m.PeerA)
		require.Equal(t, bob, m.PeerB)

		_, err := time.Parse(time.RFC3339, m.CreatedAt)
		require.NoError(t, err)

		require.Equal(t, "pending", m.Status, "default status should be 'pending'")
		require.Empty(t, m.ExpiresAt)
	})

	t.Run("WithStatus", func(t *testing.T) {
		m := NewPairingMetadataBuilder(alice, bob).WithStatus("active").Build()
		require.Equal(t, "active", m.Status)
	})

	t.Run("WithCreatedAt", func(t *testing.T) {
		custom := time.Date(2025, 7, 30, 12, 34, 56, 0, time.UTC)
		m := NewPairingMetadataBuilder(alice, bob).WithCreatedAt(custom).Build()
		require.Equal(t, custom.Format(time.RFC3339), m.CreatedAt)
	})

	t.Run("WithExpiresAfter", func(t *testing.T) {
		d := 2 * time.Hour
		builder := NewPairingMetadataBuilder(alice, bob).WithCreatedAt(time.Now().UTC())
		m := builder.WithExpiresAfter(d).Build()

		created, err := time.Parse(time.RFC3339, m.CreatedAt)
		require.NoError(t, err)

		expires, err := time.Parse(time.RFC3339, m.ExpiresAt)
		require.NoError(t, err)
		require.True(t, expires.Sub(created) == d, "ExpiresAt should be CreatedAt + duration")
	})

	t.Run("ChainingAll", func(t *testing.T) {
		custom := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		m := NewPairingMetadataBuilder(alice, bob).
			WithCreatedAt(custom).
			WithStatus("active").
			WithExpiresAfter(30 * time.Minute).
			Build()

		require.Equal(t, custom.Format(time.RFC3339), m.CreatedAt)
		require.Equal(t, "active", m.Status)

		created, _ := time.Parse(time.RFC3339, m.CreatedAt)
		expires, _ := time.Parse(time.RFC3339, m.ExpiresAt)
		require.Equal(t, created.Add(30*time.Minute), expires)
	})
}
