package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spacepanda-project/spacepanda/discovery"
)

// PairingMetadata records the lifecycle of one pairwise transport session
// between two peers (spec component C7's SecureTransport layer), for
// logging and audit independent of the session's actual key material.
// It carries no secrets: PeerA/PeerB are the two discovery.PeerID values
// in the order given to NewPairingMetadataBuilder (SecureTransport passes
// its own id first), not the session's encryption or signing keys.
type PairingMetadata struct {
	ID        string              `json:"id"`
	PeerA     discovery.PeerID    `json:"peerA"`
	PeerB     discovery.PeerID    `json:"peerB"`
	Status    string              `json:"status,omitempty"`
	CreatedAt string              `json:"createdAt,omitempty"`
	ExpiresAt string              `json:"expiresAt,omitempty"`
}

// PairingMetadataBuilder constructs PairingMetadata instances with a
// fluent API.
type PairingMetadataBuilder struct {
	metadata PairingMetadata
}

// NewPairingMetadataBuilder initializes a builder for the pairing between
// a and b with default values (status "pending", CreatedAt now).
func NewPairingMetadataBuilder(a, b discovery.PeerID) *PairingMetadataBuilder {
	now := time.Now().UTC()
	return &PairingMetadataBuilder{
		metadata: PairingMetadata{
			ID:        GeneralPrefix + "-" + uuid.NewString(),
			PeerA:     a,
			PeerB:     b,
			CreatedAt: now.Format(time.RFC3339),
			Status:    "pending",
		},
	}
}

// WithStatus overrides the metadata status (e.g. "pending", "active", "closed", "expired").
func (b *PairingMetadataBuilder) WithStatus(status string) *PairingMetadataBuilder {
	b.metadata.Status = status
	return b
}

// WithCreatedAt sets a custom creation timestamp.
func (b *PairingMetadataBuilder) WithCreatedAt(t time.Time) *PairingMetadataBuilder {
	b.metadata.CreatedAt = t.Format(time.RFC3339)
	return b
}

// WithExpiresAfter sets ExpiresAt to CreatedAt + duration.
func (b *PairingMetadataBuilder) WithExpiresAfter(d time.Duration) *PairingMetadataBuilder {
	created, err := time.Parse(time.RFC3339, b.metadata.CreatedAt)
	if err != nil {
		created = time.Now().UTC()
		b.metadata.CreatedAt = created.Format(time.RFC3339)
	}
	b.metadata.ExpiresAt = created.Add(d).Format(time.RFC3339)
	return b
}

// Build returns the constructed metadata.
func (b *PairingMetadataBuilder) Build() *PairingMetadata {
	return &b.metadata
}

// GenerateSalt generates a cryptographically secure 32-byte salt
func GenerateSalt() (string, error) {
    const saltSize = 32 // 256 bits
    saltBytes := make([]byte, saltSize)
    
    // crypto/rand.Read uses the system's CSPRNG
    if _, err := rand.Read(saltBytes); err != nil {
        return "", fmt.Errorf("failed to generate salt: %w", err)
    }
    
    // Encode to Base64URL without padding
    return base64.RawURLEncoding.EncodeToString(saltBytes), nil
}