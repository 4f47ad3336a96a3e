package storage

import (
	"fmt"

	sagecrypto "github.com/spacepanda-project/spacepanda/crypto"
)

// metadataEncryptionLabel is the literal HKDF label required by spec
// §4.3 for domain separation of the at-rest metadata encryption key.
const metadataEncryptionLabel = "SpacePanda-Metadata-Encryption-v1"

// DeriveMetadataKey derives the 32-byte AES-256-GCM key used to seal a
// channel's name/topic/members columns at rest, from a per-group secret
// (spec §4.3 "a key derived per-group via HKDF from a group secret").
func DeriveMetadataKey(groupSecret []byte) ([]byte, error) {
	key, err := sagecrypto.HKDFExtractExpand(nil, groupSecret, []byte(metadataEncryptionLabel), 32)
	if err != nil {
		return nil, fmt.Errorf("derive metadata key: %w", err)
	}
	return key, nil
}

// SealColumn AEAD-seals one metadata column value under the per-group
// metadata key, with channelID as associated data so ciphertext from one
// channel can't be swapped into another's row.
func SealColumn(key []byte, channelID string, plaintext []byte) ([]byte, error) {
	nonce, err := sagecrypto.RandomBytes(12)
	if err != nil {
		return nil, err
	}
	ct, err := sagecrypto.AEADSeal(key, nonce, []byte(channelID), plaintext)
	if err != nil {
		return nil, err
	}
	return append(nonce, ct...), nil
}

// OpenColumn is the dual of SealColumn.
func OpenColumn(key []byte, channelID string, sealed []byte) ([]byte, error) {
	if len(sealed) < 12 {
		return nil, fmt.Errorf("sealed column too short")
	}
	nonce, ct := sealed[:12], sealed[12:]
	return sagecrypto.AEADOpen(key, nonce, []byte(channelID), ct)
}
