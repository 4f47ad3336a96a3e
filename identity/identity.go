// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package identity holds the long-term identity record (spec §3
// "Identity record") and its per-channel pseudonymous derivations: a
// deterministic identity scoped to one channel, and one-shot throwaway
// identities that are never cached.
package identity

import (
	"crypto/ed25519"
	"fmt"

	sagecrypto "github.com/spacepanda-project/spacepanda/crypto"
	"github.com/spacepanda-project/spacepanda/crypto/keys"
)

// pseudonymLabel is the HKDF label for deterministic per-channel identity
// derivation (spec §3: "HKDF(\"per-channel identity v1\", user_id || channel_id)").
const pseudonymLabel = "per-channel identity v1"

// Identity is a user's long-term identity: an Ed25519 signing keypair plus
// device metadata. It never appears on the wire in plaintext (spec §3).
type Identity struct {
	UserID   string
	DeviceID [32]byte
	signing  sagecrypto.KeyPair
}

// New creates a fresh long-term identity with a newly generated Ed25519
// signing keypair.
func New(userID string, deviceID [32]byte) (*Identity, error) {
	kp, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate identity key: %w", err)
	}
	return &Identity{UserID: userID, DeviceID: deviceID, signing: kp}, nil
}

// FromKeyPair wraps an existing signing keypair as an Identity, e.g. one
// loaded from the on-disk identity.json (spec §6, external collaborator).
func FromKeyPair(userID string, deviceID [32]byte, kp sagecrypto.KeyPair) *Identity {
	return &Identity{UserID: userID, DeviceID: deviceID, signing: kp}
}

// SigningKeyPair returns the long-term Ed25519 keypair backing this identity.
func (id *Identity) SigningKeyPair() sagecrypto.KeyPair {
	return id.signing
}

// Sign signs msg with the identity's long-term key.
func (id *Identity) Sign(msg []byte) ([]byte, error) {
	return id.signing.Sign(msg)
}

// PublicKey returns the raw Ed25519 public key bytes.
func (id *Identity) PublicKey() ed25519.PublicKey {
	pk, _ := id.signing.PublicKey().(ed25519.PublicKey)
	return pk
}

// PseudonymousIdentity is a per-channel derived identity: a 32-byte value
// deterministically reproducible by anyone who knows (user_id, channel_id)
// but otherwise unlinkable to the long-term identity.
type PseudonymousIdentity struct {
	ChannelID string
	Bytes     [32]byte
}

// DeriveChannelIdentity deterministically derives a per-channel pseudonymous
// identity for userID scoped to channelID (spec §3; supplemented feature
// from original_source's identity_scoping.rs).
func DeriveChannelIdentity(userID, channelID string) (*PseudonymousIdentity, error) {
	ikm := append([]byte(userID), []byte(channelID)...)
	okm, err := sagecrypto.HKDFExtractExpand(nil, ikm, []byte(pseudonymLabel), 32)
	if err != nil {
		return nil, fmt.Errorf("derive channel identity: %w", err)
	}
	var out [32]byte
	copy(out[:], okm)
	return &PseudonymousIdentity{ChannelID: channelID, Bytes: out}, nil
}

// ThrowawayIdentity is a one-shot random identity that is never cached or
// derivable again — used when a member wants a channel presence with no
// link back to any prior activity, not even their own.
type ThrowawayIdentity struct {
	Bytes [32]byte
}

// NewThrowawayIdentity generates a fresh random throwaway identity.
func NewThrowawayIdentity() (*ThrowawayIdentity, error) {
	b, err := sagecrypto.RandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("generate throwaway identity: %w", err)
	}
	var out [32]byte
	copy(out[:], b)
	return &ThrowawayIdentity{Bytes: out}, nil
}
