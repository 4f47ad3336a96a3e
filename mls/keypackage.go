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

package mls

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	sagecrypto "github.com/spacepanda-project/spacepanda/crypto"
	"github.com/spacepanda-project/spacepanda/crypto/keys"
	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// signedPayload re-serialises the fields a KeyPackage's Signature covers,
// independent of struct field order (spec §3 "KeyPackage").
func (kp *KeyPackage) signedPayload() ([]byte, error) {
	type payload struct {
		CipherSuite    string            `json:"cipher_suite"`
		InitKey        []byte            `json:"init_key"`
		Identity       string            `json:"identity"`
		LeafSigningKey []byte            `json:"leaf_signing_key"`
		Extensions     map[string]string `json:"extensions"`
	}
	return json.Marshal(payload{
		CipherSuite:    kp.CipherSuite,
		InitKey:        kp.InitKey,
		Identity:       kp.Identity,
		LeafSigningKey: kp.LeafSigningKey,
		Extensions:     kp.Extensions,
	})
}

// GenerateKeyPackage creates a fresh KeyPackage for identity: a new HPKE
// init keypair (X25519) and the identity's long-term Ed25519 public key as
// the leaf signing key, signed by the identity's long-term key (spec §3
// "KeyPackage", §4.4 "generate_key_package"). It returns the package to
// publish plus the HPKE private key the caller must keep to decrypt any
// Welcome that consumes it.
func GenerateKeyPackage(identityName string, signingKP sagecrypto.KeyPair) (*KeyPackage, sagecrypto.KeyPair, error) {
	initKP, err := keys.GenerateX25519KeyPair()
	if err != nil {
		return nil, nil, fmt.Errorf("generate init key: %w", err)
	}
	x, ok := initKP.(*keys.X25519KeyPair)
	if !ok {
		return nil, nil, fmt.Errorf("unexpected init key type %T", initKP)
	}

	leafPub, _ := signingKP.PublicKey().(ed25519.PublicKey)

	kp := &KeyPackage{
		ID:             uuid.NewString(),
		CipherSuite:    sagecrypto.Ciphersuite,
		InitKey:        x.PublicBytesKey(),
		Identity:       identityName,
		LeafSigningKey: append([]byte{}, leafPub...),
		Extensions:     map[string]string{},
		CreatedAt:      time.Now().UTC(),
	}

	payload, err := kp.signedPayload()
	if err != nil {
		return nil, nil, err
	}
	sig, err := signingKP.Sign(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("sign key package: %w", err)
	}
	kp.Signature = sig
	return kp, initKP, nil
}

// Verify checks a KeyPackage's self-signature against the leaf signing key
// it carries (spec §4.4 commit validation rule: "proposed KeyPackage
// signatures verify under the claimed identity key").
func (kp *KeyPackage) Verify() error {
	if kp.CipherSuite != sagecrypto.Ciphersuite {
		return errs.ErrUnsupportedVersion
	}
	if len(kp.LeafSigningKey) != ed25519.PublicKeySize || len(kp.InitKey) != 32 {
		return errs.ErrInvalidKeyFormat
	}
	payload, err := kp.signedPayload()
	if err != nil {
		return errs.ErrInvalidMessage
	}
	if !sagecrypto.Verify(ed25519.PublicKey(kp.LeafSigningKey), payload, kp.Signature) {
		return errs.ErrVerifyFailed
	}
	return nil
}

// Equal reports whether two KeyPackages refer to the same signed payload,
// used to detect a KeyPackage being replayed across two concurrent Adds.
func (kp *KeyPackage) Equal(other *KeyPackage) bool {
	if kp == nil || other == nil {
		return kp == other
	}
	return kp.ID == other.ID && bytes.Equal(kp.Signature, other.Signature)
}
