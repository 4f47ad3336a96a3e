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

// Package crypto is the cryptographic primitives facade (spec §4.1): a
// thin, constant-time-on-secrets wrapper over one hard-coded ciphersuite
// (X25519-AES128GCM-SHA256-Ed25519). Higher layers (mls, envelope) never
// import golang.org/x/crypto directly — they sign, verify, seal and derive
// through here so the ciphersuite stays a single, auditable choke point
// (mls imports crypto/ed25519 only for the public key type).
//
// Subpackages:
//   - crypto/keys: Ed25519 (signing) and X25519 (HPKE key agreement) key pairs
//   - crypto/storage: in-memory KeyStorage implementation
//   - crypto/rotation: leaf-key rotation for post-compromise security
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Sign produces an Ed25519 signature over msg using sk.
func Sign(sk ed25519.PrivateKey, msg []byte) ([]byte, error) {
	if len(sk) != ed25519.PrivateKeySize {
		return nil, newCryptoError(CryptoErrInvalidKey, fmt.Errorf("bad private key size %d", len(sk)))
	}
	return ed25519.Sign(sk, msg), nil
}

// Verify reports whether sig is a valid Ed25519 signature over msg by pk.
// Failures are boolean per spec §4.1 — callers that need a typed error
// for logging should wrap with ErrVerifyFailed themselves.
func Verify(pk ed25519.PublicKey, msg, sig []byte) bool {
	if len(pk) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pk, msg, sig)
}

// DH performs an X25519 Diffie-Hellman exchange and returns the raw
// 32-byte shared point. Callers MUST NOT use this as a key directly —
// always route it through HKDFExtractExpand first.
func DH(mySK, theirPK []byte) ([]byte, error) {
	if len(mySK) != 32 || len(theirPK) != 32 {
		return nil, newCryptoError(CryptoErrInvalidKey, fmt.Errorf("x25519 keys must be 32 bytes"))
	}
	shared, err := x25519ScalarMult(mySK, theirPK)
	if err != nil {
		return nil, newCryptoError(CryptoErrInvalidKey, err)
	}
	var zero [32]byte
	if subtle.ConstantTimeCompare(shared, zero[:]) == 1 {
		return nil, newCryptoError(CryptoErrInvalidKey, fmt.Errorf("low-order or identity point"))
	}
	return shared, nil
}

// AEADSeal encrypts pt with AES-256-GCM under key k, nonce n and
// associated data aad. k must be 32 bytes, n must be 12 bytes.
func AEADSeal(k, n, aad, pt []byte) ([]byte, error) {
	aead, err := newAEAD(k)
	if err != nil {
		return nil, err
	}
	if len(n) != aead.NonceSize() {
		return nil, newCryptoError(CryptoErrInvalidKey, fmt.Errorf("nonce must be %d bytes", aead.NonceSize()))
	}
	return aead.Seal(nil, n, pt, aad), nil
}

// AEADOpen is the dual of AEADSeal.
func AEADOpen(k, n, aad, ct []byte) ([]byte, error) {
	aead, err := newAEAD(k)
	if err != nil {
		return nil, err
	}
	if len(n) != aead.NonceSize() {
		return nil, newCryptoError(CryptoErrInvalidKey, fmt.Errorf("nonce must be %d bytes", aead.NonceSize()))
	}
	pt, err := aead.Open(nil, n, ct, aad)
	if err != nil {
		return nil, newCryptoError(CryptoErrDecryptFailed, err)
	}
	return pt, nil
}

func newAEAD(k []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, newCryptoError(CryptoErrInvalidKey, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, newCryptoError(CryptoErrInvalidKey, err)
	}
	return aead, nil
}

// HKDFExtractExpand runs HKDF-SHA-256 extract-then-expand over ikm with
// the given salt and info, returning length bytes of output key material.
// Exporter secrets, sealed-sender keys, metadata keys and per-channel
// pseudonymous identities all derive through here (spec §3, §4.5);
// crypto/keys and session call HKDF directly for their own keys.
func HKDFExtractExpand(salt, ikm, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, info)
	okm := make([]byte, length)
	if _, err := io.ReadFull(r, okm); err != nil {
		return nil, newCryptoError(CryptoErrInvalidKey, err)
	}
	return okm, nil
}

// Hash returns the SHA-256 digest of msg.
func Hash(msg []byte) []byte {
	sum := sha256.Sum256(msg)
	return sum[:]
}

// RandomBytes returns n cryptographically random bytes, used for nonces,
// leaf and path secrets and throwaway identities in mls/envelope/identity.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
