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

// Package envelope implements wire framing, sealed sender, sealed
// metadata, the replay cache, per-peer rate limiting and the constant-
// rate mixer (spec §4.5, component C5).
package envelope

import (
	"encoding/binary"

	sagecrypto "github.com/spacepanda-project/spacepanda/crypto"
	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// envelopeVersion is the only wire version this package emits or accepts.
const envelopeVersion = 1

// sealedSenderLabel and sealedMetadataLabel are the exact HKDF labels
// named in spec §4.5.
const (
	sealedSenderLabel   = "Sealed Sender v1"
	sealedMetadataLabel = "SpacePanda MLS 1.0 Metadata Encryption"
)

// Envelope is the on-wire frame for every message this node sends:
// [version:u8][nonce:12][sealed_sender_len:u16][sealed_sender:variable][epoch:u64][ciphertext_and_tag:variable]
// (spec §3 "Envelope wire format"; the big-endian u16 length prefix lets
// Unmarshal delimit the variable-length sealed sender).
type Envelope struct {
	Version      uint8
	Nonce        [12]byte
	SealedSender []byte
	Epoch        uint64
	Ciphertext   []byte
}

// DeriveSenderKey derives the AEAD key sealing/unsealing the sender
// identity blob (spec §4.5 "Key is derived by HKDF(\"Sealed Sender v1\" ∥
// group_exporter_secret)").
func DeriveSenderKey(exporterSecret []byte) ([]byte, error) {
	return sagecrypto.HKDFExtractExpand(nil, exporterSecret, []byte(sealedSenderLabel), 32)
}

// SealSender encrypts senderBytes under key, binding epoch as AAD so a
// sealed-sender blob cannot be replayed across epochs.
func SealSender(senderKey, senderBytes []byte, epoch uint64) (nonce [12]byte, ciphertext []byte, err error) {
	n, err := sagecrypto.RandomBytes(12)
	if err != nil {
		return nonce, nil, err
	}
	copy(nonce[:], n)
	aad := epochAAD(epoch)
	ct, err := sagecrypto.AEADSeal(senderKey, nonce[:], aad, senderBytes)
	if err != nil {
		return nonce, nil, err
	}
	return nonce, ct, nil
}

// UnsealSender reverses SealSender, reporting a CryptoError-class failure
// (surfaced here as errs.ErrDecryptFailed) on tag mismatch or epoch bind
// mismatch (spec §4.5 "unseal_sender verifies AAD, reports CryptoError on
// tag mismatch").
func UnsealSender(senderKey []byte, nonce [12]byte, ciphertext []byte, epoch uint64) ([]byte, error) {
	aad := epochAAD(epoch)
	pt, err := sagecrypto.AEADOpen(senderKey, nonce[:], aad, ciphertext)
	if err != nil {
		return nil, errs.ErrDecryptFailed
	}
	return pt, nil
}

func epochAAD(epoch uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], epoch)
	return b[:]
}

// Seal builds a complete Envelope: it seals senderIdentity under the
// sender key and pads applicationCiphertext to the next padding-ladder
// size. applicationCiphertext is already encrypted by the caller (normally
// by mls.GroupState.EncryptApplicationMessage); Seal does not encrypt it
// again, so the envelope's ciphertext is that opaque blob padded.
func Seal(exporterSecret []byte, senderIdentity string, epoch uint64, applicationCiphertext []byte) (*Envelope, error) {
	senderKey, err := DeriveSenderKey(exporterSecret)
	if err != nil {
		return nil, err
	}
	nonce, sealedSender, err := SealSender(senderKey, []byte(senderIdentity), epoch)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Version:      envelopeVersion,
		Nonce:        nonce,
		SealedSender: sealedSender,
		Epoch:        epoch,
		Ciphertext:   PadToLadder(applicationCiphertext),
	}, nil
}

// Unseal recovers the sender identity from env's sealed-sender field. The
// caller is responsible for further dispatch of env.Ciphertext (typically
// into mls.GroupState.ProcessMessage after unpadding).
func Unseal(exporterSecret []byte, env *Envelope) (senderIdentity string, err error) {
	if env.Version != envelopeVersion {
		return "", errs.ErrUnsupportedVersion
	}
	senderKey, err := DeriveSenderKey(exporterSecret)
	if err != nil {
		return "", err
	}
	pt, err := UnsealSender(senderKey, env.Nonce, env.SealedSender, env.Epoch)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// Marshal serialises env to its normative wire bytes.
func (env *Envelope) Marshal() []byte {
	out := make([]byte, 0, 1+12+2+len(env.SealedSender)+8+len(env.Ciphertext))
	out = append(out, env.Version)
	out = append(out, env.Nonce[:]...)
	var senderLen [2]byte
	binary.BigEndian.PutUint16(senderLen[:], uint16(len(env.SealedSender)))
	out = append(out, senderLen[:]...)
	out = append(out, env.SealedSender...)
	var epochBytes [8]byte
	binary.BigEndian.PutUint64(epochBytes[:], env.Epoch)
	out = append(out, epochBytes[:]...)
	out = append(out, env.Ciphertext...)
	return out
}

// Unmarshal parses wire bytes produced by Marshal.
func Unmarshal(data []byte) (*Envelope, error) {
	if len(data) < 1+12+2+8 {
		return nil, errs.ErrInvalidMessage
	}
	env := &Envelope{Version: data[0]}
	copy(env.Nonce[:], data[1:13])
	senderLen := int(binary.BigEndian.Uint16(data[13:15]))
	off := 15
	if len(data) < off+senderLen+8 {
		return nil, errs.ErrInvalidMessage
	}
	env.SealedSender = append([]byte{}, data[off:off+senderLen]...)
	off += senderLen
	env.Epoch = binary.BigEndian.Uint64(data[off : off+8])
	off += 8
	env.Ciphertext = append([]byte{}, data[off:]...)
	return env, nil
}

// Fingerprint returns a stable identifier for env suitable for replay
// detection, independent of Marshal's exact byte layout.
func Fingerprint(data []byte) []byte {
	return blake3Sum(data)
}
