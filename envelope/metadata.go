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

package envelope

import (
	"encoding/json"

	sagecrypto "github.com/spacepanda-project/spacepanda/crypto"
	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// Metadata carries the per-message side information kept out of the
// application ciphertext (delivery hints, reactions, read markers). Its
// Epoch field is checked against the envelope it travels with as
// defence in depth against a mismatched seal (spec §4.5 "Sealed
// metadata").
type Metadata struct {
	Epoch uint64            `json:"epoch"`
	Kind  string            `json:"kind"`
	Extra map[string]string `json:"extra,omitempty"`
}

// DeriveMetadataKey derives the AEAD key used to seal Metadata, domain
// separated from DeriveSenderKey by a distinct HKDF label.
func DeriveMetadataKey(exporterSecret []byte) ([]byte, error) {
	return sagecrypto.HKDFExtractExpand(nil, exporterSecret, []byte(sealedMetadataLabel), 32)
}

// SealMetadata encrypts md under the metadata key for epoch, binding
// epoch as AAD in addition to carrying it in the cleartext struct.
func SealMetadata(exporterSecret []byte, epoch uint64, md Metadata) (nonce [12]byte, ciphertext []byte, err error) {
	md.Epoch = epoch
	pt, err := json.Marshal(md)
	if err != nil {
		return nonce, nil, err
	}
	key, err := DeriveMetadataKey(exporterSecret)
	if err != nil {
		return nonce, nil, err
	}
	n, err := sagecrypto.RandomBytes(12)
	if err != nil {
		return nonce, nil, err
	}
	copy(nonce[:], n)
	ct, err := sagecrypto.AEADSeal(key, nonce[:], epochAAD(epoch), pt)
	if err != nil {
		return nonce, nil, err
	}
	return nonce, ct, nil
}

// UnsealMetadata reverses SealMetadata and enforces that the decrypted
// payload's own epoch field matches the epoch it was sealed under,
// rejecting a seal whose AAD epoch and cleartext epoch have been made to
// disagree by a tampering relay.
func UnsealMetadata(exporterSecret []byte, epoch uint64, nonce [12]byte, ciphertext []byte) (Metadata, error) {
	var md Metadata
	key, err := DeriveMetadataKey(exporterSecret)
	if err != nil {
		return md, err
	}
	pt, err := sagecrypto.AEADOpen(key, nonce[:], epochAAD(epoch), ciphertext)
	if err != nil {
		return md, errs.ErrDecryptFailed
	}
	if err := json.Unmarshal(pt, &md); err != nil {
		return md, errs.ErrInvalidMessage
	}
	if md.Epoch != epoch {
		return md, errs.NewEpochMismatchError(epoch, md.Epoch)
	}
	return md, nil
}
