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
	"encoding/binary"
	"fmt"

	sagecrypto "github.com/spacepanda-project/spacepanda/crypto"
	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// applicationKeyLabel domain-separates the per-sender, per-epoch
// application message key from every other derivation in this package
// (spec data flow: "C4.encrypt (epoch-keyed AEAD)").
const applicationKeyLabel = "SpacePanda MLS 1.0 Application Key"

// senderApplicationKey derives the AEAD key a given sender uses to
// encrypt application messages in the group's current epoch. Every
// member derives the same key for a given (epoch, sender) pair from the
// shared exporter secret, but a different key per sender — this is what
// lets "cannot decrypt own message" be a real, checkable condition rather
// than a convention enforced only at the network layer.
func (g *GroupState) senderApplicationKey(epoch uint64, senderIdentity string) ([]byte, error) {
	g.mu.RLock()
	exporter := append([]byte{}, g.ExporterSecret...)
	g.mu.RUnlock()
	info := []byte(fmt.Sprintf("%s epoch=%d sender=%s", applicationKeyLabel, epoch, senderIdentity))
	return sagecrypto.HKDFExtractExpand(nil, exporter, info, 32)
}

// EncryptApplicationMessage seals plaintext under the current epoch's
// per-sender key (spec data flow "C4.encrypt (epoch-keyed AEAD)"). The
// returned bytes are self-contained: sender identity, epoch, nonce and
// ciphertext, ready to be handed to the envelope layer for sealed-sender
// wrapping.
func (g *GroupState) EncryptApplicationMessage(senderIdentity string, plaintext []byte) ([]byte, error) {
	epoch := g.CurrentEpoch()
	if _, ok := g.FindMember(senderIdentity); !ok {
		return nil, errs.ErrNotAMember
	}
	key, err := g.senderApplicationKey(epoch, senderIdentity)
	if err != nil {
		return nil, err
	}
	nonce, err := sagecrypto.RandomBytes(12)
	if err != nil {
		return nil, err
	}
	aad := []byte(fmt.Sprintf("%s|%d", g.GroupID, epoch))
	ct, err := sagecrypto.AEADSeal(key, nonce, aad, plaintext)
	if err != nil {
		return nil, err
	}

	idBytes := []byte(senderIdentity)
	out := make([]byte, 0, 2+len(idBytes)+8+len(nonce)+len(ct))
	var idLen [2]byte
	binary.BigEndian.PutUint16(idLen[:], uint16(len(idBytes)))
	out = append(out, idLen[:]...)
	out = append(out, idBytes...)
	var epochBytes [8]byte
	binary.BigEndian.PutUint64(epochBytes[:], epoch)
	out = append(out, epochBytes[:]...)
	out = append(out, nonce...)
	out = append(out, ct...)
	return out, nil
}

// DecryptApplicationMessage is the dual of EncryptApplicationMessage. It
// refuses to decrypt a message whose declared sender is the local
// identity (spec error taxonomy: ErrCannotDecryptOwnMessage) and refuses
// messages from an epoch other than the one its key schedule can still
// reach (spec invariant I3 / §8 removal test).
func (g *GroupState) DecryptApplicationMessage(data []byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, errs.ErrInvalidMessage
	}
	idLen := int(binary.BigEndian.Uint16(data[:2]))
	data = data[2:]
	if len(data) < idLen+8+12 {
		return nil, errs.ErrInvalidMessage
	}
	senderIdentity := string(data[:idLen])
	data = data[idLen:]
	epoch := binary.BigEndian.Uint64(data[:8])
	data = data[8:]
	nonce := data[:12]
	ct := data[12:]

	g.mu.RLock()
	self := g.selfIdentity
	current := g.Epoch
	g.mu.RUnlock()

	if senderIdentity == self {
		return nil, errs.ErrCannotDecryptOwnMessage
	}
	if epoch != current {
		return nil, errs.NewEpochMismatchError(current, epoch)
	}
	if _, ok := g.FindMember(senderIdentity); !ok {
		return nil, errs.ErrNotAMember
	}

	key, err := g.senderApplicationKey(epoch, senderIdentity)
	if err != nil {
		return nil, err
	}
	aad := []byte(fmt.Sprintf("%s|%d", g.GroupID, epoch))
	pt, err := sagecrypto.AEADOpen(key, nonce, aad, ct)
	if err != nil {
		return nil, errs.ErrUnableToDecrypt
	}
	return pt, nil
}
