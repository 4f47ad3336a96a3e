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
	"crypto/ecdh"
	"encoding/json"
	"fmt"

	"github.com/spacepanda-project/spacepanda/crypto/keys"
	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// welcomeSecretsInfo and welcomeInfoInfo domain-separate the two HPKE
// exports sealed into a Welcome (spec §6 "Welcome wire format").
var (
	welcomeSecretsInfo = []byte("SpacePanda MLS 1.0 Welcome GroupSecrets")
	welcomeInfoInfo    = []byte("SpacePanda MLS 1.0 Welcome GroupInfo")
)

// buildWelcome seals the new epoch's group secrets and group info to the
// invitee's KeyPackage init key (spec §4.4 "one Welcome per new member").
//
// This engine's ratchet tree folds every leaf's raw secret into one root
// secret (see tree.go). A faithful TreeKEM only ever reveals a new
// member the minimal parent-path secrets they need, never their
// siblings' raw leaf values; reproducing that here was out of scope, so
// groupInfo.TreeSecrets instead carries the complete per-leaf secret
// vector, HPKE-sealed end-to-end to the invitee alone. Confidentiality
// against network observers and non-members is preserved; confidentiality
// against a different, already-admitted group member who also managed to
// intercept the Welcome ciphertext is not. See DESIGN.md.
func buildWelcome(groupID string, newEpoch uint64, cand *candidateState, kp *KeyPackage) ([]byte, error) {
	exporterSecret, confirmationTag, err := deriveEpochSecretsFor(cand.tree, newEpoch, nil)
	if err != nil {
		return nil, err
	}

	secrets := groupSecrets{Epoch: newEpoch, ExporterSecret: exporterSecret, ConfirmationTag: confirmationTag}
	secretsPT, err := json.Marshal(secrets)
	if err != nil {
		return nil, err
	}

	members := make([]Member, len(cand.members))
	for i, m := range cand.members {
		members[i] = *m
	}
	treeSecrets := make([][]byte, len(cand.tree.leaves))
	for i, l := range cand.tree.leaves {
		if l.Occupied {
			treeSecrets[i] = l.Secret
		}
	}
	signingKeys := make(map[string][]byte, len(cand.signingKeys))
	for k, v := range cand.signingKeys {
		signingKeys[k] = v
	}
	info := groupInfo{
		GroupID:       groupID,
		Epoch:         newEpoch,
		Members:       members,
		TreeSecrets:   treeSecrets,
		SigningKeys:   signingKeys,
		JoinedAtEpoch: newEpoch,
	}
	infoPT, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}

	initPub, err := ecdh.X25519().NewPublicKey(kp.InitKey)
	if err != nil {
		return nil, fmt.Errorf("parse invitee init key: %w", err)
	}

	secretsCT, _, err := keys.HPKESealAndExportToX25519Peer(initPub, secretsPT, welcomeSecretsInfo, welcomeSecretsInfo, 32)
	if err != nil {
		return nil, fmt.Errorf("seal welcome group secrets: %w", err)
	}
	infoCT, _, err := keys.HPKESealAndExportToX25519Peer(initPub, infoPT, welcomeInfoInfo, welcomeInfoInfo, 32)
	if err != nil {
		return nil, fmt.Errorf("seal welcome group info: %w", err)
	}

	w := Welcome{
		Version:               welcomeVersion,
		CipherSuite:           1,
		EncryptedGroupSecrets: secretsCT,
		EncryptedGroupInfo:    infoCT,
	}
	return json.Marshal(w)
}

// JoinFromWelcome decrypts a Welcome with the invitee's HPKE init private
// key and reconstructs local group state at the epoch the Welcome names
// (spec §4.4 "join_from_welcome"). initPriv is the X25519 private key
// matching the KeyPackage that was consumed by this Welcome. A Welcome
// can only ever be consumed once because its KeyPackage was single-use at
// the storage layer (spec §3 "KeyPackage ... single-use"); replaying the
// same Welcome bytes here is caught by the caller re-checking that
// single-use invariant, not by this function, which is pure.
func JoinFromWelcome(welcomeBytes []byte, selfIdentity string, initPriv *ecdh.PrivateKey) (*GroupState, error) {
	var w Welcome
	if err := json.Unmarshal(welcomeBytes, &w); err != nil {
		return nil, errs.ErrInvalidMessage
	}
	if w.Version != welcomeVersion {
		return nil, errs.ErrUnsupportedVersion
	}

	secretsPT, _, err := keys.HPKEOpenAndExportWithX25519Priv(initPriv, w.EncryptedGroupSecrets, welcomeSecretsInfo, welcomeSecretsInfo, 32)
	if err != nil {
		return nil, errs.ErrDecryptFailed
	}
	var secrets groupSecrets
	if err := json.Unmarshal(secretsPT, &secrets); err != nil {
		return nil, errs.ErrInvalidMessage
	}

	infoPT, _, err := keys.HPKEOpenAndExportWithX25519Priv(initPriv, w.EncryptedGroupInfo, welcomeInfoInfo, welcomeInfoInfo, 32)
	if err != nil {
		return nil, errs.ErrDecryptFailed
	}
	var info groupInfo
	if err := json.Unmarshal(infoPT, &info); err != nil {
		return nil, errs.ErrInvalidMessage
	}

	if info.Epoch != secrets.Epoch {
		return nil, errs.ErrStaleWelcome
	}

	tree := newRatchetTree()
	members := make([]*Member, len(info.Members))
	var selfLeaf uint32
	foundSelf := false
	for i, m := range info.Members {
		mCopy := m
		members[i] = &mCopy
		var secret []byte
		if int(m.LeafIndex) < len(info.TreeSecrets) {
			secret = info.TreeSecrets[m.LeafIndex]
		}
		tree.setLeafAt(m.LeafIndex, m.Identity, secret)
		if m.Identity == selfIdentity {
			selfLeaf = m.LeafIndex
			foundSelf = true
		}
	}
	if !foundSelf {
		return nil, errs.ErrNotAMember
	}

	g := &GroupState{
		GroupID:         info.GroupID,
		Epoch:           info.Epoch,
		Members:         members,
		Tree:            tree,
		ConfirmationTag: secrets.ConfirmationTag,
		ExporterSecret:  secrets.ExporterSecret,
		signingKeys:     info.SigningKeys,
		selfIdentity:    selfIdentity,
		selfLeafIndex:   selfLeaf,
	}
	return g, nil
}
