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
	"crypto/ed25519"
	"fmt"
	"sync"

	sagecrypto "github.com/spacepanda-project/spacepanda/crypto"
	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// epochSecretLabel domain-separates the per-epoch exporter/confirmation
// derivation from every other HKDF use in the codebase.
const epochSecretLabel = "SpacePanda MLS 1.0 Epoch Secret"

// GroupState is the per-channel MLS engine: epoch, ratchet tree, member
// list and pending proposals (spec §3 "MLS group state"). All mutation
// goes through AddMembers, RemoveMembers, ProcessMessage and
// CommitPending. These take mu in several short sections rather than for
// their full duration, so callers serialise them per group (see
// ProcessMessage).
type GroupState struct {
	mu sync.RWMutex

	GroupID         string
	Epoch           uint64
	Members         []*Member
	Tree            *ratchetTree
	PendingProposals []*Proposal
	ConfirmationTag []byte
	ExporterSecret  []byte

	// signingKeys maps a current member's identity to their leaf
	// signing (Ed25519) public key, used to verify proposal and commit
	// signatures (spec invariant I4).
	signingKeys map[string][]byte

	selfIdentity  string
	selfLeafIndex uint32
}

// CreateGroup creates a new group at epoch 0 with founderIdentity as its
// sole Admin member (spec §4.4 "create(group_id, founder_identity) →
// state@epoch=0. Founder is Admin.").
func CreateGroup(groupID, founderIdentity string, founderSigningKey sagecrypto.KeyPair) (*GroupState, error) {
	secret, err := sagecrypto.RandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("generate founder leaf secret: %w", err)
	}
	tree := newRatchetTree()
	idx := tree.addLeaf(founderIdentity, secret)

	pub, ok := founderSigningKey.PublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("founder signing key must be Ed25519")
	}

	g := &GroupState{
		GroupID: groupID,
		Epoch:   0,
		Members: []*Member{{Identity: founderIdentity, LeafIndex: idx, JoinedAtEpoch: 0, Role: RoleAdmin}},
		Tree:    tree,
		signingKeys:   map[string][]byte{founderIdentity: append([]byte{}, pub...)},
		selfIdentity:  founderIdentity,
		selfLeafIndex: idx,
	}
	exporterSecret, confirmationTag, err := g.deriveEpochSecrets(tree, nil)
	if err != nil {
		return nil, err
	}
	g.ExporterSecret = exporterSecret
	g.ConfirmationTag = confirmationTag
	return g, nil
}

// deriveEpochSecretsFor computes the exporter secret and confirmation tag
// labelled for a specific epoch number from a candidate tree and the
// canonical bytes of the commit that produced it (nil when there is none
// yet to fold in, as at group creation or once merged).
func deriveEpochSecretsFor(tree *ratchetTree, epoch uint64, commitContent []byte) (exporterSecret, confirmationTag []byte, err error) {
	root, err := tree.rootSecret()
	if err != nil {
		return nil, nil, err
	}
	ikm := append(append([]byte{}, root...), commitContent...)
	label := []byte(fmt.Sprintf("%s epoch=%d exporter", epochSecretLabel, epoch))
	exporterSecret, err = sagecrypto.HKDFExtractExpand(nil, ikm, label, 32)
	if err != nil {
		return nil, nil, err
	}
	tagLabel := []byte(fmt.Sprintf("%s epoch=%d confirmation", epochSecretLabel, epoch))
	confirmationTag, err = sagecrypto.HKDFExtractExpand(exporterSecret, ikm, tagLabel, 32)
	if err != nil {
		return nil, nil, err
	}
	return exporterSecret, confirmationTag, nil
}

// deriveEpochSecrets is deriveEpochSecretsFor labelled with g's own
// current epoch number (read without locking — callers hold the lock).
func (g *GroupState) deriveEpochSecrets(tree *ratchetTree, commitContent []byte) (exporterSecret, confirmationTag []byte, err error) {
	return deriveEpochSecretsFor(tree, g.Epoch, commitContent)
}

// FindMember returns the current member record for identity, if any.
func (g *GroupState) FindMember(identity string) (Member, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findMemberLocked(identity)
}

func (g *GroupState) findMemberLocked(identity string) (Member, bool) {
	for _, m := range g.Members {
		if m.Identity == identity {
			return *m, true
		}
	}
	return Member{}, false
}

func (g *GroupState) findMemberByLeafLocked(idx uint32) (*Member, bool) {
	for _, m := range g.Members {
		if m.LeafIndex == idx {
			return m, true
		}
	}
	return nil, false
}

// IsAdmin reports whether identity currently holds the Admin role (spec
// §4.4 "Authorisation (role model)").
func (g *GroupState) IsAdmin(identity string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.findMemberLocked(identity)
	return ok && m.Role == RoleAdmin
}

// GetMemberRole returns identity's current role.
func (g *GroupState) GetMemberRole(identity string) (Role, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.findMemberLocked(identity)
	if !ok {
		return "", false
	}
	return m.Role, true
}

// SetMemberRole promotes or demotes identity; callers (the channel layer)
// are responsible for checking that the invoker is Admin before calling
// this (spec §4.4 "Promote/demote are admin-only operations").
func (g *GroupState) SetMemberRole(identity string, role Role) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.Members {
		if m.Identity == identity {
			m.Role = role
			return nil
		}
	}
	return errs.ErrNotAMember
}

// ListMembers returns a snapshot copy of the current membership.
func (g *GroupState) ListMembers() []Member {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Member, len(g.Members))
	for i, m := range g.Members {
		out[i] = *m
	}
	return out
}

// CurrentEpoch returns the group's current epoch under the read lock.
func (g *GroupState) CurrentEpoch() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Epoch
}

// CurrentExporterSecret returns a copy of the current epoch's exporter
// secret, used to derive application message keys and sealed-metadata
// keys (spec §3 "Sealed metadata").
func (g *GroupState) CurrentExporterSecret() []byte {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]byte{}, g.ExporterSecret...)
}
