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
	"encoding/json"
	"fmt"

	sagecrypto "github.com/spacepanda-project/spacepanda/crypto"
	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// canonicalProposalBytes returns the bytes a Proposal's Signature covers.
func canonicalProposalBytes(p *Proposal) ([]byte, error) {
	type payload struct {
		Type            ProposalType `json:"type"`
		ProposerID      string       `json:"proposer_id"`
		AddKeyPackage   *KeyPackage  `json:"add_key_package,omitempty"`
		RemoveLeafIndex uint32       `json:"remove_leaf_index,omitempty"`
		Epoch           uint64       `json:"epoch"`
	}
	return json.Marshal(payload{p.Type, p.ProposerID, p.AddKeyPackage, p.RemoveLeafIndex, p.Epoch})
}

// canonicalCommitBytes returns the bytes a Commit's Signature covers:
// every field except the signature itself (spec §4.4 validation rule 4).
func canonicalCommitBytes(c *Commit) ([]byte, error) {
	type payload struct {
		GroupID         string      `json:"group_id"`
		Epoch           uint64      `json:"epoch"`
		SenderLeaf      uint32      `json:"sender_leaf"`
		Proposals       []*Proposal `json:"proposals"`
		PathUpdate      []byte      `json:"path_update"`
		ConfirmationTag []byte      `json:"confirmation_tag"`
	}
	return json.Marshal(payload{c.GroupID, c.Epoch, c.SenderLeaf, c.Proposals, c.PathUpdate, c.ConfirmationTag})
}

// ProposeAdd builds and signs an Add proposal. The caller (channel layer)
// enforces the Admin requirement before broadcasting it; buildCommit
// checks only that the proponent is a member, not its role.
func (g *GroupState) ProposeAdd(proposerIdentity string, signingKP sagecrypto.KeyPair, kp *KeyPackage) (*Proposal, error) {
	if err := kp.Verify(); err != nil {
		return nil, err
	}
	p := &Proposal{Type: ProposalAdd, ProposerID: proposerIdentity, AddKeyPackage: kp, Epoch: g.CurrentEpoch()}
	return signProposal(p, signingKP)
}

// ProposeRemove builds and signs a Remove proposal.
func (g *GroupState) ProposeRemove(proposerIdentity string, signingKP sagecrypto.KeyPair, leafIndex uint32) (*Proposal, error) {
	p := &Proposal{Type: ProposalRemove, ProposerID: proposerIdentity, RemoveLeafIndex: leafIndex, Epoch: g.CurrentEpoch()}
	return signProposal(p, signingKP)
}

func signProposal(p *Proposal, signingKP sagecrypto.KeyPair) (*Proposal, error) {
	payload, err := canonicalProposalBytes(p)
	if err != nil {
		return nil, err
	}
	sig, err := signingKP.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("sign proposal: %w", err)
	}
	p.Signature = sig
	return p, nil
}

func verifyProposalSignature(p *Proposal, signerPub []byte) error {
	payload, err := canonicalProposalBytes(p)
	if err != nil {
		return errs.ErrInvalidMessage
	}
	if !sagecrypto.Verify(ed25519.PublicKey(signerPub), payload, p.Signature) {
		return errs.ErrVerifyFailed
	}
	return nil
}

// addLeafSecretLabel and updateLeafSecretLabel domain-separate the
// per-leaf secrets derived below so a Commit's PathUpdate never collapses
// an Add and an Update in the same batch onto the same bytes.
const (
	addLeafSecretLabel    = "SpacePanda MLS 1.0 Add Leaf Secret"
	updateLeafSecretLabel = "SpacePanda MLS 1.0 Update Leaf Secret"
)

// deriveLeafSecret derives a new leaf's secret from the commit's own
// PathUpdate rather than rolling fresh randomness. PathUpdate travels on
// the wire in cleartext (canonicalCommitBytes includes it), so every
// party applying the same Commit — proponent, invitee (via the Welcome's
// sealed tree secrets) and every other merging member — derives the
// identical value. Re-rolling randomness independently per caller would
// make every merging member's tree diverge from the proponent's on the
// very commit that added or rotated the leaf.
func deriveLeafSecret(pathSecret []byte, label, identity string) ([]byte, error) {
	return sagecrypto.HKDFExtractExpand(nil, pathSecret, []byte(label+"/"+identity), 32)
}

// candidateState is the result of speculatively applying a set of
// proposals plus a path update to a cloned tree, used by both the
// building side (AddMembers/RemoveMembers/CommitPending) and the
// receiving side (ProcessMessage validating an incoming Commit) so the
// two can never disagree on what a commit means.
type candidateState struct {
	tree        *ratchetTree
	members     []*Member
	signingKeys map[string][]byte
	newLeafSecrets map[string][]byte // identity -> fresh leaf secret, populated for Adds
}

// applyProposals clones g's tree/members/signingKeys and applies
// proposals plus a rotation of senderLeaf's own secret to pathSecret. It
// never mutates g itself — callers decide whether to keep the result.
func (g *GroupState) applyProposals(senderLeaf uint32, proposals []*Proposal, pathSecret []byte, nextEpoch uint64) (*candidateState, error) {
	tree := g.Tree.clone()
	members := make([]*Member, len(g.Members))
	for i, m := range g.Members {
		cp := *m
		members[i] = &cp
	}
	signingKeys := make(map[string][]byte, len(g.signingKeys))
	for k, v := range g.signingKeys {
		signingKeys[k] = append([]byte{}, v...)
	}
	newLeafSecrets := map[string][]byte{}

	for _, p := range proposals {
		switch p.Type {
		case ProposalAdd:
			kp := p.AddKeyPackage
			if kp == nil {
				return nil, errs.ErrInvalidMessage
			}
			if err := kp.Verify(); err != nil {
				return nil, err
			}
			if _, exists := signingKeys[kp.Identity]; exists {
				return nil, errs.ErrAlreadyMember
			}
			leafSecret, err := deriveLeafSecret(pathSecret, addLeafSecretLabel, kp.Identity)
			if err != nil {
				return nil, err
			}
			idx := tree.addLeaf(kp.Identity, leafSecret)
			members = append(members, &Member{Identity: kp.Identity, LeafIndex: idx, JoinedAtEpoch: nextEpoch, Role: RoleMember})
			signingKeys[kp.Identity] = append([]byte{}, kp.LeafSigningKey...)
			newLeafSecrets[kp.Identity] = leafSecret

		case ProposalRemove:
			if !tree.removeLeaf(p.RemoveLeafIndex) {
				return nil, errs.ErrNotAMember
			}
			filtered := members[:0]
			for _, m := range members {
				if m.LeafIndex != p.RemoveLeafIndex {
					filtered = append(filtered, m)
				} else {
					delete(signingKeys, m.Identity)
				}
			}
			members = filtered

		case ProposalUpdate:
			if m, ok := g.findMemberByLeafLocked(p.RemoveLeafIndex); ok {
				newSecret, err := deriveLeafSecret(pathSecret, updateLeafSecretLabel, m.Identity)
				if err != nil {
					return nil, err
				}
				tree.rotateLeaf(m.LeafIndex, newSecret)
			}

		case ProposalPSK:
			// No tree effect in this engine; PSK injection is out of scope
			// for the channel/group flows this repository wires up.

		default:
			return nil, errs.ErrInvalidMessage
		}
	}

	if !tree.rotateLeaf(senderLeaf, pathSecret) {
		return nil, errs.ErrNotAMember
	}

	return &candidateState{tree: tree, members: members, signingKeys: signingKeys, newLeafSecrets: newLeafSecrets}, nil
}

// buildCommit constructs, seals and signs a Commit over proposals as
// proponentIdentity, speculatively applying it so the confirmation tag is
// correct, but does not merge it into g yet.
func (g *GroupState) buildCommit(proponentIdentity string, signingKP sagecrypto.KeyPair, proposals []*Proposal) (*Commit, *candidateState, error) {
	g.mu.RLock()
	proponent, ok := g.findMemberLocked(proponentIdentity)
	epoch := g.Epoch
	groupID := g.GroupID
	g.mu.RUnlock()
	if !ok {
		return nil, nil, errs.ErrNotAMember
	}

	pathSecret, err := sagecrypto.RandomBytes(32)
	if err != nil {
		return nil, nil, err
	}

	g.mu.RLock()
	cand, err := g.applyProposals(proponent.LeafIndex, proposals, pathSecret, epoch+1)
	g.mu.RUnlock()
	if err != nil {
		return nil, nil, err
	}

	commit := &Commit{
		GroupID:    groupID,
		Epoch:      epoch,
		SenderLeaf: proponent.LeafIndex,
		Proposals:  proposals,
		PathUpdate: pathSecret,
	}

	g.mu.RLock()
	_, confirmationTag, err := g.deriveEpochSecrets(cand.tree, mustCanonicalCommitContent(commit))
	g.mu.RUnlock()
	if err != nil {
		return nil, nil, err
	}
	commit.ConfirmationTag = confirmationTag

	payload, err := canonicalCommitBytes(commit)
	if err != nil {
		return nil, nil, err
	}
	sig, err := signingKP.Sign(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("sign commit: %w", err)
	}
	commit.Signature = sig

	return commit, cand, nil
}

// mustCanonicalCommitContent is used only to fold the commit's own
// proposal/path-update content into the epoch secret derivation before
// the confirmation tag field exists; it ignores marshal errors because
// Commit is always JSON-marshalable (no cycles, no channels/funcs).
func mustCanonicalCommitContent(c *Commit) []byte {
	b, _ := json.Marshal(struct {
		GroupID    string      `json:"group_id"`
		Epoch      uint64      `json:"epoch"`
		SenderLeaf uint32      `json:"sender_leaf"`
		Proposals  []*Proposal `json:"proposals"`
		PathUpdate []byte      `json:"path_update"`
	}{c.GroupID, c.Epoch, c.SenderLeaf, c.Proposals, c.PathUpdate})
	return b
}

// mergeCommit installs a candidate state as the group's new live state
// and advances the epoch (spec invariant I1: "epoch is strictly
// incremented by every merged commit").
func (g *GroupState) mergeCommit(cand *candidateState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Tree = cand.tree
	g.Members = cand.members
	g.signingKeys = cand.signingKeys
	g.Epoch++
	g.PendingProposals = nil
	exporterSecret, confirmationTag, err := g.deriveEpochSecrets(g.Tree, nil)
	if err == nil {
		g.ExporterSecret = exporterSecret
		g.ConfirmationTag = confirmationTag
	}
}

// AddMembers admits new members via their KeyPackages (spec §4.4
// "add_members(keypackage_list)"). Only an Admin may succeed. Returns the
// commit to broadcast to existing members and one Welcome per invitee.
func (g *GroupState) AddMembers(adminIdentity string, signingKP sagecrypto.KeyPair, keyPackages []*KeyPackage) (commitBytes []byte, welcomes map[string][]byte, err error) {
	if !g.IsAdmin(adminIdentity) {
		return nil, nil, errs.ErrUnauthorised
	}
	if len(keyPackages) == 0 {
		return nil, nil, errs.ErrInvalidInput
	}

	proposals := make([]*Proposal, 0, len(keyPackages))
	for _, kp := range keyPackages {
		p, err := g.ProposeAdd(adminIdentity, signingKP, kp)
		if err != nil {
			return nil, nil, err
		}
		proposals = append(proposals, p)
	}

	commit, cand, err := g.buildCommit(adminIdentity, signingKP, proposals)
	if err != nil {
		return nil, nil, err
	}

	newEpoch := g.CurrentEpoch() + 1
	welcomes = make(map[string][]byte, len(keyPackages))
	for _, kp := range keyPackages {
		wbytes, err := buildWelcome(g.GroupID, newEpoch, cand, kp)
		if err != nil {
			return nil, nil, err
		}
		welcomes[kp.Identity] = wbytes
	}

	g.mergeCommit(cand)

	commitBytes, err = json.Marshal(commit)
	if err != nil {
		return nil, nil, err
	}
	return commitBytes, welcomes, nil
}

// RemoveMembers evicts members by leaf index (spec §4.4
// "remove_members(leaf_index_list)"). Admin-only. After merge the removed
// identities no longer appear in Members and their leaf secrets are
// scrubbed (spec invariant I3).
func (g *GroupState) RemoveMembers(adminIdentity string, signingKP sagecrypto.KeyPair, leafIndexes []uint32) ([]byte, error) {
	if !g.IsAdmin(adminIdentity) {
		return nil, errs.ErrUnauthorised
	}
	if len(leafIndexes) == 0 {
		return nil, errs.ErrInvalidInput
	}

	proposals := make([]*Proposal, 0, len(leafIndexes))
	for _, idx := range leafIndexes {
		p, err := g.ProposeRemove(adminIdentity, signingKP, idx)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}

	commit, cand, err := g.buildCommit(adminIdentity, signingKP, proposals)
	if err != nil {
		return nil, err
	}
	g.mergeCommit(cand)

	return json.Marshal(commit)
}

// CommitPending flushes any queued proposals into one commit (spec §4.4
// "commit_pending() → (commit_bytes, optional welcome_bytes, new_epoch)").
func (g *GroupState) CommitPending(proponentIdentity string, signingKP sagecrypto.KeyPair) (commitBytes, welcomeBytes []byte, newEpoch uint64, err error) {
	g.mu.Lock()
	proposals := g.PendingProposals
	g.mu.Unlock()
	if len(proposals) == 0 {
		return nil, nil, g.CurrentEpoch(), errs.ErrInvalidInput
	}

	commit, cand, err := g.buildCommit(proponentIdentity, signingKP, proposals)
	if err != nil {
		return nil, nil, 0, err
	}

	// Any Add proposals mixed into a commit_pending batch still need a
	// Welcome; bundle them as one JSON map of identity -> welcome bytes.
	newEpoch = g.CurrentEpoch() + 1
	if len(cand.newLeafSecrets) > 0 {
		welcomesByIdentity := make(map[string][]byte, len(cand.newLeafSecrets))
		for _, p := range proposals {
			if p.Type != ProposalAdd || p.AddKeyPackage == nil {
				continue
			}
			wbytes, werr := buildWelcome(g.GroupID, newEpoch, cand, p.AddKeyPackage)
			if werr != nil {
				return nil, nil, 0, werr
			}
			welcomesByIdentity[p.AddKeyPackage.Identity] = wbytes
		}
		welcomeBytes, err = json.Marshal(welcomesByIdentity)
		if err != nil {
			return nil, nil, 0, err
		}
	}

	g.mergeCommit(cand)
	commitBytes, err = json.Marshal(commit)
	if err != nil {
		return nil, nil, 0, err
	}
	return commitBytes, welcomeBytes, g.CurrentEpoch(), nil
}

// QueueProposal appends a validated proposal to the pending queue for a
// later CommitPending call (spec §3 "pending_proposals").
func (g *GroupState) QueueProposal(p *Proposal) error {
	g.mu.RLock()
	signer, ok := g.signingKeys[p.ProposerID]
	g.mu.RUnlock()
	if !ok {
		return errs.ErrNotAMember
	}
	if err := verifyProposalSignature(p, signer); err != nil {
		return err
	}
	g.mu.Lock()
	g.PendingProposals = append(g.PendingProposals, p)
	g.mu.Unlock()
	return nil
}

// validateCommit checks an incoming Commit against the six acceptance
// rules in spec §4.4 and, if it passes, returns the candidate state ready
// to merge. Rejection never mutates g (spec: "Rejection is hard: the
// state is not mutated.").
func (g *GroupState) validateCommit(c *Commit) (*candidateState, error) {
	g.mu.RLock()
	groupID, epoch := g.GroupID, g.Epoch
	g.mu.RUnlock()

	// Rule 1: group id matches.
	if c.GroupID != groupID {
		return nil, errs.ErrInvalidMessage
	}
	// Rule 2: strict epoch equality.
	if c.Epoch != epoch {
		return nil, errs.NewEpochMismatchError(epoch, c.Epoch)
	}
	// Rule 3: sender is a current leaf.
	g.mu.RLock()
	sender, ok := g.findMemberByLeafLocked(c.SenderLeaf)
	var senderPub []byte
	if ok {
		senderPub = g.signingKeys[sender.Identity]
	}
	g.mu.RUnlock()
	if !ok {
		return nil, errs.ErrNotAMember
	}
	// Rule 4: signature verifies under the sender leaf's signing key.
	payload, err := canonicalCommitBytes(c)
	if err != nil {
		return nil, errs.ErrInvalidMessage
	}
	if !sagecrypto.Verify(ed25519.PublicKey(senderPub), payload, c.Signature) {
		return nil, errs.ErrVerifyFailed
	}
	// Rule 5: non-empty proposals or path update.
	if len(c.Proposals) == 0 && len(c.PathUpdate) == 0 {
		return nil, errs.ErrInvalidMessage
	}
	// Verify every proposal's own signature before applying any of them.
	g.mu.RLock()
	for _, p := range c.Proposals {
		proposerPub, known := g.signingKeys[p.ProposerID]
		if !known {
			g.mu.RUnlock()
			return nil, errs.ErrNotAMember
		}
		if err := verifyProposalSignature(p, proposerPub); err != nil {
			g.mu.RUnlock()
			return nil, err
		}
	}
	cand, err := g.applyProposals(c.SenderLeaf, c.Proposals, c.PathUpdate, epoch+1)
	g.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	// Rule 6: recomputed confirmation tag must match.
	g.mu.RLock()
	_, wantTag, err := g.deriveEpochSecrets(cand.tree, mustCanonicalCommitContent(c))
	g.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if !hmacEqual(wantTag, c.ConfirmationTag) {
		return nil, errs.ErrVerifyFailed
	}

	return cand, nil
}

// ProcessMessage dispatches an inbound wire message by its kind byte
// (spec §4.4 "process_message(bytes) dispatches by wire format"). Commit
// validation and merge are two separate lock acquisitions rather than one
// atomic critical section: callers (the channel layer) are expected to
// hold a per-channel write lock around the whole inbound dispatch loop,
// the same "folded loops share a lock" contract the source design calls
// for, so two commits for the same group are never processed here
// concurrently.
func (g *GroupState) ProcessMessage(kind MessageKind, body []byte) (*ProcessedMessage, error) {
	switch kind {
	case KindApplication:
		pt, err := g.DecryptApplicationMessage(body)
		if err != nil {
			return nil, err
		}
		return &ProcessedMessage{Kind: KindApplication, Plaintext: pt}, nil

	case KindProposal:
		var p Proposal
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, errs.ErrInvalidMessage
		}
		if err := g.QueueProposal(&p); err != nil {
			return nil, err
		}
		return &ProcessedMessage{Kind: KindProposal}, nil

	case KindCommit:
		var c Commit
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, errs.ErrInvalidMessage
		}
		cand, err := g.validateCommit(&c)
		if err != nil {
			return nil, err
		}
		g.mergeCommit(cand)
		return &ProcessedMessage{Kind: KindCommit, NewEpoch: g.CurrentEpoch(), AppliedCommit: &c}, nil

	case KindExternalJoinProposal:
		var p Proposal
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, errs.ErrInvalidMessage
		}
		return &ProcessedMessage{Kind: KindExternalJoinProposal, AppliedCommit: nil}, nil

	default:
		return nil, errs.ErrInvalidMessage
	}
}

// hmacEqual is a constant-time byte-slice comparison for confirmation
// tags, avoiding any length- or content-dependent branching shortcuts.
func hmacEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
