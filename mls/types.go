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

// Package mls is the MLS group engine (spec §4.4, component C4): per-group
// state machine driven by four message kinds (Proposal, Commit, Welcome,
// Application). This is the hardest component in the system — epoch
// advancement, commit validation, forward secrecy and post-compromise
// security all live here.
package mls

import "time"

// Role is a member's authorisation level within a group (spec §4.4
// "Authorisation (role model)").
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Member is one current participant in a group, identified by leaf index.
type Member struct {
	Identity      string
	LeafIndex     uint32
	JoinedAtEpoch uint64
	Role          Role
}

// Wire-level message kinds dispatched by ProcessMessage (spec §4.4
// "process_message(bytes) dispatches by wire format").
type MessageKind byte

const (
	KindApplication MessageKind = iota + 1
	KindProposal
	KindCommit
	KindExternalJoinProposal
)

// ProposalType names the kind of change a Proposal requests.
type ProposalType string

const (
	ProposalAdd    ProposalType = "add"
	ProposalRemove ProposalType = "remove"
	ProposalUpdate ProposalType = "update"
	ProposalPSK    ProposalType = "psk"
)

// Proposal is a signed suggestion queued for the next commit (spec §4.4,
// GLOSSARY "Proposal").
type Proposal struct {
	Type       ProposalType
	ProposerID string // identity of the member proposing
	// AddKeyPackage is set for ProposalAdd.
	AddKeyPackage *KeyPackage
	// RemoveLeafIndex is set for ProposalRemove.
	RemoveLeafIndex uint32
	Epoch           uint64 // epoch this proposal was created against
	Signature       []byte
}

// Commit bundles a set of proposals (or a bare path update) and advances
// the epoch by exactly one (spec §4.4, GLOSSARY "Commit").
type Commit struct {
	GroupID         string
	Epoch           uint64 // the epoch this commit was built against (local.epoch at build time)
	SenderLeaf      uint32
	Proposals       []*Proposal
	PathUpdate      []byte // new leaf public key material for the proponent, if any
	ConfirmationTag []byte
	Signature       []byte // over every field above except itself
}

// ProcessedMessage is the result of ProcessMessage: exactly one of its
// fields is populated depending on the message kind.
type ProcessedMessage struct {
	Kind          MessageKind
	Plaintext     []byte
	NewEpoch      uint64
	AppliedCommit *Commit
}

// welcomeVersion is the only Welcome wire version this engine understands
// (spec §6 "Versions other than the supported one produce UnsupportedVersion").
const welcomeVersion = 1

// Welcome is the HPKE-encrypted onboarding packet (spec §6 "Welcome wire
// format"). CipherSuite and EncryptedGroupSecrets/EncryptedGroupInfo map
// directly onto the normative wire fields; buildWelcome and
// JoinFromWelcome serialise it as JSON.
type Welcome struct {
	Version              uint8
	CipherSuite           uint16
	EncryptedGroupSecrets []byte // HPKE(invitee_init_pk, groupSecrets)
	EncryptedGroupInfo    []byte // HPKE(invitee_init_pk, groupInfo) under the same context
}

// groupSecrets is what EncryptedGroupSecrets decrypts to: enough key
// material for the invitee to derive the current epoch's exporter secret.
type groupSecrets struct {
	Epoch          uint64
	ExporterSecret []byte
	ConfirmationTag []byte
}

// groupInfo is what EncryptedGroupInfo decrypts to: the membership and
// tree state the invitee needs to initialise local state.
type groupInfo struct {
	GroupID       string
	Epoch         uint64
	Members       []Member
	TreeSecrets   [][]byte          // one per leaf, in leaf-index order
	SigningKeys   map[string][]byte // identity -> Ed25519 leaf signing public key
	JoinedAtEpoch uint64
}

// KeyPackage is the public advertisement a user publishes to be invited
// (spec §3 "KeyPackage"). A KeyPackage is single-use: the storage layer
// enforces that once consumed in a Welcome it is never surfaced again.
type KeyPackage struct {
	ID              string
	CipherSuite     string
	InitKey         []byte // HPKE X25519 public key
	Identity        string
	LeafSigningKey  []byte // Ed25519 public key for this leaf
	Extensions      map[string]string
	Signature       []byte // over every field above except ID, by the identity key
	CreatedAt       time.Time
}
