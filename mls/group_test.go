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
	"testing"

	"github.com/stretchr/testify/require"

	sagecrypto "github.com/spacepanda-project/spacepanda/crypto"
	"github.com/spacepanda-project/spacepanda/crypto/keys"
	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// testMember bundles what a test needs to act as one participant: a signing
// identity plus, once invited, the HPKE init private key their KeyPackage
// advertised.
type testMember struct {
	identity  string
	signingKP sagecrypto.KeyPair
	initKP    sagecrypto.KeyPair
	group     *GroupState
}

func newTestMember(t *testing.T, identity string) *testMember {
	t.Helper()
	kp, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)
	return &testMember{identity: identity, signingKP: kp}
}

func (m *testMember) keyPackage(t *testing.T) *KeyPackage {
	t.Helper()
	kp, initKP, err := GenerateKeyPackage(m.identity, m.signingKP)
	require.NoError(t, err)
	m.initKP = initKP
	return kp
}

func (m *testMember) join(t *testing.T, welcomeBytes []byte) {
	t.Helper()
	xkp, ok := m.initKP.(*keys.X25519KeyPair)
	require.True(t, ok)
	priv, ok := xkp.PrivateKey().(*ecdh.PrivateKey)
	require.True(t, ok)
	g, err := JoinFromWelcome(welcomeBytes, m.identity, priv)
	require.NoError(t, err)
	m.group = g
}

func TestCreateGroupFounderIsAdmin(t *testing.T) {
	alice := newTestMember(t, "alice")
	g, err := CreateGroup("group-1", alice.identity, alice.signingKP)
	require.NoError(t, err)
	require.Equal(t, uint64(0), g.CurrentEpoch())
	require.True(t, g.IsAdmin("alice"))
	members := g.ListMembers()
	require.Len(t, members, 1)
	require.Equal(t, RoleAdmin, members[0].Role)
}

func TestAddMembersAdvancesEpochAndWelcomesJoin(t *testing.T) {
	alice := newTestMember(t, "alice")
	bob := newTestMember(t, "bob")

	g, err := CreateGroup("group-1", alice.identity, alice.signingKP)
	require.NoError(t, err)

	bobKP := bob.keyPackage(t)
	commitBytes, welcomes, err := g.AddMembers("alice", alice.signingKP, []*KeyPackage{bobKP})
	require.NoError(t, err)
	require.NotEmpty(t, commitBytes)
	require.Contains(t, welcomes, "bob")
	require.Equal(t, uint64(1), g.CurrentEpoch())

	bob.join(t, welcomes["bob"])
	require.Equal(t, uint64(1), bob.group.CurrentEpoch())
	require.Equal(t, g.CurrentExporterSecret(), bob.group.CurrentExporterSecret())

	role, ok := bob.group.GetMemberRole("bob")
	require.True(t, ok)
	require.Equal(t, RoleMember, role)
}

func TestAddMembersRejectsNonAdmin(t *testing.T) {
	alice := newTestMember(t, "alice")
	bob := newTestMember(t, "bob")
	charlie := newTestMember(t, "charlie")

	g, err := CreateGroup("group-1", alice.identity, alice.signingKP)
	require.NoError(t, err)

	_, welcomes, err := g.AddMembers("alice", alice.signingKP, []*KeyPackage{bob.keyPackage(t)})
	require.NoError(t, err)
	bob.join(t, welcomes["bob"])

	_, _, err = bob.group.AddMembers("bob", bob.signingKP, []*KeyPackage{charlie.keyPackage(t)})
	require.ErrorIs(t, err, errs.ErrUnauthorised)
}

func TestThreeMemberSendReceive(t *testing.T) {
	alice := newTestMember(t, "alice")
	bob := newTestMember(t, "bob")
	charlie := newTestMember(t, "charlie")

	g, err := CreateGroup("t1", alice.identity, alice.signingKP)
	require.NoError(t, err)
	alice.group = g

	_, welcomes, err := g.AddMembers("alice", alice.signingKP, []*KeyPackage{bob.keyPackage(t)})
	require.NoError(t, err)
	bob.join(t, welcomes["bob"])

	commitBytes, welcomes, err := g.AddMembers("alice", alice.signingKP, []*KeyPackage{charlie.keyPackage(t)})
	require.NoError(t, err)
	charlie.join(t, welcomes["charlie"])

	// Bob, already a member, must process the commit that added Charlie.
	_, err = bob.group.ProcessMessage(KindCommit, commitBytes)
	require.NoError(t, err)
	require.Equal(t, g.CurrentEpoch(), bob.group.CurrentEpoch())
	require.Equal(t, g.CurrentEpoch(), charlie.group.CurrentEpoch())

	ct, err := alice.group.EncryptApplicationMessage("alice", []byte("hello"))
	require.NoError(t, err)

	pt, err := bob.group.ProcessMessage(KindApplication, ct)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), pt.Plaintext)

	pt, err = charlie.group.ProcessMessage(KindApplication, ct)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), pt.Plaintext)

	// Sender can never decrypt their own envelope (spec: loopback dropped).
	_, err = alice.group.ProcessMessage(KindApplication, ct)
	require.ErrorIs(t, err, errs.ErrCannotDecryptOwnMessage)
}

func TestRemoveMemberForwardSecrecy(t *testing.T) {
	alice := newTestMember(t, "alice")
	bob := newTestMember(t, "bob")

	g, err := CreateGroup("t1", alice.identity, alice.signingKP)
	require.NoError(t, err)

	_, welcomes, err := g.AddMembers("alice", alice.signingKP, []*KeyPackage{bob.keyPackage(t)})
	require.NoError(t, err)
	bob.join(t, welcomes["bob"])

	bobMember, ok := g.FindMember("bob")
	require.True(t, ok)

	// Bob is removed at this epoch; his last-known state must not be able
	// to decrypt anything sent at a later epoch (spec invariant I3 / §8
	// removal test).
	bobSnapshotEpoch := bob.group.CurrentEpoch()

	_, err = g.RemoveMembers("alice", alice.signingKP, []uint32{bobMember.LeafIndex})
	require.NoError(t, err)
	require.Equal(t, bobSnapshotEpoch+1, g.CurrentEpoch())

	_, ok = g.FindMember("bob")
	require.False(t, ok)

	ct, err := g.EncryptApplicationMessage("alice", []byte("secret after removal"))
	require.NoError(t, err)

	// Bob's stale snapshot never saw the removal commit, so his local
	// epoch disagrees with the message header and decryption must fail.
	_, err = bob.group.DecryptApplicationMessage(ct)
	require.Error(t, err)
}

func TestProcessMessageRejectsWrongEpochCommit(t *testing.T) {
	alice := newTestMember(t, "alice")
	bob := newTestMember(t, "bob")
	charlie := newTestMember(t, "charlie")

	g, err := CreateGroup("t1", alice.identity, alice.signingKP)
	require.NoError(t, err)

	_, welcomes, err := g.AddMembers("alice", alice.signingKP, []*KeyPackage{bob.keyPackage(t)})
	require.NoError(t, err)
	bob.join(t, welcomes["bob"])

	commitBytes, _, err := g.AddMembers("alice", alice.signingKP, []*KeyPackage{charlie.keyPackage(t)})
	require.NoError(t, err)

	// Replaying the same commit bytes again must be rejected: local epoch
	// has already moved past the commit's stated epoch.
	_, err = g.ProcessMessage(KindCommit, commitBytes)
	var epochErr *errs.EpochMismatchError
	require.ErrorAs(t, err, &epochErr)
}

func TestProcessMessageRejectsTamperedCommitSignature(t *testing.T) {
	alice := newTestMember(t, "alice")
	bob := newTestMember(t, "bob")
	charlie := newTestMember(t, "charlie")

	g, err := CreateGroup("t1", alice.identity, alice.signingKP)
	require.NoError(t, err)

	_, welcomes, err := g.AddMembers("alice", alice.signingKP, []*KeyPackage{bob.keyPackage(t)})
	require.NoError(t, err)
	bob.join(t, welcomes["bob"])

	p, err := g.ProposeAdd("alice", alice.signingKP, charlie.keyPackage(t))
	require.NoError(t, err)
	commit, _, err := g.buildCommit("alice", alice.signingKP, []*Proposal{p})
	require.NoError(t, err)
	commit.Signature[0] ^= 0xFF

	_, err = bob.group.validateCommit(commit)
	require.ErrorIs(t, err, errs.ErrVerifyFailed)
}

func TestGenerateKeyPackageVerifies(t *testing.T) {
	alice := newTestMember(t, "alice")
	kp := alice.keyPackage(t)
	require.NoError(t, kp.Verify())

	kp.Signature[0] ^= 0xFF
	require.ErrorIs(t, kp.Verify(), errs.ErrVerifyFailed)
}
