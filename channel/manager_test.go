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

package channel

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacepanda-project/spacepanda/discovery"
	"github.com/spacepanda-project/spacepanda/identity"
	"github.com/spacepanda-project/spacepanda/internal/errs"
	"github.com/spacepanda-project/spacepanda/mls"
	"github.com/spacepanda-project/spacepanda/network"
	"github.com/spacepanda-project/spacepanda/storage/memory"
)

// fakeNet links two or more Managers directly in-process: a broadcast
// from one node is delivered synchronously to every other registered
// node's inbox for the test to drain.
type fakeNet struct {
	mu      sync.Mutex
	inboxes map[string]chan network.Frame // keyed by userID
	members map[string]map[string]discovery.PeerID
}

func newFakeNet() *fakeNet {
	return &fakeNet{
		inboxes: make(map[string]chan network.Frame),
		members: make(map[string]map[string]discovery.PeerID),
	}
}

func (n *fakeNet) attach(userID string) chan network.Frame {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan network.Frame, 16)
	n.inboxes[userID] = ch
	return ch
}

func (n *fakeNet) RegisterMember(channelID, userID string, peer discovery.PeerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.members[channelID] == nil {
		n.members[channelID] = make(map[string]discovery.PeerID)
	}
	n.members[channelID][userID] = peer
}

func (n *fakeNet) RemoveMember(channelID, userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.members[channelID], userID)
}

func (n *fakeNet) Broadcast(channelID, senderUserID string, frame network.Frame) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for userID := range n.members[channelID] {
		if userID == senderUserID {
			continue
		}
		if ch, ok := n.inboxes[userID]; ok {
			ch <- frame
		}
	}
	return nil
}

type node struct {
	mgr   *Manager
	inbox chan network.Frame
	id    *identity.Identity
}

func newNode(t *testing.T, net *fakeNet, userID string) *node {
	t.Helper()
	var deviceID [32]byte
	id, err := identity.New(userID, deviceID)
	require.NoError(t, err)
	n := &node{
		mgr:   NewManager(id, memory.NewStore(), discovery.NewStaticDirectory(), net, userID),
		inbox: net.attach(userID),
		id:    id,
	}
	return n
}

func (n *node) drainCommits(t *testing.T, channelID string) {
	t.Helper()
	for {
		select {
		case f := <-n.inbox:
			switch f.Kind {
			case network.KindCommit:
				require.NoError(t, n.mgr.ProcessCommit(channelID, f.Body))
			case network.KindEncryptedMessage:
				// left for the caller to consume explicitly in message tests
				n.inbox <- f
				return
			}
		default:
			return
		}
	}
}

func TestCreateChannelFounderIsAdmin(t *testing.T) {
	net := newFakeNet()
	alice := newNode(t, net, "alice")

	channelID, err := alice.mgr.CreateChannel(context.Background(), "general", false)
	require.NoError(t, err)

	isAdmin, err := alice.mgr.IsAdmin(channelID, "alice")
	require.NoError(t, err)
	require.True(t, isAdmin)

	role, err := alice.mgr.GetMemberRole(channelID, "alice")
	require.NoError(t, err)
	require.Equal(t, mls.RoleAdmin, role)
}

func TestInviteJoinAndSendReceive(t *testing.T) {
	net := newFakeNet()
	alice := newNode(t, net, "alice")
	bob := newNode(t, net, "bob")

	channelID, err := alice.mgr.CreateChannel(context.Background(), "general", false)
	require.NoError(t, err)
	net.RegisterMember(channelID, "alice", discovery.PeerID("peer-alice"))

	bobKPBytes, err := bob.mgr.GenerateKeyPackage(context.Background())
	require.NoError(t, err)

	invite, _, err := alice.mgr.CreateInvite(channelID, bobKPBytes)
	require.NoError(t, err)

	gotChannelID, err := bob.mgr.JoinChannel(context.Background(), invite)
	require.NoError(t, err)
	require.Equal(t, channelID, gotChannelID)
	net.RegisterMember(channelID, "bob", discovery.PeerID("peer-bob"))

	wire, err := alice.mgr.SendMessage(channelID, []byte("hello bob"))
	require.NoError(t, err)

	var deliveredFrame network.Frame
	select {
	case f := <-bob.inbox:
		deliveredFrame = f
	default:
		t.Fatal("bob never received the broadcast frame")
	}
	require.Equal(t, network.KindEncryptedMessage, deliveredFrame.Kind)
	require.Equal(t, wire, deliveredFrame.Body)

	pt, err := bob.mgr.ReceiveMessage(channelID, deliveredFrame.Body)
	require.NoError(t, err)
	require.Equal(t, []byte("hello bob"), pt)
}

func TestReceiveMessageSkipsOwnLoopback(t *testing.T) {
	net := newFakeNet()
	alice := newNode(t, net, "alice")

	channelID, err := alice.mgr.CreateChannel(context.Background(), "general", false)
	require.NoError(t, err)
	net.RegisterMember(channelID, "alice", discovery.PeerID("peer-alice"))

	wire, err := alice.mgr.SendMessage(channelID, []byte("to myself"))
	require.NoError(t, err)

	pt, err := alice.mgr.ReceiveMessage(channelID, wire)
	require.NoError(t, err)
	require.Nil(t, pt)
}

func TestRemoveMemberIsAdminOnly(t *testing.T) {
	net := newFakeNet()
	alice := newNode(t, net, "alice")
	bob := newNode(t, net, "bob")
	charlie := newNode(t, net, "charlie")

	channelID, err := alice.mgr.CreateChannel(context.Background(), "general", false)
	require.NoError(t, err)
	net.RegisterMember(channelID, "alice", discovery.PeerID("peer-alice"))

	bobKPBytes, err := bob.mgr.GenerateKeyPackage(context.Background())
	require.NoError(t, err)
	bobInvite, _, err := alice.mgr.CreateInvite(channelID, bobKPBytes)
	require.NoError(t, err)
	_, err = bob.mgr.JoinChannel(context.Background(), bobInvite)
	require.NoError(t, err)
	net.RegisterMember(channelID, "bob", discovery.PeerID("peer-bob"))

	charlieKPBytes, err := charlie.mgr.GenerateKeyPackage(context.Background())
	require.NoError(t, err)
	charlieInvite, _, err := alice.mgr.CreateInvite(channelID, charlieKPBytes)
	require.NoError(t, err)
	bob.drainCommits(t, channelID)
	_, err = charlie.mgr.JoinChannel(context.Background(), charlieInvite)
	require.NoError(t, err)
	net.RegisterMember(channelID, "charlie", discovery.PeerID("peer-charlie"))

	// Bob is a member but not an Admin, so his removal attempt is refused.
	require.ErrorIs(t, bob.mgr.RemoveMember(channelID, "charlie"), errs.ErrUnauthorised)

	require.NoError(t, alice.mgr.RemoveMember(channelID, "charlie"))

	_, err = alice.mgr.GetMemberRole(channelID, "charlie")
	require.ErrorIs(t, err, errs.ErrNotAMember)
}

func TestPromoteDemoteRequiresAdmin(t *testing.T) {
	net := newFakeNet()
	alice := newNode(t, net, "alice")
	bob := newNode(t, net, "bob")

	channelID, err := alice.mgr.CreateChannel(context.Background(), "general", false)
	require.NoError(t, err)
	net.RegisterMember(channelID, "alice", discovery.PeerID("peer-alice"))

	bobKPBytes, err := bob.mgr.GenerateKeyPackage(context.Background())
	require.NoError(t, err)
	invite, _, err := alice.mgr.CreateInvite(channelID, bobKPBytes)
	require.NoError(t, err)
	_, err = bob.mgr.JoinChannel(context.Background(), invite)
	require.NoError(t, err)
	net.RegisterMember(channelID, "bob", discovery.PeerID("peer-bob"))

	// Bob cannot promote himself.
	require.ErrorIs(t, alice.mgr.PromoteMember(channelID, "bob", "bob"), errs.ErrUnauthorised)

	// Alice, the Admin, can.
	require.NoError(t, alice.mgr.PromoteMember(channelID, "alice", "bob"))
	role, err := alice.mgr.GetMemberRole(channelID, "bob")
	require.NoError(t, err)
	require.Equal(t, mls.RoleAdmin, role)

	require.NoError(t, alice.mgr.DemoteMember(channelID, "alice", "bob"))
	role, err = alice.mgr.GetMemberRole(channelID, "bob")
	require.NoError(t, err)
	require.Equal(t, mls.RoleMember, role)
}

func TestListChannels(t *testing.T) {
	net := newFakeNet()
	alice := newNode(t, net, "alice")

	id1, err := alice.mgr.CreateChannel(context.Background(), "general", false)
	require.NoError(t, err)
	id2, err := alice.mgr.CreateChannel(context.Background(), "random", true)
	require.NoError(t, err)

	channels := alice.mgr.ListChannels()
	require.ElementsMatch(t, []string{id1, id2}, channels)
}
