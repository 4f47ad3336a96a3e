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
	"crypto/ecdh"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	sagecrypto "github.com/spacepanda-project/spacepanda/crypto"
	"github.com/spacepanda-project/spacepanda/crypto/keys"
	"github.com/spacepanda-project/spacepanda/discovery"
	"github.com/spacepanda-project/spacepanda/envelope"
	"github.com/spacepanda-project/spacepanda/identity"
	"github.com/spacepanda-project/spacepanda/internal/errs"
	"github.com/spacepanda-project/spacepanda/mls"
	"github.com/spacepanda-project/spacepanda/network"
	"github.com/spacepanda-project/spacepanda/storage"
)

// broadcaster is the subset of *network.Network the Manager depends on,
// kept as a local interface so tests can supply a lightweight double
// without standing up a real Transport.
type broadcaster interface {
	Broadcast(channelID, senderUserID string, frame network.Frame) error
	RegisterMember(channelID, userID string, peer discovery.PeerID)
	RemoveMember(channelID, userID string)
}

// Manager is the single coordinating actor per running node (spec §4.6).
// Every exported method that touches a channel's state acquires that
// channel's own RWMutex; Manager's own mutex only protects the top-level
// channels map, so operations on two different channels never contend.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]*PerChannelState

	self    *identity.Identity
	store   storage.Store
	peers   discovery.PeerDiscovery
	net     broadcaster
	nodeID  string

	pendingMu  sync.Mutex
	pendingKey map[string]sagecrypto.KeyPair // KeyPackage.ID -> HPKE init private key, not yet consumed by a join
}

// NewManager wires a Manager for self atop store, peers and net. nodeID
// identifies this replica to the CRDT layer (spec §4.2 AddID.NodeID).
func NewManager(self *identity.Identity, store storage.Store, peers discovery.PeerDiscovery, net broadcaster, nodeID string) *Manager {
	return &Manager{
		channels:   make(map[string]*PerChannelState),
		self:       self,
		store:      store,
		peers:      peers,
		net:        net,
		nodeID:     nodeID,
		pendingKey: make(map[string]sagecrypto.KeyPair),
	}
}

// CreateChannel creates C4 state at epoch 0 and seeds the metadata CRDT
// with self as Admin (spec §4.6 "create_channel(name, public?) → ChannelId").
func (m *Manager) CreateChannel(ctx context.Context, name string, public bool) (string, error) {
	channelID := uuid.NewString()
	engine, err := mls.CreateGroup(channelID, m.self.UserID, m.self.SigningKeyPair())
	if err != nil {
		return "", err
	}
	state := &PerChannelState{
		ID:       channelID,
		Public:   public,
		Engine:   engine,
		Metadata: NewMetadata(m.nodeID, name, m.self.UserID),
	}

	m.mu.Lock()
	m.channels[channelID] = state
	m.mu.Unlock()

	if m.store != nil {
		key, err := storage.DeriveMetadataKey(engine.CurrentExporterSecret())
		if err != nil {
			return "", err
		}
		nameCT, err := storage.SealColumn(key, channelID, []byte(name))
		if err != nil {
			return "", err
		}
		rec := &storage.ChannelRecord{ChannelID: channelID, NameCT: nameCT, SchemaVersion: 1, UpdatedAt: time.Now().UTC()}
		if err := m.store.Channels().SaveChannel(ctx, rec); err != nil {
			return "", err
		}
	}
	return channelID, nil
}

// GenerateKeyPackage produces and persists a single-use KeyPackage for
// self (spec §4.6 "generate_key_package() → bytes"), returning its JSON
// encoding for the caller to hand to an inviter out of band.
func (m *Manager) GenerateKeyPackage(ctx context.Context) ([]byte, error) {
	kp, initKP, err := mls.GenerateKeyPackage(m.self.UserID, m.self.SigningKeyPair())
	if err != nil {
		return nil, err
	}

	m.pendingMu.Lock()
	m.pendingKey[kp.ID] = initKP
	m.pendingMu.Unlock()

	if m.store != nil {
		data, err := json.Marshal(kp)
		if err != nil {
			return nil, err
		}
		rec := &storage.KeyPackageRecord{ID: kp.ID, OwnerID: m.self.UserID, Data: data, CreatedAt: time.Now().UTC()}
		if err := m.store.KeyPackages().SaveKeyPackage(ctx, rec); err != nil {
			return nil, err
		}
	}
	return json.Marshal(kp)
}

// CreateInvite admits inviteeKPBytes (a JSON-encoded mls.KeyPackage) into
// channelID and broadcasts the resulting commit to the channel's other
// current members (spec §4.6 "create_invite(channel, invitee_kp) →
// (Invite, commit_bytes?)").
func (m *Manager) CreateInvite(channelID string, inviteeKPBytes []byte) (*Invite, []byte, error) {
	state, err := m.get(channelID)
	if err != nil {
		return nil, nil, err
	}

	var kp mls.KeyPackage
	if err := json.Unmarshal(inviteeKPBytes, &kp); err != nil {
		return nil, nil, errs.ErrInvalidMessage
	}

	state.mu.Lock()
	commitBytes, welcomes, err := state.Engine.AddMembers(m.self.UserID, m.self.SigningKeyPair(), []*mls.KeyPackage{&kp})
	channelName := state.Metadata.Name()
	if err == nil {
		state.Metadata.SetRole(kp.Identity, mls.RoleMember)
	}
	state.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}

	if peer, ok := m.peers.LookupPeerID([]byte(kp.Identity)); ok {
		m.net.RegisterMember(channelID, kp.Identity, peer)
	}

	if err := m.net.Broadcast(channelID, m.self.UserID, network.Frame{Kind: network.KindCommit, ChannelID: channelID, Body: commitBytes}); err != nil {
		return nil, nil, err
	}

	invite := &Invite{
		ChannelID:    channelID,
		ChannelName:  channelName,
		KeyPackageID: kp.ID,
		Welcome:      welcomes[kp.Identity],
	}
	return invite, commitBytes, nil
}

// JoinChannel consumes a Welcome, initialises engine state, and
// registers self in the metadata CRDT (spec §4.6 "join_channel(invite) →
// ChannelId"). ctx is used only to mark the consumed KeyPackage used in
// persistent storage (spec §4.3 "KeyPackage single-use").
func (m *Manager) JoinChannel(ctx context.Context, invite *Invite) (string, error) {
	m.pendingMu.Lock()
	initKP, ok := m.pendingKey[invite.KeyPackageID]
	if ok {
		delete(m.pendingKey, invite.KeyPackageID)
	}
	m.pendingMu.Unlock()
	if !ok {
		return "", errs.ErrNotAMember
	}
	if m.store != nil {
		if _, err := m.store.KeyPackages().LoadKeyPackage(ctx, invite.KeyPackageID); err != nil {
			return "", err
		}
	}
	xkp, ok := initKP.(*keys.X25519KeyPair)
	if !ok {
		return "", errs.ErrInvalidKeyFormat
	}
	priv, ok := xkp.PrivateKey().(*ecdh.PrivateKey)
	if !ok {
		return "", errs.ErrInvalidKeyFormat
	}

	engine, err := mls.JoinFromWelcome(invite.Welcome, m.self.UserID, priv)
	if err != nil {
		return "", err
	}

	md := NewMetadata(m.nodeID, invite.ChannelName, m.self.UserID)
	for _, mem := range engine.ListMembers() {
		md.SetRole(mem.Identity, mem.Role)
	}

	state := &PerChannelState{ID: invite.ChannelID, Engine: engine, Metadata: md}
	m.mu.Lock()
	m.channels[invite.ChannelID] = state
	m.mu.Unlock()
	return invite.ChannelID, nil
}

// SendMessage encrypts plaintext via C4, wraps it via C5, broadcasts the
// envelope to the channel's members via C7, and returns the wire bytes it
// sent (spec §4.6 "send_message(channel, plaintext) → envelope").
func (m *Manager) SendMessage(channelID string, plaintext []byte) ([]byte, error) {
	state, err := m.get(channelID)
	if err != nil {
		return nil, err
	}

	state.mu.RLock()
	ct, err := state.Engine.EncryptApplicationMessage(m.self.UserID, plaintext)
	epoch := state.Engine.CurrentEpoch()
	exporterSecret := state.Engine.CurrentExporterSecret()
	state.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	env, err := envelope.Seal(exporterSecret, m.self.UserID, epoch, ct)
	if err != nil {
		return nil, err
	}
	wire := env.Marshal()

	if err := m.net.Broadcast(channelID, m.self.UserID, network.Frame{Kind: network.KindEncryptedMessage, ChannelID: channelID, Body: wire}); err != nil {
		return nil, err
	}
	return wire, nil
}

// ReceiveMessage unwraps an inbound envelope, skipping broadcast loopback
// (sealed sender equal to self), and returns the decrypted plaintext
// (spec §4.6 "receive_message(envelope) → plaintext | state_change").
// A nil, nil return means the message was our own loopback and carries
// nothing new for the caller.
func (m *Manager) ReceiveMessage(channelID string, wire []byte) ([]byte, error) {
	state, err := m.get(channelID)
	if err != nil {
		return nil, err
	}

	env, err := envelope.Unmarshal(wire)
	if err != nil {
		return nil, err
	}

	state.mu.RLock()
	exporterSecret := state.Engine.CurrentExporterSecret()
	state.mu.RUnlock()

	sender, err := envelope.Unseal(exporterSecret, env)
	if err != nil {
		return nil, err
	}
	if sender == m.self.UserID {
		return nil, nil
	}

	appCiphertext, err := envelope.UnpadFromLadder(env.Ciphertext)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	processed, err := state.Engine.ProcessMessage(mls.KindApplication, appCiphertext)
	state.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return processed.Plaintext, nil
}

// ProcessCommit applies a staged commit received out of band, e.g. one
// that arrived via the invite path rather than live broadcast (spec §4.6
// "process_commit(commit_bytes)").
func (m *Manager) ProcessCommit(channelID string, commitBytes []byte) error {
	state, err := m.get(channelID)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	_, err = state.Engine.ProcessMessage(mls.KindCommit, commitBytes)
	return err
}

// RemoveMember evicts identity from channelID; admin-only (spec §4.6
// "remove_member(channel, identity) — admin-only; produces commit and
// broadcasts").
func (m *Manager) RemoveMember(channelID, identity string) error {
	state, err := m.get(channelID)
	if err != nil {
		return err
	}

	state.mu.Lock()
	member, ok := state.Engine.FindMember(identity)
	if !ok {
		state.mu.Unlock()
		return errs.ErrNotAMember
	}
	commitBytes, err := state.Engine.RemoveMembers(m.self.UserID, m.self.SigningKeyPair(), []uint32{member.LeafIndex})
	if err == nil {
		state.Metadata.RemoveMember(identity)
	}
	state.mu.Unlock()
	if err != nil {
		return err
	}

	m.net.RemoveMember(channelID, identity)
	return m.net.Broadcast(channelID, m.self.UserID, network.Frame{Kind: network.KindCommit, ChannelID: channelID, Body: commitBytes})
}

// ListChannels returns every channel id this node currently participates in.
func (m *Manager) ListChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.channels))
	for id := range m.channels {
		out = append(out, id)
	}
	return out
}

// GetChannelMembers lists channelID's current members.
func (m *Manager) GetChannelMembers(channelID string) ([]mls.Member, error) {
	state, err := m.get(channelID)
	if err != nil {
		return nil, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.Engine.ListMembers(), nil
}

// GetMemberRole returns identity's role on channelID.
func (m *Manager) GetMemberRole(channelID, identity string) (mls.Role, error) {
	state, err := m.get(channelID)
	if err != nil {
		return "", err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	role, ok := state.Engine.GetMemberRole(identity)
	if !ok {
		return "", errs.ErrNotAMember
	}
	return role, nil
}

// IsAdmin reports whether identity holds the Admin role on channelID.
func (m *Manager) IsAdmin(channelID, identity string) (bool, error) {
	state, err := m.get(channelID)
	if err != nil {
		return false, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.Engine.IsAdmin(identity), nil
}

// PromoteMember grants identity the Admin role; callerIdentity must
// already be Admin.
func (m *Manager) PromoteMember(channelID, callerIdentity, identity string) error {
	return m.setRole(channelID, callerIdentity, identity, mls.RoleAdmin)
}

// DemoteMember revokes identity's Admin role, reducing it to Member;
// callerIdentity must already be Admin.
func (m *Manager) DemoteMember(channelID, callerIdentity, identity string) error {
	return m.setRole(channelID, callerIdentity, identity, mls.RoleMember)
}

func (m *Manager) setRole(channelID, callerIdentity, identity string, role mls.Role) error {
	state, err := m.get(channelID)
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if !state.Engine.IsAdmin(callerIdentity) {
		return errs.ErrUnauthorised
	}
	if err := state.Engine.SetMemberRole(identity, role); err != nil {
		return err
	}
	state.Metadata.SetRole(identity, role)
	return nil
}

func (m *Manager) get(channelID string) (*PerChannelState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.channels[channelID]
	if !ok {
		return nil, errs.ErrGroupNotFound
	}
	return state, nil
}
