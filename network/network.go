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

package network

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/spacepanda-project/spacepanda/discovery"
)

// Transport is the one thing a concrete backend (libp2p, a raw TCP pool,
// a test double) must provide: a direct send to a resolved peer.
type Transport interface {
	Send(peer discovery.PeerID, frame []byte) error
}

// Network maintains channel_members: Map<ChannelId, Map<UserId, PeerId>>
// and implements broadcast/dispatch over a pluggable Transport (spec
// §4.7).
type Network struct {
	mu        sync.RWMutex
	members   map[string]map[string]discovery.PeerID
	transport Transport
}

// New wires a Network on top of an already-constructed Transport.
func New(transport Transport) *Network {
	return &Network{
		members:   make(map[string]map[string]discovery.PeerID),
		transport: transport,
	}
}

// RegisterMember records that userID on channelID is reachable at peer,
// typically right after the channel manager resolves them via
// discovery.PeerDiscovery.LookupPeerID.
func (n *Network) RegisterMember(channelID, userID string, peer discovery.PeerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	m, ok := n.members[channelID]
	if !ok {
		m = make(map[string]discovery.PeerID)
		n.members[channelID] = m
	}
	m[userID] = peer
}

// RemoveMember forgets userID's peer mapping on channelID, e.g. after
// they are removed from the group.
func (n *Network) RemoveMember(channelID, userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if m, ok := n.members[channelID]; ok {
		delete(m, userID)
	}
}

// Broadcast sends frame to every member of channelID except senderUserID
// (spec §4.7 "iterates the channel's members, skips the sender, and
// performs direct sends"). The first send error is returned after every
// member has been attempted; Broadcast does not stop early on one
// member's failure.
func (n *Network) Broadcast(channelID, senderUserID string, frame Frame) error {
	n.mu.RLock()
	members := make(map[string]discovery.PeerID, len(n.members[channelID]))
	for userID, peer := range n.members[channelID] {
		members[userID] = peer
	}
	n.mu.RUnlock()

	wire := frame.Marshal()
	var firstErr error
	for userID, peer := range members {
		if userID == senderUserID {
			continue
		}
		if err := n.transport.Send(peer, wire); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dispatch is called once per decoded inbound frame; returning a non-nil
// error does not stop Listen, which drops the error and moves on to the
// next frame, so one bad frame cannot wedge the whole event loop.
type Dispatch func(Frame) error

// Listen spawns workerCount goroutines draining events, each decoding a
// raw frame and handing it to dispatch, until ctx is cancelled or events
// is closed (spec §4.7 "a spawned task polls the transport event stream
// and forwards payloads into C6's inbound channel"). Multiple workers
// are supported because decoding/dispatch may itself suspend on storage
// or MLS processing; ordering across channels is not guaranteed (spec
// §5 "Across channels: no ordering guarantee"), only within one
// channel's own upstream processing lock.
func Listen(ctx context.Context, events <-chan []byte, workerCount int, dispatch Dispatch) error {
	if workerCount < 1 {
		workerCount = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case raw, ok := <-events:
					if !ok {
						return nil
					}
					frame, err := UnmarshalFrame(raw)
					if err != nil {
						continue
					}
					if err := dispatch(frame); err != nil {
						continue
					}
				}
			}
		})
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
