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

// Package discovery implements the peer discovery capability (spec §4.8,
// component C8): translating a long-term identity into a transport-level
// peer address. A DHT-based implementation is explicitly out of scope
// (it would leak the identity→peer mapping to the whole network), so the
// two implementations here are a no-op default and a signed rendezvous
// list that a deployment populates out of band.
package discovery

// PeerID is an opaque transport-layer address (e.g. a libp2p peer ID or
// a host:port); this package never interprets its contents.
type PeerID string

// PeerDiscovery resolves a long-term identity to a PeerID and lets a node
// publish its own address. The channel manager calls Lookup on every new
// channel member registration (spec §4.8).
type PeerDiscovery interface {
	LookupPeerID(identityBytes []byte) (PeerID, bool)
	RegisterSelf(identityBytes []byte, peer PeerID) error
}

// StaticDirectory is the default no-op implementation: it never resolves
// anyone and silently accepts registrations. Production deployments
// inject something real (mutual-TLS service discovery, a signed
// rendezvous list); this exists so the channel manager always has a
// PeerDiscovery to call without a nil check at every call site.
type StaticDirectory struct{}

// NewStaticDirectory returns the no-op default.
func NewStaticDirectory() *StaticDirectory { return &StaticDirectory{} }

// LookupPeerID always reports no known mapping.
func (StaticDirectory) LookupPeerID(identityBytes []byte) (PeerID, bool) { return "", false }

// RegisterSelf is a no-op; nothing is recorded.
func (StaticDirectory) RegisterSelf(identityBytes []byte, peer PeerID) error { return nil }
