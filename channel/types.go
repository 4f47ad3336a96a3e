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

// Package channel implements the channel manager (spec §4.6, component
// C6): a single coordinating actor per node holding a
// ChannelId → PerChannelState map and exposing the full surface of
// channel lifecycle, membership, and messaging operations on top of C4
// (mls), C5 (envelope) and C7 (network).
package channel

import (
	"sync"

	"github.com/spacepanda-project/spacepanda/mls"
)

// Invite is a Welcome-bearing invite token (spec §4.6 "create_invite ...
// produces a Welcome-bearing invite token"). ChannelName travels
// alongside the Welcome purely so the joiner's local Metadata CRDT has
// something to seed its name register with; it carries no authority the
// Welcome itself doesn't already grant.
type Invite struct {
	ChannelID    string
	ChannelName  string
	KeyPackageID string
	Welcome      []byte
}

// PerChannelState bundles one channel's engine, metadata CRDT and a
// read-write lock guarding both, matching spec §4.6's
// "PerChannelState { mls_engine, metadata_crdt, message_log,
// network_layer, peer_discovery }" (message_log, network_layer and
// peer_discovery are shared resources owned by the Manager, not
// per-channel, since one node has exactly one transport and one
// directory regardless of channel count).
type PerChannelState struct {
	mu       sync.RWMutex
	ID       string
	Public   bool
	Engine   *mls.GroupState
	Metadata *Metadata
}
