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

// Package storage is the local storage layer (spec §4.3, component C3):
// durable, crash-safe persistence of MLS group snapshots, encrypted
// channel metadata blobs, message records, key packages and a per-channel
// operation log. Deliberately schema-minimal: no last_read_at,
// delivered_at, ip, or location columns (spec §4.3 "no timing leakage
// schema").
package storage

import "time"

// GroupSnapshot is a point-in-time serialisation of one channel's MLS
// group state (epoch, ratchet tree, members, pending proposals), saved
// through GroupStore.SaveSnapshotsAtomic.
type GroupSnapshot struct {
	ChannelID string
	Epoch     uint64
	Data      []byte // opaque MLS engine serialisation
	CreatedAt time.Time
}

// ChannelRecord stores a channel's metadata CRDT value, AEAD-sealed
// at rest (spec §4.3 "At-rest metadata confidentiality"). Name, Topic
// and Members are ciphertext columns; nothing here reveals plaintext
// names or membership in a raw dump.
type ChannelRecord struct {
	ChannelID      string
	NameCT         []byte
	TopicCT        []byte
	MembersCT      []byte
	SchemaVersion  int
	UpdatedAt      time.Time
}

// MessageRecord is one append-only entry in a channel's message log
// (spec §3 "Message record"). SenderHash is an HMAC of the sender
// identity under a per-channel key; the plaintext sender identity is
// never stored.
type MessageRecord struct {
	ID         string
	ChannelID  string
	SenderHash []byte
	Ciphertext []byte
	Sequence   uint64
	Processed  bool
	CreatedAt  time.Time
}

// KeyPackageRecord is a persisted KeyPackage advertisement (spec §3).
// Used marks single-use consumption: once true, Load must never surface
// it again.
type KeyPackageRecord struct {
	ID        string
	OwnerID   string
	Data      []byte
	Used      bool
	CreatedAt time.Time
}

// OperationLogEntry is one append-only CRDT or MLS-control operation,
// replayed against the last snapshot on load (spec §9 "Replayable
// command log vs. snapshot").
type OperationLogEntry struct {
	ChannelID string
	Sequence  uint64
	Kind      string
	Payload   []byte
	CreatedAt time.Time
}
