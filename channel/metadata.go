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
	"sync"
	"time"

	"github.com/spacepanda-project/spacepanda/crdt"
	"github.com/spacepanda-project/spacepanda/mls"
)

// mergeRoleRegister combines two concurrently-observed role registers
// for the same identity using last-write-wins, as ORMap requires of its
// mergeValue function.
func mergeRoleRegister(a, b *crdt.LWWRegister[mls.Role]) *crdt.LWWRegister[mls.Role] {
	return a.Merge(b)
}

// Metadata is the per-channel metadata CRDT: channel name plus a
// role-assignment map, replicated the same way the rest of a channel's
// state is (spec §4.6 "seeds metadata CRDT with self as Admin", §4.2 for
// the underlying CRDT types). It is the authoritative, mergeable source
// of "who is Admin"; mls.GroupState.Role is a cache of the same fact used
// for in-process authorisation checks.
type Metadata struct {
	mu     sync.RWMutex
	nodeID string
	name   *crdt.LWWRegister[string]
	roles  *crdt.ORMap[string, *crdt.LWWRegister[mls.Role]]
}

// NewMetadata seeds a fresh metadata CRDT with name and founderIdentity
// as Admin (spec §4.6 create_channel).
func NewMetadata(nodeID, name, founderIdentity string) *Metadata {
	m := &Metadata{
		nodeID: nodeID,
		name:   crdt.NewLWWRegister[string](),
		roles:  crdt.NewORMap[string, *crdt.LWWRegister[mls.Role]](mergeRoleRegister),
	}
	m.name.Set(name, time.Now().UnixNano(), nodeID, crdt.NewVectorClock())
	m.setRoleLocked(founderIdentity, mls.RoleAdmin)
	return m
}

func (m *Metadata) setRoleLocked(identity string, role mls.Role) {
	reg := crdt.NewLWWRegister[mls.Role]()
	reg.Set(role, time.Now().UnixNano(), m.nodeID, crdt.NewVectorClock())
	m.roles.Set(identity, reg, m.nodeID)
}

// SetRole records identity's role, CRDT-mergeable across replicas.
func (m *Metadata) SetRole(identity string, role mls.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setRoleLocked(identity, role)
}

// RemoveMember tombstones identity's role entry entirely.
func (m *Metadata) RemoveMember(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles.Delete(identity)
}

// Role returns identity's currently recorded role.
func (m *Metadata) Role(identity string) (mls.Role, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.roles.Get(identity)
	if !ok {
		return "", false
	}
	return reg.Value()
}

// Name returns the channel's current name.
func (m *Metadata) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, _ := m.name.Value()
	return v
}

// Merge combines other into a fresh Metadata value, leaving both inputs
// untouched (the same immutable-merge convention crdt's other types
// follow).
func (m *Metadata) Merge(other *Metadata) *Metadata {
	m.mu.RLock()
	other.mu.RLock()
	defer m.mu.RUnlock()
	defer other.mu.RUnlock()
	return &Metadata{
		nodeID: m.nodeID,
		name:   m.name.Merge(other.name),
		roles:  m.roles.Merge(other.roles),
	}
}
