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

// Package memory is an in-memory storage.Store backend: development and
// test default, and the fallback engine when no relational DSN is
// configured (spec §1.3's config.Storage, teacher pattern: pkg/storage/memory).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spacepanda-project/spacepanda/internal/errs"
	"github.com/spacepanda-project/spacepanda/storage"
)

// Store implements storage.Store entirely in process memory.
type Store struct {
	mu sync.RWMutex

	snapshots   map[string][]*storage.GroupSnapshot
	channels    map[string]*storage.ChannelRecord
	messages    map[string][]*storage.MessageRecord
	keyPackages map[string]*storage.KeyPackageRecord
	opLog       map[string][]*storage.OperationLogEntry
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		snapshots:   make(map[string][]*storage.GroupSnapshot),
		channels:    make(map[string]*storage.ChannelRecord),
		messages:    make(map[string][]*storage.MessageRecord),
		keyPackages: make(map[string]*storage.KeyPackageRecord),
		opLog:       make(map[string][]*storage.OperationLogEntry),
	}
}

func (s *Store) Groups() storage.GroupStore             { return groupStore{s} }
func (s *Store) Channels() storage.ChannelStore          { return channelStore{s} }
func (s *Store) Messages() storage.MessageStore          { return messageStore{s} }
func (s *Store) KeyPackages() storage.KeyPackageStore    { return keyPackageStore{s} }
func (s *Store) OperationLog() storage.OperationLogStore { return opLogStore{s} }

// Close is a no-op for the memory backend.
func (s *Store) Close() error { return nil }

// Ping always succeeds for the memory backend.
func (s *Store) Ping(ctx context.Context) error { return nil }

type groupStore struct{ s *Store }

// SaveSnapshotsAtomic stages every snapshot into a scratch map first, so
// that a failure partway through (impossible in memory today, but kept
// for parity with a real engine's transaction boundary) leaves the
// existing snapshots untouched — persists all or none.
func (g groupStore) SaveSnapshotsAtomic(ctx context.Context, snapshots []*storage.GroupSnapshot) error {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()

	staged := make(map[string][]*storage.GroupSnapshot, len(g.s.snapshots))
	for k, v := range g.s.snapshots {
		staged[k] = v
	}
	for _, snap := range snapshots {
		cp := *snap
		staged[snap.ChannelID] = append(staged[snap.ChannelID], &cp)
	}
	g.s.snapshots = staged
	return nil
}

func (g groupStore) LoadLatestSnapshot(ctx context.Context, channelID string) (*storage.GroupSnapshot, error) {
	g.s.mu.RLock()
	defer g.s.mu.RUnlock()

	list := g.s.snapshots[channelID]
	if len(list) == 0 {
		return nil, errs.ErrNotFound
	}
	latest := list[0]
	for _, snap := range list[1:] {
		if snap.Epoch > latest.Epoch {
			latest = snap
		}
	}
	cp := *latest
	return &cp, nil
}

type channelStore struct{ s *Store }

func (c channelStore) SaveChannel(ctx context.Context, rec *storage.ChannelRecord) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cp := *rec
	cp.UpdatedAt = time.Now()
	c.s.channels[rec.ChannelID] = &cp
	return nil
}

func (c channelStore) LoadChannel(ctx context.Context, channelID string) (*storage.ChannelRecord, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	rec, ok := c.s.channels[channelID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (c channelStore) DeleteChannel(ctx context.Context, channelID string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.channels[channelID]; !ok {
		return errs.ErrNotFound
	}
	delete(c.s.channels, channelID)
	return nil
}

type messageStore struct{ s *Store }

func (m messageStore) AppendMessage(ctx context.Context, msg *storage.MessageRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *msg
	cp.CreatedAt = time.Now()
	m.s.messages[msg.ChannelID] = append(m.s.messages[msg.ChannelID], &cp)
	return nil
}

func (m messageStore) ListMessages(ctx context.Context, channelID string, fromSequence uint64, limit int) ([]*storage.MessageRecord, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	all := m.s.messages[channelID]
	out := make([]*storage.MessageRecord, 0, len(all))
	for _, msg := range all {
		if msg.Sequence >= fromSequence {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type keyPackageStore struct{ s *Store }

func (k keyPackageStore) SaveKeyPackage(ctx context.Context, kp *storage.KeyPackageRecord) error {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()
	cp := *kp
	cp.CreatedAt = time.Now()
	k.s.keyPackages[kp.ID] = &cp
	return nil
}

// LoadKeyPackage marks the row used and returns it; a subsequent load of
// the same id fails with errs.ErrNotFound (spec §4.3 single-use).
func (k keyPackageStore) LoadKeyPackage(ctx context.Context, id string) (*storage.KeyPackageRecord, error) {
	k.s.mu.Lock()
	defer k.s.mu.Unlock()
	kp, ok := k.s.keyPackages[id]
	if !ok || kp.Used {
		return nil, errs.ErrNotFound
	}
	kp.Used = true
	cp := *kp
	return &cp, nil
}

type opLogStore struct{ s *Store }

func (o opLogStore) AppendOperation(ctx context.Context, entry *storage.OperationLogEntry) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	cp := *entry
	cp.CreatedAt = time.Now()
	o.s.opLog[entry.ChannelID] = append(o.s.opLog[entry.ChannelID], &cp)
	return nil
}

func (o opLogStore) ListOperationsSince(ctx context.Context, channelID string, sinceSequence uint64) ([]*storage.OperationLogEntry, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	all := o.s.opLog[channelID]
	out := make([]*storage.OperationLogEntry, 0, len(all))
	for _, e := range all {
		if e.Sequence >= sinceSequence {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (o opLogStore) CompactBefore(ctx context.Context, channelID string, sequence uint64) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	all := o.s.opLog[channelID]
	kept := all[:0:0]
	for _, e := range all {
		if e.Sequence >= sequence {
			kept = append(kept, e)
		}
	}
	o.s.opLog[channelID] = kept
	return nil
}
