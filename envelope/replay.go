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

package envelope

import (
	"encoding/binary"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"

	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// defaultReplayCacheCapacity is the default number of fingerprints
// remembered per channel (spec §4.5 "replay cache ... default capacity
// 10,000").
const defaultReplayCacheCapacity = 10_000

func blake3Sum(data []byte) []byte {
	h := blake3.Sum256(data)
	return h[:]
}

// fingerprint64 folds a BLAKE3 digest down to the 64-bit value the LRU
// keys on, matching the bounded-memory fingerprint cache grounded on
// wyf-ACCEPT-eth2030's signature cache.
func fingerprint64(data []byte) uint64 {
	sum := blake3Sum(data)
	return binary.BigEndian.Uint64(sum[:8])
}

// ReplayCache rejects an envelope it has already seen, bounded to a
// fixed capacity so memory cannot grow unboundedly under sustained
// traffic (spec §4.5 "Replay / rate-limit layer").
type ReplayCache struct {
	mu    sync.Mutex
	cache *lru.Cache[uint64, struct{}]
}

// NewReplayCache builds a cache with the default 10,000-entry capacity.
func NewReplayCache() (*ReplayCache, error) {
	return NewReplayCacheWithCapacity(defaultReplayCacheCapacity)
}

// NewReplayCacheWithCapacity builds a cache holding at most capacity
// fingerprints, evicting least-recently-used entries beyond that.
func NewReplayCacheWithCapacity(capacity int) (*ReplayCache, error) {
	c, err := lru.New[uint64, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	return &ReplayCache{cache: c}, nil
}

// Check records envelopeBytes as seen and reports errs.ErrReplayDetected
// if it was already present. A single call performs both the lookup and
// the insertion under one lock so two concurrent deliveries of the same
// envelope can never both pass.
func (r *ReplayCache) Check(envelopeBytes []byte) error {
	fp := fingerprint64(envelopeBytes)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cache.Get(fp); ok {
		return errs.ErrReplayDetected
	}
	r.cache.Add(fp, struct{}{})
	return nil
}
