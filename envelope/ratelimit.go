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
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// defaultBucketCapacity and defaultRefillPeriod match spec §4.5's
// "per-peer token bucket (capacity 100, refill 100/60s)".
const (
	defaultBucketCapacity = 100
	defaultRefillPeriod   = 60 * time.Second
)

// RateLimiter holds one token bucket per peer, created lazily on first
// use so a manager never has to pre-register every peer it might hear
// from.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	capacity int
	refill   rate.Limit
}

// NewRateLimiter builds a limiter using the spec-default bucket shape.
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithShape(defaultBucketCapacity, defaultRefillPeriod)
}

// NewRateLimiterWithShape builds a limiter whose buckets hold capacity
// tokens and refill fully every period.
func NewRateLimiterWithShape(capacity int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[string]*rate.Limiter),
		capacity: capacity,
		refill:   rate.Every(period / time.Duration(capacity)),
	}
}

func (r *RateLimiter) bucketLocked(peer string) *rate.Limiter {
	b, ok := r.buckets[peer]
	if !ok {
		b = rate.NewLimiter(r.refill, r.capacity)
		r.buckets[peer] = b
	}
	return b
}

// Allow reports whether peer has a token available and, if so, consumes
// it. Exhaustion is reported as errs.ErrRateLimitExceeded rather than a
// bare bool so callers can log/metric it uniformly with other rejections.
func (r *RateLimiter) Allow(peer string) error {
	r.mu.Lock()
	b := r.bucketLocked(peer)
	r.mu.Unlock()

	if !b.Allow() {
		return errs.ErrRateLimitExceeded
	}
	return nil
}
