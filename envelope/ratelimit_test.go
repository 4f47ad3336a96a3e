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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacepanda-project/spacepanda/internal/errs"
)

func TestRateLimiterAllowsUpToCapacity(t *testing.T) {
	rl := NewRateLimiterWithShape(3, time.Minute)
	require.NoError(t, rl.Allow("alice"))
	require.NoError(t, rl.Allow("alice"))
	require.NoError(t, rl.Allow("alice"))
	require.ErrorIs(t, rl.Allow("alice"), errs.ErrRateLimitExceeded)
}

func TestRateLimiterIsPerPeer(t *testing.T) {
	rl := NewRateLimiterWithShape(1, time.Minute)
	require.NoError(t, rl.Allow("alice"))
	require.ErrorIs(t, rl.Allow("alice"), errs.ErrRateLimitExceeded)

	// A different peer has an untouched bucket.
	require.NoError(t, rl.Allow("bob"))
}

func TestRateLimiterRefillsOverTime(t *testing.T) {
	rl := NewRateLimiterWithShape(1, 50*time.Millisecond)
	require.NoError(t, rl.Allow("alice"))
	require.ErrorIs(t, rl.Allow("alice"), errs.ErrRateLimitExceeded)

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, rl.Allow("alice"))
}

func TestValidatorChecksRateThenReplay(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	msg := []byte("hello-envelope")
	require.NoError(t, v.ValidateRequest("alice", msg))
	require.ErrorIs(t, v.ValidateRequest("alice", msg), errs.ErrReplayDetected)
}
