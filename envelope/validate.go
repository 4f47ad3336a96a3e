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

// Validator gates inbound envelopes before they ever reach mls
// processing: rate limit first (cheap, no crypto), then replay (spec
// §4.5 "validate_request(peer, envelope)").
type Validator struct {
	limiter *RateLimiter
	replay  *ReplayCache
}

// NewValidator wires a limiter and a replay cache together using their
// spec-default shapes.
func NewValidator() (*Validator, error) {
	replay, err := NewReplayCache()
	if err != nil {
		return nil, err
	}
	return &Validator{limiter: NewRateLimiter(), replay: replay}, nil
}

// ValidateRequest checks peer's token bucket, then envelopeBytes against
// the replay cache. Rate limiting runs first since it is pure arithmetic
// and rejects abusive peers before they can exhaust the replay cache.
func (v *Validator) ValidateRequest(peer string, envelopeBytes []byte) error {
	if err := v.limiter.Allow(peer); err != nil {
		return err
	}
	return v.replay.Check(envelopeBytes)
}
