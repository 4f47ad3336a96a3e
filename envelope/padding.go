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

	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// paddingLadder is the fixed set of ciphertext sizes every outbound
// payload is padded up to (spec §4.5 "padding ladder {256,1024,4096,
// 16384,65536} bytes"). Dummy mixer frames also draw from this ladder so
// real and cover traffic are bitwise indistinguishable in length.
var paddingLadder = []int{256, 1024, 4096, 16384, 65536}

// PadToLadder prepends a 4-byte big-endian length prefix to payload and
// zero-pads the result up to the smallest ladder rung that fits, or to
// the payload's own length if it already exceeds the largest rung.
func PadToLadder(payload []byte) []byte {
	total := 4 + len(payload)
	target := total
	for _, rung := range paddingLadder {
		if total <= rung {
			target = rung
			break
		}
	}
	out := make([]byte, target)
	binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// UnpadFromLadder reverses PadToLadder, recovering the exact original
// payload from its authenticated length prefix.
func UnpadFromLadder(padded []byte) ([]byte, error) {
	if len(padded) < 4 {
		return nil, errs.ErrInvalidMessage
	}
	n := binary.BigEndian.Uint32(padded[:4])
	if int(n) > len(padded)-4 {
		return nil, errs.ErrInvalidMessage
	}
	return padded[4 : 4+n], nil
}
