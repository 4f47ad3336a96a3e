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

// Package network abstracts transport (spec §4.7, component C7). It
// never inspects plaintext: every frame it moves is an opaque envelope
// or MLS control message tagged only with a kind byte and a channel id.
package network

import (
	"encoding/binary"

	"github.com/spacepanda-project/spacepanda/internal/errs"
)

// Kind tags an inbound/outbound frame without the network layer ever
// looking inside its body (spec §4.7 "dispatched by kind").
type Kind uint8

const (
	KindEncryptedMessage Kind = iota
	KindCommit
	KindProposal
	KindJoinRequest
)

// Frame is the unit of transport: a kind tag, the channel it belongs to,
// and an opaque body (an envelope.Envelope's wire bytes for
// EncryptedMessage, a JSON-encoded mls.Commit/Proposal for the others).
type Frame struct {
	Kind      Kind
	ChannelID string
	Body      []byte
}

// Marshal serialises f to wire bytes: [kind:u8][channelIDLen:u16][channelID][body].
func (f Frame) Marshal() []byte {
	out := make([]byte, 0, 1+2+len(f.ChannelID)+len(f.Body))
	out = append(out, byte(f.Kind))
	var idLen [2]byte
	binary.BigEndian.PutUint16(idLen[:], uint16(len(f.ChannelID)))
	out = append(out, idLen[:]...)
	out = append(out, []byte(f.ChannelID)...)
	out = append(out, f.Body...)
	return out
}

// UnmarshalFrame parses wire bytes produced by Frame.Marshal.
func UnmarshalFrame(data []byte) (Frame, error) {
	if len(data) < 3 {
		return Frame{}, errs.ErrInvalidMessage
	}
	kind := Kind(data[0])
	idLen := int(binary.BigEndian.Uint16(data[1:3]))
	if len(data) < 3+idLen {
		return Frame{}, errs.ErrInvalidMessage
	}
	channelID := string(data[3 : 3+idLen])
	body := append([]byte{}, data[3+idLen:]...)
	return Frame{Kind: kind, ChannelID: channelID, Body: body}, nil
}
