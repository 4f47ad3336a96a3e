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

package network

import (
	"fmt"
	"sync"

	"github.com/spacepanda-project/spacepanda/discovery"
	"github.com/spacepanda-project/spacepanda/session"
)

// SecureTransport wraps an inner Transport with a per-peer AEAD session
// (session.Manager), giving every frame a second, transport-level
// confidentiality layer underneath whatever an envelope.Envelope already
// carries. This is defense in depth, not a substitute for MLS/envelope
// sealing: a compromised transport session leaks only ciphertext the
// sealed-sender layer already produced.
//
// A session must be established with EstablishSession before Send or
// Open is called for a given peer; production callers derive sharedSecret
// from an X25519 handshake carried out of band (e.g. during discovery
// rendezvous), not shown here.
type SecureTransport struct {
	self    discovery.PeerID
	inner   Transport
	manager *session.Manager

	mu       sync.RWMutex
	pairings map[string]*session.PairingMetadata
}

// NewSecureTransport wraps inner with per-peer session encryption. self is
// this node's own peer id, needed to compute the same session id both
// ends of a pair agree on regardless of which side calls EstablishSession
// first.
func NewSecureTransport(self discovery.PeerID, inner Transport) *SecureTransport {
	return &SecureTransport{
		self:     self,
		inner:    inner,
		manager:  session.NewManager(),
		pairings: make(map[string]*session.PairingMetadata),
	}
}

// Pairing returns the audit metadata for the session established with
// peer, if any. It shows which peers currently carry a hardened
// transport session without reaching into the session package's key
// material.
func (t *SecureTransport) Pairing(peer discovery.PeerID) (*session.PairingMetadata, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.pairings[pairSessionID(t.self, peer)]
	return m, ok
}

// pairSessionID canonicalises a two-party session id so both peers derive
// the identical key material (session's HKDF salt is the session id
// itself, so the two ends must agree on it byte for byte).
func pairSessionID(a, b discovery.PeerID) string {
	sa, sb := string(a), string(b)
	if sa < sb {
		return sa + "|" + sb
	}
	return sb + "|" + sa
}

// EstablishSession seeds an AEAD session with peer from sharedSecret.
func (t *SecureTransport) EstablishSession(peer discovery.PeerID, sharedSecret []byte) error {
	sid := pairSessionID(t.self, peer)
	if _, err := t.manager.CreateSession(sid, sharedSecret); err != nil {
		return err
	}

	t.mu.Lock()
	t.pairings[sid] = session.NewPairingMetadataBuilder(t.self, peer).WithStatus("active").Build()
	t.mu.Unlock()
	return nil
}

// Send encrypts frame under peer's session before handing it to the inner
// transport.
func (t *SecureTransport) Send(peer discovery.PeerID, frame []byte) error {
	sess, ok := t.manager.GetSession(pairSessionID(t.self, peer))
	if !ok {
		return fmt.Errorf("secure transport: no session established for peer %q", peer)
	}
	ciphertext, err := sess.Encrypt(frame)
	if err != nil {
		return fmt.Errorf("secure transport: encrypt: %w", err)
	}
	return t.inner.Send(peer, ciphertext)
}

// Open decrypts a ciphertext received from peer back into the original
// frame bytes, for the receiving side to hand to UnmarshalFrame.
func (t *SecureTransport) Open(peer discovery.PeerID, ciphertext []byte) ([]byte, error) {
	sess, ok := t.manager.GetSession(pairSessionID(t.self, peer))
	if !ok {
		return nil, fmt.Errorf("secure transport: no session established for peer %q", peer)
	}
	plaintext, err := sess.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("secure transport: decrypt: %w", err)
	}
	return plaintext, nil
}

// Close tears down all sessions and their background cleanup loop.
func (t *SecureTransport) Close() error {
	t.mu.Lock()
	for _, m := range t.pairings {
		m.Status = "closed"
	}
	t.mu.Unlock()
	return t.manager.Close()
}
