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

package discovery

import (
	"crypto/ed25519"
	"encoding/base64"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	sagecrypto "github.com/spacepanda-project/spacepanda/crypto"
)

// rendezvousClaims is one signed (identity, peer) binding, carried as the
// custom claims of an EdDSA-signed JWT so the authority's signature and
// the entry it covers travel together as a single bearer token.
type rendezvousClaims struct {
	jwt.RegisteredClaims
	IdentityB64 string `json:"identity_b64"`
	PeerID      PeerID `json:"peer_id"`
}

// SignedRendezvous is a peer discovery implementation backed by a set of
// (identity, peer) bindings, each an EdDSA-signed JWT issued by a
// rendezvous authority and published out of band (e.g. fetched from an
// HTTPS endpoint the deployment trusts). A token is only trusted for
// lookup once it parses and verifies against authorityPub; RegisterSelf
// only stages a local entry for the caller to have the authority
// countersign, it does not itself mint a trusted binding.
type SignedRendezvous struct {
	mu           sync.RWMutex
	authorityPub ed25519.PublicKey
	trusted      map[string]rendezvousClaims // keyed by identity_b64
	pendingSelf  []rendezvousClaims
}

// NewSignedRendezvous builds an empty directory trusting tokens signed by
// authorityPub.
func NewSignedRendezvous(authorityPub ed25519.PublicKey) *SignedRendezvous {
	return &SignedRendezvous{
		authorityPub: authorityPub,
		trusted:      make(map[string]rendezvousClaims),
	}
}

func newRendezvousClaims(identityBytes []byte, peer PeerID) rendezvousClaims {
	return rendezvousClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		IdentityB64: base64.StdEncoding.EncodeToString(identityBytes),
		PeerID:      peer,
	}
}

// Ingest verifies and installs a batch of authority-signed rendezvous
// tokens. A token that fails to parse or verify is rejected without
// affecting the rest of the batch.
func (d *SignedRendezvous) Ingest(tokens []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, raw := range tokens {
		var claims rendezvousClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, sagecrypto.ErrInvalidSignature
			}
			return d.authorityPub, nil
		}, jwt.WithValidMethods([]string{"EdDSA"}))
		if err != nil {
			continue
		}
		d.trusted[claims.IdentityB64] = claims
	}
	return nil
}

// LookupPeerID returns the trusted peer binding for identityBytes, if
// the authority has signed a token for it.
func (d *SignedRendezvous) LookupPeerID(identityBytes []byte) (PeerID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.trusted[base64.StdEncoding.EncodeToString(identityBytes)]
	return e.PeerID, ok
}

// RegisterSelf stages a local (identity, peer) binding for the authority
// to countersign out of band; it is not yet trusted for lookup.
func (d *SignedRendezvous) RegisterSelf(identityBytes []byte, peer PeerID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingSelf = append(d.pendingSelf, newRendezvousClaims(identityBytes, peer))
	return nil
}

// PendingSelf returns the staged self-registrations awaiting the
// authority's signature, as unsigned claim sets the authority signs into
// tokens before publishing them back for Ingest.
func (d *SignedRendezvous) PendingSelf() ([]jwt.Claims, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]jwt.Claims, 0, len(d.pendingSelf))
	for _, c := range d.pendingSelf {
		out = append(out, c)
	}
	return out, nil
}

// SignRendezvousToken is the authority-side counterpart to Ingest: it
// mints an EdDSA-signed token binding identityBytes to peer, using the
// authority's own Ed25519 private key.
func SignRendezvousToken(authorityPriv ed25519.PrivateKey, identityBytes []byte, peer PeerID) (string, error) {
	claims := newRendezvousClaims(identityBytes, peer)
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(authorityPriv)
}
